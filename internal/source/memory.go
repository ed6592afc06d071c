package source

import (
	"context"
	"fmt"
	"sync"

	"dogedash/internal/core"
)

// Memory serves datasets held in process. Kinds never saved fail with
// ErrFetchFailure. It implements both Fetcher and Archiver.
type Memory struct {
	mu    sync.Mutex
	data  map[core.Kind][]core.Record
	calls map[core.Kind]int
}

func NewMemory() *Memory {
	return &Memory{data: map[core.Kind][]core.Record{}, calls: map[core.Kind]int{}}
}

// Save stores a copy of records for kind.
func (m *Memory) Save(_ context.Context, kind core.Kind, records []core.Record) error {
	if !kind.Valid() {
		return core.ErrUnknownKind
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[kind] = append([]core.Record{}, records...)
	return nil
}

// Fetch implements Fetcher.
func (m *Memory) Fetch(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[kind]++
	recs, ok := m.data[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no %s data in memory", ErrFetchFailure, kind)
	}
	return append([]core.Record{}, recs...), nil
}

// Calls reports how many times kind was fetched.
func (m *Memory) Calls(kind core.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[kind]
}
