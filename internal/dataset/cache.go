// Package dataset holds the loaded copy of each dataset kind for the
// lifetime of the process.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"dogedash/internal/core"
	applog "dogedash/internal/log"
)

// Status is the load state of one dataset kind.
type Status int

const (
	NotLoaded Status = iota
	Loading
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchFunc retrieves the full dataset for a kind.
type FetchFunc func(ctx context.Context, kind core.Kind) ([]core.Record, error)

// LoadedHook runs once for every fetch that stores a dataset. ctx is the
// fetch's own context, not any caller's.
type LoadedHook func(ctx context.Context, kind core.Kind, records []core.Record)

// Reader is the read-only view of the cache used by aggregation and summary.
type Reader interface {
	Get(kind core.Kind) ([]core.Record, bool)
	IsLoaded(kind core.Kind) bool
}

type entry struct {
	status   Status
	records  []core.Record
	err      error
	loadedAt time.Time
}

// Cache owns every loaded dataset. A kind is either wholly absent or wholly
// present; readers never observe a partial load.
type Cache struct {
	mu      sync.RWMutex
	entries [core.NumKinds]entry
	group   singleflight.Group
	timeout time.Duration
	fetches [core.NumKinds]int
	hooks   []LoadedHook
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetchTimeout bounds a single fetch. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// WithOnLoaded registers h as with OnLoaded.
func WithOnLoaded(h LoadedHook) Option {
	return func(c *Cache) { c.hooks = append(c.hooks, h) }
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnLoaded registers h to run after each fetched dataset is stored. Hooks
// run inside the shared fetch, so they fire even when every caller that
// asked for the kind has given up waiting.
func (c *Cache) OnLoaded(h LoadedHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// IsLoaded reports whether kind has been stored.
func (c *Cache) IsLoaded(kind core.Kind) bool {
	if !kind.Valid() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[kind].status == Loaded
}

// Get returns the stored dataset for kind.
func (c *Cache) Get(kind core.Kind) ([]core.Record, bool) {
	if !kind.Valid() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.entries[kind]
	if e.status != Loaded {
		return nil, false
	}
	return e.records, true
}

// Store sets the dataset for kind, replacing any earlier copy.
func (c *Cache) Store(kind core.Kind, records []core.Record) error {
	if !kind.Valid() {
		return fmt.Errorf("store: %w", core.ErrUnknownKind)
	}
	if records == nil {
		records = []core.Record{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kind] = entry{status: Loaded, records: records[:len(records):len(records)], loadedAt: time.Now()}
	return nil
}

// Status returns the load state of kind and the last load error, if any.
func (c *Cache) Status(kind core.Kind) (Status, error) {
	if !kind.Valid() {
		return NotLoaded, core.ErrUnknownKind
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.entries[kind]
	return e.status, e.err
}

// LoadedAt returns when kind was stored; zero if it is not loaded.
func (c *Cache) LoadedAt(kind core.Kind) time.Time {
	if !kind.Valid() {
		return time.Time{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[kind].loadedAt
}

// Loaded lists the loaded kinds in canonical order.
func (c *Cache) Loaded() []core.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.Kind
	for _, k := range core.Kinds {
		if c.entries[k].status == Loaded {
			out = append(out, k)
		}
	}
	return out
}

// Fetches returns how many fetches were issued for kind.
func (c *Cache) Fetches(kind core.Kind) int {
	if !kind.Valid() {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetches[kind]
}

// Load returns the dataset for kind, fetching it if it is not loaded yet.
//
// A loaded kind is returned without fetching (first reports false). Concurrent
// first loads of the same kind share one fetch. A failed load is recorded and
// retried by the next call.
func (c *Cache) Load(ctx context.Context, kind core.Kind, fetch FetchFunc) (records []core.Record, first bool, err error) {
	if !kind.Valid() {
		return nil, false, fmt.Errorf("load: %w", core.ErrUnknownKind)
	}
	if recs, ok := c.Get(kind); ok {
		return recs, false, nil
	}

	ran := false
	ch := c.group.DoChan(kind.String(), func() (any, error) {
		ran = true
		// a racing caller may have finished between Get and DoChan
		if recs, ok := c.Get(kind); ok {
			return loadResult{records: recs}, nil
		}
		return c.fetch(kind, fetch)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		lr := res.Val.(loadResult)
		// only the caller that ran the fetch reports a first load
		return lr.records, lr.fetched && ran, nil
	}
}

type loadResult struct {
	records []core.Record
	fetched bool
}

func (c *Cache) fetch(kind core.Kind, fetch FetchFunc) (any, error) {
	c.mu.Lock()
	c.entries[kind].status = Loading
	c.entries[kind].err = nil
	c.fetches[kind]++
	c.mu.Unlock()

	// the fetch is shared, so it must not die with the first caller's request
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := fetch(ctx, kind)
	if err != nil {
		c.mu.Lock()
		c.entries[kind] = entry{status: Failed, err: err}
		c.mu.Unlock()
		slog.Error("Dataset load failed",
			applog.FieldComponent, applog.ComponentDataset,
			applog.FieldKind, kind.String(),
			applog.FieldError, err)
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	if err := c.Store(kind, records); err != nil {
		return nil, err
	}
	slog.Info("Dataset loaded",
		applog.FieldComponent, applog.ComponentDataset,
		applog.FieldKind, kind.String(),
		applog.FieldRecords, len(records),
		applog.FieldDuration, time.Since(start).Milliseconds())
	recs, _ := c.Get(kind)

	c.mu.RLock()
	hooks := c.hooks
	c.mu.RUnlock()
	for _, h := range hooks {
		h(ctx, kind, recs)
	}
	return loadResult{records: recs, fetched: true}, nil
}
