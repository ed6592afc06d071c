package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dogedash/internal/core"
)

func fixedFetch(calls *int32, records []core.Record) FetchFunc {
	return func(ctx context.Context, kind core.Kind) ([]core.Record, error) {
		atomic.AddInt32(calls, 1)
		return records, nil
	}
}

func TestLoadOnce(t *testing.T) {
	c := New()
	var calls int32
	fetch := fixedFetch(&calls, []core.Record{{"agency": "A"}})

	if c.IsLoaded(core.Grants) {
		t.Fatalf("fresh cache must report not loaded")
	}
	recs, first, err := c.Load(context.Background(), core.Grants, fetch)
	if err != nil || !first || len(recs) != 1 {
		t.Fatalf("first load: recs=%v first=%v err=%v", recs, first, err)
	}
	if !c.IsLoaded(core.Grants) {
		t.Fatalf("expected loaded after first load")
	}

	recs, first, err = c.Load(context.Background(), core.Grants, fetch)
	if err != nil || first || len(recs) != 1 {
		t.Fatalf("second load: recs=%v first=%v err=%v", recs, first, err)
	}
	if calls != 1 || c.Fetches(core.Grants) != 1 {
		t.Fatalf("expected exactly one fetch, got %d", calls)
	}
}

func TestConcurrentFirstLoadsShareOneFetch(t *testing.T) {
	c := New()
	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, kind core.Kind) ([]core.Record, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []core.Record{{"vendor": "V"}}, nil
	}

	var wg sync.WaitGroup
	var firsts int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, first, err := c.Load(context.Background(), core.Contracts, fetch)
			if err != nil {
				t.Errorf("load: %v", err)
			}
			if first {
				atomic.AddInt32(&firsts, 1)
			}
		}()
	}

	// wait until the fetch is in flight before releasing it
	deadline := time.Now().Add(2 * time.Second)
	for {
		if st, _ := c.Status(core.Contracts); st == Loading {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("fetch never started")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected one shared fetch, got %d", calls)
	}
	if firsts != 1 {
		t.Fatalf("expected exactly one caller to observe the first load, got %d", firsts)
	}
}

func TestFailedLoadIsRecordedAndRetried(t *testing.T) {
	c := New()
	boom := errors.New("boom")
	_, _, err := c.Load(context.Background(), core.Leases, func(context.Context, core.Kind) ([]core.Record, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	st, lastErr := c.Status(core.Leases)
	if st != Failed || !errors.Is(lastErr, boom) {
		t.Fatalf("expected Failed status, got %v %v", st, lastErr)
	}
	if _, ok := c.Get(core.Leases); ok {
		t.Fatalf("failed kind must be absent")
	}

	var calls int32
	if _, first, err := c.Load(context.Background(), core.Leases, fixedFetch(&calls, nil)); err != nil || !first {
		t.Fatalf("retry: first=%v err=%v", first, err)
	}
	recs, ok := c.Get(core.Leases)
	if !ok || recs == nil || len(recs) != 0 {
		t.Fatalf("empty dataset must be stored as present and empty: %v %v", recs, ok)
	}
}

func TestLoadRespectsCallerContext(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan struct{})
	defer close(block)
	_, _, err := c.Load(ctx, core.Payments, func(context.Context, core.Kind) ([]core.Record, error) {
		<-block
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadedOrderAndUnknownKind(t *testing.T) {
	c := New()
	_ = c.Store(core.Payments, []core.Record{{}})
	_ = c.Store(core.Grants, []core.Record{{}})
	got := c.Loaded()
	if len(got) != 2 || got[0] != core.Grants || got[1] != core.Payments {
		t.Fatalf("expected canonical order, got %v", got)
	}
	if err := c.Store(core.Kind(7), nil); !errors.Is(err, core.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, _, err := c.Load(context.Background(), core.Kind(7), nil); !errors.Is(err, core.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if c.LoadedAt(core.Grants).IsZero() || !c.LoadedAt(core.Leases).IsZero() {
		t.Fatalf("unexpected LoadedAt values")
	}
}

func TestFetchTimeout(t *testing.T) {
	c := New(WithFetchTimeout(10 * time.Millisecond))
	_, _, err := c.Load(context.Background(), core.Grants, func(ctx context.Context, _ core.Kind) ([]core.Record, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLoadedHookRunsAfterCallerGivesUp(t *testing.T) {
	fired := make(chan int, 1)
	c := New(WithOnLoaded(func(_ context.Context, kind core.Kind, records []core.Record) {
		if kind == core.Leases {
			fired <- len(records)
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	_, _, err := c.Load(ctx, core.Leases, func(context.Context, core.Kind) ([]core.Record, error) {
		<-release
		return []core.Record{{"agency": "A"}, {"agency": "B"}}, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	close(release)

	select {
	case n := <-fired:
		if n != 2 {
			t.Errorf("hook saw %d records, want 2", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loaded hook never ran")
	}
	if !c.IsLoaded(core.Leases) {
		t.Error("dataset not stored")
	}
}
