package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"dogedash/internal/amqp"
	"dogedash/internal/core"
	"dogedash/internal/source"
	"dogedash/internal/table"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.DatasetLoaded
	err  error
}

func (p *recordingPublisher) PublishDatasetLoaded(_ context.Context, msg *amqp.DatasetLoaded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

// gatedFetcher blocks every fetch until release is closed.
type gatedFetcher struct {
	release chan struct{}
	records []core.Record
}

func (g *gatedFetcher) Fetch(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	select {
	case <-g.release:
		return g.records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func grants() []core.Record {
	return []core.Record{
		{"agency": "A", "recipient": "R1", "value": 10.0, "savings": 5.0, "description": strings.Repeat("d", 150)},
		{"agency": "B", "recipient": "R2", "value": 20.0, "savings": 7.0},
		nil,
		{"agency": "A", "recipient": "R1", "value": "5", "savings": 5.0},
	}
}

func newService(t *testing.T, pub Publisher) (*Service, *source.Memory) {
	t.Helper()
	mem := source.NewMemory()
	if err := mem.Save(context.Background(), core.Grants, grants()); err != nil {
		t.Fatal(err)
	}
	svc := New(Options{Fetcher: mem, SourceName: "memory", Publisher: pub})
	return svc, mem
}

func TestLoadBuildsSection(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, pub)

	sec, err := svc.Load(context.Background(), core.Grants)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	wantStats := []Stat{
		{ID: "count", Label: "Total Grants", Display: "4"},
		{ID: "value", Label: "Total Value", Display: "$35"},
		{ID: "savings", Label: "Total Savings", Display: "$17"},
	}
	if diff := cmp.Diff(wantStats, sec.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	if len(sec.Charts) != 2 {
		t.Fatalf("charts = %d", len(sec.Charts))
	}
	recipients := sec.Charts[0].Bars
	if len(recipients) != 2 || recipients[0].Name != "R2" || recipients[0].Percent != 100 || recipients[1].Display != "$15" {
		t.Errorf("recipient bars = %+v", recipients)
	}

	html := string(sec.Table)
	if !strings.Contains(html, "description-cell") || !strings.Contains(html, `id="grants-table"`) {
		t.Errorf("table html missing pieces: %s", html)
	}
	if sec.Page.Total != 4 || sec.Page.Filtered != 3 {
		t.Errorf("page = %+v", sec.Page)
	}

	if len(pub.msgs) != 1 || pub.msgs[0].Kind != "grants" || pub.msgs[0].Records != 4 {
		t.Errorf("published = %+v", pub.msgs)
	}
}

func TestLoadOnceAndSummary(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, mem := newService(t, pub)
	ctx := context.Background()

	if svc.Summary().Loaded() {
		t.Fatal("summary should start empty")
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Load(ctx, core.Grants); err != nil {
			t.Fatal(err)
		}
	}
	if mem.Calls(core.Grants) != 1 {
		t.Errorf("fetches = %d, want 1", mem.Calls(core.Grants))
	}
	if len(pub.msgs) != 1 {
		t.Errorf("events = %d, want 1", len(pub.msgs))
	}

	sum := svc.Summary()
	if sum.TotalItems != 4 || sum.TotalSavings != 17 || sum.DistinctAgencies != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.LoadedInfo() != "Datasets loaded: Grants (1 of 4)" {
		t.Errorf("loaded info = %q", sum.LoadedInfo())
	}
}

func TestLoadFailure(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Load(context.Background(), core.Leases)
	if !errors.Is(err, source.ErrFetchFailure) {
		t.Errorf("err = %v, want ErrFetchFailure", err)
	}
	var leases DatasetStatus
	for _, st := range svc.Statuses() {
		if st.Kind == "leases" {
			leases = st
		}
	}
	if leases.Status != "failed" || leases.Error == "" {
		t.Errorf("leases status = %+v", leases)
	}
	if svc.Summary().Loaded() {
		t.Error("failed load must not change the summary")
	}

	if _, err := svc.Load(context.Background(), core.Kind(12)); !errors.Is(err, core.ErrUnknownKind) {
		t.Errorf("unknown kind err = %v", err)
	}
}

func TestTableSearchAndCache(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	cfg, _ := svc.Config(core.Grants)

	q := table.DefaultQuery(cfg)
	q.Search = "r2"
	page, html, err := svc.Table(ctx, core.Grants, q)
	if err != nil {
		t.Fatal(err)
	}
	if page.Filtered != 1 || !strings.Contains(string(html), "R2") {
		t.Errorf("search page = %+v", page)
	}

	again, html2, err := svc.Table(ctx, core.Grants, q)
	if err != nil || again.Filtered != page.Filtered || html2 != html {
		t.Errorf("cached page differs")
	}
	if hits, _ := svc.pages.Stats(); hits != 1 {
		t.Errorf("page cache hits = %d, want 1", hits)
	}
}

func TestTop(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	got, err := svc.Top(ctx, core.Grants, "agency", "value", 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]core.NameValue{{Name: "B", Value: 20}}, got); diff != "" {
		t.Errorf("top mismatch (-want +got):\n%s", diff)
	}

	counts, err := svc.Top(ctx, core.Grants, "agency", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]core.NameValue{{Name: "A", Value: 2}, {Name: "B", Value: 1}}, counts); diff != "" {
		t.Errorf("count mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.Top(ctx, core.Grants, "", "value", 0); err == nil {
		t.Error("missing group field accepted")
	}
}

func TestTopCountHonoursLimitAboveDefault(t *testing.T) {
	svc, mem := newService(t, nil)
	var contracts []core.Record
	for i := 0; i < 15; i++ {
		contracts = append(contracts, core.Record{"agency": fmt.Sprintf("agency-%02d", i), "vendor": "V"})
	}
	if err := mem.Save(context.Background(), core.Contracts, contracts); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Top(context.Background(), core.Contracts, "agency", "", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 15 {
		t.Errorf("count ranking returned %d groups, want 15", len(got))
	}
	if got, _ := svc.Top(context.Background(), core.Contracts, "agency", "", 3); len(got) != 3 {
		t.Errorf("limit 3 returned %d groups", len(got))
	}
}

func TestTableEchoesSearchCase(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	cfg, _ := svc.Config(core.Grants)

	for _, search := range []string{"r2", "R2"} {
		q := table.DefaultQuery(cfg)
		q.Search = search
		page, _, err := svc.Table(ctx, core.Grants, q)
		if err != nil {
			t.Fatal(err)
		}
		if page.Query.Search != search || page.Filtered != 1 {
			t.Errorf("search %q: page query = %q, filtered = %d", search, page.Query.Search, page.Filtered)
		}
	}
}

func TestSummaryIncludesKindWhoseFirstRequestWasCancelled(t *testing.T) {
	pub := &recordingPublisher{}
	gate := &gatedFetcher{release: make(chan struct{}), records: grants()}
	svc := New(Options{Fetcher: gate, SourceName: "gated", Publisher: pub})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := svc.Load(ctx, core.Grants); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("first load err = %v, want deadline exceeded", err)
	}
	close(gate.release)

	if _, err := svc.Load(context.Background(), core.Grants); err != nil {
		t.Fatalf("second load: %v", err)
	}

	// the shared fetch may still be running its loaded hook
	deadline := time.Now().Add(2 * time.Second)
	for (!svc.Summary().Loaded() || pub.count() == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sum := svc.Summary()
	if sum.TotalItems != 4 || sum.TotalSavings != 17 || sum.LoadedInfo() != "Datasets loaded: Grants (1 of 4)" {
		t.Errorf("summary = %+v", sum)
	}
	if n := pub.count(); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}

func TestBars(t *testing.T) {
	got := bars([]core.NameValue{{Name: "a", Value: 50}, {Name: "b", Value: 0}}, core.RenderNumber)
	if got[0].Percent != 100 || got[1].Percent != 0 || got[0].Display != "50" {
		t.Errorf("bars = %+v", got)
	}
	if len(bars(nil, core.RenderCurrency)) != 0 {
		t.Error("nil items should yield no bars")
	}
}
