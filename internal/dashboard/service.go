// Package dashboard runs the per-kind pipeline: load through the dataset
// cache, aggregate charts, recompute the summary and render tables.
package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"dogedash/internal/aggregate"
	"dogedash/internal/amqp"
	"dogedash/internal/cache"
	"dogedash/internal/core"
	"dogedash/internal/dataset"
	applog "dogedash/internal/log"
	"dogedash/internal/source"
	"dogedash/internal/summary"
	"dogedash/internal/table"
)

// Publisher receives an event after each first load of a kind.
type Publisher interface {
	PublishDatasetLoaded(ctx context.Context, msg *amqp.DatasetLoaded) error
}

// Options configures a Service.
type Options struct {
	Registry   *core.Registry
	Fetcher    source.Fetcher
	SourceName string
	Cache      *dataset.Cache
	Publisher  Publisher
	Logger     *slog.Logger

	PageCacheSize int
	PageCacheTTL  time.Duration
	// TruncateLength is the description preview length.
	TruncateLength int
}

// Service is safe for concurrent use.
type Service struct {
	reg        *core.Registry
	fetcher    source.Fetcher
	sourceName string
	datasets   *dataset.Cache
	publisher  Publisher
	logger     *slog.Logger
	events     *applog.StructuredLogger
	renderer   *table.Renderer
	pages      *cache.LRUCache[renderedPage]

	mu      sync.RWMutex
	summary core.SummaryTotals
}

type renderedPage struct {
	page table.Page
	html template.HTML
}

func New(opts Options) *Service {
	if opts.Registry == nil {
		opts.Registry = core.DefaultRegistry()
	}
	if opts.Cache == nil {
		opts.Cache = dataset.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PageCacheSize < 1 {
		opts.PageCacheSize = 256
	}
	s := &Service{
		reg:        opts.Registry,
		fetcher:    opts.Fetcher,
		sourceName: opts.SourceName,
		datasets:   opts.Cache,
		publisher:  opts.Publisher,
		logger:     opts.Logger,
		events: applog.NewStructuredLogger(applog.New(applog.Config{
			Component: applog.ComponentDataset,
			Handler:   opts.Logger.Handler(),
		})),
		renderer: table.NewRenderer(opts.TruncateLength).WithExpander(),
		pages:    cache.NewLRUCache[renderedPage](opts.PageCacheSize, opts.PageCacheTTL),
	}
	s.summary = summary.Recompute(s.datasets, s.reg)
	s.datasets.OnLoaded(s.onLoaded)
	return s
}

// PageCache exposes the table page cache for expiry sweeps.
func (s *Service) PageCache() cache.Cleaner { return s.pages }

// Registry returns the dataset configuration in use.
func (s *Service) Registry() *core.Registry { return s.reg }

// Config returns the configuration of kind.
func (s *Service) Config(kind core.Kind) (core.KindConfig, error) {
	return s.reg.Config(kind)
}

// Records loads kind if needed and returns its dataset.
func (s *Service) Records(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	if !kind.Valid() {
		return nil, core.ErrUnknownKind
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("load %s: no dataset source configured", kind)
	}
	records, _, err := s.datasets.Load(ctx, kind, s.fetcher.Fetch)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// onLoaded runs inside the cache's shared fetch each time a kind is stored,
// whether or not the request that triggered the fetch is still waiting.
func (s *Service) onLoaded(ctx context.Context, kind core.Kind, records []core.Record) {
	totals := summary.Recompute(s.datasets, s.reg)
	s.mu.Lock()
	s.summary = totals
	s.mu.Unlock()

	s.events.LogDatasetLoaded(ctx, kind.String(), len(records), s.sourceName)

	if s.publisher == nil {
		return
	}
	msg := amqp.NewDatasetLoaded(kind.String(), len(records), s.sourceName)
	if err := s.publisher.PublishDatasetLoaded(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish dataset loaded event",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldKind, kind.String(),
			applog.FieldError, err)
	}
}

// Summary returns the totals as of the most recent load.
func (s *Service) Summary() core.SummaryTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Load loads kind and builds its full section.
func (s *Service) Load(ctx context.Context, kind core.Kind) (*Section, error) {
	cfg, err := s.reg.Config(kind)
	if err != nil {
		return nil, err
	}
	records, err := s.Records(ctx, kind)
	if err != nil {
		return nil, err
	}

	sec := &Section{
		Kind:     kind,
		Config:   cfg,
		Stats:    buildStats(cfg, summary.KindStats(kind, cfg, records)),
		LoadedAt: s.datasets.LoadedAt(kind),
	}
	for _, spec := range cfg.Charts {
		sec.Charts = append(sec.Charts, s.buildChart(ctx, kind, spec, records))
	}

	page, html, err := s.Table(ctx, kind, table.DefaultQuery(cfg))
	if err != nil {
		return nil, err
	}
	sec.Page, sec.Table = page, html
	return sec, nil
}

// buildChart aggregates one chart. A panic while building it only empties
// that chart.
func (s *Service) buildChart(ctx context.Context, kind core.Kind, spec core.ChartSpec, records []core.Record) (ch Chart) {
	ch = Chart{Spec: spec, Kind: kind}
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Chart build failed",
				applog.FieldComponent, applog.ComponentTemplate,
				applog.FieldKind, kind.String(),
				applog.FieldChart, spec.ID,
				"panic", fmt.Sprint(r))
			ch = Chart{Spec: spec, Kind: kind, Failed: true}
		}
	}()

	items, st := aggregate.SumByKeyStats(records, spec.GroupField, spec.ValueField, aggregate.DefaultLimit)
	if st.Skipped > 0 {
		s.logger.WarnContext(ctx, "Records skipped during aggregation",
			applog.FieldComponent, applog.ComponentAggregate,
			applog.FieldKind, kind.String(),
			applog.FieldChart, spec.ID,
			applog.FieldSkipped, st.Skipped)
	}
	ch.Bars = bars(items, spec.Format)
	return ch
}

// Table returns one rendered page of kind, loading it if needed.
func (s *Service) Table(ctx context.Context, kind core.Kind, q table.Query) (table.Page, template.HTML, error) {
	cfg, err := s.reg.Config(kind)
	if err != nil {
		return table.Page{}, "", err
	}
	records, err := s.Records(ctx, kind)
	if err != nil {
		return table.Page{}, "", err
	}

	key := kind.String() + "|" + q.Key()
	if rp, ok := s.pages.Get(key); ok {
		return rp.page, rp.html, nil
	}
	page := table.Apply(records, cfg.Columns, q)
	html, err := s.renderer.Render(kind, cfg.Columns, page)
	if err != nil {
		return table.Page{}, "", err
	}
	s.pages.Set(key, renderedPage{page: page, html: html})
	return page, html, nil
}

// Top returns the top-limit groups of kind by summed valueField, or by
// record count when valueField is empty.
func (s *Service) Top(ctx context.Context, kind core.Kind, groupField, valueField string, limit int) ([]core.NameValue, error) {
	if groupField == "" {
		return nil, fmt.Errorf("group field is required")
	}
	records, err := s.Records(ctx, kind)
	if err != nil {
		return nil, err
	}
	if valueField == "" {
		return aggregate.CountByKeyLimit(records, groupField, limit), nil
	}
	return aggregate.SumByKey(records, groupField, valueField, limit), nil
}

// Statuses reports the load state of every kind in canonical order.
func (s *Service) Statuses() []DatasetStatus {
	out := make([]DatasetStatus, 0, core.NumKinds)
	for _, k := range core.Kinds {
		cfg := s.reg[k]
		st, err := s.datasets.Status(k)
		ds := DatasetStatus{Kind: k.String(), Name: cfg.Name, Status: st.String()}
		if err != nil {
			ds.Error = err.Error()
		}
		if recs, ok := s.datasets.Get(k); ok {
			ds.Records = len(recs)
			at := s.datasets.LoadedAt(k)
			ds.LoadedAt = &at
		}
		out = append(out, ds)
	}
	return out
}
