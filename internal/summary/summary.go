// Package summary computes the cross-dataset totals shown on the overview.
package summary

import (
	"dogedash/internal/aggregate"
	"dogedash/internal/core"
	"dogedash/internal/dataset"
)

// Recompute derives SummaryTotals from whatever datasets are currently
// loaded in cache. Kinds are visited in canonical order, so LoadedDatasets
// never depends on load order.
func Recompute(cache dataset.Reader, reg *core.Registry) core.SummaryTotals {
	totals := core.SummaryTotals{
		LoadedDatasets: []string{},
		PerKind:        []core.KindStats{},
	}
	agencies := make(map[string]struct{})

	for _, kind := range core.Kinds {
		records, ok := cache.Get(kind)
		if !ok {
			continue
		}
		cfg := reg[kind]

		stats := KindStats(kind, cfg, records)
		totals.PerKind = append(totals.PerKind, stats)
		totals.LoadedDatasets = append(totals.LoadedDatasets, cfg.Name)
		totals.TotalItems += stats.Count
		totals.TotalSavings += stats.TotalSavings

		for _, a := range aggregate.Distinct(records, cfg.AgencyField) {
			agencies[a] = struct{}{}
		}
	}

	totals.DistinctAgencies = len(agencies)
	return totals
}

// KindStats computes the overview card figures for one dataset.
func KindStats(kind core.Kind, cfg core.KindConfig, records []core.Record) core.KindStats {
	st := core.KindStats{
		Kind:       kind,
		Slug:       kind.String(),
		Name:       cfg.Name,
		Count:      len(records),
		TotalValue: aggregate.Total(records, cfg.ValueField),
		HasSavings: cfg.HasSavings(),
	}
	if cfg.HasSavings() {
		st.TotalSavings = aggregate.Total(records, cfg.SavingsField)
	}
	if len(cfg.Stats) > 0 {
		st.Extra = make(map[string]float64, len(cfg.Stats))
		for _, spec := range cfg.Stats {
			st.Extra[spec.Field] = aggregate.Total(records, spec.Field)
		}
	}
	return st
}
