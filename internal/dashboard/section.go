package dashboard

import (
	"html/template"
	"time"

	"dogedash/internal/core"
	"dogedash/internal/format"
	"dogedash/internal/table"
)

// Section is everything the dataset view renders for one kind.
type Section struct {
	Kind     core.Kind
	Config   core.KindConfig
	Stats    []Stat
	Charts   []Chart
	Page     table.Page
	Table    template.HTML
	LoadedAt time.Time
}

// Stat is one labelled figure above the charts.
type Stat struct {
	ID      string
	Label   string
	Display string
}

// Chart is a top-N horizontal bar chart.
type Chart struct {
	Spec   core.ChartSpec
	Kind   core.Kind
	Bars   []Bar
	Failed bool
}

// Bar is one ranked entry; Percent is relative to the largest bar.
type Bar struct {
	Name    string
	Value   float64
	Display string
	Percent float64
}

// DatasetStatus is the JSON view of one kind's load state.
type DatasetStatus struct {
	Kind     string     `json:"kind"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	Records  int        `json:"records"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func buildStats(cfg core.KindConfig, ks core.KindStats) []Stat {
	stats := []Stat{
		{ID: "count", Label: "Total " + cfg.Name, Display: format.Count(ks.Count)},
		{ID: "value", Label: "Total Value", Display: format.Currency(ks.TotalValue)},
	}
	if ks.HasSavings {
		stats = append(stats, Stat{ID: "savings", Label: "Total Savings", Display: format.Currency(ks.TotalSavings)})
	}
	for _, spec := range cfg.Stats {
		stats = append(stats, Stat{ID: spec.Field, Label: spec.Label, Display: display(ks.Extra[spec.Field], spec.Format)})
	}
	return stats
}

func bars(items []core.NameValue, f core.Renderer) []Bar {
	out := make([]Bar, len(items))
	var max float64
	for _, it := range items {
		if it.Value > max {
			max = it.Value
		}
	}
	for i, it := range items {
		b := Bar{Name: it.Name, Value: it.Value, Display: display(it.Value, f)}
		if max > 0 && it.Value > 0 {
			b.Percent = it.Value / max * 100
		}
		out[i] = b
	}
	return out
}

func display(v float64, f core.Renderer) string {
	if f == core.RenderCurrency {
		return format.Currency(v)
	}
	return format.Number(v)
}
