package http

import (
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"strings"

	"dogedash/internal/core"
	"dogedash/internal/dashboard"
	"dogedash/internal/format"
	"dogedash/internal/table"
)

// NotLoadedLabel stands in for figures of datasets that were never loaded.
const NotLoadedLabel = "Not loaded"

// defaultBarColor fills bars whose configured color is missing or invalid.
const defaultBarColor = "#6c757d"

var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|rgba?\(\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*\d{1,3}\s*(,\s*(0|1|0?\.\d+)\s*)?\))$`)

var templateFuncs = template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	// color passes registry colors into style attributes, which the CSS
	// escaper would otherwise reject for their parentheses.
	"color": func(c string) template.CSS {
		if colorPattern.MatchString(strings.TrimSpace(c)) {
			return template.CSS(strings.TrimSpace(c))
		}
		return defaultBarColor
	},
}

type (
	cardView struct {
		Slug       string
		Name       string
		Loaded     bool
		Count      string
		Value      string
		Savings    string
		HasSavings bool
	}

	summaryView struct {
		OOB          bool
		Loaded       bool
		LoadedInfo   string
		TotalSavings string
		TotalItems   string
		Agencies     string
		Cards        []cardView
	}

	navView struct {
		Slug string
		Name string
	}

	indexView struct {
		Summary summaryView
		Kinds   []navView
	}

	tableView struct {
		Slug        string
		SearchLabel string
		Query       table.Query
		Page        table.Page
		HTML        template.HTML
		Showing     string
		PrevURL     string
		NextURL     string
		PageSizes   []int
	}

	sectionView struct {
		Slug    string
		Section *dashboard.Section
		Table   tableView
		Summary summaryView
	}

	errorView struct {
		Slug    string
		Message string
	}
)

func (s *Server) buildSummary(oob bool) summaryView {
	totals := s.svc.Summary()
	v := summaryView{
		OOB:          oob,
		Loaded:       totals.Loaded(),
		LoadedInfo:   totals.LoadedInfo(),
		TotalSavings: format.Currency(totals.TotalSavings),
		TotalItems:   format.Count(totals.TotalItems),
		Agencies:     format.Count(totals.DistinctAgencies),
	}
	reg := s.svc.Registry()
	for _, k := range core.Kinds {
		cfg := reg[k]
		card := cardView{
			Slug:       k.String(),
			Name:       cfg.Name,
			HasSavings: cfg.HasSavings(),
			Count:      NotLoadedLabel,
			Value:      NotLoadedLabel,
			Savings:    NotLoadedLabel,
		}
		if ks, ok := totals.Stats(k); ok {
			card.Loaded = true
			card.Count = format.Count(ks.Count)
			card.Value = format.Currency(ks.TotalValue)
			card.Savings = format.Currency(ks.TotalSavings)
		}
		v.Cards = append(v.Cards, card)
	}
	return v
}

func (s *Server) buildIndex() indexView {
	v := indexView{Summary: s.buildSummary(false)}
	reg := s.svc.Registry()
	for _, k := range core.Kinds {
		v.Kinds = append(v.Kinds, navView{Slug: k.String(), Name: reg[k].Name})
	}
	return v
}

func buildTable(kind core.Kind, cfg core.KindConfig, page table.Page, html template.HTML) tableView {
	v := tableView{
		Slug:        kind.String(),
		SearchLabel: cfg.SearchLabel,
		Query:       page.Query,
		Page:        page,
		HTML:        html,
		PageSizes:   table.PageSizes,
		Showing:     showing(page),
	}
	if v.SearchLabel == "" {
		v.SearchLabel = "Search " + strings.ToLower(cfg.Name)
	}
	if page.Page > 1 {
		v.PrevURL = tableURL(kind, page.Query, page.Page-1)
	}
	if page.Page < page.Pages {
		v.NextURL = tableURL(kind, page.Query, page.Page+1)
	}
	return v
}

// showing is the "Showing 11 to 20 of 95 entries" line under a table.
func showing(p table.Page) string {
	if p.Filtered == 0 {
		return "Showing 0 entries"
	}
	first := (p.Page-1)*p.PageSize + 1
	last := first + len(p.Rows) - 1
	line := fmt.Sprintf("Showing %s to %s of %s entries", format.Count(first), format.Count(last), format.Count(p.Filtered))
	if p.Filtered != p.Total {
		line += fmt.Sprintf(" (filtered from %s total entries)", format.Count(p.Total))
	}
	return line
}

func tableURL(kind core.Kind, q table.Query, page int) string {
	q.Page = page
	return "/sections/" + url.PathEscape(kind.String()) + "/table?" + q.Values().Encode()
}

// loadFailedMessage is the notification shown when a section cannot load.
func loadFailedMessage(cfg core.KindConfig) string {
	return fmt.Sprintf("Failed to load %s data. Please try again later.", strings.ToLower(cfg.Name))
}
