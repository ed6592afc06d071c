// Package table implements search, sort and pagination over a loaded
// dataset, and renders table rows with per-column formatting.
package table

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"dogedash/internal/core"
	"dogedash/internal/format"
)

// DefaultPageSize matches the dashboard's initial table length.
const DefaultPageSize = 10

// PageSizes are the page lengths a client may request.
var PageSizes = []int{10, 25, 50, 100}

// Query selects one page of a dataset.
type Query struct {
	Search    string
	SortField string
	Desc      bool
	Page      int
	PageSize  int
}

// Page is the result of applying a Query.
type Page struct {
	Rows     []core.Record `json:"rows"`
	Total    int           `json:"total"`
	Filtered int           `json:"filtered"`
	Page     int           `json:"page"`
	Pages    int           `json:"pages"`
	PageSize int           `json:"page_size"`
	Query    Query         `json:"-"`
}

// DefaultQuery returns the initial view of a dataset: first page, sorted
// descending on the configured column.
func DefaultQuery(cfg core.KindConfig) Query {
	return Query{SortField: cfg.SortField, Desc: true, Page: 1, PageSize: DefaultPageSize}
}

// ParseQuery reads q, sort, dir, page and size parameters, falling back to
// DefaultQuery for anything missing or invalid.
func ParseQuery(v url.Values, cfg core.KindConfig) Query {
	q := DefaultQuery(cfg)
	q.Search = strings.TrimSpace(v.Get("q"))
	if field := v.Get("sort"); field != "" {
		if _, ok := cfg.Column(field); ok {
			q.SortField = field
			q.Desc = false
		}
	}
	switch strings.ToLower(v.Get("dir")) {
	case "desc":
		q.Desc = true
	case "asc":
		q.Desc = false
	}
	if p, err := strconv.Atoi(v.Get("page")); err == nil && p > 0 {
		q.Page = p
	}
	if s, err := strconv.Atoi(v.Get("size")); err == nil {
		for _, allowed := range PageSizes {
			if s == allowed {
				q.PageSize = s
			}
		}
	}
	return q
}

// Key is a stable cache key for the query. The search term keeps its case
// because rendered pages echo it back.
func (q Query) Key() string {
	dir := "asc"
	if q.Desc {
		dir = "desc"
	}
	return fmt.Sprintf("%s|%s|%d|%d|%s", q.SortField, dir, q.Page, q.PageSize, q.Search)
}

// Values encodes the query as URL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	v.Set("sort", q.SortField)
	if q.Desc {
		v.Set("dir", "desc")
	} else {
		v.Set("dir", "asc")
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.PageSize))
	return v
}

// Apply filters, sorts and paginates records. The input slice is not
// modified.
func Apply(records []core.Record, columns []core.Column, q Query) Page {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	rows := filter(records, columns, q.Search)
	if col, ok := columnFor(columns, q.SortField); ok {
		sortRows(rows, col, q.Desc)
	}

	p := Page{Total: len(records), Filtered: len(rows), PageSize: q.PageSize}
	p.Pages = (len(rows) + q.PageSize - 1) / q.PageSize
	if p.Pages == 0 {
		p.Pages = 1
	}
	if q.Page > p.Pages {
		q.Page = p.Pages
	}
	p.Page = q.Page
	p.Query = q

	start := (q.Page - 1) * q.PageSize
	end := start + q.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	p.Rows = rows[start:end]
	return p
}

func filter(records []core.Record, columns []core.Column, search string) []core.Record {
	out := make([]core.Record, 0, len(records))
	needle := strings.ToLower(search)
	for _, r := range records {
		if r == nil {
			continue
		}
		if needle == "" || matches(r, columns, needle) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r core.Record, columns []core.Column, needle string) bool {
	for _, col := range columns {
		if strings.Contains(strings.ToLower(SearchText(r, col)), needle) {
			return true
		}
	}
	return false
}

// SearchText is the plain text a column contributes to search.
func SearchText(r core.Record, col core.Column) string {
	v := r[col.Field]
	switch col.Render {
	case core.RenderCurrency:
		if v == nil {
			return ""
		}
		return format.Currency(core.Number(v))
	case core.RenderNumber:
		if v == nil {
			return ""
		}
		return format.Number(core.Number(v))
	default:
		return core.Stringify(v)
	}
}

func columnFor(columns []core.Column, field string) (core.Column, bool) {
	for _, c := range columns {
		if c.Field == field {
			return c, true
		}
	}
	return core.Column{}, false
}

func sortRows(rows []core.Record, col core.Column, desc bool) {
	numeric := col.Render == core.RenderCurrency || col.Render == core.RenderNumber
	less := func(a, b core.Record) bool {
		if numeric {
			return a.Num(col.Field) < b.Num(col.Field)
		}
		return strings.ToLower(core.Stringify(a[col.Field])) < strings.ToLower(core.Stringify(b[col.Field]))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}
