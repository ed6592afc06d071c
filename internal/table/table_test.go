package table

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dogedash/internal/core"
)

var columns = []core.Column{
	{Field: "agency", Title: "Agency", Render: core.RenderText},
	{Field: "value", Title: "Value", Render: core.RenderCurrency},
	{Field: "link", Title: "Link", Render: core.RenderLink},
	{Field: "description", Title: "Description", Render: core.RenderDescription},
}

func records(n int) []core.Record {
	out := make([]core.Record, n)
	for i := range out {
		out[i] = core.Record{"agency": "Agency", "value": float64(i)}
	}
	return out
}

func values(rows []core.Record) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Num("value")
	}
	return out
}

func TestApplySortsDescendingAndPages(t *testing.T) {
	p := Apply(records(25), columns, Query{SortField: "value", Desc: true, Page: 3, PageSize: 10})

	if p.Pages != 3 || p.Page != 3 || p.Total != 25 || p.Filtered != 25 {
		t.Fatalf("page meta = %+v", p)
	}
	if diff := cmp.Diff([]float64{4, 3, 2, 1, 0}, values(p.Rows)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyClampsPage(t *testing.T) {
	p := Apply(records(5), columns, Query{SortField: "value", Page: 9, PageSize: 10})
	if p.Page != 1 || len(p.Rows) != 5 {
		t.Errorf("got page %d with %d rows", p.Page, len(p.Rows))
	}

	empty := Apply(nil, columns, Query{})
	if empty.Pages != 1 || len(empty.Rows) != 0 || empty.PageSize != DefaultPageSize {
		t.Errorf("empty page = %+v", empty)
	}
}

func TestApplySearchIsCaseInsensitive(t *testing.T) {
	recs := []core.Record{
		{"agency": "Department of Energy", "value": 10.0},
		{"agency": "Department of Labor", "value": 20.0},
		nil,
		{"agency": "NASA", "value": 1234567.0},
	}

	p := Apply(recs, columns, Query{Search: "energy", Page: 1, PageSize: 10})
	if p.Filtered != 1 || p.Rows[0]["agency"] != "Department of Energy" {
		t.Errorf("search energy = %+v", p.Rows)
	}

	// currency cells match on their displayed text
	p = Apply(recs, columns, Query{Search: "$1,234,567", Page: 1, PageSize: 10})
	if p.Filtered != 1 || p.Rows[0]["agency"] != "NASA" {
		t.Errorf("search formatted value = %+v", p.Rows)
	}
}

func TestApplyStableTextSort(t *testing.T) {
	recs := []core.Record{
		{"agency": "b", "value": 1.0},
		{"agency": "A", "value": 2.0},
		{"agency": "b", "value": 3.0},
	}
	p := Apply(recs, columns, Query{SortField: "agency", Page: 1, PageSize: 10})
	if diff := cmp.Diff([]float64{2, 1, 3}, values(p.Rows)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if recs[0]["value"] != 1.0 {
		t.Error("input slice was reordered")
	}
}

func TestParseQuery(t *testing.T) {
	cfg := core.DefaultRegistry()[core.Grants]

	q := ParseQuery(url.Values{}, cfg)
	if q != DefaultQuery(cfg) {
		t.Errorf("empty params = %+v", q)
	}

	q = ParseQuery(url.Values{"q": {" nasa "}, "sort": {"agency"}, "page": {"2"}, "size": {"25"}}, cfg)
	want := Query{Search: "nasa", SortField: "agency", Page: 2, PageSize: 25}
	if q != want {
		t.Errorf("got %+v, want %+v", q, want)
	}

	q = ParseQuery(url.Values{"sort": {"bogus"}, "size": {"7"}, "page": {"-1"}, "dir": {"desc"}}, cfg)
	if q.SortField != cfg.SortField || q.PageSize != DefaultPageSize || q.Page != 1 || !q.Desc {
		t.Errorf("invalid params = %+v", q)
	}

	if got := ParseQuery(q.Values(), cfg); got != q {
		t.Errorf("round trip = %+v, want %+v", got, q)
	}
}

func TestQueryKeyDistinguishesSearch(t *testing.T) {
	a := Query{Search: "x", Page: 1, PageSize: 10}
	b := Query{Search: "y", Page: 1, PageSize: 10}
	if a.Key() == b.Key() {
		t.Error("different searches share a key")
	}
	lower := Query{Search: "foo", Page: 1, PageSize: 10}
	upper := Query{Search: "FOO", Page: 1, PageSize: 10}
	if lower.Key() == upper.Key() {
		t.Error("searches differing only in case share a key")
	}
}

func TestRendererFormatsCells(t *testing.T) {
	r := NewRenderer(0)
	row := core.Record{
		"agency":      "<b>Ag</b>",
		"value":       "1234567",
		"link":        "javascript:alert(1)",
		"description": strings.Repeat("a", 150),
	}

	if got := r.Cell(row, columns[0]); got != "&lt;b&gt;Ag&lt;/b&gt;" {
		t.Errorf("text cell = %q", got)
	}
	if got := r.Cell(row, columns[1]); got != "$1,234,567" {
		t.Errorf("currency cell = %q", got)
	}
	if got := r.Cell(row, columns[2]); strings.Contains(got, "<a") {
		t.Errorf("unsafe link rendered as anchor: %q", got)
	}
	if got := r.Cell(core.Record{"link": "https://example.com"}, columns[2]); !strings.Contains(got, `href="https://example.com"`) {
		t.Errorf("link cell = %q", got)
	}
	desc := r.Cell(row, columns[3])
	if !strings.Contains(desc, `class="truncate-text"`) || !strings.Contains(desc, strings.Repeat("a", 100)+"...") {
		t.Errorf("description cell = %q", desc)
	}
	if got := r.Cell(core.Record{}, columns[1]); got != "" {
		t.Errorf("missing currency = %q", got)
	}
}

func TestRenderRunsHooksOnce(t *testing.T) {
	r := NewRenderer(100)
	calls := 0
	r.OnRendered(func(s string) (string, error) {
		calls++
		return s + "<!-- done -->", nil
	})

	p := Apply(records(3), columns, Query{SortField: "value", Page: 1, PageSize: 10})
	out, err := r.Render(core.Grants, columns, p)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("hook ran %d times", calls)
	}
	if !strings.HasSuffix(string(out), "<!-- done -->") || strings.Count(string(out), "<tr>") != 4 {
		t.Errorf("unexpected output %s", out)
	}
}

func TestRenderWithExpander(t *testing.T) {
	r := NewRenderer(100).WithExpander()
	recs := []core.Record{
		{"agency": "A", "value": 1.0, "description": strings.Repeat("x", 150)},
		{"agency": "B", "value": 2.0, "description": "short"},
	}
	out, err := r.Render(core.Grants, columns, Apply(recs, columns, Query{Page: 1, PageSize: 10}))
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)
	if strings.Count(html, `class="description-cell"`) != 1 {
		t.Errorf("want one expandable cell, got %s", html)
	}
	if !strings.Contains(html, "Show more") {
		t.Errorf("missing toggle button in %s", html)
	}
}

func TestRenderEmptyPage(t *testing.T) {
	out, err := NewRenderer(0).Render(core.Leases, columns, Apply(nil, columns, Query{}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "No matching records found") || !strings.Contains(string(out), `id="leases-table"`) {
		t.Errorf("empty render = %s", out)
	}
}
