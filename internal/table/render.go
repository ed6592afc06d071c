package table

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	"dogedash/internal/core"
	"dogedash/internal/expander"
	"dogedash/internal/format"
	applog "dogedash/internal/log"
)

// Hook post-processes a rendered table fragment. Hooks run in
// registration order once per render, after every cell is formatted.
type Hook func(fragment string) (string, error)

// Renderer turns a Page into an HTML table using the column renderers of
// a dataset kind.
type Renderer struct {
	threshold int
	hooks     []Hook
}

// NewRenderer returns a renderer that truncates description cells at
// threshold characters. Non-positive thresholds use the default.
func NewRenderer(threshold int) *Renderer {
	if threshold <= 0 {
		threshold = format.DefaultTruncateLength
	}
	return &Renderer{threshold: threshold}
}

// OnRendered registers a render-complete hook.
func (r *Renderer) OnRendered(h Hook) {
	r.hooks = append(r.hooks, h)
}

// WithExpander registers the description expander as a render-complete
// hook and returns the renderer.
func (r *Renderer) WithExpander() *Renderer {
	threshold := r.threshold
	r.OnRendered(func(fragment string) (string, error) {
		out, n, err := expander.Process(fragment, threshold)
		if err != nil {
			return "", err
		}
		slog.Debug("description cells expanded",
			applog.FieldComponent, applog.ComponentTable,
			"cells", n)
		return out, nil
	})
	return r
}

// Render formats every cell of the page and runs the hooks.
func (r *Renderer) Render(kind core.Kind, columns []core.Column, p Page) (template.HTML, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `<table class="table table-striped table-hover data-table" id="%s-table">`, kind)
	b.WriteString("<thead><tr>")
	for _, col := range columns {
		fmt.Fprintf(&b, `<th data-field="%s"%s>%s</th>`,
			template.HTMLEscapeString(col.Field),
			sortAttr(col, p.Query),
			template.HTMLEscapeString(col.Title))
	}
	b.WriteString("</tr></thead><tbody>")
	if len(p.Rows) == 0 {
		fmt.Fprintf(&b, `<tr><td colspan="%d" class="text-center text-muted">No matching records found</td></tr>`, len(columns))
	}
	for _, row := range p.Rows {
		b.WriteString("<tr>")
		for _, col := range columns {
			b.WriteString("<td>")
			b.WriteString(r.Cell(row, col))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")

	out := b.String()
	for _, h := range r.hooks {
		var err error
		if out, err = h(out); err != nil {
			return "", fmt.Errorf("render %s table: %w", kind, err)
		}
	}
	return template.HTML(out), nil
}

// Cell renders one value according to the column's renderer. The result
// is escaped HTML.
func (r *Renderer) Cell(row core.Record, col core.Column) string {
	v := row[col.Field]
	switch col.Render {
	case core.RenderCurrency:
		if v == nil {
			return ""
		}
		return template.HTMLEscapeString(format.Currency(core.Number(v)))
	case core.RenderNumber:
		if v == nil {
			return ""
		}
		return template.HTMLEscapeString(format.Number(core.Number(v)))
	case core.RenderLink:
		href := strings.TrimSpace(core.Stringify(v))
		if !safeURL(href) {
			return template.HTMLEscapeString(href)
		}
		return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener" class="btn btn-sm btn-outline-primary">View</a>`,
			template.HTMLEscapeString(href))
	case core.RenderDescription:
		full := core.Stringify(v)
		if full == "" {
			return ""
		}
		return fmt.Sprintf(`<div class="%s" title="%s">%s</div>`,
			expander.ClassSource,
			template.HTMLEscapeString(full),
			template.HTMLEscapeString(format.Truncate(full, r.threshold)))
	default:
		return template.HTMLEscapeString(core.Stringify(v))
	}
}

func safeURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func sortAttr(col core.Column, q Query) string {
	if col.Field != q.SortField {
		return ""
	}
	if q.Desc {
		return ` aria-sort="descending"`
	}
	return ` aria-sort="ascending"`
}
