// Package expander turns truncated description cells of a rendered table
// into expand/collapse blocks.
//
// A cell is any element with class "truncate-text" whose title attribute
// carries the full text. Cells whose full text exceeds the threshold are
// rewritten into:
//
//	<div class="description-cell">
//	  <div class="description-preview">preview...</div>
//	  <button class="btn btn-sm btn-link show-full-description">Show more</button>
//	  <div class="full-description" style="display: none;">full text</div>
//	</div>
//
// Processing is idempotent: cells already holding a description-cell are
// left alone.
package expander

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"dogedash/internal/format"
)

const (
	ClassSource  = "truncate-text"
	ClassCell    = "description-cell"
	ClassPreview = "description-preview"
	ClassToggle  = "show-full-description"
	ClassFull    = "full-description"

	LabelMore = "Show more"
	LabelLess = "Show less"

	hiddenStyle = "display: none;"
)

// State is the visible half of a description cell.
type State int

const (
	Collapsed State = iota
	Expanded
)

func (s State) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "collapsed"
}

var ErrNotACell = errors.New("node is not a description cell")

// Process rewrites every eligible cell in an HTML fragment and returns the
// new fragment plus the number of cells converted.
func Process(fragment string, threshold int) (string, int, error) {
	nodes, err := Parse(fragment)
	if err != nil {
		return "", 0, err
	}
	n := 0
	for _, node := range nodes {
		n += Enhance(node, threshold)
	}
	out, err := Render(nodes)
	if err != nil {
		return "", 0, err
	}
	return out, n, nil
}

// Enhance converts the eligible cells under root in place.
func Enhance(root *html.Node, threshold int) int {
	if threshold <= 0 {
		threshold = format.DefaultTruncateLength
	}
	converted := 0
	walk(root, func(n *html.Node) bool {
		if !hasClass(n, ClassSource) {
			return true
		}
		full := attr(n, "title")
		if !format.Exceeds(full, threshold) || find(n, ClassCell) != nil {
			return false
		}
		preview := strings.TrimSpace(textContent(n))
		if preview == "" || preview == full {
			preview = format.Truncate(full, threshold)
		}
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(newCell(preview, full))
		converted++
		return false
	})
	return converted
}

// Cells returns every description cell under root in document order.
func Cells(root *html.Node) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if hasClass(n, ClassCell) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// CellState reports whether a description cell is collapsed or expanded.
func CellState(cell *html.Node) (State, error) {
	_, _, full, err := parts(cell)
	if err != nil {
		return Collapsed, err
	}
	if isHidden(full) {
		return Collapsed, nil
	}
	return Expanded, nil
}

// Toggle flips a description cell between collapsed and expanded.
func Toggle(cell *html.Node) (State, error) {
	preview, button, full, err := parts(cell)
	if err != nil {
		return Collapsed, err
	}
	if isHidden(full) {
		show(full)
		hide(preview)
		setText(button, LabelLess)
		return Expanded, nil
	}
	hide(full)
	show(preview)
	setText(button, LabelMore)
	return Collapsed, nil
}

// FullText returns the untruncated text held by a description cell.
func FullText(cell *html.Node) (string, error) {
	_, _, full, err := parts(cell)
	if err != nil {
		return "", err
	}
	return textContent(full), nil
}

// Parse parses an HTML fragment in a body context.
func Parse(fragment string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(fragment), body)
}

// Render serialises nodes back to HTML.
func Render(nodes []*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func newCell(preview, full string) *html.Node {
	cell := element(atom.Div, ClassCell)
	p := element(atom.Div, ClassPreview)
	p.AppendChild(&html.Node{Type: html.TextNode, Data: preview})
	b := element(atom.Button, "btn btn-sm btn-link "+ClassToggle)
	b.Attr = append(b.Attr, html.Attribute{Key: "type", Val: "button"})
	b.AppendChild(&html.Node{Type: html.TextNode, Data: LabelMore})
	f := element(atom.Div, ClassFull)
	f.Attr = append(f.Attr, html.Attribute{Key: "style", Val: hiddenStyle})
	f.AppendChild(&html.Node{Type: html.TextNode, Data: full})
	cell.AppendChild(p)
	cell.AppendChild(b)
	cell.AppendChild(f)
	return cell
}

func element(a atom.Atom, class string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
		Attr:     []html.Attribute{{Key: "class", Val: class}},
	}
}

func parts(cell *html.Node) (preview, button, full *html.Node, err error) {
	if cell == nil || !hasClass(cell, ClassCell) {
		return nil, nil, nil, ErrNotACell
	}
	preview, button, full = find(cell, ClassPreview), find(cell, ClassToggle), find(cell, ClassFull)
	if preview == nil || button == nil || full == nil {
		return nil, nil, nil, ErrNotACell
	}
	return preview, button, full, nil
}

// walk visits n and its descendants depth-first; visit returns false to skip
// a node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if n.Type == html.ElementNode && !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func find(root *html.Node, class string) *html.Node {
	var found *html.Node
	for c := root.FirstChild; c != nil && found == nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if found != nil {
				return false
			}
			if hasClass(n, class) {
				found = n
				return false
			}
			return true
		})
	}
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isHidden(n *html.Node) bool {
	style := strings.ReplaceAll(attr(n, "style"), " ", "")
	return strings.Contains(style, "display:none")
}

func hide(n *html.Node) { setAttr(n, "style", hiddenStyle) }

func show(n *html.Node) { removeAttr(n, "style") }

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}
