// Package render builds the task table markup shown on the dashboard.
package render

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/harrisonrobin/taskwall/pkg/config"
	"github.com/harrisonrobin/taskwall/pkg/model"
)

// Result is one rendered table.
type Result struct {
	Node *html.Node
	// Opacity is the container opacity set by the legacy fade, nil when untouched.
	Opacity *float64
}

// WriteTo renders the table markup to w.
func (r Result) WriteTo(w io.Writer) error {
	if r.Node == nil {
		return nil
	}
	return html.Render(w, r.Node)
}

// HTML returns the table markup.
func (r Result) HTML() string {
	var sb strings.Builder
	_ = r.WriteTo(&sb) // strings.Builder never fails
	return sb.String()
}

// section is the run of tasks shown under one list header. Rows are
// positions into the flat task sequence so the fade can work on global
// indexes after grouping.
type section struct {
	name string
	rows []int
}

// group splits tasks by ListFrom, in order of first appearance.
func group(tasks []model.Task) []section {
	var sections []section
	seen := make(map[string]int)
	for i, task := range tasks {
		s, ok := seen[task.ListFrom]
		if !ok {
			s = len(sections)
			seen[task.ListFrom] = s
			sections = append(sections, section{name: task.ListFrom})
		}
		sections[s].rows = append(sections[s].rows, i)
	}
	return sections
}

// Columns returns how many cells each row of the table spans.
func Columns(cfg config.Widget) int {
	n := 1
	if cfg.ShowAssignee {
		n++
	}
	if cfg.ShowDeadline {
		n++
	}
	if !cfg.IconPosition.Inline() {
		n++
	}
	return n
}

// LegacyOpacity reproduces the historical container fade: every task at or
// past the fade start overwrites the opacity, so the last one wins.
func LegacyOpacity(n int, fadePoint float64) (float64, bool) {
	if n == 0 {
		return 0, false
	}
	if fadePoint < 0 {
		fadePoint = 0
	}
	count := float64(n)
	start := count * fadePoint
	var opacity float64
	set := false
	for i := 0; i < n; i++ {
		fi := float64(i)
		if fi >= start {
			opacity = 1 - (1/count - start*(fi-start))
			set = true
		}
	}
	return opacity, set
}

// rowOpacity is the opt-in linear fade for the row at global index i of n.
func rowOpacity(i, n int, fadePoint float64) (float64, bool) {
	start := float64(n) * fadePoint
	fi := float64(i)
	if fi < start {
		return 0, false
	}
	return 1 - (fi-start)/(float64(n)-start), true
}

// Table renders tasks, already in display order, into the widget table.
// users may be nil when no directory has arrived yet.
func Table(tasks []model.Task, users model.UserDirectory, cfg config.Widget) Result {
	table := element(atom.Table, "class", containerClass(cfg))
	body := element(atom.Tbody)
	table.AppendChild(body)

	result := Result{Node: table}
	if cfg.Fading() && cfg.FadeStyle != config.FadeLinear {
		if opacity, ok := LegacyOpacity(len(tasks), cfg.FadePoint); ok {
			result.Opacity = &opacity
			table.Attr = append(table.Attr, html.Attribute{Key: "style", Val: "opacity: " + formatFloat(opacity)})
		}
	}

	for _, sec := range group(tasks) {
		body.AppendChild(headerRow(sec.name, cfg))
		for n, i := range sec.rows {
			if n >= cfg.MaximumEntries {
				break
			}
			row := taskRow(tasks[i], users, cfg)
			if cfg.Fading() && cfg.FadeStyle == config.FadeLinear {
				if opacity, ok := rowOpacity(i, len(tasks), cfg.FadePoint); ok {
					row.Attr = append(row.Attr, html.Attribute{Key: "style", Val: "opacity: " + strconv.FormatFloat(opacity, 'f', 2, 64)})
				}
			}
			body.AppendChild(row)
		}
	}
	return result
}

func containerClass(cfg config.Widget) string {
	classes := []string{"normal", "small", "wunderlist"}
	if cfg.Spaced {
		classes = append(classes, "spaced")
	}
	return strings.Join(classes, " ")
}

func headerRow(name string, cfg config.Widget) *html.Node {
	header := element(atom.Header, "class", "module-header")
	header.AppendChild(icon("fa-list-ul"))
	header.AppendChild(text(" " + name))

	th := element(atom.Th, "colspan", strconv.Itoa(Columns(cfg)))
	th.AppendChild(header)

	tr := element(atom.Tr)
	tr.AppendChild(th)
	return tr
}

func taskRow(task model.Task, users model.UserDirectory, cfg config.Widget) *html.Node {
	tr := element(atom.Tr)

	style := "normal"
	if task.Starred {
		style = "bright"
	}
	title := element(atom.Td, "class", "title "+style)
	switch cfg.IconPosition {
	case config.IconInlineLeft:
		title.AppendChild(glyph(task, cfg))
		title.AppendChild(text(" " + task.Title))
	case config.IconInlineRight:
		title.AppendChild(text(task.Title + " "))
		title.AppendChild(glyph(task, cfg))
	default:
		title.AppendChild(text(task.Title))
	}

	// any non-inline position other than right gets the leading cell, matching Columns
	if !cfg.IconPosition.Inline() && cfg.IconPosition != config.IconRight {
		tr.AppendChild(iconCell(task, cfg))
	}
	tr.AppendChild(title)
	if cfg.ShowAssignee {
		cell := element(atom.Td, "class", "assignee-cell")
		if task.HasAssignee() && users != nil {
			if name := users.Lookup(task.AssigneeID); name != "" {
				div := element(atom.Div, "class", "assignee")
				div.AppendChild(text(name))
				cell.AppendChild(div)
			}
		}
		tr.AppendChild(cell)
	}
	if cfg.ShowDeadline {
		cell := element(atom.Td, "class", "deadline")
		if task.DueDate != "" {
			cell.AppendChild(text(task.DueDate))
		}
		tr.AppendChild(cell)
	}
	if cfg.IconPosition == config.IconRight {
		tr.AppendChild(iconCell(task, cfg))
	}
	return tr
}

func iconCell(task model.Task, cfg config.Widget) *html.Node {
	td := element(atom.Td, "class", "icon")
	td.AppendChild(glyph(task, cfg))
	return td
}

// glyph picks the bullet for a task. A star always wins; otherwise an empty
// placeholder keeps the column width when bullets are off.
func glyph(task model.Task, cfg config.Widget) *html.Node {
	switch {
	case task.Starred:
		return icon("fa-star")
	case !cfg.ShowBullets:
		return icon("")
	case cfg.IconPosition.PointsRight():
		return icon("fa-chevron-right")
	default:
		return icon("fa-chevron-left")
	}
}

func icon(name string) *html.Node {
	class := "fa fa-fw"
	if name != "" {
		class = "fa " + name + " fa-fw"
	}
	return element(atom.I, "class", class, "aria-hidden", "true")
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
