// Package preview turns the backend's HTML table sample into forms each view
// can display: sanitized HTML for the browser, a terminal table for the CLI
// and TUI, and Markdown for piped output.
package preview

import (
	"fmt"
	"io"
	"strings"
	"sync"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	tablePolicyOnce sync.Once
	tablePolicy     *bluemonday.Policy
)

// Sanitize strips everything except table markup from a backend fragment.
// The result is safe to inject into the page.
func Sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(tableSanitizer().Sanitize(trimmed))
}

func tableSanitizer() *bluemonday.Policy {
	tablePolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption", "br")
		policy.AllowAttrs("class").OnElements("table", "tr", "th", "td")
		policy.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
		tablePolicy = policy
	})
	return tablePolicy
}

// Table is a parsed preview sample.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the table has neither header nor rows.
func (t Table) Empty() bool {
	return len(t.Columns) == 0 && len(t.Rows) == 0
}

// ParseTable extracts the first table from an HTML fragment. Header cells come
// from the first row holding th elements; every other row is data.
func ParseTable(raw string) (Table, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return Table{}, fmt.Errorf("parse preview html: %w", err)
	}

	tbl := findElement(doc, "table")
	if tbl == nil {
		return Table{}, nil
	}

	var out Table
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" && n != tbl {
			return
		}
		if n.Type == html.ElementNode && n.Data == "tr" {
			cells, header := rowCells(n)
			if header && out.Columns == nil {
				out.Columns = cells
			} else if len(cells) > 0 {
				out.Rows = append(out.Rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkRows(c)
		}
	}
	walkRows(tbl)
	return out, nil
}

func rowCells(tr *html.Node) ([]string, bool) {
	var cells []string
	header := false
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "th" && c.Data != "td") {
			continue
		}
		if c.Data == "th" {
			header = true
		}
		cells = append(cells, strings.TrimSpace(textContent(c)))
	}
	return cells, header
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// Markdown converts a sanitized fragment to Markdown.
func Markdown(raw string) (string, error) {
	clean := Sanitize(raw)
	if clean == "" {
		return "", nil
	}
	md, err := htmltomarkdown.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("convert preview to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// RenderOptions controls terminal rendering.
type RenderOptions struct {
	// MaxWidth truncates each cell; zero leaves cells intact.
	MaxWidth int
	// Highlight names a column whose header is marked.
	Highlight string
}

// Render writes t as a box-drawn table.
func (t Table) Render(w io.Writer, opts RenderOptions) {
	if t.Empty() {
		_, _ = fmt.Fprintln(w, "(empty preview)")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	if len(t.Columns) > 0 {
		header := make(table.Row, len(t.Columns))
		for i, col := range t.Columns {
			if col == opts.Highlight && col != "" {
				col = "*" + col
			}
			header[i] = col
		}
		tw.AppendHeader(header)
	}

	for _, r := range t.Rows {
		row := make(table.Row, len(r))
		for i, cell := range r {
			row[i] = cell
		}
		tw.AppendRow(row)
	}

	if opts.MaxWidth > 0 {
		configs := make([]table.ColumnConfig, 0, len(t.Columns))
		for i := range t.Columns {
			configs = append(configs, table.ColumnConfig{
				Number:           i + 1,
				WidthMax:         opts.MaxWidth,
				WidthMaxEnforcer: text.Trim,
			})
		}
		tw.SetColumnConfigs(configs)
	}

	tw.Render()
}

// String renders t without width limits.
func (t Table) String() string {
	var sb strings.Builder
	t.Render(&sb, RenderOptions{})
	return sb.String()
}
