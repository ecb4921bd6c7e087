package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<table class="table table-striped">
<thead><tr><th>id</th><th>text</th></tr></thead>
<tbody>
<tr><td>1</td><td>привет <b>мир</b></td></tr>
<tr><td>2</td><td>hello</td></tr>
</tbody></table>`

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		contains []string
		excludes []string
	}{
		{
			name:     "keeps table markup",
			in:       sample,
			contains: []string{`<table class="table table-striped">`, "<th>id</th>", "<td>hello</td>"},
		},
		{
			name:     "drops scripts",
			in:       `<table><tr><td>x<script>alert(1)</script></td></tr></table>`,
			contains: []string{"<td>x</td>"},
			excludes: []string{"script", "alert"},
		},
		{
			name:     "drops event handlers",
			in:       `<table onclick="steal()"><tr><td onmouseover="x()">a</td></tr></table>`,
			contains: []string{"<table>", "<td>a</td>"},
			excludes: []string{"onclick", "onmouseover"},
		},
		{
			name:     "strips links but keeps text",
			in:       `<table><tr><td><a href="javascript:evil()">click</a></td></tr></table>`,
			contains: []string{"click"},
			excludes: []string{"href", "<a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}

	assert.Empty(t, Sanitize("   "))
}

func TestParseTable(t *testing.T) {
	tbl, err := ParseTable(sample)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "text"}, tbl.Columns)
	assert.Equal(t, [][]string{{"1", "привет мир"}, {"2", "hello"}}, tbl.Rows)

	empty, err := ParseTable("<p>no table here</p>")
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestParseTable_HeaderlessTable(t *testing.T) {
	tbl, err := ParseTable(`<table><tr><td>a</td><td>b</td></tr></table>`)
	require.NoError(t, err)
	assert.Nil(t, tbl.Columns)
	assert.Equal(t, [][]string{{"a", "b"}}, tbl.Rows)
}

func TestMarkdown(t *testing.T) {
	md, err := Markdown(sample)
	require.NoError(t, err)
	assert.Contains(t, md, "id")
	assert.Contains(t, md, "hello")

	md, err = Markdown("")
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestTable_Render(t *testing.T) {
	tbl := Table{
		Columns: []string{"id", "text"},
		Rows:    [][]string{{"1", strings.Repeat("x", 40)}},
	}

	var sb strings.Builder
	tbl.Render(&sb, RenderOptions{MaxWidth: 10, Highlight: "text"})
	out := sb.String()

	assert.Contains(t, out, "*TEXT", "go-pretty upper-cases headers by default")
	assert.NotContains(t, out, strings.Repeat("x", 11))

	assert.Contains(t, Table{}.String(), "(empty preview)")
}
