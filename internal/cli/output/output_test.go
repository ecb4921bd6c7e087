package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want Mode
	}{
		{ModeAuto, ModeMarkdown},
		{"", ModeMarkdown},
		{"bogus", ModeMarkdown},
		{ModeText, ModeText},
		{ModeJSON, ModeJSON},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode(), "a buffer is never a TTY")
		})
	}
}

func TestRenderer_Markdown(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRenderer(&out, &errOut, ModeMarkdown)

	r.Header(2, "Preview")
	r.KeyValue("Rows", "5")
	r.Success("done")
	r.StatusLine("data.csv", "success", "5 rows")
	r.Warning("careful")

	assert.Equal(t, "## Preview\n\n**Rows:** 5\n**done**\n- ✓ data.csv (5 rows)\n", out.String())
	assert.Equal(t, "! careful\n", errOut.String())
}

func TestRenderer_TextWithoutTTYHasNoEscapes(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeText)

	r.Success("ok")
	r.StatusLine("file", "error", "boom")
	assert.NotContains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "✓ ok")
	assert.Contains(t, out.String(), "✗ file")
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"rows": 3}))
	assert.JSONEq(t, `{"rows":3}`, out.String())
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Rows Processed", Label("rows_processed"))
	assert.Equal(t, "Column", Label("column"))
}
