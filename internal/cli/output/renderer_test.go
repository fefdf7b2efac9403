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
		{mode: "", want: ModeMarkdown},
		{mode: ModeAuto, want: ModeMarkdown},
		{mode: ModeText, want: ModeText},
		{mode: ModeMarkdown, want: ModeMarkdown},
		{mode: ModeJSON, want: ModeJSON},
		{mode: "yaml", want: ModeMarkdown},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			var out bytes.Buffer
			r := NewRenderer(&out, &out, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_MarkdownTable(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &out, ModeMarkdown)

	r.Table([]string{"Step", "Status"}, [][]string{{"1.city_stats.sql", "success"}})

	assert.Contains(t, out.String(), "| Step | Status |")
	assert.Contains(t, out.String(), "| 1.city_stats.sql | success |")
}

func TestRenderer_TextTable(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &out, ModeText)

	r.Table([]string{"Engine"}, [][]string{{"clickhouse"}, {"sql"}})

	assert.Contains(t, out.String(), "ENGINE")
	assert.Contains(t, out.String(), "clickhouse")
	assert.Contains(t, out.String(), "┌")
}

func TestRenderer_Header(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &out, ModeMarkdown)
	r.Header(2, "Steps")
	assert.Equal(t, "## Steps\n\n", out.String())

	out.Reset()
	r = NewRenderer(&out, &out, ModeText)
	r.Header(1, "Steps")
	assert.Contains(t, out.String(), "Steps")
	assert.NotContains(t, out.String(), "\x1b[", "no escape codes on a non-terminal")
}

func TestRenderer_StatusLine(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &out, ModeText)

	r.StatusLine("1.city_stats.sql", "success", "42 rows")
	r.StatusLine("2.client_volume.sql", "failed", "")

	assert.Equal(t, "✓ 1.city_stats.sql  42 rows\n✗ 2.client_volume.sql\n", out.String())
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &out, ModeJSON)

	require.NoError(t, r.JSON(ValidationResult{Path: "a.sql", Valid: true}))
	assert.JSONEq(t, `{"path": "a.sql", "valid": true}`, out.String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "# Run", FormatHeader(0, "Run"))
	assert.Equal(t, "### Run", FormatHeader(3, "Run"))
	assert.Equal(t, "- **Target:** reports.city_stats", FormatKeyValue("Target", "reports.city_stats"))
}

func TestStatusSymbol(t *testing.T) {
	assert.Equal(t, "✓", StatusSymbol("completed"))
	assert.Equal(t, "✗", StatusSymbol("failed"))
	assert.Equal(t, "!", StatusSymbol("warning"))
	assert.Equal(t, "-", StatusSymbol("skipped"))
	assert.Equal(t, "·", StatusSymbol("pending"))
}
