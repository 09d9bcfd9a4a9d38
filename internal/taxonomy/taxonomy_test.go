package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateFormats(t *testing.T) {
	tests := []struct {
		in    string
		year  int
		month int
		ok    bool
	}{
		{"15/03/2024", 2024, 3, true},
		{"5/3/2024", 2024, 3, true},
		{"2024-03-15", 2024, 3, true},
		{"2024/03/15", 2024, 3, true},
		{"15-03-2024", 2024, 3, true},
		// day/month layout is tried first, so an ambiguous value parses as it
		{"03/04/2024", 2024, 4, true},
		{"", 0, 0, false},
		{"marzo 2024", 0, 0, false},
		{"99/99/9999", 0, 0, false},
	}
	for _, tt := range tests {
		y, m, ok := ParseDate(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.Equal(t, tt.year, y, "input %q", tt.in)
			assert.Equal(t, tt.month, int(m), "input %q", tt.in)
		}
	}
}

func TestRelPath(t *testing.T) {
	rel, noDate, noType := RelPath("15/03/2024", "1", "12345678.pdf")
	assert.Equal(t, filepath.Join("2024", "03", "egreso", "12345678.pdf"), rel)
	assert.False(t, noDate)
	assert.False(t, noType)

	rel, noDate, noType = RelPath("", "", "12345678.pdf")
	assert.Equal(t, filepath.Join("sin_fecha", "sin_tipo", "12345678.pdf"), rel)
	assert.True(t, noDate)
	assert.True(t, noType)

	// unparseable date keeps a known type; no month segment in the bucket
	rel, noDate, noType = RelPath("pronto", "4", "x.pdf")
	assert.Equal(t, filepath.Join("sin_fecha", "voucher", "x.pdf"), rel)
	assert.True(t, noDate)
	assert.False(t, noType)

	// unknown numeric code falls back to sin_tipo
	rel, _, noType = RelPath("15/03/2024", "9", "x.pdf")
	assert.Equal(t, filepath.Join("2024", "03", "sin_tipo", "x.pdf"), rel)
	assert.True(t, noType)
}

func TestClassifyCopiesAndCounts(t *testing.T) {
	splitDir := t.TempDir()
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(splitDir, "11111111.pdf"), []byte("pdf-a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(splitDir, "22222222.pdf"), []byte("pdf-b"), 0o644))

	c := NewClassifier(outDir, nil)
	stats := c.Classify(splitDir, []Doc{
		{FileName: "11111111.pdf", Date: "15/03/2024", TypeCode: "1"},
		{FileName: "22222222.pdf", Date: "", TypeCode: ""},
		{FileName: "33333333.pdf", Date: "15/03/2024", TypeCode: "1"}, // source missing
	})

	assert.Equal(t, 2, stats.Placed)
	assert.Equal(t, 1, stats.MissingDate)
	assert.Equal(t, 1, stats.MissingType)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "33333333.pdf")

	placed, err := os.ReadFile(filepath.Join(outDir, "2024", "03", "egreso", "11111111.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-a", string(placed))
	_, err = os.Stat(filepath.Join(outDir, "sin_fecha", "sin_tipo", "22222222.pdf"))
	assert.NoError(t, err)
}
