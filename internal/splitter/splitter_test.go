package splitter

import (
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbarria/archivador/internal/segment"
)

func writeTestPDF(t *testing.T, path string, pages int) {
	t.Helper()
	doc := fpdf.New("P", "mm", "Letter", "")
	doc.SetFont("Helvetica", "", 12)
	for i := 1; i <= pages; i++ {
		doc.AddPage()
		doc.Cell(40, 10, "pagina de prueba")
	}
	require.NoError(t, doc.OutputFileAndClose(path))
}

func TestSplitWritesOnePDFPerDocument(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "archivo.pdf")
	writeTestPDF(t, src, 4)

	out := filepath.Join(dir, "pdfs_separados")
	docs := []segment.Document{
		{Folio: "12345678", Pages: []int{1, 2}},
		{Folio: "87654321", Pages: []int{3, 4}},
	}

	res := New(nil).Split(src, out, docs)
	require.Empty(t, res.Errors)
	require.Len(t, res.Outputs, 2)

	assert.Equal(t, "12345678.pdf", res.Outputs[0].FileName)
	assert.Equal(t, "87654321.pdf", res.Outputs[1].FileName)

	for _, o := range res.Outputs {
		n, err := api.PageCountFile(filepath.Join(out, o.FileName))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
}

func TestSplitSuffixesRepeatedFolio(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "archivo.pdf")
	writeTestPDF(t, src, 3)

	out := filepath.Join(dir, "out")
	docs := []segment.Document{
		{Folio: "11112222", Pages: []int{1}},
		{Folio: "11112222", Pages: []int{2, 3}},
	}

	res := New(nil).Split(src, out, docs)
	require.Empty(t, res.Errors)
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, "11112222.pdf", res.Outputs[0].FileName)
	assert.Equal(t, "11112222_2.pdf", res.Outputs[1].FileName)

	n, err := api.PageCountFile(filepath.Join(out, "11112222_2.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSplitDropsOutOfRangePages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "archivo.pdf")
	writeTestPDF(t, src, 2)

	out := filepath.Join(dir, "out")
	docs := []segment.Document{
		{Folio: "11112222", Pages: []int{2, 3, 4}},
	}

	res := New(nil).Split(src, out, docs)
	require.Empty(t, res.Errors)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, 2, res.PagesDropped)
	assert.Equal(t, []int{2}, res.Outputs[0].Pages)
}

func TestSplitDocumentWithNoValidPagesIsIsolated(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "archivo.pdf")
	writeTestPDF(t, src, 2)

	out := filepath.Join(dir, "out")
	docs := []segment.Document{
		{Folio: "99990000", Pages: []int{5}},
		{Folio: "11112222", Pages: []int{1}},
	}

	res := New(nil).Split(src, out, docs)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "99990000")
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "11112222.pdf", res.Outputs[0].FileName)
}

func TestSplitMissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	res := New(nil).Split(filepath.Join(dir, "no.pdf"), filepath.Join(dir, "out"), nil)
	assert.NotEmpty(t, res.Errors)
}
