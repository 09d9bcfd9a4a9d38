// Package export assembles a deliverable bundle: the master spreadsheet,
// the classified PDF tree, and a run summary, under a numbered ENTREGABLE
// directory that never touches prior bundles.
package export

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jbarria/archivador/constants"
	"github.com/jbarria/archivador/internal/ledger"
	"github.com/jbarria/archivador/internal/segment"
	"github.com/jbarria/archivador/internal/taxonomy"
)

const sheetName = "Consolidado"

var sheetHeaders = []string{
	"archivo",
	constants.ColPageIndex,
	constants.ColImageName,
	constants.ColImagePath,
	constants.ColExcluded,
	constants.ColFolio,
	constants.ColQ1Text,
	constants.ColQ2Text,
	constants.ColRUT,
	constants.ColDate,
	constants.ColName,
	constants.ColStatus,
	"estado_texto",
	constants.ColType,
	"tipo_texto",
	constants.ColNote,
	"pdf_clasificado",
}

// Result summarizes one consolidation run.
type Result struct {
	Bundle    string
	Dir       string
	Archives  int
	Rows      int
	PDFs      int
	Errors    []string
	StartedAt time.Time
}

type Consolidator struct {
	documentsDir string
	taxonomyDir  string
	bundlesDir   string
	logger       *slog.Logger
}

func NewConsolidator(documentsDir, taxonomyDir, bundlesDir string, logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{
		documentsDir: documentsDir,
		taxonomyDir:  taxonomyDir,
		bundlesDir:   bundlesDir,
		logger:       logger,
	}
}

// NextBundleNumber scans the bundles directory for ENTREGABLE<number> entries
// and returns max+1, starting at 1 when none exist.
func NextBundleNumber(bundlesDir string) int {
	max := 0
	entries, err := os.ReadDir(bundlesDir)
	if err != nil {
		return 1
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), constants.BundlePrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), constants.BundlePrefix))
		if err != nil || n <= 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}

// Consolidate builds the next bundle from the given archives, in order. Per
// archive failures are recorded and the remaining archives still land in the
// bundle.
func (c *Consolidator) Consolidate(archives []string) (*Result, error) {
	res := &Result{StartedAt: time.Now()}

	num := NextBundleNumber(c.bundlesDir)
	res.Bundle = fmt.Sprintf("%s%02d", constants.BundlePrefix, num)
	res.Dir = filepath.Join(c.bundlesDir, res.Bundle)
	if err := os.MkdirAll(res.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bundle directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range sheetHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	xlsxRow := 2
	for _, archive := range archives {
		led, err := ledger.Open(filepath.Join(c.documentsDir, archive, archive+".csv"), c.logger)
		if err != nil || led.Len() == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("archive %s: no ledger", archive))
			c.logger.Warn("export.archive.skipped", "archive", archive, "error", err)
			continue
		}
		res.Archives++

		copied, copyErrs := c.copyClassified(archive, res.Dir)
		res.PDFs += copied
		res.Errors = append(res.Errors, copyErrs...)

		rows := led.Rows()
		pdfByPage := c.classifiedByPage(archive, rows)
		for _, row := range rows {
			vals := rowValues(archive, row, pdfByPage[row.PageIndex])
			for col, v := range vals {
				cell, _ := excelize.CoordinatesToCellName(col+1, xlsxRow)
				_ = f.SetCellValue(sheetName, cell, v)
			}
			xlsxRow++
			res.Rows++
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "C", "D", 30)
	_ = f.SetColWidth(sheetName, "G", "H", 40)
	_ = f.SetColWidth(sheetName, "K", "K", 30)
	_ = f.SetColWidth(sheetName, "Q", "Q", 50)

	xlsxPath := filepath.Join(res.Dir, fmt.Sprintf("CONSOLIDADO_%s.xlsx", res.Bundle))
	if err := f.SaveAs(xlsxPath); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	if err := c.writeSummary(res); err != nil {
		res.Errors = append(res.Errors, err.Error())
	}

	c.logger.Info("export.bundle.ok",
		"bundle", res.Bundle, "archives", res.Archives, "rows", res.Rows,
		"pdfs", res.PDFs, "elapsed_ms", time.Since(res.StartedAt).Milliseconds())
	return res, nil
}

func rowValues(archive string, row ledger.Row, pdfRel string) []any {
	excluded := constants.ExcludedNo
	if row.Excluded {
		excluded = constants.ExcludedYes
	}
	return []any{
		archive,
		row.PageIndex,
		row.ImageName,
		row.ImagePath,
		excluded,
		row.Folio,
		row.Q1Text,
		row.Q2Text,
		row.RUT,
		row.Date,
		row.Name,
		row.StatusCode,
		constants.StatusLabel(row.StatusCode),
		row.TypeCode,
		constants.TypeLabel(row.TypeCode),
		row.Note,
		pdfRel,
	}
}

// classifiedByPage maps each page index to the bundle-relative path of its
// document's classified PDF. Pages outside any document, and documents whose
// classified file is missing, map to "".
func (c *Consolidator) classifiedByPage(archive string, rows []ledger.Row) map[int]string {
	byPage := segment.Index(rows)
	out := map[int]string{}

	seen := map[string]int{}
	for _, doc := range segment.Build(rows) {
		seen[doc.Folio]++
		name := doc.Folio + ".pdf"
		if n := seen[doc.Folio]; n > 1 {
			name = fmt.Sprintf("%s_%d.pdf", doc.Folio, n)
		}
		rel, _, _ := taxonomy.RelPath(segment.FirstDate(doc, byPage), segment.FirstTypeCode(doc, byPage), name)
		if _, err := os.Stat(filepath.Join(c.taxonomyDir, archive, rel)); err != nil {
			continue
		}
		bundleRel := filepath.Join("PDFS", archive, rel)
		for _, p := range doc.Pages {
			out[p] = bundleRel
		}
	}
	return out
}

// copyClassified mirrors pdfs_estructurados/<archive> into the bundle's
// PDFS/<archive> tree.
func (c *Consolidator) copyClassified(archive, bundleDir string) (int, []string) {
	srcRoot := filepath.Join(c.taxonomyDir, archive)
	dstRoot := filepath.Join(bundleDir, "PDFS", archive)

	copied := 0
	var errs []string
	walkErr := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !constants.IsPDF(filepath.Ext(path)) {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstRoot, rel)
		if err := copyFile(path, dst); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", rel, err))
			return nil
		}
		copied++
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, fs.ErrNotExist) {
		errs = append(errs, fmt.Sprintf("archive %s: %v", archive, walkErr))
	}
	return copied, errs
}

func (c *Consolidator) writeSummary(res *Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", res.Bundle)
	fmt.Fprintf(&b, "Generado: %s\n", res.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Archivos procesados: %d\n", res.Archives)
	fmt.Fprintf(&b, "Paginas consolidadas: %d\n", res.Rows)
	fmt.Fprintf(&b, "PDFs copiados: %d\n", res.PDFs)
	fmt.Fprintf(&b, "Errores: %d\n", len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(&b, "  - %s\n", e)
	}
	return os.WriteFile(filepath.Join(res.Dir, "RESUMEN.txt"), []byte(b.String()), 0o644)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
