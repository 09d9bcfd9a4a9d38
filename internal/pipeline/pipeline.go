// Package pipeline chains the per-archive stages: page rendering and ledger
// ingestion, OCR field extraction, and the segment/split/classify pass that
// turns the ledger into a classified PDF tree.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jbarria/archivador/constants"
	"github.com/jbarria/archivador/internal/catalog"
	"github.com/jbarria/archivador/internal/common"
	"github.com/jbarria/archivador/internal/ledger"
	"github.com/jbarria/archivador/internal/ocr"
	"github.com/jbarria/archivador/internal/segment"
	"github.com/jbarria/archivador/internal/splitter"
	"github.com/jbarria/archivador/internal/taxonomy"
	"github.com/jbarria/archivador/internal/textnorm"
)

// Header regions of a comprobante page, in pixels at the default render DPI.
// Q1 (top-left) carries the RUT and name; Q2 (top-right, open-ended right
// edge) carries the date and status keyword.
var (
	regionQ1 = ocr.Rect{X0: 0, Y0: 0, X1: 515, Y1: 190}
	regionQ2 = ocr.Rect{X0: 1154, Y0: 0, X1: 1 << 30, Y1: 174}
)

type Processor struct {
	paths  common.PathsConfig
	engine *ocr.Engine
	cat    *catalog.Catalog // optional
	logger *slog.Logger
}

func NewProcessor(paths common.PathsConfig, engine *ocr.Engine, cat *catalog.Catalog, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{paths: paths, engine: engine, cat: cat, logger: logger}
}

// ArchiveName derives the archive identifier from the source PDF path.
func ArchiveName(srcPDF string) string {
	base := filepath.Base(srcPDF)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *Processor) workdir(archive string) string {
	return filepath.Join(p.paths.DocumentsDir, archive)
}

// LedgerPath returns the CSV ledger location for an archive.
func (p *Processor) LedgerPath(archive string) string {
	return filepath.Join(p.workdir(archive), archive+".csv")
}

// ImagesDir returns the page-image directory for an archive.
func (p *Processor) ImagesDir(archive string) string {
	return filepath.Join(p.workdir(archive), constants.ImagesDirName)
}

// SplitDir returns the per-folio PDF directory for an archive.
func (p *Processor) SplitDir(archive string) string {
	return filepath.Join(p.workdir(archive), constants.SplitDirName)
}

// OpenLedger opens the archive's page ledger, which mains also use to apply
// human edits keyed by page index and column name.
func (p *Processor) OpenLedger(archive string) (*ledger.Ledger, error) {
	return ledger.Open(p.LedgerPath(archive), p.logger)
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Archive  string
	Pages    int
	Rendered int
	Skipped  int
	Errors   []string
}

// Ingest renders every page of srcPDF to a JPEG under <archive>/imagenes/
// and appends one ledger row per page. Pages that already have a row are
// skipped, so an interrupted run resumes where it stopped.
func (p *Processor) Ingest(ctx context.Context, srcPDF string) (*IngestResult, error) {
	archive := ArchiveName(srcPDF)
	res := &IngestResult{Archive: archive}
	started := time.Now()

	pages, err := api.PageCountFile(srcPDF)
	if err != nil {
		return nil, common.WrapError(err, fmt.Sprintf("counting pages of %s", srcPDF))
	}
	res.Pages = pages

	imagesDir := p.ImagesDir(archive)
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, common.WrapError(err, "creating images directory")
	}

	led, err := p.OpenLedger(archive)
	if err != nil {
		return nil, err
	}

	for page := 1; page <= pages; page++ {
		if led.Has(page) {
			res.Skipped++
			continue
		}
		name := fmt.Sprintf("%04d.jpg", page)
		path := filepath.Join(imagesDir, name)
		if err := p.engine.RenderPage(ctx, srcPDF, page, path); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("page %d: %v", page, err))
			p.logger.Error("ingest.page.failed", "archive", archive, "page", page, "error", err)
			break // rows must stay dense, resume picks up here
		}
		row := ledger.Row{PageIndex: page, ImageName: name, ImagePath: path}
		if err := led.AppendRow(row); err != nil {
			return res, err
		}
		res.Rendered++
		p.logger.Info("ingest.page.ok", "archive", archive, "page", page)
	}

	if p.cat != nil {
		if err := p.cat.Upsert(ctx, archive, srcPDF, pages); err != nil {
			res.Errors = append(res.Errors, err.Error())
		}
	}
	p.logger.Info("ingest.done", "archive", archive, "pages", pages,
		"rendered", res.Rendered, "skipped", res.Skipped, "elapsed_ms", time.Since(started).Milliseconds())
	return res, nil
}

// ExtractResult summarizes one extraction run.
type ExtractResult struct {
	Archive   string
	Pages     int
	WithFolio int
	Failed    int
	Errors    []string
}

// Extract runs OCR over every page and fills the ledger's field columns.
// Excluded pages are extracted too; the exclusion flag only gates splitting.
// A page whose OCR fails is persisted with empty fields and the run continues.
func (p *Processor) Extract(ctx context.Context, archive string) (*ExtractResult, error) {
	res := &ExtractResult{Archive: archive}
	started := time.Now()

	led, err := p.OpenLedger(archive)
	if err != nil {
		return nil, err
	}
	if led.Len() == 0 {
		return nil, fmt.Errorf("%w: archive %s has no ingested pages", common.ErrNotFound, archive)
	}
	if err := led.Migrate(constants.ExtractColumns...); err != nil {
		return nil, err
	}

	for _, row := range led.Rows() {
		res.Pages++

		// a failed page persists with empty fields, same as a blank page
		text, ocrErr := p.engine.PageText(ctx, row.ImagePath)
		if ocrErr != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("page %d: %v", row.PageIndex, ocrErr))
			p.logger.Warn("extract.page.failed", "archive", archive, "page", row.PageIndex, "error", ocrErr)
			text = ""
		}

		fields := p.extractPage(ctx, archive, row.PageIndex, row.ImagePath, text)
		if fields.Folio != "" {
			res.WithFolio++
		}
		err = led.UpdateRow(row.PageIndex, func(r *ledger.Row) {
			r.Folio = fields.Folio
			r.Q1Text = fields.Q1
			r.Q2Text = fields.Q2
			r.RUT = fields.RUT
			r.Date = fields.Date
			r.Name = fields.Name
			r.StatusCode = fields.StatusCode
			r.TypeCode = fields.TypeCode
		})
		if err != nil {
			return res, err
		}
		if ocrErr == nil {
			p.logger.Info("extract.page.ok", "archive", archive, "page", row.PageIndex, "folio", fields.Folio)
		}
	}

	if p.cat != nil {
		if err := p.cat.SetStatus(ctx, archive, constants.ArchiveExtracted); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			res.Errors = append(res.Errors, err.Error())
		}
	}
	p.logger.Info("extract.done", "archive", archive, "pages", res.Pages,
		"with_folio", res.WithFolio, "failed", res.Failed, "elapsed_ms", time.Since(started).Milliseconds())
	return res, nil
}

type pageFields struct {
	Folio, Q1, Q2, RUT, Date, Name, StatusCode, TypeCode string
}

// extractPage derives the field values for one page. The folio is only
// looked for on pages carrying the comprobante marker; the type code always
// comes from the full page text. Region OCR failures degrade to empty text.
func (p *Processor) extractPage(ctx context.Context, archive string, page int, imagePath, text string) pageFields {
	var f pageFields

	norm := textnorm.Normalize(text)
	f.TypeCode = textnorm.ExtractTypeCode(norm)
	if !textnorm.HasMarker(norm) {
		return f
	}
	f.Folio = textnorm.ExtractFolio(norm)
	if f.Folio == "" {
		return f
	}

	f.Q1 = p.regionText(ctx, archive, page, imagePath, regionQ1)
	f.Q2 = p.regionText(ctx, archive, page, imagePath, regionQ2)
	f.RUT = textnorm.ExtractRut(f.Q1)
	f.Name = textnorm.ExtractName(f.Q1, f.RUT)
	f.Date = textnorm.ExtractDate(f.Q2)
	f.StatusCode = textnorm.ExtractStatusCode(f.Q2)
	return f
}

func (p *Processor) regionText(ctx context.Context, archive string, page int, imagePath string, r ocr.Rect) string {
	txt, err := p.engine.RegionText(ctx, imagePath, r)
	if err != nil {
		p.logger.Warn("extract.region.failed", "archive", archive, "page", page, "error", err)
		return ""
	}
	return txt
}

// SplitResult summarizes a segment → split → classify pass.
type SplitResult struct {
	Archive   string
	Documents int
	Split     splitter.Result
	Taxonomy  taxonomy.Stats
}

// SplitClassify segments the ledger into folio documents, writes one PDF per
// document, and files each under the year/month/type tree.
func (p *Processor) SplitClassify(ctx context.Context, archive, srcPDF string) (*SplitResult, error) {
	led, err := p.OpenLedger(archive)
	if err != nil {
		return nil, err
	}
	if led.Len() == 0 {
		return nil, fmt.Errorf("%w: archive %s has no ingested pages", common.ErrNotFound, archive)
	}

	rows := led.Rows()
	docs := segment.Build(rows)
	res := &SplitResult{Archive: archive, Documents: len(docs)}

	splitDir := p.SplitDir(archive)
	res.Split = splitter.New(p.logger).Split(srcPDF, splitDir, docs)

	byPage := segment.Index(rows)
	byFolioOrder := map[string]int{}
	taxDocs := make([]taxonomy.Doc, 0, len(res.Split.Outputs))
	for _, out := range res.Split.Outputs {
		byFolioOrder[out.Folio]++
		doc := docAt(docs, out.Folio, byFolioOrder[out.Folio])
		taxDocs = append(taxDocs, taxonomy.Doc{
			FileName: out.FileName,
			Date:     segment.FirstDate(doc, byPage),
			TypeCode: segment.FirstTypeCode(doc, byPage),
		})
	}

	classifier := taxonomy.NewClassifier(filepath.Join(p.paths.TaxonomyDir, archive), p.logger)
	res.Taxonomy = classifier.Classify(splitDir, taxDocs)

	if p.cat != nil {
		if err := p.cat.SetStatus(ctx, archive, constants.ArchiveClassified); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			res.Split.Errors = append(res.Split.Errors, err.Error())
		}
	}
	p.logger.Info("split.done", "archive", archive, "documents", len(docs),
		"placed", res.Taxonomy.Placed, "missing_date", res.Taxonomy.MissingDate, "missing_type", res.Taxonomy.MissingType)
	return res, nil
}

// docAt returns the nth (1-based) document carrying folio, in segmentation
// order. Matches the splitter's duplicate-suffix numbering.
func docAt(docs []segment.Document, folio string, n int) segment.Document {
	for _, d := range docs {
		if d.Folio != folio {
			continue
		}
		n--
		if n == 0 {
			return d
		}
	}
	return segment.Document{Folio: folio}
}
