// Package splitter produces one PDF per logical document, extracting the
// document's pages from the original multi-page source.
package splitter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jbarria/archivador/internal/segment"
)

// Output names one split PDF that was written.
type Output struct {
	Folio    string
	FileName string // name under the split directory, suffixed on duplicates
	Pages    []int
}

// Result summarizes one split run.
type Result struct {
	Outputs      []Output
	PagesDropped int // out-of-range pages silently dropped
	Errors       []string
}

type Splitter struct {
	conf   *model.Configuration
	logger *slog.Logger
}

func New(logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{conf: model.NewDefaultConfiguration(), logger: logger}
}

// Split writes <folio>.pdf under outDir for every document. Page order in
// each output follows the document's ascending page order. A repeated folio
// gets a numeric suffix (_2, _3, ...) in segmentation order so no document
// overwrites an earlier one. One document's failure is recorded and does
// not abort the rest.
func (s *Splitter) Split(srcPDF, outDir string, docs []segment.Document) Result {
	var res Result

	pageCount, err := api.PageCountFile(srcPDF)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("source %s: %v", srcPDF, err))
		return res
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("split dir %s: %v", outDir, err))
		return res
	}

	seen := map[string]int{}
	for _, doc := range docs {
		pages := make([]string, 0, len(doc.Pages))
		kept := make([]int, 0, len(doc.Pages))
		for _, p := range doc.Pages {
			if p < 1 || p > pageCount {
				res.PagesDropped++
				s.logger.Warn("split.page_out_of_range", "folio", doc.Folio, "page", p, "source_pages", pageCount)
				continue
			}
			pages = append(pages, strconv.Itoa(p))
			kept = append(kept, p)
		}
		if len(pages) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("folio %s: no pages within source range", doc.Folio))
			continue
		}

		seen[doc.Folio]++
		name := doc.Folio + ".pdf"
		if n := seen[doc.Folio]; n > 1 {
			name = fmt.Sprintf("%s_%d.pdf", doc.Folio, n)
		}

		dst := filepath.Join(outDir, name)
		if err := api.TrimFile(srcPDF, dst, pages, s.conf); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("folio %s: %v", doc.Folio, err))
			s.logger.Error("split.failed", "folio", doc.Folio, "error", err)
			continue
		}
		res.Outputs = append(res.Outputs, Output{Folio: doc.Folio, FileName: name, Pages: kept})
		s.logger.Info("split.ok", "folio", doc.Folio, "file", name, "pages", len(kept))
	}
	return res
}
