// Package taxonomy places split per-folio PDFs into the
// year/month/document-type directory tree, with fixed fallback buckets for
// documents missing a parseable date or a known type code.
package taxonomy

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jbarria/archivador/constants"
)

// dateLayouts are tried in order; the first successful parse wins. The
// non-padded layouts accept both padded and unpadded day/month digits.
var dateLayouts = []string{
	"2/1/2006",
	"1/2/2006",
	"2006-1-2",
	"2006/1/2",
	"2-1-2006",
}

// ParseDate extracts year and month from a ledger date string.
func ParseDate(s string) (year int, month time.Month, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), t.Month(), true
		}
	}
	return 0, 0, false
}

// RelPath computes the taxonomy-relative output path for a document's file:
// <year>/<MM>/<type>/<file> normally, the flat sin_fecha/<type>/<file>
// bucket when the date does not parse, sin_tipo for unknown type codes.
func RelPath(date, typeCode, fileName string) (rel string, missingDate, missingType bool) {
	typeName := constants.TypeFolder(typeCode)
	missingType = typeName == constants.BucketSinTipo

	year, month, ok := ParseDate(date)
	if !ok {
		return filepath.Join(constants.BucketSinFecha, typeName, fileName), true, missingType
	}
	return filepath.Join(fmt.Sprintf("%d", year), fmt.Sprintf("%02d", int(month)), typeName, fileName), false, missingType
}

// Doc is one split document to classify.
type Doc struct {
	FileName string // split PDF name, e.g. 12345678.pdf
	Date     string
	TypeCode string
}

// Stats summarizes one classification run.
type Stats struct {
	Placed      int
	MissingDate int
	MissingType int
	Errors      []string
}

type Classifier struct {
	baseDir string // destination tree root for one archive
	logger  *slog.Logger
}

func NewClassifier(baseDir string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{baseDir: baseDir, logger: logger}
}

// Classify copies each document's split PDF from splitDir into the taxonomy
// tree. A missing source PDF is a hard error for that document only;
// remaining documents are still placed.
func (c *Classifier) Classify(splitDir string, docs []Doc) Stats {
	var stats Stats
	for _, doc := range docs {
		rel, noDate, noType := RelPath(doc.Date, doc.TypeCode, doc.FileName)
		if noDate {
			stats.MissingDate++
			c.logger.Warn("taxonomy.missing_date", "file", doc.FileName, "date", doc.Date)
		}
		if noType {
			stats.MissingType++
			c.logger.Warn("taxonomy.missing_type", "file", doc.FileName, "type_code", doc.TypeCode)
		}

		src := filepath.Join(splitDir, doc.FileName)
		dst := filepath.Join(c.baseDir, rel)
		if err := copyFile(src, dst); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", doc.FileName, err))
			c.logger.Error("taxonomy.place_failed", "file", doc.FileName, "error", err)
			continue
		}
		stats.Placed++
		c.logger.Info("taxonomy.placed", "file", doc.FileName, "path", rel)
	}
	return stats
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
