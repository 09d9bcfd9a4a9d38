// Package ledger is the persistent per-archive record store: one row per
// rasterized page, created incrementally during ingestion, mutated
// field-by-field during extraction and by human edits, and read by the
// segmenter and the consolidator.
//
// The on-disk format is the CSV layout earlier processed archives already
// use, so column names and defaults are contractual: optional columns
// default to the empty string, the exclusion flag to the literal "NO".
// Unknown columns found in an existing file are preserved verbatim.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/jbarria/archivador/constants"
	"github.com/jbarria/archivador/internal/common"
)

// Row is one page of an archive.
type Row struct {
	PageIndex  int    // 1-based, dense, immutable
	ImageName  string // e.g. 0001.jpg
	ImagePath  string // relative to the archive folder
	Excluded   bool   // "ocultar": excluded from splitting
	Folio      string
	Q1Text     string
	Q2Text     string
	RUT        string
	Date       string
	Name       string
	StatusCode string
	TypeCode   string
	Note       string

	extra map[string]string // unknown columns, preserved on rewrite
}

// Ledger is the CSV-backed row store for one archive.
type Ledger struct {
	path    string
	columns []string
	rows    []Row
	logger  *slog.Logger
}

// ErrPageNotFound is returned when a page index has no row.
var ErrPageNotFound = errors.New("page not found in ledger")

// Open loads the ledger at path, creating an empty in-memory ledger with
// the ingestion columns when the file does not exist yet. Rows are ordered
// by page index.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		path:    path,
		columns: append([]string(nil), constants.IngestColumns...),
		logger:  logger,
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrLedger, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate rows written before a column migration
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrLedger, path, err)
	}
	if len(records) == 0 {
		return l, nil
	}

	l.columns = records[0]
	for i, rec := range records[1:] {
		row, err := decodeRow(l.columns, rec)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %w", common.ErrLedger, path, i+2, err)
		}
		l.rows = append(l.rows, row)
	}
	sort.Slice(l.rows, func(i, j int) bool { return l.rows[i].PageIndex < l.rows[j].PageIndex })
	return l, nil
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// Columns returns the current header, in file order.
func (l *Ledger) Columns() []string { return append([]string(nil), l.columns...) }

// Len returns the number of rows.
func (l *Ledger) Len() int { return len(l.rows) }

// Rows returns all rows ordered by page index.
func (l *Ledger) Rows() []Row { return append([]Row(nil), l.rows...) }

// Get returns the row for a page index.
func (l *Ledger) Get(pageIndex int) (Row, bool) {
	for _, row := range l.rows {
		if row.PageIndex == pageIndex {
			return row, true
		}
	}
	return Row{}, false
}

// Has reports whether the page already has a row (used to resume ingestion).
func (l *Ledger) Has(pageIndex int) bool {
	_, ok := l.Get(pageIndex)
	return ok
}

// Validate checks that page indexes are dense 1..N.
func (l *Ledger) Validate() error {
	for i, row := range l.rows {
		if row.PageIndex != i+1 {
			return fmt.Errorf("%w: expected page %d, found %d", errNotDense, i+1, row.PageIndex)
		}
	}
	return nil
}

var errNotDense = errors.New("ledger page indexes not dense")

// Migrate appends any missing columns to the header. Applied once per
// ledger before row mutation; calling it again is a no-op. Existing rows
// keep their values; the new columns read back as their defaults.
func (l *Ledger) Migrate(cols ...string) error {
	added := false
	for _, c := range cols {
		if !l.hasColumn(c) {
			l.columns = append(l.columns, c)
			added = true
		}
	}
	if !added {
		return nil
	}
	l.logger.Debug("ledger.migrate", "path", l.path, "columns", l.columns)
	if len(l.rows) == 0 && !l.fileExists() {
		return nil // header is written with the first row
	}
	return l.rewrite()
}

// AppendRow adds one page row and flushes it to disk immediately, so a
// crash loses at most the in-flight page. The header is written when the
// file does not exist yet.
func (l *Ledger) AppendRow(row Row) error {
	if row.PageIndex != len(l.rows)+1 {
		return fmt.Errorf("append page %d out of order, have %d rows", row.PageIndex, len(l.rows))
	}

	writeHeader := !l.fileExists()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: append to %s: %w", common.ErrLedger, l.path, err)
	}
	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(l.columns); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Write(encodeRow(l.columns, row)); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	l.rows = append(l.rows, row)
	return nil
}

// UpdateRow mutates one row and rewrites the file. Rewrites are whole-row,
// last-write-wins per page; previously persisted fields of other rows are
// never touched.
func (l *Ledger) UpdateRow(pageIndex int, mutate func(*Row)) error {
	for i := range l.rows {
		if l.rows[i].PageIndex == pageIndex {
			mutate(&l.rows[i])
			l.rows[i].PageIndex = pageIndex // immutable
			return l.rewrite()
		}
	}
	return fmt.Errorf("%w: page %d in %s", ErrPageNotFound, pageIndex, l.path)
}

// SetField applies a single human edit keyed by page index and column name.
func (l *Ledger) SetField(pageIndex int, column, value string) error {
	if !l.hasColumn(column) {
		if err := l.Migrate(column); err != nil {
			return err
		}
	}
	return l.UpdateRow(pageIndex, func(r *Row) {
		switch column {
		case constants.ColExcluded:
			r.Excluded = value == constants.ExcludedYes
		case constants.ColFolio:
			r.Folio = value
		case constants.ColQ1Text:
			r.Q1Text = value
		case constants.ColQ2Text:
			r.Q2Text = value
		case constants.ColRUT:
			r.RUT = value
		case constants.ColDate:
			r.Date = value
		case constants.ColName:
			r.Name = value
		case constants.ColStatus:
			r.StatusCode = value
		case constants.ColType:
			r.TypeCode = value
		case constants.ColNote:
			r.Note = value
		default:
			if r.extra == nil {
				r.extra = map[string]string{}
			}
			r.extra[column] = value
		}
	})
}

func (l *Ledger) hasColumn(name string) bool {
	for _, c := range l.columns {
		if c == name {
			return true
		}
	}
	return false
}

func (l *Ledger) fileExists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

func (l *Ledger) rewrite() error {
	f, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("%w: rewrite %s: %w", common.ErrLedger, l.path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(l.columns); err != nil {
		f.Close()
		return err
	}
	for _, row := range l.rows {
		if err := w.Write(encodeRow(l.columns, row)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func decodeRow(columns, record []string) (Row, error) {
	get := func(col string) string {
		for i, c := range columns {
			if c == col && i < len(record) {
				return record[i]
			}
		}
		return ""
	}

	idx, err := strconv.Atoi(get(constants.ColPageIndex))
	if err != nil {
		return Row{}, fmt.Errorf("bad %s %q", constants.ColPageIndex, get(constants.ColPageIndex))
	}

	excluded := get(constants.ColExcluded)
	row := Row{
		PageIndex:  idx,
		ImageName:  get(constants.ColImageName),
		ImagePath:  get(constants.ColImagePath),
		Excluded:   excluded == constants.ExcludedYes,
		Folio:      get(constants.ColFolio),
		Q1Text:     get(constants.ColQ1Text),
		Q2Text:     get(constants.ColQ2Text),
		RUT:        get(constants.ColRUT),
		Date:       get(constants.ColDate),
		Name:       get(constants.ColName),
		StatusCode: get(constants.ColStatus),
		TypeCode:   get(constants.ColType),
		Note:       get(constants.ColNote),
	}

	known := map[string]struct{}{
		constants.ColPageIndex: {}, constants.ColImageName: {}, constants.ColImagePath: {},
		constants.ColExcluded: {}, constants.ColFolio: {}, constants.ColQ1Text: {},
		constants.ColQ2Text: {}, constants.ColRUT: {}, constants.ColDate: {},
		constants.ColName: {}, constants.ColStatus: {}, constants.ColType: {}, constants.ColNote: {},
	}
	for i, c := range columns {
		if _, ok := known[c]; ok || i >= len(record) {
			continue
		}
		if row.extra == nil {
			row.extra = map[string]string{}
		}
		row.extra[c] = record[i]
	}
	return row, nil
}

func encodeRow(columns []string, row Row) []string {
	rec := make([]string, len(columns))
	for i, c := range columns {
		switch c {
		case constants.ColPageIndex:
			rec[i] = strconv.Itoa(row.PageIndex)
		case constants.ColImageName:
			rec[i] = row.ImageName
		case constants.ColImagePath:
			rec[i] = row.ImagePath
		case constants.ColExcluded:
			if row.Excluded {
				rec[i] = constants.ExcludedYes
			} else {
				rec[i] = constants.ExcludedNo
			}
		case constants.ColFolio:
			rec[i] = row.Folio
		case constants.ColQ1Text:
			rec[i] = row.Q1Text
		case constants.ColQ2Text:
			rec[i] = row.Q2Text
		case constants.ColRUT:
			rec[i] = row.RUT
		case constants.ColDate:
			rec[i] = row.Date
		case constants.ColName:
			rec[i] = row.Name
		case constants.ColStatus:
			rec[i] = row.StatusCode
		case constants.ColType:
			rec[i] = row.TypeCode
		case constants.ColNote:
			rec[i] = row.Note
		default:
			rec[i] = row.extra[c]
		}
	}
	return rec
}
