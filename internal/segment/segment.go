// Package segment groups an archive's ordered pages into logical documents.
// A document is a maximal run of consecutive non-excluded pages starting at
// a folio-carrying page and extending until the next one.
package segment

import "github.com/jbarria/archivador/internal/ledger"

// Document is a derived logical document: a folio and the ordered page
// indexes that belong to it.
type Document struct {
	Folio string
	Pages []int // ascending page_index
}

// Build scans rows in page order. Excluded pages are skipped entirely,
// a folio opens a new document, folio-less pages extend the open one, and
// pages before the first folio belong to no document. Repeated folio values
// are NOT deduplicated: each occurrence yields its own document.
func Build(rows []ledger.Row) []Document {
	var docs []Document
	open := -1 // index into docs

	for _, row := range rows {
		if row.Excluded {
			continue
		}
		if row.Folio != "" {
			docs = append(docs, Document{Folio: row.Folio, Pages: []int{row.PageIndex}})
			open = len(docs) - 1
			continue
		}
		if open >= 0 {
			docs[open].Pages = append(docs[open].Pages, row.PageIndex)
		}
		// else: page precedes any folio marker and is dropped
	}
	return docs
}

// FirstDate returns the date of the first constituent page that has one.
func FirstDate(doc Document, byPage map[int]ledger.Row) string {
	for _, p := range doc.Pages {
		if row, ok := byPage[p]; ok && row.Date != "" {
			return row.Date
		}
	}
	return ""
}

// FirstTypeCode returns the type code of the first constituent page that
// has one.
func FirstTypeCode(doc Document, byPage map[int]ledger.Row) string {
	for _, p := range doc.Pages {
		if row, ok := byPage[p]; ok && row.TypeCode != "" {
			return row.TypeCode
		}
	}
	return ""
}

// Index builds the page_index lookup used by the helpers above.
func Index(rows []ledger.Row) map[int]ledger.Row {
	m := make(map[int]ledger.Row, len(rows))
	for _, r := range rows {
		m[r.PageIndex] = r
	}
	return m
}
