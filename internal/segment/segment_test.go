package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jbarria/archivador/internal/ledger"
)

func rows(specs ...ledger.Row) []ledger.Row {
	for i := range specs {
		specs[i].PageIndex = i + 1
	}
	return specs
}

func TestTwoDocuments(t *testing.T) {
	docs := Build(rows(
		ledger.Row{Folio: "11111111"},
		ledger.Row{},
		ledger.Row{Folio: "22222222"},
		ledger.Row{},
	))
	assert.Equal(t, []Document{
		{Folio: "11111111", Pages: []int{1, 2}},
		{Folio: "22222222", Pages: []int{3, 4}},
	}, docs)
}

func TestLeadingPagesDropped(t *testing.T) {
	docs := Build(rows(
		ledger.Row{},
		ledger.Row{Folio: "11111111"},
	))
	assert.Equal(t, []Document{{Folio: "11111111", Pages: []int{2}}}, docs)
}

func TestExcludedPageSkipped(t *testing.T) {
	docs := Build(rows(
		ledger.Row{Folio: "11111111"},
		ledger.Row{Excluded: true},
		ledger.Row{},
	))
	assert.Equal(t, []Document{{Folio: "11111111", Pages: []int{1, 3}}}, docs)
}

func TestExcludedFolioPageDoesNotOpenDocument(t *testing.T) {
	docs := Build(rows(
		ledger.Row{Folio: "11111111", Excluded: true},
		ledger.Row{},
	))
	assert.Empty(t, docs)
}

func TestConsecutiveFolioPages(t *testing.T) {
	docs := Build(rows(
		ledger.Row{Folio: "11111111"},
		ledger.Row{Folio: "22222222"},
		ledger.Row{},
	))
	assert.Equal(t, []Document{
		{Folio: "11111111", Pages: []int{1}},
		{Folio: "22222222", Pages: []int{2, 3}},
	}, docs)
}

func TestRepeatedFolioNotDeduplicated(t *testing.T) {
	docs := Build(rows(
		ledger.Row{Folio: "11111111"},
		ledger.Row{Folio: "11111111"},
	))
	assert.Len(t, docs, 2)
	assert.Equal(t, "11111111", docs[0].Folio)
	assert.Equal(t, "11111111", docs[1].Folio)
}

func TestEmptyInput(t *testing.T) {
	assert.Empty(t, Build(nil))
}

func TestFirstDateAndType(t *testing.T) {
	rs := rows(
		ledger.Row{Folio: "11111111"},
		ledger.Row{Date: "15/03/2024", TypeCode: "2"},
		ledger.Row{Date: "01/01/2020", TypeCode: "1"},
	)
	byPage := Index(rs)
	doc := Build(rs)[0]
	assert.Equal(t, "15/03/2024", FirstDate(doc, byPage))
	assert.Equal(t, "2", FirstTypeCode(doc, byPage))
}
