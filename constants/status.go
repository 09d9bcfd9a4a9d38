package constants

// ArchiveStatus is the canonical lifecycle status for rows in the archive catalog.
type ArchiveStatus string

// Stable values (store these exact strings in the catalog).
const (
	ArchiveIngested   ArchiveStatus = "INGESTED"   // pages rendered, ledger rows created
	ArchiveExtracted  ArchiveStatus = "EXTRACTED"  // OCR fields persisted for every page
	ArchiveSplit      ArchiveStatus = "SPLIT"      // per-folio PDFs produced
	ArchiveClassified ArchiveStatus = "CLASSIFIED" // split PDFs placed in the taxonomy tree
)

// StatusCode is the numeric "estado" code extracted from a page.
type StatusCode string

const (
	StatusVigente     StatusCode = "1"
	StatusPendiente   StatusCode = "2"
	StatusActualizado StatusCode = "3"
	StatusNulo        StatusCode = "4"
)

// StatusKeywords maps each status keyword to its code. Extraction checks the
// keywords in this exact order, not by earliest position in the text.
var StatusKeywords = []struct {
	Keyword string
	Code    StatusCode
}{
	{"VIGENTE", StatusVigente},
	{"PENDIENTE", StatusPendiente},
	{"ACTUALIZADO", StatusActualizado},
	{"NULO", StatusNulo},
}

var statusLabels = map[StatusCode]string{
	StatusVigente:     "Vigente",
	StatusPendiente:   "Pendiente",
	StatusActualizado: "Actualizado",
	StatusNulo:        "Nulo",
}

// StatusLabel returns the human-readable label for a status code, or "" for
// blank/unknown codes.
func StatusLabel(code string) string {
	return statusLabels[StatusCode(code)]
}
