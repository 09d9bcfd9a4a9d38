package constants

// Ledger column identifiers. The on-disk CSV keeps these exact names for
// compatibility with previously processed archives.
const (
	ColPageIndex = "numero_hoja"
	ColImageName = "nombre_img"
	ColImagePath = "path_img"
	ColExcluded  = "ocultar"
	ColFolio     = "folio"
	ColQ1Text    = "q1"
	ColQ2Text    = "q2"
	ColRUT       = "rut"
	ColDate      = "fecha"
	ColName      = "nombre"
	ColStatus    = "estado"
	ColType      = "tipo_documento"
	ColNote      = "nota"
)

// IngestColumns are written when an archive is first ingested, in this order.
var IngestColumns = []string{ColPageIndex, ColImageName, ColImagePath, ColExcluded}

// ExtractColumns are added (idempotently) before field extraction mutates rows.
var ExtractColumns = []string{ColFolio, ColQ1Text, ColQ2Text, ColRUT, ColDate, ColName, ColStatus, ColType, ColNote}

// Exclusion flag literals. Every optional column defaults to the empty
// string except the exclusion flag, which defaults to ExcludedNo.
const (
	ExcludedYes = "SI"
	ExcludedNo  = "NO"
)
