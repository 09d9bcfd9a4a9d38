package constants

// TypeCode is the numeric "tipo_documento" code extracted from a page.
type TypeCode string

const (
	TypeEgreso   TypeCode = "1"
	TypeTraspaso TypeCode = "2"
	TypeIngreso  TypeCode = "3"
	TypeVoucher  TypeCode = "4"
)

// Taxonomy fallback buckets for documents missing a parseable date or a
// known type code.
const (
	BucketSinFecha = "sin_fecha"
	BucketSinTipo  = "sin_tipo"
)

// TypeKeywords maps each document-type keyword to its code. Extraction picks
// the keyword whose earliest occurrence in the text comes first; ties break
// in this order.
var TypeKeywords = []struct {
	Keyword string
	Code    TypeCode
}{
	{"EGRESO", TypeEgreso},
	{"TRASPASO", TypeTraspaso},
	{"INGRESO", TypeIngreso},
	{"VOUCHER", TypeVoucher},
}

var typeFolders = map[TypeCode]string{
	TypeEgreso:   "egreso",
	TypeTraspaso: "traspaso",
	TypeIngreso:  "ingreso",
	TypeVoucher:  "voucher",
}

var typeLabels = map[TypeCode]string{
	TypeEgreso:   "Egreso",
	TypeTraspaso: "Traspaso",
	TypeIngreso:  "Ingreso",
	TypeVoucher:  "Voucher",
}

// TypeFolder returns the taxonomy directory name for a type code.
// Blank or unknown codes map to the sin_tipo bucket.
func TypeFolder(code string) string {
	if name, ok := typeFolders[TypeCode(code)]; ok {
		return name
	}
	return BucketSinTipo
}

// TypeLabel returns the human-readable label for a type code, or "" for
// blank/unknown codes.
func TypeLabel(code string) string {
	return typeLabels[TypeCode(code)]
}
