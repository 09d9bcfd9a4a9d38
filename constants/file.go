package constants

import "strings"

// Well-known names inside an archive's working directory.
const (
	ImagesDirName   = "imagenes"
	SplitDirName    = "pdfs_separados"
	TaxonomyDirName = "pdfs_estructurados"
	BundlesDirName  = "ENTREGABLES"
	BundlePrefix    = "ENTREGABLE"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDF reports whether the extension names a PDF file.
func IsPDF(ext string) bool {
	return NormalizeExt(ext) == "pdf"
}
