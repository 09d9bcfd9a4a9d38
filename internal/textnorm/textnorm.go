// Package textnorm holds the pure text heuristics used on OCR output:
// accent/case-insensitive matching and token extraction for folios, RUTs,
// dates, names, and the status/type code keywords. No I/O.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jbarria/archivador/constants"
)

// markerToken is the page marker that gates folio extraction.
const markerToken = "comprobante"

var (
	reDigitRun = regexp.MustCompile(`[0-9]+`)
	reWS       = regexp.MustCompile(`\s+`)

	// RUT patterns in fixed priority order. OCR commonly misreads the dots
	// as commas or colons, so input is punctuation-folded before matching.
	reRutDotted = regexp.MustCompile(`\b\d{1,2}\.\d{3}\.\d{3}-[0-9kK]\b`)
	reRutDashed = regexp.MustCompile(`\b\d{7,8}-[0-9kK]\b`)
	reRutBare   = regexp.MustCompile(`\b\d{7,9}\b`)

	// Date patterns in fixed priority order. Pattern match only, no
	// calendar validation.
	reDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}\s+\d{1,2}\s+\d{4}\b`),
	}

	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize lowercases the text and strips combining marks so containment
// checks are accent-insensitive. Idempotent.
func Normalize(s string) string {
	s = strings.ToLower(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		return out
	}
	return s
}

// HasMarker reports whether the normalized text contains the comprobante
// marker token.
func HasMarker(text string) bool {
	return strings.Contains(Normalize(text), markerToken)
}

// ExtractFolio returns the first isolated 8-digit run in reading order:
// exactly eight digits not adjacent to another digit or a hyphen. Returns
// "" when no such token exists.
func ExtractFolio(text string) string {
	for _, loc := range reDigitRun.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if end-start != 8 {
			continue
		}
		if start > 0 && text[start-1] == '-' {
			continue
		}
		if end < len(text) && text[end] == '-' {
			continue
		}
		return text[start:end]
	}
	return ""
}

// FoldRUTPunctuation maps the separators OCR tends to corrupt (',' and ':')
// back to '.'.
func FoldRUTPunctuation(s string) string {
	return strings.NewReplacer(",", ".", ":", ".").Replace(s)
}

// ExtractRut returns the first RUT-like token, trying the dotted, dashed and
// bare-digit patterns in that fixed order, uppercased. "" when none match.
func ExtractRut(text string) string {
	if text == "" {
		return ""
	}
	folded := FoldRUTPunctuation(text)
	for _, re := range []*regexp.Regexp{reRutDotted, reRutDashed, reRutBare} {
		if m := re.FindString(folded); m != "" {
			return strings.ToUpper(m)
		}
	}
	return ""
}

// ExtractName returns the whitespace-collapsed prefix of text preceding the
// located RUT token. When the literal token is not present (punctuation
// often differs between the extracted RUT and the raw region text), a
// punctuation-stripped scan is tried. "" when the RUT cannot be located or
// sits at position 0.
func ExtractName(text, rut string) string {
	if text == "" || rut == "" {
		return ""
	}
	pos := strings.Index(strings.ToUpper(text), strings.ToUpper(rut))
	if pos == -1 {
		pos = findStripped(text, rut)
	}
	if pos <= 0 {
		return ""
	}
	return CollapseWS(text[:pos])
}

// findStripped locates rut within text ignoring '.' and '-' on both sides,
// returning the index in the original text, or -1.
func findStripped(text, rut string) int {
	strip := func(s string) (string, []int) {
		var b strings.Builder
		idx := make([]int, 0, len(s))
		for i := 0; i < len(s); i++ {
			if s[i] == '.' || s[i] == '-' {
				continue
			}
			b.WriteByte(s[i])
			idx = append(idx, i)
		}
		return b.String(), idx
	}
	cleanRut, _ := strip(strings.ToUpper(rut))
	if cleanRut == "" {
		return -1
	}
	cleanText, idx := strip(strings.ToUpper(text))
	p := strings.Index(cleanText, cleanRut)
	if p == -1 {
		return -1
	}
	return idx[p]
}

// ExtractDate returns the first date-like token, trying the slash, dash, dot
// and space-separated day/month/year patterns in that fixed order.
func ExtractDate(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range reDatePatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// ExtractStatusCode returns the code of the first status keyword found,
// checking the keywords in table order (not by earliest position in the
// text). "" when none is present.
func ExtractStatusCode(text string) string {
	upper := strings.ToUpper(text)
	for _, entry := range constants.StatusKeywords {
		if strings.Contains(upper, entry.Keyword) {
			return string(entry.Code)
		}
	}
	return ""
}

// ExtractTypeCode returns the code of the type keyword whose earliest
// occurrence in the text comes first; ties break in table order. "" when no
// keyword is present.
func ExtractTypeCode(text string) string {
	upper := strings.ToUpper(text)
	best := -1
	var code string
	for _, entry := range constants.TypeKeywords {
		pos := strings.Index(upper, entry.Keyword)
		if pos == -1 {
			continue
		}
		if best == -1 || pos < best {
			best = pos
			code = string(entry.Code)
		}
	}
	return code
}

// CollapseWS folds runs of whitespace to single spaces and trims the ends.
func CollapseWS(s string) string {
	return strings.TrimSpace(reWS.ReplaceAllString(s, " "))
}
