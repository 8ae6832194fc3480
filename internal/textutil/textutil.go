// Package textutil holds the text normalisation and similarity
// primitives shared by the catalog resolver, the renderer and the
// conversation flow. Everything here is total: malformed input yields
// a zero value, never an error.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	stripMarks    = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	nonAlnumRegex = regexp.MustCompile(`[^\pL\pN\s]+`)
	spacesRegex   = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, strips diacritics, collapses every run of
// non-alphanumeric characters to a single space and trims. The result
// is the canonical index key for catalog names.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = nonAlnumRegex.ReplaceAllString(folded, " ")
	folded = spacesRegex.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

// CollapseSpaces trims and squeezes internal whitespace without
// touching case or punctuation. Used when caching display names.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(spacesRegex.ReplaceAllString(s, " "))
}

// CapitalizeWords title-cases every word: first letter upper, rest
// lower. Backend names arrive in arbitrary casing.
func CapitalizeWords(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	parts := strings.Fields(s)
	for i, p := range parts {
		r := []rune(strings.ToLower(p))
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

func tokens(normalized string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(normalized) {
		out[t] = struct{}{}
	}
	return out
}

// Similarity scores two strings in [0,1] using token overlap:
// 1.0 for equal normalized forms, 0.9 when the second string's tokens
// are a subset of the first's, 0.5+0.4*Jaccard for partial overlap,
// 0.4 for a bare substring relation, else 0. The constants are load
// bearing: callers pick thresholds against them, and the subset case
// must always outrank any partial overlap.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}

	ta, tb := tokens(na), tokens(nb)
	if len(tb) > 0 && containsAll(ta, tb) {
		return 0.9
	}

	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union > 0 {
		if j := float64(inter) / float64(union); j > 0 {
			return 0.5 + 0.4*j
		}
	}

	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 0.4
	}
	return 0.0
}

func containsAll(set, subset map[string]struct{}) bool {
	for t := range subset {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
