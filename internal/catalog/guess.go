package catalog

import (
	"strings"

	"pescheria-bot/internal/textutil"
)

// GuessFromText scans a piece of text for a known product mention and
// returns the longest catalog name whose normalized form appears as a
// whole substring. Used when a quantity question or a bare quantity
// answer names the product only in passing.
func (r *Resolver) GuessFromText(text string) (string, bool) {
	haystack := textutil.Normalize(text)
	if haystack == "" {
		return "", false
	}

	// Scan a snapshot so normalization work happens outside the index
	// lock.
	best := ""
	bestLen := 0
	for _, display := range r.Names() {
		needle := textutil.Normalize(display)
		if needle == "" || len(needle) <= bestLen {
			continue
		}
		if strings.Contains(haystack, needle) {
			best = display
			bestLen = len(needle)
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}
