package textutil

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	quantityStripRegex = regexp.MustCompile(`[^\pL\pN\s.,/-]+`)
	fractionRegex      = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	numberRegex        = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

	// Italian quantity words rewritten to their numeric form before
	// number extraction. Order matters: "un mezzo" only survives when
	// "mezzo" itself did not already match.
	quantityWords = []struct{ from, to string }{
		{"mezzo", "0,5"},
		{"mezza", "0,5"},
		{"un chilo", "1"},
		{"uno chilo", "1"},
		{"un kilo", "1"},
		{"uno kilo", "1"},
		{"un mezzo", "0,5"},
		{"mezzetto", "0,5"},
	}
)

// ParseQuantityKg extracts a weight in kilograms from free-form
// Italian text: plain numbers with comma or dot decimals, a/b
// fractions, quantity words ("mezzo kg") and gram/hectogram units
// converted to kg. A kilogram unit word wins over the bare "g"
// suffix, so "1,5 kg" is 1.5 rather than a gram reading. Returns
// false for missing, zero or negative quantities; never fails.
func ParseQuantityKg(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	t := strings.ToLower(strings.TrimSpace(s))
	t = quantityStripRegex.ReplaceAllString(t, " ")
	t = spacesRegex.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)

	for _, w := range quantityWords {
		t = strings.ReplaceAll(t, w.from, w.to)
	}

	if m := fractionRegex.FindStringSubmatchIndex(t); m != nil {
		num, errN := strconv.ParseFloat(t[m[2]:m[3]], 64)
		den, errD := strconv.ParseFloat(t[m[4]:m[5]], 64)
		if errN == nil && errD == nil && den != 0 {
			val := roundTo3(num / den)
			repl := strings.Replace(strconv.FormatFloat(val, 'f', -1, 64), ".", ",", 1)
			t = t[:m[0]] + repl + t[m[1]:]
		}
	}

	numStr := numberRegex.FindString(t)
	if numStr == "" {
		return 0, false
	}
	qty, err := strconv.ParseFloat(strings.Replace(numStr, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}

	hasKg, hasEtti, hasGrammi := detectUnits(t)

	switch {
	case hasEtti:
		qty *= 0.1
	case hasGrammi && !hasKg:
		qty /= 1000
	}

	qty = roundTo3(qty)
	if qty <= 0 {
		return 0, false
	}
	return qty, true
}

// FormatQuantity renders a kg quantity with the Italian comma decimal
// separator and no trailing zeros.
func FormatQuantity(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

// detectUnits scans whole tokens so unit letters inside ordinary
// words ("voglio", "grandi") cannot trigger a conversion. A glued
// form like "500g" or "1,5kg" still counts: leading digits and
// separators are stripped before the comparison.
func detectUnits(t string) (hasKg, hasEtti, hasGrammi bool) {
	for _, tok := range strings.Fields(t) {
		switch strings.TrimLeft(tok, "0123456789.,/-") {
		case "kg", "chilo", "chili", "kilo", "kili":
			hasKg = true
		case "etto", "etti", "hg":
			hasEtti = true
		case "g", "gr", "grammo", "grammi":
			hasGrammi = true
		}
	}
	return
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
