// Package render turns backend tool results into the Italian replies
// the customer reads. Rendering never fails: a malformed result falls
// back to a generic sentence instead of an error.
package render

import (
	"fmt"
	"strings"

	"pescheria-bot/internal/mcp"
	"pescheria-bot/internal/textutil"
)

const (
	emptySearchReply  = "Al momento non risultano articoli disponibili per la ricerca richiesta."
	noDetailReply     = "Dettaglio prodotto non disponibile."
	backendErrPrefix  = "Errore dal gestionale: "
	genericBackendErr = "errore imprevisto"
)

// BackendError renders an error envelope.
func BackendError(res *mcp.Result) string {
	msg := strings.TrimSpace(res.Message)
	if msg == "" {
		msg = genericBackendErr
	}
	return backendErrPrefix + msg
}

// ProductsList renders a search result as a bulleted list under the
// given heading.
func ProductsList(res *mcp.Result, heading string) string {
	if res.IsError() {
		return BackendError(res)
	}
	items := res.Items()
	if len(items) == 0 {
		return emptySearchReply
	}
	var b strings.Builder
	b.WriteString(heading)
	for _, it := range items {
		b.WriteString("\n")
		b.WriteString(productLine(it))
	}
	return b.String()
}

// ProductDetail renders a single product lookup.
func ProductDetail(res *mcp.Result) string {
	if res.IsError() {
		return BackendError(res)
	}
	items := res.Items()
	if len(items) == 0 {
		// byid responses may carry the product as the data object
		// rather than a one-element list.
		entity := res.Entity()
		name := mcp.FirstString(entity, "name", "productName", "title")
		if name == "" {
			return noDetailReply
		}
		return "Dettaglio prodotto: " + textutil.CapitalizeWords(name) + "."
	}
	return productLine(items[0])
}

// CustomerProfile renders the outcome of a profile lookup or update.
func CustomerProfile(res *mcp.Result) string {
	if res.IsError() {
		return BackendError(res)
	}
	entity := res.Entity()
	name := mcp.FirstString(entity, "name", "fullName", "firstName")
	phone := mcp.FirstString(entity, "phone", "phoneNumber", "mobile")
	parts := []string{"Profilo cliente aggiornato."}
	if name != "" {
		parts = append(parts, "Nome: "+textutil.CapitalizeWords(name)+".")
	}
	if phone != "" {
		parts = append(parts, "Telefono: "+phone+".")
	}
	return strings.Join(parts, " ")
}

func productLine(it mcp.Item) string {
	segments := []string{"• " + textutil.CapitalizeWords(it.Name)}
	if desc := strings.TrimSpace(it.Description); desc != "" {
		segments = append(segments, desc)
	}
	if price := priceSegment(it); price != "" {
		segments = append(segments, price)
	}
	if traits := traitsSegment(it); traits != "" {
		segments = append(segments, traits)
	}
	if origin := originSegment(it); origin != "" {
		segments = append(segments, origin)
	}
	return strings.Join(segments, " — ")
}

func priceSegment(it mcp.Item) string {
	switch {
	case it.PriceKg != nil:
		return "€ " + Euro(*it.PriceKg) + "/kg"
	case it.PricePiece != nil:
		return "€ " + Euro(*it.PricePiece) + "/pz"
	case it.PriceEur != nil:
		return "€ " + Euro(*it.PriceEur)
	}
	return ""
}

func traitsSegment(it mcp.Item) string {
	var traits []string
	switch strings.ToUpper(strings.TrimSpace(it.Freshness)) {
	case "FRESH":
		traits = append(traits, "fresco")
	case "FROZEN":
		traits = append(traits, "surgelato")
	}
	switch strings.ToUpper(strings.TrimSpace(it.Source)) {
	case "WILD_CAUGHT":
		traits = append(traits, "pescato")
	case "FARMED":
		traits = append(traits, "allevato")
	}
	if len(traits) == 0 {
		return ""
	}
	return "(" + strings.Join(traits, ", ") + ")"
}

func originSegment(it mcp.Item) string {
	var parts []string
	if area := strings.TrimSpace(it.OriginArea); area != "" {
		parts = append(parts, textutil.CapitalizeWords(area))
	}
	if fao := strings.TrimSpace(it.FaoArea); fao != "" {
		parts = append(parts, "FAO "+fao)
	}
	if country := strings.TrimSpace(it.OriginCountry); country != "" {
		parts = append(parts, strings.ToUpper(country))
	}
	return strings.Join(parts, ", ")
}

// Euro formats an amount with the Italian decimal comma and two
// digits.
func Euro(v float64) string {
	return strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
}
