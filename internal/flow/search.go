package flow

import (
	"context"
	"encoding/json"
	"strings"

	"pescheria-bot/internal/mcp"
	"pescheria-bot/internal/render"
	"pescheria-bot/internal/textutil"
)

const (
	headingDefault = "Risultati disponibili:"
	headingFresh   = "Oggi fresco disponibile:"
	headingOffers  = "Ecco le offerte disponibili:"
	headingLocal   = "Prodotti locali disponibili:"
)

// searchFilterKeys are the only model-proposed search arguments that
// reach the backend; everything else in the args object is dropped.
var searchFilterKeys = []string{
	"onlyOnOffer", "freshness", "source",
	"originCountry", "originAreaLike", "faoAreaPrefix", "landingPortLike",
}

func (e *Engine) handleSearch(ctx context.Context, userID, userText string, args json.RawMessage) string {
	filters := map[string]any{}
	if len(args) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(args, &raw); err == nil {
			if q := mcp.FirstString(raw, "q", "query", "name", "text"); q != "" {
				filters["q"] = q
			}
			for _, key := range searchFilterKeys {
				if v, ok := raw[key]; ok {
					filters[key] = v
				}
			}
		}
	}

	// What the customer literally asked for wins over what the model
	// forgot to include.
	implied, heading, _ := implicitSearch(userText)
	for k, v := range implied {
		if _, ok := filters[k]; !ok {
			filters[k] = v
		}
	}
	return e.runSearch(ctx, userID, filters, heading)
}

func (e *Engine) runSearch(ctx context.Context, userID string, filters map[string]any, heading string) string {
	if heading == "" {
		heading = headingDefault
	}
	res := e.tools.Call(ctx, mcp.ToolProductsSearch, filters, userID)
	if !res.IsError() {
		e.catalog.Ingest(res.Items())
	}
	return render.ProductsList(res, heading)
}

func (e *Engine) handleByID(ctx context.Context, userID string, args json.RawMessage) string {
	id, ok := productIDArg(args)
	if !ok {
		return whichArticle
	}
	res := e.tools.Call(ctx, mcp.ToolProductsByID, map[string]any{"productId": id}, userID)
	if !res.IsError() {
		if it, found := byIDProduct(res); found {
			e.catalog.Put(it.ID, it.Name)
		}
	}
	return render.ProductDetail(res)
}

// byIDProduct extracts the product from a products_byid response,
// which arrives either as an items list or as a bare entity object.
func byIDProduct(res *mcp.Result) (mcp.Item, bool) {
	if items := res.Items(); len(items) > 0 {
		return items[0], true
	}
	return res.EntityItem()
}

// handleAskQuantity asks the customer how much they want, phrased by
// how the product is priced, and arms the pending reference so the
// bare numeric answer can be matched back.
func (e *Engine) handleAskQuantity(ctx context.Context, chatID, userID string, args json.RawMessage) string {
	name := nameArg(args)
	if id, ok := productIDArg(args); ok {
		res := e.tools.Call(ctx, mcp.ToolProductsByID, map[string]any{"productId": id}, userID)
		if !res.IsError() {
			if it, found := byIDProduct(res); found {
				e.catalog.Put(it.ID, it.Name)
				e.sessions.SetPending(chatID, it.Name)
				display := textutil.CapitalizeWords(it.Name)
				switch {
				case it.PriceKg != nil && it.PricePiece != nil:
					return "Preferisci " + display + " al kg o al pezzo? Quanti ne desideri?"
				case it.PricePiece != nil:
					return "Quanti pezzi di " + display + " desideri?"
				default:
					return "Quanti kg di " + display + " desideri?"
				}
			}
		}
	}
	if name == "" {
		return whichArticle
	}
	if m, ok := e.catalog.ResolveFuzzy(name, 0.5); ok {
		name = m.Name
	}
	e.sessions.SetPending(chatID, name)
	return "Quanti kg di " + textutil.CapitalizeWords(name) + " desideri?"
}

// implicitSearch maps everyday phrasing onto catalog filters so "cosa
// c'è di fresco oggi?" works without the model spelling out a tool
// call.
func implicitSearch(userText string) (map[string]any, string, bool) {
	text := textutil.Normalize(userText)
	switch {
	case containsAny(text, "fresco", "fresche", "freschi", "fresca"):
		return map[string]any{"freshness": "FRESH"}, headingFresh, true
	case containsAny(text, "offerta", "offerte", "promo", "promozione", "sconto", "sconti"):
		return map[string]any{"onlyOnOffer": true}, headingOffers, true
	case containsAny(text, "locale", "locali", "nostrano", "nostrani", "km 0", "chilometro zero"):
		return map[string]any{
			"originCountry":   "IT",
			"faoAreaPrefix":   "37.2",
			"originAreaLike":  "puglia|adriatico|ionio",
			"landingPortLike": "bari|brindisi|taranto|manfredonia|monopoli|molfetta|trani|barletta|gallipoli",
		}, headingLocal, true
	case containsAny(text, "pescato", "selvaggio"):
		return map[string]any{"source": "WILD_CAUGHT"}, headingDefault, true
	}
	return nil, "", false
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func productIDArg(args json.RawMessage) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return 0, false
	}
	for _, key := range []string{"productId", "product_id", "id"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if v, err := n.Int64(); err == nil && v > 0 {
				return v, true
			}
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			var n2 json.Number = json.Number(strings.TrimSpace(s))
			if v, err := n2.Int64(); err == nil && v > 0 {
				return v, true
			}
		}
	}
	return 0, false
}

func nameArg(args json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var raw map[string]any
	if err := json.Unmarshal(args, &raw); err != nil {
		return ""
	}
	return mcp.FirstString(raw, "name", "productName", "product", "q")
}
