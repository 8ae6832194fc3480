package cart

import (
	"encoding/json"
	"strconv"
	"strings"
)

// LinesFromArgs decodes the model-proposed arguments of a cart add
// into candidate lines. The model is loose with shapes: a bare array,
// an {items: [...]} wrapper, a single object under "items", or the
// line object itself are all accepted, and each field tolerates
// string-encoded numbers with the quantity arriving as either
// "quantity" or "quantityKg". Invalid lines survive here and are
// dropped by Store.Add.
func LinesFromArgs(args json.RawMessage) []Line {
	if len(args) == 0 {
		return nil
	}
	var rawItems []json.RawMessage
	if err := json.Unmarshal(args, &rawItems); err != nil {
		var envelope struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(args, &envelope); err != nil {
			return nil
		}
		switch {
		case len(envelope.Items) == 0 || string(envelope.Items) == "null":
			// No items key: the object itself is the line.
			rawItems = []json.RawMessage{args}
		default:
			if err := json.Unmarshal(envelope.Items, &rawItems); err != nil {
				rawItems = []json.RawMessage{envelope.Items}
			}
		}
	}
	lines := make([]Line, 0, len(rawItems))
	for _, raw := range rawItems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		l := Line{
			ProductID:    int64(numField(fields, "productId", "product_id", "id")),
			Name:         strField(fields, "name", "productName", "product"),
			DeliveryDate: strField(fields, "deliveryDate", "delivery_date", "date"),
		}
		l.Quantity = numField(fields, "quantity", "quantityKg", "qty")
		for key, dst := range map[string]**float64{
			"priceKg":    &l.PriceKg,
			"pricePiece": &l.PricePiece,
			"priceEur":   &l.PriceEur,
		} {
			if v, ok := optNumField(fields, key); ok {
				p := v
				*dst = &p
			}
		}
		lines = append(lines, l)
	}
	return lines
}

func strField(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func numField(fields map[string]json.RawMessage, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := optNumField(fields, k); ok {
			return v
		}
	}
	return 0
}

func optNumField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
