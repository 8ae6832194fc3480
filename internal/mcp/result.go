package mcp

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Result is the backend's response envelope. Some deployments nest
// the payload under "data", others return items or entity fields at
// the top level; accessors below accept both shapes.
type Result struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`

	root map[string]json.RawMessage
}

func errorResult(message string) *Result {
	return &Result{Status: "error", Message: message}
}

// ParseResult decodes a raw response body.
func ParseResult(raw []byte) (*Result, error) {
	if len(raw) == 0 {
		return &Result{}, nil
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	res := &Result{root: root}
	res.Status = strings.TrimSpace(trimQuotes(root["status"]))
	res.Message = strings.TrimSpace(trimQuotes(root["message"]))
	res.Data = root["data"]
	return res, nil
}

// IsError reports whether the backend flagged the call as failed.
func (r *Result) IsError() bool {
	return strings.EqualFold(r.Status, "error")
}

// Items returns the product list wherever the backend put it:
// data.items, data as a bare array, or top-level items.
func (r *Result) Items() []Item {
	if r == nil {
		return nil
	}
	for _, raw := range [][]byte{r.dataField("items"), r.Data, r.rootField("items")} {
		if len(raw) == 0 {
			continue
		}
		var items []Item
		if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
			return items
		}
	}
	return nil
}

// Entity decodes the single-object payload (product detail, customer
// profile, order response): data when it is an object, else the top
// level. Always non-nil.
func (r *Result) Entity() map[string]any {
	if r == nil {
		return map[string]any{}
	}
	if m := decodeMap(r.Data); len(m) > 0 {
		return m
	}
	out := make(map[string]any, len(r.root))
	for k, v := range r.root {
		var anyVal any
		if err := json.Unmarshal(v, &anyVal); err == nil {
			out[k] = anyVal
		}
	}
	return out
}

// EntityItem decodes the single-object payload as one product entry,
// for endpoints like products_byid that return the product directly
// under "data" (or at the top level) instead of an items list.
func (r *Result) EntityItem() (Item, bool) {
	if r == nil {
		return Item{}, false
	}
	for _, raw := range []map[string]json.RawMessage{decodeRawMap(r.Data), r.root} {
		if raw == nil {
			continue
		}
		if it := itemFromRaw(raw); it.Name != "" {
			return it, true
		}
	}
	return Item{}, false
}

func (r *Result) dataField(key string) json.RawMessage {
	if len(r.Data) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(r.Data, &m); err != nil {
		return nil
	}
	return m[key]
}

func (r *Result) rootField(key string) json.RawMessage {
	if r.root == nil {
		return nil
	}
	return r.root[key]
}

// Item is one product entry. The backend is loose about field names
// and numeric encodings, so decoding goes through raw messages.
type Item struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	PriceEur      *float64 `json:"priceEur,omitempty"`
	PriceKg       *float64 `json:"priceKg,omitempty"`
	PricePiece    *float64 `json:"pricePiece,omitempty"`
	Freshness     string   `json:"freshness,omitempty"`
	Source        string   `json:"source,omitempty"`
	OriginArea    string   `json:"originArea,omitempty"`
	FaoArea       string   `json:"faoArea,omitempty"`
	OriginCountry string   `json:"originCountry,omitempty"`
}

// UnmarshalJSON tolerates alternate key names and string-encoded
// numbers.
func (it *Item) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = itemFromRaw(raw)
	return nil
}

func itemFromRaw(raw map[string]json.RawMessage) Item {
	return Item{
		ID:            readIntRaw(raw, "id", "productId"),
		Name:          readStringRaw(raw, "name", "productName", "title", "label"),
		Description:   readStringRaw(raw, "description"),
		PriceEur:      readFloatRaw(raw, "priceEur", "price"),
		PriceKg:       readFloatRaw(raw, "priceKg"),
		PricePiece:    readFloatRaw(raw, "pricePiece"),
		Freshness:     readStringRaw(raw, "freshness"),
		Source:        readStringRaw(raw, "source"),
		OriginArea:    readStringRaw(raw, "originArea"),
		FaoArea:       readStringRaw(raw, "faoArea"),
		OriginCountry: readStringRaw(raw, "originCountry"),
	}
}

func decodeRawMap(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func readStringRaw(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		val, ok := raw[key]
		if !ok {
			continue
		}
		var decoded string
		if err := json.Unmarshal(val, &decoded); err == nil {
			if decoded = strings.TrimSpace(decoded); decoded != "" {
				return decoded
			}
			continue
		}
		var number float64
		if err := json.Unmarshal(val, &number); err == nil && number != 0 {
			return strconv.FormatFloat(number, 'f', -1, 64)
		}
	}
	return ""
}

func readIntRaw(raw map[string]json.RawMessage, keys ...string) int64 {
	for _, key := range keys {
		val, ok := raw[key]
		if !ok {
			continue
		}
		var decoded int64
		if err := json.Unmarshal(val, &decoded); err == nil {
			return decoded
		}
		var str string
		if err := json.Unmarshal(val, &str); err == nil {
			if parsed, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func readFloatRaw(raw map[string]json.RawMessage, keys ...string) *float64 {
	for _, key := range keys {
		val, ok := raw[key]
		if !ok || string(val) == "null" {
			continue
		}
		var decoded float64
		if err := json.Unmarshal(val, &decoded); err == nil {
			return &decoded
		}
		var str string
		if err := json.Unmarshal(val, &str); err == nil {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				return &parsed
			}
		}
	}
	return nil
}

// FirstString walks keys over a decoded entity and returns the first
// non-blank string-ish value.
func FirstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		val, ok := data[key]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func trimQuotes(raw json.RawMessage) string {
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}
