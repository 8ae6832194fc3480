// Package action turns raw model output into a typed Action. The
// model is free-form: it may answer with plain prose, a bare JSON
// object, JSON inside a fenced code block, or JSON buried mid
// sentence. Extraction never fails — when nothing parses the caller
// gets ok=false and treats the text as a free-form reply.
package action

import (
	"encoding/json"
	"strings"
)

// Tool is the closed set of operations the flow can dispatch on.
// Unknown tool tags decode to ToolUnknown so the switch in the flow
// stays exhaustive.
type Tool string

const (
	ToolGreeting       Tool = "greeting"
	ToolHelp           Tool = "help"
	ToolProductsSearch Tool = "products_search"
	ToolProductsByID   Tool = "products_byid"
	ToolCustomersMe    Tool = "customers_me"
	ToolOrdersCreate   Tool = "orders_create"
	ToolCartAdd        Tool = "cart_add"
	ToolCartView       Tool = "cart_view"
	ToolCartClear      Tool = "cart_clear"
	ToolCartCheckout   Tool = "cart_checkout"
	ToolAskQuantity    Tool = "ask_quantity"
	ToolUnknown        Tool = "unknown"
)

// ParseTool maps a raw tool tag to the closed variant set. Aliases
// seen in model output are folded into their canonical tool.
func ParseTool(raw string) Tool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "greeting", "hello", "hi":
		return ToolGreeting
	case "help":
		return ToolHelp
	case "products_search":
		return ToolProductsSearch
	case "products_byid", "product_by_id":
		return ToolProductsByID
	case "customers_me":
		return ToolCustomersMe
	case "orders_create":
		return ToolOrdersCreate
	case "cart_add":
		return ToolCartAdd
	case "cart_view":
		return ToolCartView
	case "cart_clear":
		return ToolCartClear
	case "cart_checkout":
		return ToolCartCheckout
	case "ask_quantity":
		return ToolAskQuantity
	default:
		return ToolUnknown
	}
}

// Action is one parsed model intent, valid for a single chat turn.
type Action struct {
	Tool    Tool
	RawTool string
	Args    json.RawMessage
}

// Both "args" and "arguments" appear in model output; either is
// accepted.
type actionEnvelope struct {
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
	Arguments json.RawMessage `json:"arguments"`
}

// Extract pulls a tool action out of raw model output. Strategies in
// order, first success wins: fenced code block interior, a
// brace-balanced object whose first key is "tool", the whole trimmed
// text. Returns ok=false when none of them yields a tool tag.
func Extract(raw string) (Action, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Action{}, false
	}

	if inner, ok := unfence(s); ok {
		if act, ok := decode(inner); ok {
			return act, true
		}
	}
	if candidate := scanToolObject(s); candidate != "" {
		if act, ok := decode(candidate); ok {
			return act, true
		}
	}
	return decode(s)
}

func decode(s string) (Action, bool) {
	var env actionEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return Action{}, false
	}
	if strings.TrimSpace(env.Tool) == "" {
		return Action{}, false
	}
	args := env.Args
	if len(args) == 0 {
		args = env.Arguments
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return Action{Tool: ParseTool(env.Tool), RawTool: env.Tool, Args: args}, true
}

// unfence extracts the interior of a ```…``` block, dropping an
// optional language hint on the opening line.
func unfence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	last := strings.LastIndex(s, "```")
	if last <= 0 {
		return "", false
	}
	inner := strings.TrimSpace(s[3:last])
	if strings.HasPrefix(strings.ToLower(inner), "json") {
		if idx := strings.IndexByte(inner, '\n'); idx >= 0 {
			inner = inner[idx+1:]
		} else {
			inner = strings.TrimSpace(inner[4:])
		}
	}
	return strings.TrimSpace(inner), true
}

// scanToolObject finds the first brace-balanced JSON object whose
// first key is "tool". It walks the text byte by byte tracking string
// and escape state, so braces inside string values cannot truncate
// the object early.
func scanToolObject(s string) string {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		if !hasToolFirstKey(s[start:]) {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case !inString && c == '{':
				depth++
			case !inString && c == '}':
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

func hasToolFirstKey(s string) bool {
	rest := strings.TrimSpace(strings.TrimPrefix(s, "{"))
	return strings.HasPrefix(rest, `"tool"`)
}
