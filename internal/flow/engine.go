// Package flow turns one conversation turn into the reply the
// customer receives. The model's text is treated as a proposal: when
// it embeds a tool call the engine validates and executes it, when it
// asks a quantity question the engine arms the pending reference, and
// when nothing actionable is found the model text goes out as-is.
// Processing never returns an error to the caller; any panic or
// failure degrades to the raw model text.
package flow

import (
	"context"
	"encoding/json"
	"strings"

	"pescheria-bot/internal/action"
	"pescheria-bot/internal/cart"
	"pescheria-bot/internal/catalog"
	"pescheria-bot/internal/mcp"
	"pescheria-bot/internal/metrics"
	"pescheria-bot/internal/orders"
	"pescheria-bot/internal/render"
	"pescheria-bot/internal/session"
	"pescheria-bot/internal/textutil"

	"log/slog"
)

const (
	greetingReply = "Ciao! Sono l'assistente della pescheria. Posso mostrarti i prodotti disponibili, le offerte del giorno e aiutarti a fare un ordine."
	helpReply     = "Puoi chiedermi cosa abbiamo di fresco, cercare un prodotto per nome, aggiungere articoli al carrello e confermare l'ordine. Ad esempio: \"avete le cozze?\" oppure \"vorrei 2 kg di orate\"."
	whichArticle  = "A quale prodotto ti riferisci? Dimmi il nome dell'articolo."
	cartQueued    = "Ho aggiunto gli articoli al carrello. Vuoi confermare l'ordine?"
	cartEmpty     = "Il carrello è vuoto."
	cartCleared   = "Ho svuotato il carrello."
	orderNote     = "Ordine via Telegram"
)

// ToolCaller submits tool requests to the backend.
type ToolCaller interface {
	Call(ctx context.Context, tool string, args any, telegramUserID string) *mcp.Result
}

// Engine routes one turn through the quantity flow and the tool
// dispatch.
type Engine struct {
	tools    ToolCaller
	catalog  *catalog.Resolver
	carts    *cart.Store
	sessions *session.Store
	orders   *orders.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(tools ToolCaller, c *catalog.Resolver, carts *cart.Store, sessions *session.Store, ord *orders.Service, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		tools:    tools,
		catalog:  c,
		carts:    carts,
		sessions: sessions,
		orders:   ord,
		metrics:  m,
		logger:   logger.With("component", "flow"),
	}
}

// Process handles one turn. userText is what the customer wrote,
// modelReply is the assistant text produced for it. The returned
// string is the final reply; on any internal failure the model reply
// passes through unchanged.
func (e *Engine) Process(ctx context.Context, chatID, userID, userText, modelReply string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("turn processing panicked", "chatId", chatID, "panic", r)
			if e.metrics != nil {
				e.metrics.Errors.WithLabelValues("flow").Inc()
			}
			reply = modelReply
		}
	}()

	unlock := e.sessions.Lock(chatID)
	defer unlock()

	// A quantity question from the assistant arms the pending
	// reference so a bare "1,5" in the next turn lands on the right
	// product.
	if isQuantityQuestion(modelReply) {
		e.turn("quantity_question")
		if name, ok := e.catalog.GuessFromText(modelReply); ok {
			e.sessions.SetPending(chatID, name)
		}
		return modelReply
	}

	if qty, ok := textutil.ParseQuantityKg(userText); ok {
		e.turn("quantity_answer")
		return e.handleQuantityAnswer(ctx, chatID, userID, userText, modelReply, qty)
	}

	if act, ok := action.Extract(modelReply); ok {
		e.turn("tool")
		return e.dispatch(ctx, chatID, userID, userText, modelReply, act)
	}

	if filters, heading, ok := implicitSearch(userText); ok {
		e.turn("implicit")
		return e.runSearch(ctx, userID, filters, heading)
	}

	e.turn("raw")
	return modelReply
}

func (e *Engine) dispatch(ctx context.Context, chatID, userID, userText, modelReply string, act action.Action) string {
	switch act.Tool {
	case action.ToolGreeting:
		return e.reply("greeting", greetingReply)
	case action.ToolHelp:
		return e.reply("help", helpReply)
	case action.ToolProductsSearch:
		return e.reply("products_search", e.handleSearch(ctx, userID, userText, act.Args))
	case action.ToolProductsByID:
		return e.reply("products_byid", e.handleByID(ctx, userID, act.Args))
	case action.ToolAskQuantity:
		return e.reply("ask_quantity", e.handleAskQuantity(ctx, chatID, userID, act.Args))
	case action.ToolCustomersMe:
		return e.reply("customers_me", e.handleCustomersMe(ctx, userID, act.Args))
	case action.ToolOrdersCreate, action.ToolCartAdd:
		// Direct order creation is routed through the cart so the
		// customer always confirms before the backend sees an order.
		return e.reply("cart_add", e.handleCartAdd(ctx, chatID, userID, act.Args))
	case action.ToolCartView:
		return e.reply("cart_view", e.renderCart(chatID))
	case action.ToolCartClear:
		e.carts.Clear(chatID)
		return e.reply("cart_clear", cartCleared)
	case action.ToolCartCheckout:
		return e.reply("cart_checkout", e.handleCheckout(ctx, chatID, userID, act.Args))
	default:
		e.logger.Debug("unrecognized tool passed through", "tool", act.RawTool)
		return e.reply("raw_tool", modelReply)
	}
}

// handleQuantityAnswer completes a pending add: the customer sent a
// quantity, the product comes from the pending reference or from the
// message itself.
func (e *Engine) handleQuantityAnswer(ctx context.Context, chatID, userID, userText, modelReply string, qty float64) string {
	subject, ok := e.sessions.TakePending(chatID)
	if !ok {
		subject, ok = e.catalog.GuessFromText(userText)
	}
	if !ok {
		// "voglio 2 orate": whatever is left once quantity words and
		// filler go is the product name to search for.
		subject, ok = residualSubject(userText)
	}
	if !ok {
		return e.reply("quantity_no_subject", whichArticle)
	}

	res := e.tools.Call(ctx, mcp.ToolProductsSearch, map[string]any{"q": subject}, userID)
	if res.IsError() {
		return e.reply("quantity_backend_error", render.BackendError(res))
	}
	items := res.Items()
	e.catalog.Ingest(items)
	best, found := catalog.BestItem(items, subject)
	if !found || best.ID <= 0 {
		return e.reply("quantity_not_found", notFoundReply(subject))
	}

	line := cart.Line{
		ProductID:  best.ID,
		Name:       best.Name,
		Quantity:   qty,
		PriceKg:    best.PriceKg,
		PricePiece: best.PricePiece,
		PriceEur:   best.PriceEur,
	}
	if e.carts.Add(chatID, []cart.Line{line}) == 0 {
		return e.reply("quantity_rejected", modelReply)
	}
	unit := "pz"
	if best.PriceKg != nil {
		unit = "kg"
	}
	return e.reply("quantity_added",
		"Ho aggiunto "+textutil.FormatQuantity(qty)+" "+unit+" di "+textutil.CapitalizeWords(best.Name)+" al carrello. Vuoi confermare l'ordine?")
}

func (e *Engine) handleCartAdd(ctx context.Context, chatID, userID string, args json.RawMessage) string {
	lines := cart.LinesFromArgs(args)
	resolved, ok := e.orders.Sanitize(ctx, userID, lines)
	if !ok {
		return whichArticle
	}
	if e.carts.Add(chatID, resolved) == 0 {
		return whichArticle
	}
	return cartQueued
}

func (e *Engine) renderCart(chatID string) string {
	lines := e.carts.Lines(chatID)
	if len(lines) == 0 {
		return cartEmpty
	}
	var b strings.Builder
	b.WriteString("Nel carrello:")
	for _, l := range lines {
		name := l.Name
		if name == "" {
			if cached, ok := e.catalog.ResolveName(l.ProductID); ok {
				name = cached
			}
		}
		unit := "pz"
		if l.PriceKg != nil {
			unit = "kg"
		}
		b.WriteString("\n• " + textutil.FormatQuantity(l.Quantity) + " " + unit + " di " + textutil.CapitalizeWords(name))
	}
	b.WriteString("\nVuoi confermare l'ordine?")
	return b.String()
}

func (e *Engine) handleCheckout(ctx context.Context, chatID, userID string, args json.RawMessage) string {
	lines := e.carts.Lines(chatID)
	if len(lines) == 0 {
		return cartEmpty
	}
	sanitized, ok := e.orders.Sanitize(ctx, userID, lines)
	if !ok {
		return cartEmpty
	}

	var opts struct {
		BookedSlot string `json:"bookedSlot"`
		Note       string `json:"note"`
	}
	if len(args) > 0 {
		_ = json.Unmarshal(args, &opts)
	}
	note := opts.Note
	if note == "" {
		note = orderNote
	}

	payload := e.orders.BuildCreateArgs(sanitized, note, true, opts.BookedSlot)
	res := e.tools.Call(ctx, mcp.ToolOrdersCreate, payload, userID)
	if res.IsError() {
		// Cart survives a failed submission so the customer can retry.
		return render.BackendError(res)
	}
	e.carts.Clear(chatID)
	return e.orders.Confirmation(res, sanitized)
}

func (e *Engine) handleCustomersMe(ctx context.Context, userID string, args json.RawMessage) string {
	var payload any
	if len(args) > 0 {
		payload = args
	} else {
		payload = map[string]any{}
	}
	res := e.tools.Call(ctx, mcp.ToolCustomersMe, payload, userID)
	return render.CustomerProfile(res)
}

func (e *Engine) reply(category, text string) string {
	if e.metrics != nil {
		e.metrics.Replies.WithLabelValues(category).Inc()
	}
	return text
}

func (e *Engine) turn(branch string) {
	if e.metrics != nil {
		e.metrics.IncomingTurns.WithLabelValues(branch).Inc()
	}
}

func isQuantityQuestion(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "quanti kg") || strings.Contains(lowered, "quanti pezzi")
}

var quantityNoise = map[string]struct{}{
	"kg": {}, "chilo": {}, "chili": {}, "kilo": {}, "kili": {},
	"etto": {}, "etti": {}, "hg": {}, "g": {}, "gr": {}, "grammi": {},
	"mezzo": {}, "mezza": {}, "mezzetto": {},
	"voglio": {}, "vorrei": {}, "prendo": {}, "prendi": {}, "dammi": {},
	"ordina": {}, "ordino": {}, "metti": {}, "aggiungi": {},
	"di": {}, "de": {}, "ne": {}, "un": {}, "uno": {}, "una": {},
	"per": {}, "favore": {}, "circa": {}, "grazie": {},
}

// residualSubject strips quantity expressions and filler words from
// the user's message; whatever remains is taken as the product name.
func residualSubject(userText string) (string, bool) {
	var kept []string
	for _, tok := range strings.Fields(textutil.Normalize(userText)) {
		if _, noise := quantityNoise[tok]; noise {
			continue
		}
		if strings.ContainsAny(tok, "0123456789") {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}

func notFoundReply(name string) string {
	return "Non ho trovato \"" + textutil.CollapseSpaces(name) + "\" tra i nostri prodotti. Vuoi che cerchi qualcos'altro?"
}
