// Package orders prepares backend order submissions from cart
// contents and renders the confirmation the customer sees. Every line
// sent to the backend must carry a product id the catalog can vouch
// for; anything unresolvable is dropped rather than guessed at.
package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"pescheria-bot/internal/cart"
	"pescheria-bot/internal/catalog"
	"pescheria-bot/internal/mcp"
	"pescheria-bot/internal/render"
	"pescheria-bot/internal/textutil"

	"log/slog"
)

const (
	confirmedReply = "Vuoi aggiungere altro o passo a ritiro/consegna?"
	fallbackReply  = "Ordine ricevuto. " + confirmedReply
)

// ToolCaller submits tool requests to the backend.
type ToolCaller interface {
	Call(ctx context.Context, tool string, args any, telegramUserID string) *mcp.Result
}

// Service validates order lines and shapes the create request.
type Service struct {
	tools   ToolCaller
	catalog *catalog.Resolver
	logger  *slog.Logger
}

func NewService(tools ToolCaller, c *catalog.Resolver, logger *slog.Logger) *Service {
	return &Service{tools: tools, catalog: c, logger: logger.With("component", "orders")}
}

// CreateArgs is the sanitized payload for an orders_create call.
type CreateArgs struct {
	Items      []cart.Line `json:"items"`
	Note       string      `json:"note,omitempty"`
	InSite     bool        `json:"inSite"`
	BookedSlot string      `json:"bookedSlot,omitempty"`
	Reference  string      `json:"reference"`
}

// Sanitize verifies every line against the catalog. A line with an
// unknown id but a usable name is re-resolved through a backend
// search; lines that still cannot be pinned to a product, or that
// carry no positive quantity, are dropped. Returns false when nothing
// survives.
func (s *Service) Sanitize(ctx context.Context, userID string, lines []cart.Line) ([]cart.Line, bool) {
	kept := make([]cart.Line, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if l.ProductID > 0 {
			if name, ok := s.catalog.ResolveName(l.ProductID); ok {
				l.Name = name
				kept = append(kept, l)
				continue
			}
		}
		resolved, ok := s.resolveByName(ctx, userID, l.Name)
		if !ok {
			s.logger.Warn("dropping unresolvable order line", "productId", l.ProductID, "name", l.Name)
			continue
		}
		l.ProductID = resolved.ID
		l.Name = resolved.Name
		kept = append(kept, l)
	}
	return kept, len(kept) > 0
}

func (s *Service) resolveByName(ctx context.Context, userID, name string) (catalog.Match, bool) {
	if strings.TrimSpace(name) == "" {
		return catalog.Match{}, false
	}
	if m, ok := s.catalog.ResolveFuzzy(name, 0.8); ok {
		return m, true
	}
	res := s.tools.Call(ctx, mcp.ToolProductsSearch, map[string]any{"q": name}, userID)
	if res.IsError() {
		return catalog.Match{}, false
	}
	items := res.Items()
	s.catalog.Ingest(items)
	best, ok := catalog.BestItem(items, name)
	if !ok || best.ID <= 0 {
		return catalog.Match{}, false
	}
	if textutil.Similarity(best.Name, name) < 0.5 {
		return catalog.Match{}, false
	}
	return catalog.Match{ID: best.ID, Name: best.Name}, true
}

// BuildCreateArgs assembles the orders_create payload with a fresh
// client-side reference for traceability.
func (s *Service) BuildCreateArgs(lines []cart.Line, note string, inSite bool, bookedSlot string) CreateArgs {
	return CreateArgs{
		Items:      lines,
		Note:       note,
		InSite:     inSite,
		BookedSlot: bookedSlot,
		Reference:  uuid.NewString(),
	}
}

// Confirmation renders the post-checkout reply. Line names come from
// the backend response when it echoes them, then from the catalog
// cache; when neither helps, a generic confirmation goes out instead
// of a broken one.
func (s *Service) Confirmation(res *mcp.Result, lines []cart.Line) string {
	if res.IsError() {
		return render.BackendError(res)
	}
	parts := make([]string, 0, len(lines))
	// The backend is free to reorder echoed items, so they are keyed
	// by product id rather than position.
	echoed := make(map[int64]string, len(lines))
	for _, it := range res.Items() {
		if it.ID > 0 && strings.TrimSpace(it.Name) != "" {
			echoed[it.ID] = it.Name
		}
	}
	for _, l := range lines {
		name := l.Name
		if n, ok := echoed[l.ProductID]; ok {
			name = n
		}
		if name == "" {
			if cached, ok := s.catalog.ResolveName(l.ProductID); ok {
				name = cached
			}
		}
		if name == "" {
			continue
		}
		unit := "pz"
		if l.PriceKg != nil {
			unit = "kg"
		}
		parts = append(parts, textutil.FormatQuantity(l.Quantity)+" "+unit+" di "+textutil.CapitalizeWords(name))
	}
	if len(parts) == 0 {
		return fallbackReply
	}
	reply := "Ordine registrato: " + strings.Join(parts, ", ") + "."
	if num := orderNumber(res); num != "" {
		reply += " Numero ordine: " + num + "."
	}
	return reply + " " + confirmedReply
}

func orderNumber(res *mcp.Result) string {
	entity := res.Entity()
	return mcp.FirstString(entity, "orderNumber", "orderId", "id", "number")
}
