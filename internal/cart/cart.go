// Package cart keeps the per-conversation shopping cart between the
// "add" moment and the checkout. Carts live in memory only; the order
// itself is persisted by the backend at checkout.
package cart

import (
	"sync"
	"time"
)

// Line is one sanitized cart entry.
type Line struct {
	ProductID    int64    `json:"productId"`
	Name         string   `json:"name,omitempty"`
	Quantity     float64  `json:"quantity"`
	DeliveryDate string   `json:"deliveryDate"`
	PriceKg      *float64 `json:"priceKg,omitempty"`
	PricePiece   *float64 `json:"pricePiece,omitempty"`
	PriceEur     *float64 `json:"priceEur,omitempty"`
}

// Store maps conversation ids to cart lines.
type Store struct {
	mu    sync.RWMutex
	carts map[string][]Line
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{carts: map[string][]Line{}, now: time.Now}
}

// Add appends sanitized lines to the conversation's cart and reports
// how many were accepted. Lines with a missing product id or a
// non-positive quantity are dropped; an absent or unparsable delivery
// date falls back to today.
func (s *Store) Add(chatID string, lines []Line) int {
	today := s.now().Format("2006-01-02")
	kept := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 || l.Quantity <= 0 {
			continue
		}
		if !validDate(l.DeliveryDate) {
			l.DeliveryDate = today
		}
		kept = append(kept, l)
	}
	if len(kept) == 0 {
		return 0
	}
	s.mu.Lock()
	s.carts[chatID] = append(s.carts[chatID], kept...)
	s.mu.Unlock()
	return len(kept)
}

// Lines returns a copy of the conversation's cart.
func (s *Store) Lines(chatID string) []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.carts[chatID]
	if len(src) == 0 {
		return nil
	}
	out := make([]Line, len(src))
	copy(out, src)
	return out
}

// Clear empties the conversation's cart.
func (s *Store) Clear(chatID string) {
	s.mu.Lock()
	delete(s.carts, chatID)
	s.mu.Unlock()
}

func validDate(s string) bool {
	if s == "" {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
