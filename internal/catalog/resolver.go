// Package catalog maintains the in-memory product index the flow uses
// to turn free-text names into backend identifiers. Two maps are kept
// in lockstep: id→display name and normalized name→id. A scheduled
// rebuild replaces both wholesale (built aside, then swapped, so
// readers never see a half-built index); any tool response that
// happens to carry product items is merged in between rebuilds.
package catalog

import (
	"context"
	"sync"
	"time"

	"pescheria-bot/internal/mcp"
	"pescheria-bot/internal/metrics"
	"pescheria-bot/internal/textutil"

	"log/slog"
)

const defaultInterval = time.Hour

// Source provides the unfiltered catalog listing.
type Source interface {
	FullCatalog(ctx context.Context) ([]mcp.Item, error)
}

// Match is a successful fuzzy resolution.
type Match struct {
	ID    int64
	Name  string
	Score float64
}

// Resolver holds the live catalog index.
type Resolver struct {
	source   Source
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration

	mu     sync.RWMutex
	byID   map[int64]string
	byName map[string]int64
}

// New creates an empty resolver; call Refresh or Run to populate it.
func New(source Source, logger *slog.Logger, m *metrics.Metrics, interval time.Duration) *Resolver {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Resolver{
		source:   source,
		logger:   logger.With("component", "catalog"),
		metrics:  m,
		interval: interval,
		byID:     map[int64]string{},
		byName:   map[string]int64{},
	}
}

// Run refreshes immediately and then on every tick until the context
// is cancelled. Refresh failures are logged and retried on the next
// tick; the previous index stays in place.
func (r *Resolver) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Error("initial catalog refresh failed", "error", err)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}

// Refresh rebuilds both indices from an unfiltered backend search and
// swaps them in atomically.
func (r *Resolver) Refresh(ctx context.Context) error {
	items, err := r.source.FullCatalog(ctx)
	if err != nil {
		if r.metrics != nil {
			r.metrics.CatalogRefresh.WithLabelValues("error").Inc()
		}
		return err
	}

	byID := make(map[int64]string, len(items))
	byName := make(map[string]int64, len(items))
	for _, it := range items {
		addEntry(byID, byName, it.ID, it.Name)
	}

	r.mu.Lock()
	r.byID = byID
	r.byName = byName
	size := len(byID)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.CatalogRefresh.WithLabelValues("ok").Inc()
		r.metrics.CatalogEntries.Set(float64(size))
	}
	r.logger.Info("catalog index rebuilt", "entries", size)
	return nil
}

// Ingest merges items from any tool response into the live index
// without waiting for the next scheduled rebuild.
func (r *Resolver) Ingest(items []mcp.Item) {
	if len(items) == 0 {
		return
	}
	r.mu.Lock()
	for _, it := range items {
		addEntry(r.byID, r.byName, it.ID, it.Name)
	}
	size := len(r.byID)
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.CatalogEntries.Set(float64(size))
	}
}

// Put caches one id/name pair.
func (r *Resolver) Put(id int64, name string) {
	r.Ingest([]mcp.Item{{ID: id, Name: name}})
}

func addEntry(byID map[int64]string, byName map[string]int64, id int64, name string) {
	display := textutil.CollapseSpaces(name)
	if id <= 0 || display == "" {
		return
	}
	key := textutil.Normalize(display)
	if key == "" {
		return
	}
	byID[id] = display
	byName[key] = id
}

// ResolveName returns the cached display name for an id.
func (r *Resolver) ResolveName(id int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byID[id]
	return name, ok
}

// ResolveExact looks up a name by its normalized form.
func (r *Resolver) ResolveExact(name string) (int64, bool) {
	key := textutil.Normalize(name)
	if key == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[key]
	return id, ok
}

// ResolveFuzzy finds the best-scoring entry for a free-text name. An
// exact normalized hit returns immediately with score 1.0; a scan hit
// at 0.999 or above is treated the same way. The best match is only
// returned when it reaches minScore.
func (r *Resolver) ResolveFuzzy(name string, minScore float64) (Match, bool) {
	if id, ok := r.ResolveExact(name); ok {
		display, _ := r.ResolveName(id)
		return Match{ID: id, Name: display, Score: 1.0}, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	best := Match{Score: -1}
	for id, display := range r.byID {
		s := textutil.Similarity(display, name)
		if s > best.Score {
			best = Match{ID: id, Name: display, Score: s}
		}
		if s >= 0.999 {
			return best, true
		}
	}
	if best.Score >= minScore && best.ID > 0 {
		return best, true
	}
	return Match{}, false
}

// Names snapshots every display name, used by the flow to spot a
// product mention inside model text.
func (r *Resolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byID))
	for _, name := range r.byID {
		out = append(out, name)
	}
	return out
}

// Len reports the number of indexed products.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// BestItem picks the highest-similarity item for a desired name from
// a backend result list; a 0.999 score short-circuits the scan.
func BestItem(items []mcp.Item, desired string) (mcp.Item, bool) {
	bestScore := -1.0
	var best mcp.Item
	found := false
	for _, it := range items {
		if textutil.CollapseSpaces(it.Name) == "" {
			continue
		}
		s := textutil.Similarity(it.Name, desired)
		if s > bestScore {
			bestScore = s
			best = it
			found = true
		}
		if s >= 0.999 {
			return it, true
		}
	}
	return best, found
}
