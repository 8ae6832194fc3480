package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"pescheria-bot/internal/mcp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	items []mcp.Item
	err   error
	calls int
}

func (f *fakeSource) FullCatalog(context.Context) ([]mcp.Item, error) {
	f.calls++
	return f.items, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(items ...mcp.Item) *Resolver {
	return New(&fakeSource{items: items}, testLogger(), nil, 0)
}

func TestRefreshBuildsIndex(t *testing.T) {
	r := newResolver(
		mcp.Item{ID: 1, Name: "Orata"},
		mcp.Item{ID: 2, Name: "Cozze di Scoglio"},
		mcp.Item{ID: 0, Name: "scartato"},
		mcp.Item{ID: 3, Name: "  "},
	)
	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, 2, r.Len())

	name, ok := r.ResolveName(1)
	require.True(t, ok)
	assert.Equal(t, "Orata", name)

	id, ok := r.ResolveExact("còzze di scoglio")
	require.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestRefreshSwapsWholesale(t *testing.T) {
	src := &fakeSource{items: []mcp.Item{{ID: 1, Name: "Orata"}}}
	r := New(src, testLogger(), nil, 0)
	require.NoError(t, r.Refresh(context.Background()))

	src.items = []mcp.Item{{ID: 2, Name: "Spigola"}}
	require.NoError(t, r.Refresh(context.Background()))

	_, ok := r.ResolveName(1)
	assert.False(t, ok, "old entries must not survive a rebuild")
	_, ok = r.ResolveName(2)
	assert.True(t, ok)
}

func TestRefreshKeepsIndexOnError(t *testing.T) {
	src := &fakeSource{items: []mcp.Item{{ID: 1, Name: "Orata"}}}
	r := New(src, testLogger(), nil, 0)
	require.NoError(t, r.Refresh(context.Background()))

	src.err = errors.New("backend down")
	require.Error(t, r.Refresh(context.Background()))
	assert.Equal(t, 1, r.Len())
}

func TestIngestMerges(t *testing.T) {
	r := newResolver(mcp.Item{ID: 1, Name: "Orata"})
	require.NoError(t, r.Refresh(context.Background()))

	r.Ingest([]mcp.Item{{ID: 5, Name: "Vongole"}, {ID: 1, Name: "Orata Fresca"}})
	assert.Equal(t, 2, r.Len())

	name, _ := r.ResolveName(5)
	assert.Equal(t, "Vongole", name)
	name, _ = r.ResolveName(1)
	assert.Equal(t, "Orata Fresca", name)
}

func TestIngestIsIdempotent(t *testing.T) {
	r := newResolver()
	r.Ingest([]mcp.Item{{ID: 1, Name: "Orata"}})
	r.Ingest([]mcp.Item{{ID: 1, Name: "Orata"}})
	assert.Equal(t, 1, r.Len())
}

func TestResolveFuzzy(t *testing.T) {
	r := newResolver(
		mcp.Item{ID: 1, Name: "Cozze di Scoglio"},
		mcp.Item{ID: 2, Name: "Vongole Veraci"},
		mcp.Item{ID: 3, Name: "Orata"},
	)
	require.NoError(t, r.Refresh(context.Background()))

	m, ok := r.ResolveFuzzy("orata", 0.5)
	require.True(t, ok)
	assert.Equal(t, int64(3), m.ID)
	assert.Equal(t, 1.0, m.Score)

	m, ok = r.ResolveFuzzy("cozze", 0.5)
	require.True(t, ok)
	assert.Equal(t, int64(1), m.ID)

	_, ok = r.ResolveFuzzy("salmone", 0.5)
	assert.False(t, ok)
}

func TestGuessFromText(t *testing.T) {
	r := newResolver(
		mcp.Item{ID: 1, Name: "Cozze"},
		mcp.Item{ID: 2, Name: "Cozze di Scoglio"},
	)
	require.NoError(t, r.Refresh(context.Background()))

	name, ok := r.GuessFromText("Quanti kg di cozze di scoglio desideri?")
	require.True(t, ok)
	assert.Equal(t, "Cozze di Scoglio", name, "the longest mention wins")

	name, ok = r.GuessFromText("vorrei delle còzze per stasera")
	require.True(t, ok)
	assert.Equal(t, "Cozze", name)

	_, ok = r.GuessFromText("vorrei del salmone")
	assert.False(t, ok)
}

func TestBestItem(t *testing.T) {
	items := []mcp.Item{
		{ID: 1, Name: "Cozze di Scoglio"},
		{ID: 2, Name: "Cozze"},
		{ID: 3, Name: "Vongole"},
	}
	best, ok := BestItem(items, "cozze")
	require.True(t, ok)
	assert.Equal(t, int64(2), best.ID)

	_, ok = BestItem(nil, "cozze")
	assert.False(t, ok)
}
