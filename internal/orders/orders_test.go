package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"pescheria-bot/internal/cart"
	"pescheria-bot/internal/catalog"
	"pescheria-bot/internal/mcp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTools struct {
	responses map[string]string
	calls     []string
}

func (f *fakeTools) Call(_ context.Context, tool string, _ any, _ string) *mcp.Result {
	f.calls = append(f.calls, tool)
	raw, ok := f.responses[tool]
	if !ok {
		raw = `{"status":"error","message":"tool non disponibile"}`
	}
	res, err := mcp.ParseResult([]byte(raw))
	if err != nil {
		panic(err)
	}
	return res
}

type fakeCatalog struct {
	items []mcp.Item
}

func (f *fakeCatalog) FullCatalog(context.Context) ([]mcp.Item, error) {
	return f.items, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, tools *fakeTools, items ...mcp.Item) (*Service, *catalog.Resolver) {
	t.Helper()
	resolver := catalog.New(&fakeCatalog{items: items}, testLogger(), nil, 0)
	require.NoError(t, resolver.Refresh(context.Background()))
	return NewService(tools, resolver, testLogger()), resolver
}

func TestSanitizeKeepsKnownIDs(t *testing.T) {
	svc, _ := newService(t, &fakeTools{}, mcp.Item{ID: 1, Name: "Orata"})

	kept, ok := svc.Sanitize(context.Background(), "u1", []cart.Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 1, Quantity: 0},
		{ProductID: 1, Quantity: -3},
	})
	require.True(t, ok)
	require.Len(t, kept, 1)
	assert.Equal(t, "Orata", kept[0].Name)
}

func TestSanitizeResolvesByName(t *testing.T) {
	svc, _ := newService(t, &fakeTools{}, mcp.Item{ID: 2, Name: "Cozze di Scoglio"})

	kept, ok := svc.Sanitize(context.Background(), "u1", []cart.Line{
		{ProductID: 0, Name: "cozze", Quantity: 1.5},
	})
	require.True(t, ok)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(2), kept[0].ProductID)
	assert.Equal(t, "Cozze di Scoglio", kept[0].Name)
}

func TestSanitizeFallsBackToBackendSearch(t *testing.T) {
	tools := &fakeTools{responses: map[string]string{
		mcp.ToolProductsSearch: `{"status":"ok","data":{"items":[{"id":9,"name":"Gamberi Rossi"}]}}`,
	}}
	svc, resolver := newService(t, tools)

	kept, ok := svc.Sanitize(context.Background(), "u1", []cart.Line{
		{ProductID: 0, Name: "gamberi", Quantity: 1},
	})
	require.True(t, ok)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(9), kept[0].ProductID)
	assert.Equal(t, []string{mcp.ToolProductsSearch}, tools.calls)

	// The search result was merged into the index.
	_, found := resolver.ResolveName(9)
	assert.True(t, found)
}

func TestSanitizeDropsUnresolvable(t *testing.T) {
	tools := &fakeTools{responses: map[string]string{
		mcp.ToolProductsSearch: `{"status":"ok","data":{"items":[]}}`,
	}}
	svc, _ := newService(t, tools)

	_, ok := svc.Sanitize(context.Background(), "u1", []cart.Line{
		{ProductID: 0, Name: "unicorno di mare", Quantity: 1},
		{ProductID: 77, Quantity: 1},
	})
	assert.False(t, ok)
}

func TestBuildCreateArgs(t *testing.T) {
	svc, _ := newService(t, &fakeTools{})
	lines := []cart.Line{{ProductID: 1, Quantity: 2}}

	args := svc.BuildCreateArgs(lines, "Ordine via Telegram", true, "18:00")
	assert.Equal(t, lines, args.Items)
	assert.True(t, args.InSite)
	assert.Equal(t, "18:00", args.BookedSlot)
	assert.NotEmpty(t, args.Reference)

	again := svc.BuildCreateArgs(lines, "", false, "")
	assert.NotEqual(t, args.Reference, again.Reference)
}

func TestConfirmation(t *testing.T) {
	svc, _ := newService(t, &fakeTools{}, mcp.Item{ID: 1, Name: "Orata"})
	res, err := mcp.ParseResult([]byte(`{"status":"ok","data":{"orderNumber":"A-102"}}`))
	require.NoError(t, err)

	kg := 18.5
	out := svc.Confirmation(res, []cart.Line{
		{ProductID: 1, Name: "Orata", Quantity: 1.5, PriceKg: &kg},
		{ProductID: 2, Name: "Cozze", Quantity: 2},
	})
	assert.Contains(t, out, "Ordine registrato: 1,5 kg di Orata, 2 pz di Cozze.")
	assert.Contains(t, out, "Numero ordine: A-102.")
	assert.Contains(t, out, "Vuoi aggiungere altro o passo a ritiro/consegna?")
}

func TestConfirmationMatchesEchoByProductID(t *testing.T) {
	svc, _ := newService(t, &fakeTools{})
	res, err := mcp.ParseResult([]byte(`{"status":"ok","data":{"orderNumber":"A-103","items":[
		{"id":2,"name":"Cozze Tarantine"},
		{"id":1,"name":"Orata Pugliese"}
	]}}`))
	require.NoError(t, err)

	// The backend echoes the lines in a different order than they were
	// sent; names must still land on the right quantities.
	kg := 18.5
	out := svc.Confirmation(res, []cart.Line{
		{ProductID: 1, Name: "Orata", Quantity: 1.5, PriceKg: &kg},
		{ProductID: 2, Name: "Cozze", Quantity: 2},
	})
	assert.Contains(t, out, "1,5 kg di Orata Pugliese")
	assert.Contains(t, out, "2 pz di Cozze Tarantine")
}

func TestConfirmationFallback(t *testing.T) {
	svc, _ := newService(t, &fakeTools{})
	res, err := mcp.ParseResult([]byte(`{"status":"ok"}`))
	require.NoError(t, err)

	out := svc.Confirmation(res, []cart.Line{{ProductID: 99, Quantity: 1}})
	assert.Equal(t, fallbackReply, out)
}

func TestConfirmationBackendError(t *testing.T) {
	svc, _ := newService(t, &fakeTools{})
	res, err := mcp.ParseResult([]byte(`{"status":"error","message":"magazzino offline"}`))
	require.NoError(t, err)

	out := svc.Confirmation(res, nil)
	assert.Equal(t, "Errore dal gestionale: magazzino offline", out)
}
