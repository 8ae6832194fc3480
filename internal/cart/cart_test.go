package cart

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.now = func() time.Time {
		return time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	}
	return s
}

func TestAddSanitizesLines(t *testing.T) {
	s := fixedStore(t)
	added := s.Add("chat-1", []Line{
		{ProductID: 1, Quantity: 1.5},
		{ProductID: 0, Quantity: 2},
		{ProductID: 2, Quantity: 0},
		{ProductID: 3, Quantity: -1},
		{ProductID: 4, Quantity: 2, DeliveryDate: "2026-03-20"},
		{ProductID: 5, Quantity: 1, DeliveryDate: "non-una-data"},
	})
	assert.Equal(t, 3, added)

	lines := s.Lines("chat-1")
	require.Len(t, lines, 3)
	assert.Equal(t, "2026-03-14", lines[0].DeliveryDate, "missing date defaults to today")
	assert.Equal(t, "2026-03-20", lines[1].DeliveryDate)
	assert.Equal(t, "2026-03-14", lines[2].DeliveryDate, "unparsable date defaults to today")
}

func TestCartsAreIsolatedPerConversation(t *testing.T) {
	s := fixedStore(t)
	s.Add("chat-1", []Line{{ProductID: 1, Quantity: 1}})
	s.Add("chat-2", []Line{{ProductID: 2, Quantity: 2}})

	assert.Len(t, s.Lines("chat-1"), 1)
	assert.Len(t, s.Lines("chat-2"), 1)

	s.Clear("chat-1")
	assert.Empty(t, s.Lines("chat-1"))
	assert.Len(t, s.Lines("chat-2"), 1)
}

func TestLinesReturnsCopy(t *testing.T) {
	s := fixedStore(t)
	s.Add("chat-1", []Line{{ProductID: 1, Quantity: 1}})

	lines := s.Lines("chat-1")
	lines[0].Quantity = 99

	again := s.Lines("chat-1")
	assert.Equal(t, 1.0, again[0].Quantity)
}

func TestLinesFromArgs(t *testing.T) {
	args := json.RawMessage(`{"items":[
		{"productId":1,"quantity":1.5,"priceKg":18.5},
		{"productId":"2","quantityKg":"0,5"},
		{"id":3,"qty":2,"deliveryDate":"2026-03-20","name":"Orata"}
	]}`)
	lines := LinesFromArgs(args)
	require.Len(t, lines, 3)

	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.InDelta(t, 1.5, lines[0].Quantity, 0.0001)
	require.NotNil(t, lines[0].PriceKg)
	assert.InDelta(t, 18.5, *lines[0].PriceKg, 0.0001)

	assert.Equal(t, int64(2), lines[1].ProductID)
	assert.InDelta(t, 0.5, lines[1].Quantity, 0.0001)

	assert.Equal(t, "Orata", lines[2].Name)
	assert.Equal(t, "2026-03-20", lines[2].DeliveryDate)
}

func TestLinesFromArgsBareArray(t *testing.T) {
	lines := LinesFromArgs(json.RawMessage(`[{"productId":7,"quantity":1}]`))
	require.Len(t, lines, 1)
	assert.Equal(t, int64(7), lines[0].ProductID)
}

func TestLinesFromArgsSingleObject(t *testing.T) {
	// The model sometimes emits one line without wrapping it in a
	// list, either bare or under "items".
	lines := LinesFromArgs(json.RawMessage(`{"productId":1,"quantity":2}`))
	require.Len(t, lines, 1)
	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.InDelta(t, 2, lines[0].Quantity, 0.0001)

	lines = LinesFromArgs(json.RawMessage(`{"items":{"productId":4,"quantityKg":"1,5"}}`))
	require.Len(t, lines, 1)
	assert.Equal(t, int64(4), lines[0].ProductID)
	assert.InDelta(t, 1.5, lines[0].Quantity, 0.0001)
}

func TestLinesFromArgsGarbage(t *testing.T) {
	assert.Nil(t, LinesFromArgs(nil))
	assert.Nil(t, LinesFromArgs(json.RawMessage(`"non json utile"`)))
	assert.Empty(t, LinesFromArgs(json.RawMessage(`{"items":"niente"}`)))
}
