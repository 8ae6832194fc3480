package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBareObject(t *testing.T) {
	act, ok := Extract(`{"tool":"products_search","args":{"q":"cozze"}}`)
	require.True(t, ok)
	assert.Equal(t, ToolProductsSearch, act.Tool)
	assert.JSONEq(t, `{"q":"cozze"}`, string(act.Args))
}

func TestExtractFencedBlock(t *testing.T) {
	raw := "```json\n{\"tool\":\"cart_view\",\"args\":{}}\n```"
	act, ok := Extract(raw)
	require.True(t, ok)
	assert.Equal(t, ToolCartView, act.Tool)
}

func TestExtractEmbeddedInProse(t *testing.T) {
	raw := `Certo! Procedo subito. {"tool":"cart_checkout","args":{"bookedSlot":"18:00"}} Fammi sapere se serve altro.`
	act, ok := Extract(raw)
	require.True(t, ok)
	assert.Equal(t, ToolCartCheckout, act.Tool)
	assert.JSONEq(t, `{"bookedSlot":"18:00"}`, string(act.Args))
}

func TestExtractBracesInsideStrings(t *testing.T) {
	raw := `{"tool":"products_search","args":{"q":"cozze {grandi}"}}`
	act, ok := Extract(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"q":"cozze {grandi}"}`, string(act.Args))
}

func TestExtractArgumentsKey(t *testing.T) {
	act, ok := Extract(`{"tool":"products_byid","arguments":{"productId":7}}`)
	require.True(t, ok)
	assert.Equal(t, ToolProductsByID, act.Tool)
	assert.JSONEq(t, `{"productId":7}`, string(act.Args))
}

func TestExtractEquivalentForms(t *testing.T) {
	bare := `{"tool":"cart_clear","args":{}}`
	fenced := "```json\n" + bare + "\n```"
	embedded := "Va bene. " + bare

	a1, ok1 := Extract(bare)
	a2, ok2 := Extract(fenced)
	a3, ok3 := Extract(embedded)
	require.True(t, ok1)
	require.True(t, ok2)
	require.True(t, ok3)
	assert.Equal(t, a1.Tool, a2.Tool)
	assert.Equal(t, a1.Tool, a3.Tool)
}

func TestExtractProseReturnsNothing(t *testing.T) {
	for _, raw := range []string{
		"",
		"Le cozze oggi costano 4 euro al kg.",
		`{"q":"cozze"}`,
		"```\nnessun json qui\n```",
	} {
		_, ok := Extract(raw)
		assert.False(t, ok, "input %q", raw)
	}
}

func TestExtractMissingArgsDefaultsToEmptyObject(t *testing.T) {
	act, ok := Extract(`{"tool":"greeting"}`)
	require.True(t, ok)
	assert.JSONEq(t, `{}`, string(act.Args))
}

func TestParseToolAliases(t *testing.T) {
	assert.Equal(t, ToolGreeting, ParseTool("Hello"))
	assert.Equal(t, ToolProductsByID, ParseTool("product_by_id"))
	assert.Equal(t, ToolUnknown, ParseTool("make_coffee"))
}
