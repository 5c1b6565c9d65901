package render

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hembot/hembot/src/catalog"
)

func TestProductGrid(t *testing.T) {
	products := []catalog.ProductRecord{
		{Name: "MARKUS office chair", Price: "229.00", Description: "Black mesh back", URL: "https://example.com/markus", ImageURL: "https://example.com/markus.jpg"},
		{Name: "ODGER chair", Price: "119.00", Description: "White shell"},
	}

	out := ProductGrid(products, "Here you go:")
	assert.Contains(t, out, "<p>Here you go:</p>")
	assert.Contains(t, out, "MARKUS office chair")
	assert.Contains(t, out, "$229.00")
	assert.Contains(t, out, `href="https://example.com/markus"`)
	assert.Contains(t, out, `src="https://example.com/markus.jpg"`)
	// No URL, no link; no image, placeholder div.
	assert.Contains(t, out, "placeholder")
	assert.Equal(t, 2, strings.Count(out, "product-card"))
}

func TestProductGrid_CapsAtSixWithOverflowNote(t *testing.T) {
	var products []catalog.ProductRecord
	for i := 0; i < 9; i++ {
		products = append(products, catalog.ProductRecord{Name: fmt.Sprintf("P%d", i), Price: "10.00"})
	}

	out := ProductGrid(products, "")
	assert.Equal(t, 6, strings.Count(out, "product-card"))
	assert.Contains(t, out, "Showing 6 of 9 products")
}

func TestProductGrid_Empty(t *testing.T) {
	assert.Equal(t, "nothing here", ProductGrid(nil, "nothing here"))
}

func TestProductGrid_MissingPrice(t *testing.T) {
	out := ProductGrid([]catalog.ProductRecord{{Name: "X"}}, "")
	assert.Contains(t, out, "Price unavailable")
}

func TestProductGrid_TruncatesLongDescriptions(t *testing.T) {
	long := strings.Repeat("comfy ", 50)
	out := ProductGrid([]catalog.ProductRecord{{Name: "X", Price: "1.00", Description: long}}, "")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, long)
}

func TestProductList_EscapesAndNumbers(t *testing.T) {
	out := ProductList([]Line{
		{Name: "MARKUS <chair>", Price: "229.00"},
		{Name: "ODGER", Price: "119.00"},
	})
	assert.Contains(t, out, "1. MARKUS &lt;chair&gt; - $229.00")
	assert.Contains(t, out, "2. ODGER - $119.00")
}

func TestTotals(t *testing.T) {
	subtotal, tax, total := Totals([]Line{
		{Name: "A", Price: "229.00"},
		{Name: "B", Price: "49.99"},
		{Name: "C", Price: "not priced"}, // skipped
	})
	assert.InDelta(t, 278.99, subtotal, 0.001)
	assert.InDelta(t, 22.3192, tax, 0.001)
	assert.InDelta(t, 301.3092, total, 0.001)
}

func TestCartSummary(t *testing.T) {
	out := CartSummary([]Line{
		{Name: "MARKUS office chair", Price: "229.00"},
		{Name: "LACK table", Price: "49.99"},
	})
	assert.Contains(t, out, "2 items")
	assert.Contains(t, out, "Subtotal: $278.99")
	assert.Contains(t, out, "Tax (8%): $22.32")
	assert.Contains(t, out, "Total: $301.31")

	single := CartSummary([]Line{{Name: "MARKUS", Price: "229.00"}})
	assert.Contains(t, single, "1 item:")
	assert.NotContains(t, single, "1 items")
}

func TestCartSummary_Empty(t *testing.T) {
	assert.Contains(t, CartSummary(nil), "empty")
}

func TestRemoveSelector(t *testing.T) {
	out := RemoveSelector([]Line{
		{Name: "MARKUS office chair, black", Price: "229.00"},
	})
	assert.Contains(t, out, "remove-selector")
	// The option value is the core token the remove flow matches on.
	assert.Contains(t, out, `value="MARKUS"`)
	assert.Contains(t, out, "MARKUS office chair, black ($229.00)")
}

func TestCoreName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MARKUS office chair, black", "MARKUS"},
		{"ODGER", "ODGER"},
		{"  POANG armchair  ", "POANG"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coreName(tt.in), "input %q", tt.in)
	}
}

func TestClarificationChips(t *testing.T) {
	out := ClarificationChips()
	assert.Contains(t, out, "What type are you looking for?")
	assert.Contains(t, out, "What&#39;s your budget?")
	assert.Contains(t, out, "Any color preferences?")
	assert.Equal(t, 13, strings.Count(out, "quick-action-chip"))
}

func TestClip(t *testing.T) {
	assert.Empty(t, Clip(""))

	img := Clip("add_cart_1700000000000.png")
	assert.Contains(t, img, "<img")
	assert.Contains(t, img, "/videos/add_cart_1700000000000.png")

	vid := Clip("add_cart.webm")
	assert.Contains(t, vid, "<video")
	assert.Contains(t, vid, "/videos/add_cart.webm")
}

func TestSuccessBanner(t *testing.T) {
	out := SuccessBanner("MARKUS <added>")
	assert.Contains(t, out, "success-message")
	assert.Contains(t, out, "MARKUS &lt;added&gt;")
}

func TestCards(t *testing.T) {
	out := Cards([]catalog.ProductRecord{{Name: "MARKUS", Price: "229.00"}})
	require.Contains(t, out, "product-refs")
	assert.Contains(t, out, "MARKUS")
}
