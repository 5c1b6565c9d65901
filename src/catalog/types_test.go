package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"229.00", 229, true},
		{"$229.00", 229, true},
		{" $1,049.99 ", 1049.99, true},
		{"49", 49, true},
		{"", 0, false},
		{"call us", 0, false},
		{"$", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeProducts(t *testing.T) {
	bare := []byte(`[{"name":"MARKUS","price":"229.00"}]`)
	products, err := DecodeProducts(bare)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "MARKUS", products[0].Name)

	wrapped := []byte(`{"products":[{"name":"LACK"},{"name":"POANG"}]}`)
	products, err = DecodeProducts(wrapped)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "POANG", products[1].Name)

	_, err = DecodeProducts([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []ProductRecord{{
		ID:       "p1",
		Name:     "MARKUS",
		Price:    "229.00",
		URL:      "https://example.com/markus",
		Features: []string{"lumbar support"},
	}}
	data, err := EncodeProducts(in)
	require.NoError(t, err)

	out, err := DecodeProducts(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSearchText(t *testing.T) {
	p := ProductRecord{
		Name:        "MARKUS Office Chair",
		Description: "Black Mesh",
		Features:    []string{"Lumbar Support"},
	}
	text := p.SearchText()
	assert.Contains(t, text, "markus office chair")
	assert.Contains(t, text, "black mesh")
	assert.Contains(t, text, "lumbar support")
}
