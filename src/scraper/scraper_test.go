package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hembot/hembot/src/catalog"
)

const productPageHTML = `<!DOCTYPE html>
<html><head>
<meta name="description" content="Fallback meta description.">
</head><body>
<h1><span class="pip-header-section__title--big">MARKUS</span>
<span class="pip-header-section__description-text">Office chair, Vissle dark gray</span></h1>
<span class="pip-temp-price__integer">229</span>
<div class="pip-media-grid__grid">
<img src="https://example.com/images/markus.jpg" alt="MARKUS">
</div>
<ul class="pip-product-details__list">
<li>Adjustable head/armrests</li>
<li>Built-in lumbar support</li>
</ul>
</body></html>`

func TestParseProductPage(t *testing.T) {
	p, err := ParseProductPage(strings.NewReader(productPageHTML))
	require.NoError(t, err)

	assert.Equal(t, "MARKUS", p.Name)
	assert.Equal(t, "Office chair, Vissle dark gray", p.Description)
	assert.Equal(t, "229", p.Price)
	assert.Equal(t, "https://example.com/images/markus.jpg", p.ImageURL)
	assert.Equal(t, []string{"Adjustable head/armrests", "Built-in lumbar support"}, p.Features)
}

func TestParseProductPage_FallbackSelectors(t *testing.T) {
	html := `<html><head>
<meta name="description" content="A sturdy table for every home.">
</head><body>
<h1>LACK side table</h1>
<span class="pip-price__integer">$49.99</span>
</body></html>`

	p, err := ParseProductPage(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "LACK side table", p.Name)
	assert.Equal(t, "A sturdy table for every home.", p.Description)
	assert.Equal(t, "49.99", p.Price) // leading $ is stripped
	assert.Empty(t, p.ImageURL)
	assert.Empty(t, p.Features)
}

func TestParseProductPage_NoName(t *testing.T) {
	_, err := ParseProductPage(strings.NewReader(`<html><body><p>404</p></body></html>`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognizable product name")
}

func TestScrapeProduct(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(productPageHTML))
	}))
	defer srv.Close()

	s := New(5*time.Second, nil)
	p, err := s.ScrapeProduct(context.Background(), srv.URL+"/p/markus")
	require.NoError(t, err)

	assert.Equal(t, "MARKUS", p.Name)
	assert.Equal(t, srv.URL+"/p/markus", p.URL)
	assert.Equal(t, "hembot/1.0", gotUA)
}

func TestScrapeProduct_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(5*time.Second, nil)
	_, err := s.ScrapeProduct(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestBuildDocument(t *testing.T) {
	p := catalog.ProductRecord{
		Name:        "MARKUS",
		Price:       "229.00",
		Color:       "gray",
		Description: "Office chair",
		Features:    []string{"lumbar support", "tilt lock"},
	}
	doc := BuildDocument(p)
	assert.Equal(t, "MARKUS. Price: $229.00. Color: gray. Office chair. Features: lumbar support, tilt lock", doc)

	minimal := BuildDocument(catalog.ProductRecord{Name: "LACK"})
	assert.Equal(t, "LACK", minimal)
}

func TestLoadSaveProducts_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	products := []catalog.ProductRecord{
		{Name: "MARKUS", Price: "229.00", URL: "https://example.com/markus"},
		{Name: "LACK", Price: "49.99"},
	}

	require.NoError(t, SaveProducts(fs, "/data/products.json", products))

	got, err := LoadProducts(fs, "/data/products.json")
	require.NoError(t, err)
	assert.Equal(t, products, got)
}

func TestLoadProducts_WrappedFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p.json",
		[]byte(`{"products":[{"name":"MARKUS","price":"229.00"}]}`), 0o644))

	got, err := LoadProducts(fs, "/p.json")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "MARKUS", got[0].Name)
}
