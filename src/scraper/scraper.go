// Package scraper fetches product detail pages and extracts the fields the
// catalog stores. It also loads and saves the scraped-products JSON file the
// ingest command consumes.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"

	"github.com/hembot/hembot/src/catalog"
)

const maxBodySize = 5 * 1024 * 1024

// Scraper fetches and parses product pages.
type Scraper struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a scraper with the given timeout per fetch.
func New(timeout time.Duration, logger *slog.Logger) *Scraper {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "scraper"),
	}
}

// ScrapeProduct fetches a product page and extracts a ProductRecord.
func (s *Scraper) ScrapeProduct(ctx context.Context, url string) (catalog.ProductRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return catalog.ProductRecord{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "hembot/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return catalog.ProductRecord{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return catalog.ProductRecord{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return catalog.ProductRecord{}, fmt.Errorf("failed to read response: %w", err)
	}

	record, err := ParseProductPage(strings.NewReader(string(body)))
	if err != nil {
		return catalog.ProductRecord{}, err
	}
	record.URL = url

	s.logger.Info("scraped product", "url", url, "name", record.Name, "price", record.Price)
	return record, nil
}

// ParseProductPage extracts product fields from retailer product-page HTML.
// Selectors cover the current page variants; missing fields come back empty
// rather than failing the parse.
func ParseProductPage(r io.Reader) (catalog.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return catalog.ProductRecord{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var p catalog.ProductRecord

	p.Name = firstText(doc,
		".pip-header-section__title--big",
		".pip-header-section__title",
		"h1 .pip-header-section__description-text",
		"h1")
	p.Description = firstText(doc,
		".pip-header-section__description-text",
		".pip-product-summary__description",
		"meta[name='description']")
	if p.Description == "" {
		if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
			p.Description = strings.TrimSpace(desc)
		}
	}

	priceText := firstText(doc,
		".pip-temp-price__integer",
		".pip-price__integer",
		"[data-testid='price'] span")
	p.Price = strings.TrimPrefix(strings.TrimSpace(priceText), "$")

	if img, ok := doc.Find(".pip-media-grid__grid img, .pip-image").First().Attr("src"); ok {
		p.ImageURL = img
	}

	doc.Find(".pip-product-details__list li, .pip-product-dimensions__measurement-wrapper").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			p.Features = append(p.Features, text)
		}
	})

	if p.Name == "" {
		return catalog.ProductRecord{}, fmt.Errorf("page has no recognizable product name")
	}
	return p, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// BuildDocument renders a product as the flat text that gets embedded for
// similarity search.
func BuildDocument(p catalog.ProductRecord) string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.Price != "" {
		fmt.Fprintf(&b, ". Price: $%s", p.Price)
	}
	if p.Color != "" {
		fmt.Fprintf(&b, ". Color: %s", p.Color)
	}
	if p.Description != "" {
		b.WriteString(". ")
		b.WriteString(p.Description)
	}
	if len(p.Features) > 0 {
		b.WriteString(". Features: ")
		b.WriteString(strings.Join(p.Features, ", "))
	}
	return b.String()
}

// LoadProducts reads the scraped-products JSON file.
func LoadProducts(fs afero.Fs, path string) ([]catalog.ProductRecord, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products file: %w", err)
	}
	products, err := catalog.DecodeProducts(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode products file %s: %w", path, err)
	}
	return products, nil
}

// SaveProducts writes products back to the JSON file.
func SaveProducts(fs afero.Fs, path string, products []catalog.ProductRecord) error {
	data, err := catalog.EncodeProducts(products)
	if err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write products file: %w", err)
	}
	return nil
}
