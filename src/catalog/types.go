// Package catalog holds the product catalog: immutable product snapshots and
// a sqlite-backed vector index over them.
package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ProductRecord is a read-only snapshot of one catalog product. Records are
// never mutated after retrieval; the dialog layer only copies them around.
type ProductRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	URL         string   `json:"url"`
	Color       string   `json:"color"`
	Features    []string `json:"features"`
}

// ParsePrice parses a scraped price string like "$229.00" or "229.00".
// The second return value reports whether the price was parseable.
func ParsePrice(s string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, "$", ""))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DecodeProducts parses the scraped-products JSON document: either a bare
// array or an object with a top-level "products" array.
func DecodeProducts(data []byte) ([]ProductRecord, error) {
	var products []ProductRecord
	if err := json.Unmarshal(data, &products); err == nil {
		return products, nil
	}
	var wrapped struct {
		Products []ProductRecord `json:"products"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Products, nil
}

// EncodeProducts renders products as indented JSON.
func EncodeProducts(products []ProductRecord) ([]byte, error) {
	return json.MarshalIndent(products, "", "  ")
}

// SearchText returns the text a record is matched against for color and
// feature keywords: name plus description, lowercased.
func (p ProductRecord) SearchText() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(p.Name))
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(p.Description))
	for _, f := range p.Features {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(f))
	}
	return b.String()
}
