// Package resolve maps natural-language product references ("the first one",
// "it", "the cheaper one") to concrete records in a candidate list.
package resolve

import (
	"strings"

	"github.com/hembot/hembot/src/catalog"
	"github.com/hembot/hembot/src/intent"
)

// Palette of color keywords matched against name and description for
// descriptive references.
var palette = []string{"white", "black", "beige", "gray", "blue", "red", "green", "brown"}

var cheapWords = []string{"cheap", "affordable", "budget", "lowest price"}
var premiumWords = []string{"expensive", "premium", "highest price"}

// Result is the resolved subset plus the indices into the candidate list, so
// the caller can update its last-mentioned bookkeeping.
type Result struct {
	Products []catalog.ProductRecord
	Indices  []int
}

// References resolves ref against candidates. lastMentioned is the index of
// the product the conversation last settled on, or -1; it drives pronoun
// continuity. noneLimit caps the fallback size for "none" references (1 for a
// single-product question, up to 3 for "tell me about these"). Candidate
// order is preserved. Never panics: out-of-range ordinals are dropped and an
// empty candidate list yields an empty result.
func References(ref intent.ProductReference, candidates []catalog.ProductRecord, lastMentioned, noneLimit int) Result {
	if len(candidates) == 0 {
		return Result{}
	}
	switch ref.Type {
	case intent.RefOrdinal:
		return ordinal(ref.Indices, candidates)
	case intent.RefPronoun:
		if lastMentioned >= 0 && lastMentioned < len(candidates) {
			return pick(candidates, lastMentioned)
		}
		return pick(candidates, 0)
	case intent.RefDescriptive:
		return descriptive(ref.Description, candidates)
	default:
		if noneLimit < 1 {
			noneLimit = 1
		}
		if noneLimit > len(candidates) {
			noneLimit = len(candidates)
		}
		r := Result{}
		for i := 0; i < noneLimit; i++ {
			r.Products = append(r.Products, candidates[i])
			r.Indices = append(r.Indices, i)
		}
		return r
	}
}

func pick(candidates []catalog.ProductRecord, idx int) Result {
	return Result{Products: []catalog.ProductRecord{candidates[idx]}, Indices: []int{idx}}
}

func ordinal(indices []int, candidates []catalog.ProductRecord) Result {
	var r Result
	for _, i := range indices {
		if i >= 0 && i < len(candidates) {
			r.Products = append(r.Products, candidates[i])
			r.Indices = append(r.Indices, i)
		}
	}
	return r
}

// descriptive matches by priority: color keywords first, then price
// superlatives, then the first candidate.
func descriptive(description string, candidates []catalog.ProductRecord) Result {
	desc := strings.ToLower(description)

	var colors []string
	for _, c := range palette {
		if strings.Contains(desc, c) {
			colors = append(colors, c)
		}
	}
	if len(colors) > 0 {
		var r Result
		for i, p := range candidates {
			text := p.SearchText()
			for _, c := range colors {
				if strings.Contains(text, c) {
					r.Products = append(r.Products, p)
					r.Indices = append(r.Indices, i)
					break
				}
			}
		}
		if len(r.Products) > 0 {
			return r
		}
	}

	if containsAny(desc, cheapWords) {
		if idx, ok := argExtreme(candidates, true); ok {
			return pick(candidates, idx)
		}
	}
	if containsAny(desc, premiumWords) {
		if idx, ok := argExtreme(candidates, false); ok {
			return pick(candidates, idx)
		}
	}

	return pick(candidates, 0)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// argExtreme returns the index of the cheapest (min=true) or most expensive
// candidate among those with parseable prices, ties broken by first
// occurrence.
func argExtreme(candidates []catalog.ProductRecord, min bool) (int, bool) {
	best := -1
	var bestPrice float64
	for i, p := range candidates {
		price, ok := catalog.ParsePrice(p.Price)
		if !ok {
			continue
		}
		if best == -1 || (min && price < bestPrice) || (!min && price > bestPrice) {
			best = i
			bestPrice = price
		}
	}
	return best, best >= 0
}
