// Package intent turns a free-text user utterance into a structured intent
// record, combining an LLM classification call with deterministic pattern
// extraction.
package intent

// Kind enumerates the fixed set of conversation intents.
type Kind string

const (
	KindGreeting       Kind = "greeting"
	KindSearch         Kind = "search"
	KindClarification  Kind = "clarification"
	KindFollowUp       Kind = "follow_up"
	KindRefinement     Kind = "refinement"
	KindAddToCart      Kind = "add_to_cart"
	KindViewCart       Kind = "view_cart"
	KindRemoveFromCart Kind = "remove_from_cart"
	KindOther          Kind = "other"
)

var validKinds = map[Kind]bool{
	KindGreeting:       true,
	KindSearch:         true,
	KindClarification:  true,
	KindFollowUp:       true,
	KindRefinement:     true,
	KindAddToCart:      true,
	KindViewCart:       true,
	KindRemoveFromCart: true,
	KindOther:          true,
}

// RefKind enumerates how the user referenced previously shown products.
type RefKind string

const (
	RefOrdinal     RefKind = "ordinal"
	RefPronoun     RefKind = "pronoun"
	RefDescriptive RefKind = "descriptive"
	RefNone        RefKind = "none"
)

// PriceRange is an optional min/max price constraint. A nil bound means
// unconstrained on that side.
type PriceRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Preferences collects the constraints accumulated for a search.
type Preferences struct {
	PriceRange *PriceRange `json:"price_range,omitempty"`
	Colors     []string    `json:"colors,omitempty"`
	Features   []string    `json:"features,omitempty"`
}

// Empty reports whether no constraint is set.
func (p Preferences) Empty() bool {
	return p.PriceRange == nil && len(p.Colors) == 0 && len(p.Features) == 0
}

// Merge returns the union of p and other. Values already present in p win:
// colors and features are appended (deduplicated), the price range is taken
// from other only when p has none.
func (p Preferences) Merge(other Preferences) Preferences {
	out := Preferences{
		PriceRange: p.PriceRange,
		Colors:     appendMissing(p.Colors, other.Colors),
		Features:   appendMissing(p.Features, other.Features),
	}
	if out.PriceRange == nil {
		out.PriceRange = other.PriceRange
	}
	return out
}

func appendMissing(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	out := append([]string(nil), dst...)
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ProductReference describes which shown products the user referred to.
type ProductReference struct {
	Type        RefKind `json:"type"`
	Indices     []int   `json:"indices,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Record is the structured result of classifying one utterance. It lives for
// a single turn; the orchestrator copies selected fields into pending search
// context when a clarification is issued.
type Record struct {
	Intent      Kind             `json:"intent"`
	Category    string           `json:"product_category,omitempty"`
	Preferences Preferences      `json:"preferences"`
	Reference   ProductReference `json:"product_references"`
}

// Fallback is the record returned when the upstream model produces output we
// cannot parse. It is the sole recovery path for classification failures.
func Fallback() Record {
	return Record{
		Intent:    KindOther,
		Reference: ProductReference{Type: RefNone},
	}
}
