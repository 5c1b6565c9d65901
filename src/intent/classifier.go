package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/swaggest/jsonschema-go"

	"github.com/hembot/hembot/src/catalog"
)

// Model is the language-understanding capability the classifier delegates to.
type Model interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// CartLine is the name+price summary of one cart item, used to give the
// model cart context.
type CartLine struct {
	Name  string
	Price string
}

// ClassifyRequest carries the per-turn context supplied to the model:
// the utterance, recent history, the products last shown, any pending
// clarification category, and a cart summary.
type ClassifyRequest struct {
	Query           string
	History         []string // preformatted "User: ..." / "Assistant: ..." lines
	Shown           []catalog.ProductRecord
	PendingCategory string // non-empty while a clarification is in flight
	Cart            []CartLine
}

// Classifier produces an intent Record per utterance via the model, with a
// deterministic policy pass and soft fallback on unparseable output.
type Classifier struct {
	model  Model
	logger *slog.Logger
}

func NewClassifier(model Model, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{model: model, logger: logger.With("component", "intent")}
}

// wireRecord is the JSON shape the model is asked to return. Its schema is
// reflected into the prompt so the contract stays in one place.
type wireRecord struct {
	Intent          string     `json:"intent" enum:"greeting,search,clarification,follow_up,refinement,add_to_cart,view_cart,remove_from_cart,other"`
	ProductCategory *string    `json:"product_category"`
	Preferences     *wirePrefs `json:"preferences"`
	References      *wireRef   `json:"product_references"`
}

type wirePrefs struct {
	PriceRange *PriceRange `json:"price_range"`
	Colors     []string    `json:"colors"`
	Features   []string    `json:"features"`
}

type wireRef struct {
	Type        string `json:"type" enum:"ordinal,pronoun,descriptive,none"`
	Indices     []int  `json:"indices"`
	Description string `json:"description"`
}

var responseSchema = mustSchemaJSON(wireRecord{})

func mustSchemaJSON(v interface{}) string {
	r := jsonschema.Reflector{}
	s, err := r.Reflect(v, jsonschema.InlineRefs)
	if err != nil {
		panic(fmt.Sprintf("intent: failed to reflect response schema: %v", err))
	}
	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("intent: failed to marshal response schema: %v", err))
	}
	return string(b)
}

// Classify analyzes the utterance. It never returns a parse error to the
// caller: malformed model output degrades to the fallback record. A transport
// error is returned alongside the fallback so the orchestrator can log it.
func (c *Classifier) Classify(ctx context.Context, req ClassifyRequest) (Record, error) {
	prompt := c.buildPrompt(req)
	raw, err := c.model.GenerateText(ctx, prompt)
	if err != nil {
		c.logger.Warn("classification call failed", "error", err)
		return Fallback(), err
	}

	rec, ok := parseRecord(raw)
	if !ok {
		c.logger.Warn("classification output not parseable, using fallback", "raw_len", len(raw))
		return Fallback(), nil
	}
	return c.normalize(rec, req), nil
}

func parseRecord(raw string) (Record, bool) {
	var wire wireRecord
	if err := json.Unmarshal([]byte(StripFences(raw)), &wire); err != nil {
		return Record{}, false
	}
	rec := Record{
		Intent:    Kind(wire.Intent),
		Reference: ProductReference{Type: RefNone},
	}
	if !validKinds[rec.Intent] {
		rec.Intent = KindOther
	}
	if wire.ProductCategory != nil {
		rec.Category = strings.TrimSpace(*wire.ProductCategory)
	}
	if wire.Preferences != nil {
		rec.Preferences = Preferences{
			PriceRange: wire.Preferences.PriceRange,
			Colors:     wire.Preferences.Colors,
			Features:   wire.Preferences.Features,
		}
	}
	if wire.References != nil {
		rt := RefKind(wire.References.Type)
		switch rt {
		case RefOrdinal, RefPronoun, RefDescriptive, RefNone:
		default:
			rt = RefNone
		}
		rec.Reference = ProductReference{
			Type:        rt,
			Indices:     wire.References.Indices,
			Description: wire.References.Description,
		}
	}
	return rec, true
}

// normalize applies the deterministic classification policy on top of the
// model's answer:
//   - backfill preferences the extractor finds but the model missed;
//   - a category with zero detail while nothing has been shown is a
//     clarification, not a search;
//   - a bare constraint right after products were shown is a refinement.
func (c *Classifier) normalize(rec Record, req ClassifyRequest) Record {
	rec.Preferences = rec.Preferences.Merge(ExtractPreferences(req.Query))

	switch rec.Intent {
	case KindSearch:
		if len(req.Shown) == 0 && rec.Category != "" && rec.Preferences.Empty() {
			rec.Intent = KindClarification
		}
		if len(req.Shown) > 0 && rec.Category == "" && !rec.Preferences.Empty() {
			rec.Intent = KindRefinement
		}
	case KindClarification:
		if rec.Category != "" && !rec.Preferences.Empty() {
			rec.Intent = KindSearch
		}
	}
	return rec
}

func (c *Classifier) buildPrompt(req ClassifyRequest) string {
	var b strings.Builder
	b.WriteString("You are analyzing a user's query in a conversation about furniture products.\n\n")

	b.WriteString("PREVIOUS PRODUCTS SHOWN:\n")
	if len(req.Shown) == 0 {
		b.WriteString("None yet\n")
	} else {
		shown := req.Shown
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for i, p := range shown {
			fmt.Fprintf(&b, "%d. %s - $%s\n", i+1, p.Name, p.Price)
		}
	}

	b.WriteString("\nRECENT CONVERSATION:\n")
	history := req.History
	if len(history) > 6 {
		history = history[len(history)-6:]
	}
	for _, line := range history {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if req.PendingCategory != "" {
		fmt.Fprintf(&b, "\nPENDING SEARCH CONTEXT:\nThe user previously asked about: %s\nWe asked for more details. They are now providing those details.\n", req.PendingCategory)
	}

	if len(req.Cart) > 0 {
		b.WriteString("\n=== CURRENT SHOPPING CART ===\n")
		fmt.Fprintf(&b, "Items in cart (%d):\n", len(req.Cart))
		var subtotal float64
		for _, line := range req.Cart {
			if v, ok := catalog.ParsePrice(line.Price); ok {
				subtotal += v
				fmt.Fprintf(&b, "- %s: $%.2f\n", line.Name, v)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", line.Name, line.Price)
			}
		}
		tax := subtotal * 0.08
		fmt.Fprintf(&b, "\nSubtotal: $%.2f\nTax (8%%): $%.2f\nTOTAL: $%.2f\n", subtotal, tax, subtotal+tax)
		b.WriteString("\nWhen the user asks about the cart total, use the exact figures above.\n")
	}

	fmt.Fprintf(&b, "\nUSER'S LATEST QUERY: %q\n\n", req.Query)

	b.WriteString(`Analyze the user's intent and extract key information. Respond with a single JSON object matching this schema:

`)
	b.WriteString(responseSchema)
	b.WriteString(`

INTENT TYPES:
- greeting: user says hi, hello, etc.
- search: user wants to find products AND has provided specific preferences (e.g. "red chair under $100").
- clarification: user asks a BROAD query with no details (e.g. "chairs") and no products have been shown yet.
- follow_up: user asks about previously shown products ("tell me about the first one").
- refinement: user filters the previous results. A bare constraint right after products were shown ("under $200", "in black") is a refinement, not a search.
- add_to_cart / view_cart / remove_from_cart: cart operations.
- other: anything else, including cart total questions.

PRODUCT REFERENCE EXAMPLES:
- "the first one" -> {"type": "ordinal", "indices": [0]}
- "the second and third" -> {"type": "ordinal", "indices": [1, 2]}
- "it" / "that" / "this" -> {"type": "pronoun", "indices": [0]}
- "the white one" -> {"type": "descriptive", "description": "white"}

Return ONLY valid JSON, no markdown formatting.`)
	return b.String()
}

// StripFences removes a surrounding markdown code fence from model output.
// Models routinely wrap JSON in fences despite being told not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	return s
}
