package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hembot/hembot/src/intent"
)

// Candidate is the minimal view of a matchable item: works for both catalog
// products and cart entries.
type Candidate struct {
	Name        string
	Price       string
	Description string
}

// Match is the matcher's verdict. Confidence tiers govern orchestration:
// >=0.7 act, >=0.5 confirm, below clarify.
type Match struct {
	Indices            []int
	Confidence         float64
	Reasoning          string
	NeedsClarification bool
}

// Matcher delegates fuzzy product matching to the model, with a keyword
// overlap fallback when the model's answer cannot be parsed.
type Matcher struct {
	model  intent.Model
	logger *slog.Logger
}

func NewMatcher(model intent.Model, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{model: model, logger: logger.With("component", "matcher")}
}

type wireMatch struct {
	MatchedIndices     []int   `json:"matched_indices"`
	Confidence         float64 `json:"confidence"`
	Reasoning          string  `json:"reasoning"`
	NeedsClarification bool    `json:"needs_clarification"`
}

// Match identifies which candidates the query refers to. history carries
// preformatted recent conversation lines for context. An empty candidate list
// yields a zero-confidence match, never an error.
func (m *Matcher) Match(ctx context.Context, query string, candidates []Candidate, history []string) (Match, error) {
	if len(candidates) == 0 {
		return Match{Reasoning: "no products available to match", NeedsClarification: true}, nil
	}

	raw, err := m.model.GenerateText(ctx, m.buildPrompt(query, candidates, history))
	if err != nil {
		m.logger.Warn("matcher call failed, using keyword fallback", "error", err)
		return keywordFallback(query, candidates), nil
	}

	var wire wireMatch
	if err := json.Unmarshal([]byte(intent.StripFences(raw)), &wire); err != nil {
		m.logger.Warn("matcher output not parseable, using keyword fallback", "error", err)
		return keywordFallback(query, candidates), nil
	}

	match := Match{
		Confidence:         wire.Confidence,
		Reasoning:          wire.Reasoning,
		NeedsClarification: wire.NeedsClarification,
	}
	for _, i := range wire.MatchedIndices {
		if i >= 0 && i < len(candidates) {
			match.Indices = append(match.Indices, i)
		}
	}
	return match, nil
}

func (m *Matcher) buildPrompt(query string, candidates []Candidate, history []string) string {
	var b strings.Builder
	b.WriteString("You are a product matching expert. Identify which product(s) the user is referring to.\n\nAVAILABLE PRODUCTS:\n")
	for i, c := range candidates {
		desc := c.Description
		if len(desc) > 200 {
			desc = desc[:200]
		}
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&b, "%d. %s ($%s)\n   Description: %s\n\n", i+1, c.Name, c.Price, desc)
	}
	if len(history) > 0 {
		recent := history
		if len(recent) > 4 {
			recent = recent[len(recent)-4:]
		}
		b.WriteString("RECENT CONVERSATION:\n")
		for _, line := range recent {
			if len(line) > 100 {
				line = line[:100]
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "USER'S QUERY: %q\n\n", query)
	b.WriteString(`Consider explicit names, attributes (color, features, price), ordinal references, and pronouns (usually the first or most recent product).

Respond in JSON:
{
  "matched_indices": [<0-based indices>],
  "confidence": <0.0 to 1.0>,
  "reasoning": "<brief explanation>",
  "needs_clarification": <true if ambiguous>
}

CONFIDENCE GUIDELINES:
- 0.9-1.0: exact name match or unambiguous ordinal reference
- 0.7-0.9: strong semantic match or clear description
- 0.5-0.7: moderate match, some ambiguity
- 0.0-0.5: weak match or very ambiguous

Return ONLY valid JSON, no markdown formatting.`)
	return b.String()
}

// keywordFallback scores candidates by word overlap between the query and
// each candidate's name and description. Confidence is capped at 0.6 so a
// fallback match can never auto-act.
func keywordFallback(query string, candidates []Candidate) Match {
	queryWords := wordSet(query)
	bestIdx, bestScore := -1, 0.0
	for i, c := range candidates {
		nameOverlap := overlap(queryWords, wordSet(c.Name))
		descOverlap := overlap(queryWords, wordSet(c.Description))
		if nameOverlap == 0 && descOverlap <= 2 {
			continue
		}
		score := float64(nameOverlap) + float64(descOverlap)*0.5
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return Match{Reasoning: "no matches found", NeedsClarification: true}
	}
	confidence := bestScore / 10
	if confidence > 0.6 {
		confidence = 0.6
	}
	return Match{
		Indices:            []int{bestIdx},
		Confidence:         confidence,
		Reasoning:          "fallback keyword matching",
		NeedsClarification: confidence < 0.5,
	}
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}
