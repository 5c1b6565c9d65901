// Package dialog holds the conversation state machine: it classifies each
// user turn, resolves references against what was shown, and dispatches to
// search, question answering, or cart operations.
package dialog

import (
	"fmt"
	"time"

	"github.com/hembot/hembot/src/catalog"
	"github.com/hembot/hembot/src/intent"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in the conversation history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// CartItem is the in-memory record of an item the user added. The in-memory
// list is authoritative for display; the browser cart is the execution
// backend.
type CartItem struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	Price   string    `json:"price"`
	AddedAt time.Time `json:"added_at"`
}

// SearchContext is a partially-specified search waiting on the user's
// answer to a clarifying question.
type SearchContext struct {
	Category    string             `json:"category"`
	Preferences intent.Preferences `json:"preferences"`
}

// ClarificationContext records that the last assistant turn asked the
// guided clarification questions for a vague query.
type ClarificationContext struct {
	OriginalQuery string    `json:"original_query"`
	AskedAt       time.Time `json:"asked_at"`
}

// State is everything the engine remembers about one conversation.
// LastMentioned is an index into LastShown, -1 when no product has been
// singled out since the last search.
type State struct {
	History              []Turn                  `json:"history"`
	LastShown            []catalog.ProductRecord `json:"last_shown_products"`
	CartItems            []CartItem              `json:"cart_items"`
	PendingSearch        *SearchContext          `json:"pending_search_context,omitempty"`
	PendingClarification *ClarificationContext   `json:"pending_clarification_context,omitempty"`
	LastMentioned        int                     `json:"last_mentioned_product_index"`
}

// NewState returns an empty conversation state.
func NewState() State {
	return State{LastMentioned: -1}
}

// Clone deep-copies the state so a turn can be processed without mutating
// the caller's copy until it commits.
func (s State) Clone() State {
	out := s
	out.History = append([]Turn(nil), s.History...)
	out.LastShown = append([]catalog.ProductRecord(nil), s.LastShown...)
	out.CartItems = append([]CartItem(nil), s.CartItems...)
	if s.PendingSearch != nil {
		ps := *s.PendingSearch
		out.PendingSearch = &ps
	}
	if s.PendingClarification != nil {
		pc := *s.PendingClarification
		out.PendingClarification = &pc
	}
	return out
}

// HistoryLines renders the most recent n turns as "Role: text" lines for
// model prompts.
func (s State) HistoryLines(n int) []string {
	turns := s.History
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Text))
	}
	return lines
}

// CartLines converts cart items to the classifier's summary shape.
func (s State) CartLines() []intent.CartLine {
	lines := make([]intent.CartLine, 0, len(s.CartItems))
	for _, it := range s.CartItems {
		lines = append(lines, intent.CartLine{Name: it.Name, Price: it.Price})
	}
	return lines
}
