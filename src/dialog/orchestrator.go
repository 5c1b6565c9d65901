package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hembot/hembot/src/cart"
	"github.com/hembot/hembot/src/catalog"
	"github.com/hembot/hembot/src/intent"
	"github.com/hembot/hembot/src/rank"
	"github.com/hembot/hembot/src/render"
	"github.com/hembot/hembot/src/resolve"

	"github.com/google/uuid"
)

// Confidence tiers for the product matcher: act, confirm, or clarify.
const (
	actThreshold     = 0.7
	confirmThreshold = 0.5
)

// Classifier turns a user turn plus context into a structured intent record.
type Classifier interface {
	Classify(ctx context.Context, req intent.ClassifyRequest) (intent.Record, error)
}

// Matcher identifies which candidate a query refers to.
type Matcher interface {
	Match(ctx context.Context, query string, candidates []resolve.Candidate, history []string) (resolve.Match, error)
}

// Searcher is the catalog similarity-search capability.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]catalog.ProductRecord, error)
}

// CartBackend executes cart mutations against the retailer site.
type CartBackend interface {
	Add(ctx context.Context, url, name, price string) (cart.Result, error)
	View(ctx context.Context) (cart.Result, error)
	Remove(ctx context.Context, name string) (cart.Result, error)
}

// Model is the free-form completion capability used for conversational
// replies and search intros.
type Model interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Config wires the orchestrator's collaborators. All are injected so tests
// can substitute fakes.
type Config struct {
	Classifier Classifier
	Matcher    Matcher
	Search     Searcher
	Cart       CartBackend
	Model      Model
	Logger     *slog.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator is the per-turn state machine. It owns no state itself: each
// turn consumes a State and returns the next one.
type Orchestrator struct {
	classifier Classifier
	matcher    Matcher
	search     Searcher
	cart       CartBackend
	model      Model
	logger     *slog.Logger
	now        func() time.Time
}

// New builds an orchestrator from its collaborators.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		classifier: cfg.Classifier,
		matcher:    cfg.Matcher,
		search:     cfg.Search,
		cart:       cfg.Cart,
		model:      cfg.Model,
		logger:     logger.With("component", "orchestrator"),
		now:        now,
	}
}

// ProcessTurn handles one user message: classify, dispatch, reply. It never
// returns an error; every failure path degrades to an apologetic reply and a
// valid state.
func (o *Orchestrator) ProcessTurn(ctx context.Context, query string, state State) (string, State) {
	st := state.Clone()
	st.History = append(st.History, Turn{Role: RoleUser, Text: query})

	rec, err := o.classifier.Classify(ctx, intent.ClassifyRequest{
		Query:           query,
		History:         st.HistoryLines(6),
		Shown:           st.LastShown,
		PendingCategory: pendingCategory(st),
		Cart:            st.CartLines(),
	})
	if err != nil {
		// rec is already the safe fallback record.
		o.logger.Warn("classification failed, using fallback intent", "error", err)
	}
	o.logger.Info("turn classified",
		"intent", rec.Intent, "category", rec.Category, "reference", rec.Reference.Type)

	var reply string
	switch {
	case rec.Intent == intent.KindFollowUp && len(st.LastShown) > 0:
		reply, st = o.handleFollowUp(ctx, query, rec, st)
	case rec.Intent == intent.KindAddToCart:
		reply, st = o.handleAddToCart(ctx, query, rec, st)
	case rec.Intent == intent.KindViewCart:
		reply, st = o.handleViewCart(ctx, st)
	case rec.Intent == intent.KindRemoveFromCart:
		reply, st = o.handleRemoveFromCart(ctx, query, st)

	// The vague-query check runs before search dispatch: a bare category
	// term matches both paths and clarification wins.
	case rec.Intent == intent.KindClarification ||
		intent.IsVagueQuery(query, st.PendingClarification != nil):
		reply, st = o.handleClarification(ctx, query, rec, st)

	case rec.Intent == intent.KindSearch || rec.Intent == intent.KindRefinement:
		reply, st = o.handleSearch(ctx, query, rec, st)
	default:
		reply = o.handleChat(ctx, query, st)
	}

	st.History = append(st.History, Turn{Role: RoleAssistant, Text: reply})
	return reply, st
}

func pendingCategory(st State) string {
	if st.PendingSearch != nil {
		return st.PendingSearch.Category
	}
	return ""
}

// --- follow_up ---------------------------------------------------------

func (o *Orchestrator) handleFollowUp(ctx context.Context, query string, rec intent.Record, st State) (string, State) {
	res := resolve.References(rec.Reference, st.LastShown, st.LastMentioned, 3)
	if len(res.Products) == 0 {
		return "I'm not sure which product you're referring to. Could you tell me its name or position in the list?", st
	}

	var b strings.Builder
	b.WriteString("You are a helpful furniture shopping assistant. Answer the user's question using ONLY the product details below. Be concise and friendly.\n\nPRODUCTS:\n")
	for _, p := range res.Products {
		fmt.Fprintf(&b, "- %s ($%s): %s\n", p.Name, p.Price, p.Description)
	}
	fmt.Fprintf(&b, "\nQUESTION: %s\n", query)

	answer, err := o.model.GenerateText(ctx, b.String())
	if err != nil {
		o.logger.Warn("follow-up answer failed", "error", err)
		return fmt.Sprintf("I had trouble answering that question: %v. Could you try rephrasing it?", err), st
	}

	st.LastMentioned = res.Indices[0]
	if len(res.Products) <= 2 {
		answer += "\n" + render.Cards(res.Products)
	}
	return answer, st
}

// --- add_to_cart -------------------------------------------------------

func (o *Orchestrator) handleAddToCart(ctx context.Context, query string, rec intent.Record, st State) (string, State) {
	available := st.LastShown
	freshSearch := false

	if len(available) == 0 {
		searchQuery := strings.TrimSpace(rec.Reference.Description + " " + categoryOr(rec.Category, "furniture"))
		results, err := o.search.Search(ctx, searchQuery, 10)
		if err != nil {
			o.logger.Error("pre-add search failed", "error", err)
			return fmt.Sprintf("I tried to look that product up but the catalog search failed: %v.", err), st
		}
		if len(results) == 0 {
			return fmt.Sprintf("I couldn't find any products matching %q to add to your cart. Could you search for it first?", query), st
		}
		available = results
		freshSearch = true
	}

	targetIdx := -1
	if rec.Reference.Type == intent.RefPronoun && !freshSearch &&
		st.LastMentioned >= 0 && st.LastMentioned < len(available) {
		// "add it" right after discussing a product keeps pointing at it.
		targetIdx = st.LastMentioned
	} else {
		match, err := o.matcher.Match(ctx, query, productCandidates(available), st.HistoryLines(4))
		if err != nil {
			o.logger.Error("product matching failed", "error", err)
			return fmt.Sprintf("I couldn't work out which product you meant: %v.", err), st
		}
		idx := matchedIndex(match, len(available))
		switch {
		case match.Confidence >= actThreshold && idx >= 0:
			targetIdx = idx
		case match.Confidence >= confirmThreshold && idx >= 0:
			candidate := available[idx]
			if freshSearch {
				st = replaceShown(st, available)
			}
			return fmt.Sprintf("Just to confirm: did you want to add <strong>%s</strong> ($%s) to your cart? (%s)",
				candidate.Name, candidate.Price, match.Reasoning), st
		default:
			if freshSearch {
				st = replaceShown(st, available)
			}
			return o.matchClarifyReply(query, available), st
		}
	}

	target := available[targetIdx]
	if target.URL == "" {
		return fmt.Sprintf("I found %s but it has no product page link, so I can't add it to the cart.", target.Name), st
	}

	result, err := o.cart.Add(ctx, target.URL, target.Name, target.Price)
	if err != nil || result.Status != cart.StatusSuccess {
		msg := result.Message
		if err != nil {
			msg = err.Error()
		}
		o.logger.Error("cart add failed", "product", target.Name, "error", msg)
		if freshSearch {
			st = replaceShown(st, available)
		}
		return fmt.Sprintf("I tried to add %s to your cart but ran into a problem: %s", target.Name, msg), st
	}

	st.CartItems = append(st.CartItems, CartItem{
		ID:      productID(target),
		Name:    target.Name,
		URL:     target.URL,
		Price:   target.Price,
		AddedAt: o.now(),
	})
	if freshSearch {
		st = replaceShown(st, available)
	}
	if targetIdx < len(st.LastShown) {
		st.LastMentioned = targetIdx
	}

	reply := render.SuccessBanner(fmt.Sprintf("%s ($%s) has been added to your cart!", target.Name, target.Price)) +
		render.Clip(result.ClipPath)
	return reply, st
}

func (o *Orchestrator) matchClarifyReply(query string, available []catalog.ProductRecord) string {
	lines := make([]render.Line, 0, len(available))
	for _, p := range available {
		lines = append(lines, render.Line{Name: p.Name, Price: p.Price})
	}
	return fmt.Sprintf("I'm not sure which product you're referring to with %q. Here are the available options:\n%s\nPlease tell me the name or number of the one you'd like.",
		query, render.ProductList(lines))
}

// --- view_cart ---------------------------------------------------------

func (o *Orchestrator) handleViewCart(ctx context.Context, st State) (string, State) {
	lines := make([]render.Line, 0, len(st.CartItems))
	for _, it := range st.CartItems {
		lines = append(lines, render.Line{Name: it.Name, Price: it.Price})
	}
	reply := render.CartSummary(lines)

	if len(st.CartItems) == 0 {
		return reply, st
	}

	// Live snapshot is best effort; the in-memory list is authoritative.
	result, err := o.cart.View(ctx)
	if err != nil {
		o.logger.Warn("live cart view failed", "error", err)
		return reply, st
	}
	reply += render.Clip(result.ClipPath)
	return reply, st
}

// --- remove_from_cart --------------------------------------------------

func (o *Orchestrator) handleRemoveFromCart(ctx context.Context, query string, st State) (string, State) {
	if len(st.CartItems) == 0 {
		return "Your cart is empty, so there's nothing to remove.", st
	}

	match, err := o.matcher.Match(ctx, query, cartCandidates(st.CartItems), st.HistoryLines(4))
	if err != nil {
		o.logger.Error("cart item matching failed", "error", err)
		return fmt.Sprintf("I couldn't work out which item you meant: %v.", err), st
	}

	idx := matchedIndex(match, len(st.CartItems))
	switch {
	case match.Confidence >= actThreshold && idx >= 0:
		removed := st.CartItems[idx]
		st.CartItems = append(st.CartItems[:idx], st.CartItems[idx+1:]...)

		// The browser cart is kept in sync best effort; the local removal
		// is the authoritative one.
		reply := render.SuccessBanner(fmt.Sprintf("%s has been removed from your cart.", removed.Name))
		result, err := o.cart.Remove(ctx, removed.Name)
		if err != nil || result.Status != cart.StatusSuccess {
			o.logger.Warn("browser cart remove failed", "product", removed.Name, "error", err)
		} else {
			reply += render.Clip(result.ClipPath)
		}
		return reply, st

	case match.Confidence >= confirmThreshold && idx >= 0:
		candidate := st.CartItems[idx]
		return fmt.Sprintf("Just to confirm: did you want to remove <strong>%s</strong> ($%s) from your cart? (%s)",
			candidate.Name, candidate.Price, match.Reasoning), st

	default:
		return o.removeSelectorReply(st), st
	}
}

func (o *Orchestrator) removeSelectorReply(st State) string {
	lines := make([]render.Line, 0, len(st.CartItems))
	for _, it := range st.CartItems {
		lines = append(lines, render.Line{Name: it.Name, Price: it.Price})
	}
	return "<p>I'm not sure which item you'd like to remove.</p>" + render.RemoveSelector(lines)
}

// --- clarification -----------------------------------------------------

func (o *Orchestrator) handleClarification(ctx context.Context, query string, rec intent.Record, st State) (string, State) {
	if intent.IsVagueQuery(query, st.PendingClarification != nil) && rec.Preferences.Empty() {
		st.PendingClarification = &ClarificationContext{OriginalQuery: query, AskedAt: o.now()}
		st.PendingSearch = nil
		return render.ClarificationChips(), st
	}

	category := categoryOr(rec.Category, "products")
	st.PendingSearch = &SearchContext{Category: category, Preferences: rec.Preferences}
	st.PendingClarification = nil

	prompt := fmt.Sprintf("The user is shopping for %s and said %q. Write one short, friendly question asking for their price range, preferred color, and any must-have features. No markdown.", category, query)
	reply, err := o.model.GenerateText(ctx, prompt)
	if err != nil {
		o.logger.Warn("clarification prompt failed, using fixed question", "error", err)
		reply = fmt.Sprintf("Happy to help you find %s! Could you share a price range, a color preference, and any must-have features?", category)
	}
	return reply, st
}

// --- search / refinement -----------------------------------------------

func (o *Orchestrator) handleSearch(ctx context.Context, query string, rec intent.Record, st State) (string, State) {
	prefs := rec.Preferences
	category := rec.Category
	if st.PendingSearch != nil {
		if category == "" {
			category = st.PendingSearch.Category
		}
		prefs = prefs.Merge(st.PendingSearch.Preferences)
	}
	if rec.Intent == intent.KindRefinement && category == "" {
		category = "furniture"
	}

	searchQuery := buildSearchQuery(query, category, prefs)
	k := 20
	if rec.Intent == intent.KindRefinement {
		k = 10
	}

	results, err := o.search.Search(ctx, searchQuery, k)
	if err != nil {
		o.logger.Error("catalog search failed", "query", searchQuery, "error", err)
		return fmt.Sprintf("I ran into a problem searching the catalog: %v. Could you try again?", err), st
	}
	if len(results) == 0 {
		return "I couldn't find any products matching those criteria. Could you try different terms or loosen a constraint?", st
	}

	scored := rank.Score(results, prefs)
	if len(scored) > 0 {
		intro := o.introLine(ctx, query, len(scored))
		st = replaceShown(st, scored)
		st.PendingSearch = nil
		st.PendingClarification = nil
		return render.ProductGrid(scored, intro) +
			"<p>Would you like more details about any of these, or shall I add one to your cart?</p>", st
	}

	// Nothing survived the preference filter: show the top raw hits with a
	// disclaimer instead of reporting no results.
	fallback := results
	if len(fallback) > 3 {
		fallback = fallback[:3]
	}
	intro := fmt.Sprintf("I found some products for %q, though they might not match all your specific criteria:", query)
	st = replaceShown(st, fallback)
	st.PendingSearch = nil
	st.PendingClarification = nil
	return render.ProductGrid(fallback, intro) +
		"<p>Want me to adjust the price range or other preferences?</p>", st
}

func (o *Orchestrator) introLine(ctx context.Context, query string, n int) string {
	prompt := fmt.Sprintf("A shopper searched for %q and we found %d matching products. Write one friendly sentence introducing the results. No markdown, no product names.", query, n)
	intro, err := o.model.GenerateText(ctx, prompt)
	if err != nil {
		return "Here are the best options matching your search:"
	}
	return strings.TrimSpace(intro)
}

// --- greeting / other --------------------------------------------------

func (o *Orchestrator) handleChat(ctx context.Context, query string, st State) string {
	var b strings.Builder
	b.WriteString("You are a friendly furniture shopping assistant. You can search the catalog, answer product questions, and manage the user's cart.\n")
	if lines := st.HistoryLines(3); len(lines) > 0 {
		b.WriteString("\nRECENT CONVERSATION:\n")
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\nUSER: %s\nReply conversationally in one or two sentences. No markdown.", query)

	reply, err := o.model.GenerateText(ctx, b.String())
	if err != nil {
		o.logger.Warn("chat reply failed", "error", err)
		return "Hello! I can help you find furniture, answer questions about products, and manage your shopping cart. What are you looking for?"
	}
	return reply
}

// --- helpers -----------------------------------------------------------

// replaceShown swaps the shown-product window (≤5) and invalidates the
// last-mentioned index in the same transition.
func replaceShown(st State, products []catalog.ProductRecord) State {
	if len(products) > 5 {
		products = products[:5]
	}
	st.LastShown = products
	st.LastMentioned = -1
	return st
}

// matchedIndex returns the matcher's top index when it is in range for n
// candidates, -1 otherwise. The Matcher interface does not promise clamped
// indices, so every tier re-checks before indexing.
func matchedIndex(m resolve.Match, n int) int {
	if len(m.Indices) == 0 {
		return -1
	}
	if idx := m.Indices[0]; idx >= 0 && idx < n {
		return idx
	}
	return -1
}

func categoryOr(category, fallback string) string {
	if strings.TrimSpace(category) == "" {
		return fallback
	}
	return category
}

func buildSearchQuery(raw, category string, prefs intent.Preferences) string {
	var parts []string
	if category != "" {
		parts = append(parts, category)
	}
	parts = append(parts, prefs.Colors...)
	parts = append(parts, prefs.Features...)
	if prefs.PriceRange != nil && prefs.PriceRange.Max != nil {
		parts = append(parts, fmt.Sprintf("under $%.0f", *prefs.PriceRange.Max))
	}
	if len(parts) == 0 {
		return raw
	}
	return strings.Join(parts, " ")
}

func productCandidates(products []catalog.ProductRecord) []resolve.Candidate {
	out := make([]resolve.Candidate, 0, len(products))
	for _, p := range products {
		out = append(out, resolve.Candidate{Name: p.Name, Price: p.Price, Description: p.Description})
	}
	return out
}

func cartCandidates(items []CartItem) []resolve.Candidate {
	out := make([]resolve.Candidate, 0, len(items))
	for _, it := range items {
		out = append(out, resolve.Candidate{Name: it.Name, Price: it.Price})
	}
	return out
}

func productID(p catalog.ProductRecord) string {
	if p.ID != "" {
		return p.ID
	}
	return uuid.NewString()
}
