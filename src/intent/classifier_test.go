package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hembot/hembot/src/catalog"
)

// fakeModel returns a canned response or error.
type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (m *fakeModel) GenerateText(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence with prose before", "Here you go:\n```json\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestClassify_ParsesWireRecord(t *testing.T) {
	model := &fakeModel{response: "```json\n" + `{
		"intent": "search",
		"product_category": "office chair",
		"preferences": {"price_range": {"min": null, "max": 150}, "colors": ["black"], "features": []},
		"product_references": {"type": "none", "indices": [], "description": ""}
	}` + "\n```"}
	c := NewClassifier(model, nil)

	rec, err := c.Classify(context.Background(), ClassifyRequest{Query: "black office chair under $150"})
	require.NoError(t, err)
	assert.Equal(t, KindSearch, rec.Intent)
	assert.Equal(t, "office chair", rec.Category)
	require.NotNil(t, rec.Preferences.PriceRange)
	assert.Equal(t, 150.0, *rec.Preferences.PriceRange.Max)
	assert.Equal(t, []string{"black"}, rec.Preferences.Colors)
	assert.Equal(t, RefNone, rec.Reference.Type)
}

func TestClassify_MalformedOutputFallsBack(t *testing.T) {
	model := &fakeModel{response: "I think the user wants a chair."}
	c := NewClassifier(model, nil)

	rec, err := c.Classify(context.Background(), ClassifyRequest{Query: "hmm"})
	require.NoError(t, err)
	assert.Equal(t, KindOther, rec.Intent)
	assert.Equal(t, RefNone, rec.Reference.Type)
}

func TestClassify_TransportErrorReturnsFallbackAndError(t *testing.T) {
	model := &fakeModel{err: errors.New("connection refused")}
	c := NewClassifier(model, nil)

	rec, err := c.Classify(context.Background(), ClassifyRequest{Query: "chairs"})
	require.Error(t, err)
	assert.Equal(t, KindOther, rec.Intent)
}

func TestClassify_UnknownIntentBecomesOther(t *testing.T) {
	model := &fakeModel{response: `{"intent": "purchase_all", "product_references": {"type": "telepathic"}}`}
	c := NewClassifier(model, nil)

	rec, err := c.Classify(context.Background(), ClassifyRequest{Query: "buy everything"})
	require.NoError(t, err)
	assert.Equal(t, KindOther, rec.Intent)
	assert.Equal(t, RefNone, rec.Reference.Type)
}

func TestNormalize_Policy(t *testing.T) {
	shown := []catalog.ProductRecord{{Name: "MARKUS", Price: "229.00"}}

	tests := []struct {
		name  string
		raw   string
		req   ClassifyRequest
		want  Kind
	}{
		{
			name: "bare category with nothing shown becomes clarification",
			raw:  `{"intent": "search", "product_category": "chairs"}`,
			req:  ClassifyRequest{Query: "chairs"},
			want: KindClarification,
		},
		{
			name: "category plus detail stays search",
			raw:  `{"intent": "search", "product_category": "chairs"}`,
			req:  ClassifyRequest{Query: "black chairs"},
			want: KindSearch,
		},
		{
			name: "bare constraint after products were shown becomes refinement",
			raw:  `{"intent": "search"}`,
			req:  ClassifyRequest{Query: "under $200", Shown: shown},
			want: KindRefinement,
		},
		{
			name: "clarification answer with category and detail becomes search",
			raw:  `{"intent": "clarification", "product_category": "office chairs"}`,
			req:  ClassifyRequest{Query: "office chairs in black under $150"},
			want: KindSearch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(&fakeModel{response: tt.raw}, nil)
			rec, err := c.Classify(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Intent)
		})
	}
}

func TestNormalize_BackfillsExtractedPreferences(t *testing.T) {
	// Model misses the price; the extractor backfills it.
	model := &fakeModel{response: `{"intent": "search", "product_category": "desk"}`}
	c := NewClassifier(model, nil)

	rec, err := c.Classify(context.Background(), ClassifyRequest{Query: "white desk under $300"})
	require.NoError(t, err)
	assert.Equal(t, KindSearch, rec.Intent)
	require.NotNil(t, rec.Preferences.PriceRange)
	assert.Equal(t, 300.0, *rec.Preferences.PriceRange.Max)
	assert.Equal(t, []string{"white"}, rec.Preferences.Colors)
}

func TestBuildPrompt_IncludesCartTotals(t *testing.T) {
	model := &fakeModel{response: `{"intent": "other"}`}
	c := NewClassifier(model, nil)

	_, err := c.Classify(context.Background(), ClassifyRequest{
		Query: "what's my total?",
		Cart: []CartLine{
			{Name: "MARKUS chair", Price: "229.00"},
			{Name: "LACK table", Price: "49.99"},
		},
	})
	require.NoError(t, err)
	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Subtotal: $278.99")
	assert.Contains(t, prompt, "Tax (8%): $22.32")
	assert.Contains(t, prompt, "TOTAL: $301.31")
}
