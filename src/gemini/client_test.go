package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RetryCount: 3,
		RetryDelay: time.Millisecond,
	})
}

func generateBody(text string) []byte {
	out, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return out
}

func TestGenerateText_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write(generateBody("hello back"))
	})

	text, err := c.GenerateText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello back", text)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "hello", gotReq.Contents[0].Parts[0].Text)
}

func TestGenerateText_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(generateBody("third time lucky"))
	})

	text, err := c.GenerateText(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateText_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"invalid request","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := c.GenerateText(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "INVALID_ARGUMENT", apiErr.Status)
	assert.Equal(t, "invalid request", apiErr.Message)
	assert.False(t, apiErr.IsRetryable())
}

func TestGenerateText_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GenerateText(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, err.Error(), "after 3 retries")
}

func TestGenerateText_EmptyCandidates(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := c.GenerateText(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEmbedText(t *testing.T) {
	var gotPath string
	var gotReq embedRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	})

	vec, err := c.EmbedText(context.Background(), "black office chair")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "/models/gemini-embedding-001:embedContent", gotPath)
	assert.Equal(t, "models/gemini-embedding-001", gotReq.Model)
	assert.Equal(t, "black office chair", gotReq.Content.Parts[0].Text)
}

func TestEmbedText_EmptyVector(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":{"values":[]}}`))
	})

	_, err := c.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAPIError_Classification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		rateLimit bool
		auth      bool
	}{
		{http.StatusInternalServerError, true, false, false},
		{http.StatusTooManyRequests, true, true, false},
		{http.StatusUnauthorized, false, false, true},
		{http.StatusForbidden, false, false, true},
		{http.StatusBadRequest, false, false, false},
	}
	for _, tt := range tests {
		e := &APIError{StatusCode: tt.status}
		assert.Equal(t, tt.retryable, e.IsRetryable(), "status %d", tt.status)
		assert.Equal(t, tt.rateLimit, e.IsRateLimit(), "status %d", tt.status)
		assert.Equal(t, tt.auth, e.IsAuthError(), "status %d", tt.status)
	}
}

func TestParseAPIError_UnstructuredBody(t *testing.T) {
	err := parseAPIError(http.StatusBadGateway, []byte("upstream went away"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream went away", apiErr.Message)
}
