// Package gemini is a minimal HTTP client for the Gemini generateContent and
// embedContent endpoints. It is the language-understanding and embedding
// capability the rest of the system is injected with.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel      = "gemini-2.5-flash"
	defaultEmbedModel = "gemini-embedding-001"
	defaultTimeout    = 30 * time.Second
)

// Config holds the client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Client calls the Gemini REST API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Gemini API client with sane defaults.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.EmbedModel == "" {
		config.EmbedModel = defaultEmbedModel
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gemini_client")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateText sends a single free-form completion request and returns the
// raw text of the first candidate. Callers are responsible for stripping
// markdown fences before decoding structured output.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	logger := c.logger.With("method", "GenerateText", "model", c.config.Model)
	logger.Debug("sending generateContent request", "prompt_len", len(prompt))

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/models/%s:generateContent", c.config.Model)
	respBody, err := c.doRequestWithRetry(ctx, path, body)
	if err != nil {
		logger.Error("request failed", "error", err)
		return "", err
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	text := result.Candidates[0].Content.Parts[0].Text
	logger.Debug("generateContent successful", "response_len", len(text))
	return text, nil
}

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// EmbedText returns the embedding vector for the given text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	logger := c.logger.With("method", "EmbedText", "model", c.config.EmbedModel)

	body, err := json.Marshal(embedRequest{
		Model:   "models/" + c.config.EmbedModel,
		Content: content{Parts: []part{{Text: text}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/models/%s:embedContent", c.config.EmbedModel)
	respBody, err := c.doRequestWithRetry(ctx, path, body)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}

	var result embedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embedding.Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return result.Embedding.Values, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.config.APIKey)
	return req, nil
}

// doRequestWithRetry posts body to path, retrying server errors with linear
// backoff. Client errors (4xx) are returned immediately.
func (c *Client) doRequestWithRetry(ctx context.Context, path string, body []byte) ([]byte, error) {
	logger := c.logger.With("method", "doRequestWithRetry", "path", path)
	var lastErr error

	for i := 0; i < c.config.RetryCount; i++ {
		req, err := c.newRequest(ctx, path, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Debug("request attempt failed", "attempt", i+1, "error", err)
			if !sleepCtx(ctx, c.config.RetryDelay*time.Duration(i+1)) {
				return nil, ctx.Err()
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", readErr)
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, parseAPIError(resp.StatusCode, respBody)
		}

		lastErr = parseAPIError(resp.StatusCode, respBody)
		logger.Debug("server error, retrying", "attempt", i+1, "status_code", resp.StatusCode)
		if !sleepCtx(ctx, c.config.RetryDelay*time.Duration(i+1)) {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.config.RetryCount, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
