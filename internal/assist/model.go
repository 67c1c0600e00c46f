package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModelTimeout   = 30 * time.Second
	defaultModelMaxTokens = 500
)

// ModelClient invokes a hosted language model directly, the last
// routing stage. The endpoint speaks the messages protocol: a model id,
// a token budget, and a list of role/content messages.
type ModelClient struct {
	url        string
	apiKey     string
	modelID    string
	maxTokens  int
	httpClient *http.Client
}

// NewModelClient creates a model invoker.
//
// Parameters:
//   - url: Model endpoint URL
//   - apiKey: API key sent in the x-api-key header, empty to omit
//   - modelID: Model identifier passed in the request body
//   - maxTokens: Response token budget (default 500 when zero)
//   - timeout: Per-request timeout (default 30s when zero)
//
// Returns:
//   - *ModelClient: Client ready for use
//   - error: If the URL or model id is missing
func NewModelClient(url, apiKey, modelID string, maxTokens int, timeout time.Duration) (*ModelClient, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("model url is required")
	}
	if modelID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if maxTokens <= 0 {
		maxTokens = defaultModelMaxTokens
	}
	if timeout <= 0 {
		timeout = defaultModelTimeout
	}

	return &ModelClient{
		url:        url,
		apiKey:     apiKey,
		modelID:    modelID,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type modelRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	Messages  []modelMessage `json:"messages"`
}

type modelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type modelResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sends one user prompt to the model and returns the text of
// its reply.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - prompt: The complete prompt, context included
//
// Returns:
//   - string: The model's reply text
//   - error: Transport failures, API errors, or an empty reply
func (c *ModelClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}

	body, err := json.Marshal(modelRequest{
		Model:     c.modelID,
		MaxTokens: c.maxTokens,
		Messages: []modelMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrModelUnavailable, resp.StatusCode)
	}

	var decoded modelResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrModelUnavailable, decoded.Error.Type, decoded.Error.Message)
	}

	for _, content := range decoded.Content {
		if content.Type == "text" && content.Text != "" {
			return content.Text, nil
		}
	}

	return "", fmt.Errorf("%w: empty reply", ErrModelUnavailable)
}
