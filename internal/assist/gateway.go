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

	"github.com/nerrad567/thingview-core/internal/state"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	maxResponseSize       = 1 << 20 // 1 MB
)

// GatewayClient calls the external reasoning gateway, the first routing
// stage. The gateway speaks a JSON-RPC tool protocol over HTTP POST.
type GatewayClient struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewGatewayClient creates a reasoning gateway client.
//
// Parameters:
//   - url: Gateway base URL
//   - token: Bearer token, empty for unauthenticated gateways
//   - timeout: Per-request timeout (default 10s when zero)
//
// Returns:
//   - *GatewayClient: Client ready for use
//   - error: If the URL is missing
func NewGatewayClient(url, token string, timeout time.Duration) (*GatewayClient, error) {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		return nil, fmt.Errorf("gateway url is required")
	}
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &GatewayClient{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// gatewayRequest is the JSON-RPC envelope the gateway expects.
type gatewayRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  gatewayParams `json:"params"`
}

type gatewayParams struct {
	Name      string           `json:"name"`
	Arguments gatewayArguments `json:"arguments"`
}

type gatewayArguments struct {
	Query   string `json:"query"`
	Context any    `json:"context,omitempty"`
}

type gatewayResponse struct {
	Result *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Response string `json:"response"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Query asks the gateway to answer a natural language query, passing
// the current device view as tool context.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - query: The user's question
//   - deviceState: Current merged view, may be nil
//
// Returns:
//   - string: The gateway's answer text
//   - error: Transport, protocol, or empty-answer failures
func (c *GatewayClient) Query(ctx context.Context, query string, deviceState *state.DeviceState) (string, error) {
	body, err := json.Marshal(gatewayRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params: gatewayParams{
			Name: "natural_language_query",
			Arguments: gatewayArguments{
				Query:   query,
				Context: deviceState,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("reading gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}

	var decoded gatewayResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decoding gateway response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("gateway error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if decoded.Result == nil {
		return "", fmt.Errorf("gateway returned no result")
	}

	for _, content := range decoded.Result.Content {
		if content.Type == "text" && content.Text != "" {
			return content.Text, nil
		}
	}
	if decoded.Result.Response != "" {
		return decoded.Result.Response, nil
	}

	return "", fmt.Errorf("gateway returned an empty answer")
}
