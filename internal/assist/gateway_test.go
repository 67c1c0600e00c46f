package assist

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/thingview-core/internal/state"
)

func TestGatewayQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoke" {
			t.Errorf("path = %q, want /invoke", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("request is not JSON: %v", err)
		}
		if req["method"] != "tools/call" {
			t.Errorf("method = %v", req["method"])
		}

		_, _ = w.Write([]byte(`{"result": {"content": [{"type": "text", "text": "it is 23.5 degrees"}]}}`))
	}))
	defer server.Close()

	client, err := NewGatewayClient(server.URL, "secret", time.Second)
	if err != nil {
		t.Fatalf("NewGatewayClient() error = %v", err)
	}

	text, err := client.Query(t.Context(), "what is the temperature", &state.DeviceState{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if text != "it is 23.5 degrees" {
		t.Errorf("text = %q", text)
	}
}

func TestGatewayQueryErrorResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"http error", `{}`, http.StatusBadGateway},
		{"rpc error", `{"error": {"code": -32000, "message": "tool failed"}}`, http.StatusOK},
		{"no result", `{}`, http.StatusOK},
		{"empty answer", `{"result": {"content": []}}`, http.StatusOK},
		{"malformed body", `not json`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewGatewayClient(server.URL, "", time.Second)
			if err != nil {
				t.Fatalf("NewGatewayClient() error = %v", err)
			}
			if _, err := client.Query(t.Context(), "anything", nil); err == nil {
				t.Error("Query() should fail")
			}
		})
	}
}

func TestGatewayQueryFallbackResponseField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"response": "plain answer"}}`))
	}))
	defer server.Close()

	client, err := NewGatewayClient(server.URL, "", time.Second)
	if err != nil {
		t.Fatalf("NewGatewayClient() error = %v", err)
	}

	text, err := client.Query(t.Context(), "anything", nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if text != "plain answer" {
		t.Errorf("text = %q", text)
	}
}

func TestNewGatewayClientValidation(t *testing.T) {
	if _, err := NewGatewayClient("", "", time.Second); err == nil {
		t.Error("NewGatewayClient() should reject an empty url")
	}
}
