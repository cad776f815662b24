package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/complyard/complyard/internal/aichat"
)

func TestChatComplete_ReturnsAssistantReply(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Rotate the credentials."}},
			},
		})
	}))
	defer provider.Close()

	client := aichat.NewClient(provider.URL, "test-key", aichat.NewFailover([]string{"model-a"}))
	h := NewChatHandler(client)

	c, w := testContext(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "A key leaked, what now?"}},
	}, 7)
	h.Complete(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Model   string         `json:"model"`
		Message aichat.Message `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Model != "model-a" || resp.Message.Content == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestChatComplete_ProviderDownIsUnavailable(t *testing.T) {
	client := aichat.NewClient("http://127.0.0.1:0", "test-key", aichat.NewFailover([]string{"model-a"}))
	h := NewChatHandler(client)

	c, w := testContext(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
	}, 7)
	h.Complete(c)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
}

func TestChatComplete_EmptyMessagesIsBadRequest(t *testing.T) {
	client := aichat.NewClient("http://localhost", "key", aichat.NewFailover([]string{"m"}))
	h := NewChatHandler(client)

	c, w := testContext(t, http.MethodPost, "/api/v1/chat", map[string]any{"messages": []any{}}, 7)
	h.Complete(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
