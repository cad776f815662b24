package aichat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/complyard/complyard/internal/apperr"
)

// fakeProvider answers /chat/completions, failing for models in the broken
// set and echoing for the rest.
func fakeProvider(t *testing.T, broken map[string]bool, calls *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		*calls = append(*calls, req.Model)

		if broken[req.Model] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		resp := completionResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message Message `json:"message"`
		}{Message{Role: "assistant", Content: "reply from " + req.Model}})
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestComplete_Success(t *testing.T) {
	var calls []string
	srv := fakeProvider(t, nil, &calls)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", NewFailover([]string{"alpha", "beta"}))
	model, reply, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if model != "alpha" {
		t.Errorf("expected first model, got %q", model)
	}
	if reply.Content != "reply from alpha" {
		t.Errorf("unexpected reply: %+v", reply)
	}
}

func TestComplete_FailoverAdvancesAndSticks(t *testing.T) {
	var calls []string
	srv := fakeProvider(t, map[string]bool{"alpha": true}, &calls)
	defer srv.Close()

	failover := NewFailover([]string{"alpha", "beta"})
	client := NewClient(srv.URL, "test-key", failover)

	model, _, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("expected failover to succeed, got %v", err)
	}
	if model != "beta" {
		t.Errorf("expected beta after failover, got %q", model)
	}

	// The next request starts directly on the healthy model.
	calls = calls[:0]
	if _, _, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "again"}}); err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if len(calls) != 1 || calls[0] != "beta" {
		t.Errorf("expected a single call to beta, got %v", calls)
	}
}

func TestComplete_AllModelsBroken(t *testing.T) {
	var calls []string
	srv := fakeProvider(t, map[string]bool{"alpha": true, "beta": true}, &calls)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", NewFailover([]string{"alpha", "beta"}))
	_, _, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error when every model fails")
	}
	if apperr.KindOf(err) != apperr.Unavailable {
		t.Errorf("expected Unavailable kind, got %v", apperr.KindOf(err))
	}
	if len(calls) != 2 {
		t.Errorf("expected one attempt per model, got %v", calls)
	}
}

func TestComplete_MissingAPIKey(t *testing.T) {
	client := NewClient("http://unused", "", NewFailover([]string{"alpha"}))
	_, _, err := client.Complete(context.Background(), nil)
	if apperr.KindOf(err) != apperr.Unavailable {
		t.Errorf("expected Unavailable for unconfigured provider, got %v", err)
	}
}

func TestFailover_AdvanceIgnoresStaleModel(t *testing.T) {
	f := NewFailover([]string{"alpha", "beta", "gamma"})
	f.Advance("alpha")
	if f.Current() != "beta" {
		t.Fatalf("expected beta, got %q", f.Current())
	}

	// A concurrent request reporting the already-rotated model must not
	// double-advance.
	f.Advance("alpha")
	if f.Current() != "beta" {
		t.Errorf("stale advance moved cursor to %q", f.Current())
	}
}
