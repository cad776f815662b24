// Package aichat calls an OpenAI-compatible chat completion API. Model
// selection is a stateful failover policy shared across requests: provider
// errors advance a cursor through the configured model list instead of
// failing the next request on the same broken model.
package aichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/complyard/complyard/internal/apperr"
)

// Failover holds the ordered model list and the index of the model currently
// believed healthy. It is safe for concurrent use and is injected into the
// client rather than living as package state.
type Failover struct {
	mu     sync.Mutex
	models []string
	idx    int
}

// NewFailover creates a failover policy over the given ordered model list.
func NewFailover(models []string) *Failover {
	return &Failover{models: models}
}

// Current returns the model to try first.
func (f *Failover) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.models) == 0 {
		return ""
	}
	return f.models[f.idx]
}

// Advance moves past the given model if it is still the current one. The
// cursor wraps around; a fully broken provider keeps cycling rather than
// pinning the last model.
func (f *Failover) Advance(failed string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.models) == 0 || f.models[f.idx] != failed {
		return
	}
	f.idx = (f.idx + 1) % len(f.models)
	slog.Warn("AI model failover", "failed", failed, "next", f.models[f.idx])
}

// Len returns the number of configured models.
func (f *Failover) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.models)
}

// Client talks to an OpenAI-compatible completion endpoint.
type Client struct {
	baseURL  string
	apiKey   string
	failover *Failover
	http     *http.Client
}

// NewClient creates a chat client. failover must not be nil.
func NewClient(baseURL, apiKey string, failover *Failover) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		failover: failover,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends the conversation to the provider, trying each configured
// model starting from the failover cursor. Every provider failure is
// translated to the Unavailable kind.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, Message, error) {
	if c.apiKey == "" {
		return "", Message{}, apperr.New(apperr.Unavailable, "AI provider is not configured")
	}
	if c.failover.Len() == 0 {
		return "", Message{}, apperr.New(apperr.Unavailable, "no AI models configured")
	}

	var lastErr error
	for attempt := 0; attempt < c.failover.Len(); attempt++ {
		model := c.failover.Current()

		reply, err := c.completeWith(ctx, model, messages)
		if err == nil {
			return model, reply, nil
		}

		lastErr = err
		slog.Warn("AI completion failed", "model", model, "error", err)
		c.failover.Advance(model)

		if ctx.Err() != nil {
			break
		}
	}

	return "", Message{}, apperr.Wrap(apperr.Unavailable, "AI provider request failed", lastErr)
}

func (c *Client) completeWith(ctx context.Context, model string, messages []Message) (Message, error) {
	body, err := json.Marshal(completionRequest{Model: model, Messages: messages})
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Message{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Message{}, fmt.Errorf("provider returned %d: %s", resp.StatusCode, data)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Message{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Message{}, fmt.Errorf("provider returned no choices")
	}

	return out.Choices[0].Message, nil
}
