package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/infra/config"
)

func TestAnthropicComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != defaultAnthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			ID:      "msg-123",
			Model:   "claude-sonnet-4-20250514",
			Content: []anthropicContent{{Type: "text", Text: "Hello there"}},
			Usage:   anthropicUsage{InputTokens: 8, OutputTokens: 3},
		})
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-20250514",
	}, newTestLogger())

	result, err := provider.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Content != "Hello there" {
		t.Errorf("Content = %q, want %q", result.Content, "Hello there")
	}
	if result.Usage.TotalTokens != 11 {
		t.Errorf("TotalTokens = %d, want 11", result.Usage.TotalTokens)
	}
}

func TestAnthropicCompleteStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("unexpected Accept: %s", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)

		events := []string{
			`data: {"type":"message_start"}`,
			`data: {"type":"content_block_start","content_block":{"type":"text"}}`,
			`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`,
			`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":" world"}}`,
			`data: {"type":"message_delta","usage":{"input_tokens":5,"output_tokens":2}}`,
			`data: {"type":"message_stop"}`,
		}
		for _, e := range events {
			fmt.Fprintln(w, e)
			fmt.Fprintln(w)
			flusher.Flush()
		}
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-20250514",
	}, newTestLogger())

	ch, err := provider.CompleteStream(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}

	var content string
	var gotDone bool
	var usage *domain.Usage
	for delta := range ch {
		content += delta.Content
		if delta.Done {
			gotDone = true
		}
		if delta.Usage != nil {
			usage = delta.Usage
		}
	}

	if content != "Hello world" {
		t.Errorf("content = %q, want %q", content, "Hello world")
	}
	if !gotDone {
		t.Error("expected Done=true")
	}
	if usage == nil || usage.TotalTokens != 7 {
		t.Errorf("usage = %+v, want TotalTokens=7", usage)
	}
}

func TestAnthropicCompleteStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "bad-key",
	}, newTestLogger())

	_, err := provider.CompleteStream(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if err == nil {
		t.Fatal("expected error from HTTP error")
	}
}

func TestAnthropicHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, newTestLogger())

	if err := provider.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestAnthropicHealthCheckAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "bad-key",
	}, newTestLogger())

	if err := provider.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for 401 probe")
	}
}

func TestAnthropicRequestConversion(t *testing.T) {
	req := domain.CompletionRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are helpful."},
			{Role: domain.RoleUser, Content: "Hello"},
		},
		MaxTokens: 1024,
	}

	antReq := toAnthropicRequest(req)

	if antReq.System != "You are helpful." {
		t.Errorf("System = %q, want %q", antReq.System, "You are helpful.")
	}
	if len(antReq.Messages) != 1 {
		t.Fatalf("Messages len = %d, want 1 (system extracted)", len(antReq.Messages))
	}
	if antReq.Messages[0].Role != "user" {
		t.Errorf("Message role = %q, want %q", antReq.Messages[0].Role, "user")
	}
	if antReq.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", antReq.MaxTokens)
	}
}

func TestAnthropicRequestDefaultMaxTokens(t *testing.T) {
	antReq := toAnthropicRequest(domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hi"}},
	})
	if antReq.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096 default", antReq.MaxTokens)
	}
}

func TestAnthropicResponseJoinsTextBlocks(t *testing.T) {
	resp := anthropicResponse{
		ID: "msg-1",
		Content: []anthropicContent{
			{Type: "text", Text: "part one"},
			{Type: "text", Text: " part two"},
		},
	}
	result := fromAnthropicResponse(resp, "test")
	if result.Content != "part one part two" {
		t.Errorf("Content = %q", result.Content)
	}
	if result.Provider != "test" {
		t.Errorf("Provider = %q, want test", result.Provider)
	}
}
