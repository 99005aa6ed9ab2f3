
package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "write a caption" {
			t.Errorf("messages = %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  A great caption.\n"}},
			},
		})
	}))
	defer srv.Close()

	c := New("test-key", "test-model", srv.URL)
	got, err := c.Complete(context.Background(), "write a caption")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "A great caption." {
		t.Errorf("completion = %q", got)
	}
}

func TestCompleteDisabled(t *testing.T) {
	c := New("", "test-model", "http://localhost:0")
	if !errors.Is(mustErr(t, c), ErrDisabled) {
		t.Fatal("expected ErrDisabled without an API key")
	}
	if c.Enabled() {
		t.Fatal("client without key reports enabled")
	}
}

func mustErr(t *testing.T, c *Client) error {
	t.Helper()
	_, err := c.Complete(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	return err
}

func TestCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New("test-key", "test-model", srv.URL)
	_, err := c.Complete(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want http 429 error", err)
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model not found"},
		})
	}))
	defer srv.Close()

	c := New("test-key", "test-model", srv.URL)
	_, err := c.Complete(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("err = %v, want api error", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := New("test-key", "test-model", srv.URL)
	if _, err := c.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
