package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dbgenie/dbgenie/pkg/models"
)

func openAIServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "" || len(req.Messages) == 0 {
			t.Errorf("incomplete request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	srv := openAIServer(t, "hello from the model")
	c := NewWithProviders(Provider{Name: "primary", Kind: "openai", Endpoint: srv.URL, Model: "gpt-4o-mini"})

	got, err := c.Complete(context.Background(), []models.ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "hello from the model" {
		t.Errorf("Complete() = %q", got)
	}
}

func TestCompleteFailover(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(broken.Close)
	healthy := openAIServer(t, "fallback answer")

	c := NewWithProviders(
		Provider{Name: "primary", Kind: "openai", Endpoint: broken.URL, Model: "m"},
		Provider{Name: "fallback", Kind: "ollama", Endpoint: healthy.URL, Model: "m"},
	)

	got, err := c.Complete(context.Background(), []models.ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "fallback answer" {
		t.Errorf("Complete() = %q", got)
	}
}

func TestCompleteAllProvidersFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)

	c := NewWithProviders(Provider{Name: "primary", Kind: "openai", Endpoint: broken.URL, Model: "m"})
	if _, err := c.Complete(context.Background(), []models.ChatMessage{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("Complete() should fail when every provider fails")
	}
}

func TestCompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, token := range []string{"The ", "answer ", "is 42."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", token)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	c := NewWithProviders(Provider{Name: "primary", Kind: "openai", Endpoint: srv.URL, Model: "m"})

	var chunks []string
	sawDone := false
	full, err := c.CompleteStream(context.Background(),
		[]models.ChatMessage{{Role: "user", Content: "q"}},
		func(chunk *models.StreamChunk) error {
			if chunk.Done {
				sawDone = true
				return nil
			}
			chunks = append(chunks, chunk.Content)
			return nil
		})
	if err != nil {
		t.Fatalf("CompleteStream() error = %v", err)
	}
	if full != "The answer is 42." {
		t.Errorf("drained = %q", full)
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(chunks))
	}
	if !sawDone {
		t.Error("never saw the Done chunk")
	}
}

func TestCompleteStreamFailoverBeforeContent(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(healthy.Close)

	c := NewWithProviders(
		Provider{Name: "primary", Kind: "openai", Endpoint: broken.URL, Model: "m"},
		Provider{Name: "fallback", Kind: "openai", Endpoint: healthy.URL, Model: "m"},
	)
	full, err := c.CompleteStream(context.Background(),
		[]models.ChatMessage{{Role: "user", Content: "q"}},
		func(chunk *models.StreamChunk) error { return nil })
	if err != nil {
		t.Fatalf("CompleteStream() error = %v", err)
	}
	if full != "ok" {
		t.Errorf("drained = %q", full)
	}
}

func TestAnthropicSystemSplit(t *testing.T) {
	var seen anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&seen)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "claude says hi"}},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewWithProviders(Provider{Name: "primary", Kind: "anthropic", Endpoint: srv.URL, APIKey: "sk-test", Model: "m"})
	got, err := c.Complete(context.Background(), []models.ChatMessage{
		{Role: "system", Content: "use the context"},
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "claude says hi" {
		t.Errorf("Complete() = %q", got)
	}
	if seen.System != "use the context" {
		t.Errorf("system field = %q", seen.System)
	}
	if len(seen.Messages) != 1 || seen.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", seen.Messages)
	}
}

func TestLatencyMovingAverage(t *testing.T) {
	c := NewWithProviders()
	c.trackLatency("p", 100)
	if got := c.Latency("p"); got != 100 {
		t.Fatalf("first sample = %d, want 100", got)
	}
	c.trackLatency("p", 200)
	// (100*7 + 200*3) / 10 = 130
	if got := c.Latency("p"); got != 130 {
		t.Errorf("EMA = %d, want 130", got)
	}
}
