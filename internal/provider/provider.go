// Package provider implements the completion provider client.
//
// Each configured provider is called through a kind-specific driver
// (openai, azure-openai, anthropic, ollama — unknown kinds get the
// OpenAI-compatible driver). Providers are tried in configured order and
// failover is transparent: the pipeline only sees the first successful
// response. Latency per provider is tracked with an exponential moving
// average for observability.
package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dbgenie/dbgenie/internal/config"
	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/rs/zerolog/log"
)

// Provider is one configured completion backend.
type Provider struct {
	Name     string
	Kind     string
	Endpoint string
	APIKey   string
	Model    string
}

// Client sends chat completions to configured providers with failover.
type Client struct {
	providers []Provider
	client    *http.Client

	latencyMu sync.RWMutex
	latencies map[string]int64
}

// New builds a client from configuration. The fallback provider, when
// configured, is tried after the primary.
func New(cfg config.ProviderConfig) *Client {
	providers := []Provider{{
		Name:     "primary",
		Kind:     cfg.Kind,
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
	}}
	if cfg.FallbackKind != "" {
		providers = append(providers, Provider{
			Name:     "fallback",
			Kind:     cfg.FallbackKind,
			Endpoint: cfg.FallbackEndpoint,
			APIKey:   cfg.FallbackAPIKey,
			Model:    cfg.FallbackModel,
		})
	}
	return NewWithProviders(providers...)
}

// NewWithProviders builds a client over an explicit provider list.
func NewWithProviders(providers ...Provider) *Client {
	return &Client{
		providers: providers,
		client:    &http.Client{Timeout: 120 * time.Second},
		latencies: make(map[string]int64),
	}
}

// Complete returns the full completion text, failing over across providers.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	var lastErr error
	for i := range c.providers {
		p := &c.providers[i]
		start := time.Now()
		content, err := c.call(ctx, p, messages)
		if err != nil {
			log.Warn().Str("provider", p.Name).Str("kind", p.Kind).Err(err).Msg("Provider call failed, trying next")
			lastErr = err
			continue
		}
		c.trackLatency(p.Name, time.Since(start).Milliseconds())
		return content, nil
	}
	return "", fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// CompleteStream streams the completion through fn, one chunk per token
// batch, ending with a Done chunk. Returns the full drained text. Only the
// first provider that accepts the request is used; failover happens only
// before any content has been forwarded.
func (c *Client) CompleteStream(ctx context.Context, messages []models.ChatMessage, fn func(*models.StreamChunk) error) (string, error) {
	var lastErr error
	for i := range c.providers {
		p := &c.providers[i]
		start := time.Now()
		text, started, err := c.stream(ctx, p, messages, fn)
		if err != nil {
			if started {
				// Content already reached the caller; do not retry on a
				// different provider mid-answer.
				return text, err
			}
			log.Warn().Str("provider", p.Name).Str("kind", p.Kind).Err(err).Msg("Provider stream failed, trying next")
			lastErr = err
			continue
		}
		c.trackLatency(p.Name, time.Since(start).Milliseconds())
		return text, nil
	}
	return "", fmt.Errorf("all providers failed, last error: %w", lastErr)
}

func (c *Client) trackLatency(name string, ms int64) {
	c.latencyMu.Lock()
	prev := c.latencies[name]
	if prev == 0 {
		c.latencies[name] = ms
	} else {
		c.latencies[name] = (prev*7 + ms*3) / 10
	}
	c.latencyMu.Unlock()
}

// Latency returns the rolling average latency for a provider in ms.
func (c *Client) Latency(name string) int64 {
	c.latencyMu.RLock()
	defer c.latencyMu.RUnlock()
	return c.latencies[name]
}

func (c *Client) call(ctx context.Context, p *Provider, messages []models.ChatMessage) (string, error) {
	switch p.Kind {
	case "anthropic":
		return c.callAnthropic(ctx, p, messages)
	default:
		// openai, azure-openai, ollama and any OpenAI-compatible endpoint
		return c.callOpenAI(ctx, p, messages)
	}
}

func (c *Client) stream(ctx context.Context, p *Provider, messages []models.ChatMessage, fn func(*models.StreamChunk) error) (string, bool, error) {
	switch p.Kind {
	case "anthropic":
		return c.streamAnthropic(ctx, p, messages, fn)
	default:
		return c.streamOpenAI(ctx, p, messages, fn)
	}
}

// ── OpenAI-compatible driver ────────────────────────────────

type openAIRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) openAIEndpoint(p *Provider) string {
	endpoint := p.Endpoint
	if endpoint == "" {
		switch p.Kind {
		case "ollama":
			endpoint = "http://localhost:11434/v1"
		default:
			endpoint = "https://api.openai.com/v1"
		}
	}
	return endpoint + "/chat/completions"
}

func (c *Client) newOpenAIRequest(ctx context.Context, p *Provider, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openAIEndpoint(p), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", p.Kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Azure OpenAI uses a different auth header
	if p.Kind == "azure-openai" {
		req.Header.Set("api-key", p.APIKey)
	} else if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	return req, nil
}

func (c *Client) callOpenAI(ctx context.Context, p *Provider, messages []models.ChatMessage) (string, error) {
	body, _ := json.Marshal(openAIRequest{Model: p.Model, Messages: messages})
	req, err := c.newOpenAIRequest(ctx, p, body)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: request failed: %w", p.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%s: status %d: %s", p.Kind, resp.StatusCode, string(respBody))
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", p.Kind, err)
	}
	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", p.Kind)
	}
	return oaiResp.Choices[0].Message.Content, nil
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) streamOpenAI(ctx context.Context, p *Provider, messages []models.ChatMessage, fn func(*models.StreamChunk) error) (string, bool, error) {
	body, _ := json.Marshal(openAIRequest{Model: p.Model, Messages: messages, Stream: true})
	req, err := c.newOpenAIRequest(ctx, p, body)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("%s: request failed: %w", p.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", false, fmt.Errorf("%s: status %d: %s", p.Kind, resp.StatusCode, string(respBody))
	}

	var full strings.Builder
	started := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full.WriteString(token)
		started = true
		if err := fn(&models.StreamChunk{Content: token}); err != nil {
			return full.String(), started, err
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), started, fmt.Errorf("%s: read stream: %w", p.Kind, err)
	}

	if err := fn(&models.StreamChunk{Done: true}); err != nil {
		return full.String(), started, err
	}
	return full.String(), started, nil
}

// ── Anthropic driver ────────────────────────────────────────

type anthropicRequest struct {
	Model     string               `json:"model"`
	System    string               `json:"system,omitempty"`
	Messages  []models.ChatMessage `json:"messages"`
	MaxTokens int                  `json:"max_tokens"`
	Stream    bool                 `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// splitSystem pulls leading system messages out of the list; Anthropic
// takes the system prompt as a top-level field.
func splitSystem(messages []models.ChatMessage) (string, []models.ChatMessage) {
	var system []string
	rest := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func (c *Client) newAnthropicRequest(ctx context.Context, p *Provider, body []byte) (*http.Request, error) {
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return req, nil
}

func (c *Client) callAnthropic(ctx context.Context, p *Provider, messages []models.ChatMessage) (string, error) {
	system, rest := splitSystem(messages)
	body, _ := json.Marshal(anthropicRequest{Model: p.Model, System: system, Messages: rest, MaxTokens: 4096})
	req, err := c.newAnthropicRequest(ctx, p, body)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, string(respBody))
	}

	var anthResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthResp); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	content := ""
	for _, block := range anthResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (c *Client) streamAnthropic(ctx context.Context, p *Provider, messages []models.ChatMessage, fn func(*models.StreamChunk) error) (string, bool, error) {
	system, rest := splitSystem(messages)
	body, _ := json.Marshal(anthropicRequest{Model: p.Model, System: system, Messages: rest, MaxTokens: 4096, Stream: true})
	req, err := c.newAnthropicRequest(ctx, p, body)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", false, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, string(respBody))
	}

	var full strings.Builder
	started := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				continue
			}
			full.WriteString(ev.Delta.Text)
			started = true
			if err := fn(&models.StreamChunk{Content: ev.Delta.Text}); err != nil {
				return full.String(), started, err
			}
		case "message_stop":
			if err := fn(&models.StreamChunk{Done: true}); err != nil {
				return full.String(), started, err
			}
			return full.String(), started, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), started, fmt.Errorf("anthropic: read stream: %w", err)
	}

	if err := fn(&models.StreamChunk{Done: true}); err != nil {
		return full.String(), started, err
	}
	return full.String(), started, nil
}
