// Package embeddings provides the embedding drivers used to index and
// search policy documents: OpenAI's hosted API and a local Ollama server.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dbgenie/dbgenie/internal/config"
	"github.com/dbgenie/dbgenie/pkg/contracts"
)

// New constructs an embedding driver from configuration.
func New(cfg config.EmbeddingConfig) (contracts.EmbeddingDriver, error) {
	switch cfg.Kind {
	case "", "openai":
		return NewOpenAIDriver(cfg.APIKey, cfg.Model, cfg.Endpoint), nil
	case "ollama":
		return NewOllamaDriver(cfg.Endpoint, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding driver kind: %s", cfg.Kind)
	}
}

// postJSON sends a JSON request and returns the raw response body, mapping
// non-200 statuses to errors.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings API returned %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// ── OpenAI ──────────────────────────────────────────────────

// OpenAIDriver embeds text through OpenAI's embedding API. Supports
// text-embedding-3-small (1536d), text-embedding-3-large (3072d) and
// text-embedding-ada-002 (1536d).
type OpenAIDriver struct {
	apiKey     string
	model      string
	endpoint   string
	dimensions int
	batchSize  int
	client     *http.Client
}

func NewOpenAIDriver(apiKey, model, endpoint string) *OpenAIDriver {
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := 1536
	if model == "text-embedding-3-large" {
		dims = 3072
	}
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	return &OpenAIDriver{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		dimensions: dims,
		batchSize:  2048,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (d *OpenAIDriver) Kind() string      { return "openai" }
func (d *OpenAIDriver) Dimensions() int   { return d.dimensions }
func (d *OpenAIDriver) MaxBatchSize() int { return d.batchSize }

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (d *OpenAIDriver) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > d.batchSize {
		return nil, fmt.Errorf("batch size %d exceeds max %d", len(texts), d.batchSize)
	}

	respBody, err := postJSON(ctx, d.client, d.endpoint+"/embeddings",
		map[string]string{"Authorization": "Bearer " + d.apiKey},
		map[string]interface{}{"input": texts, "model": d.model})
	if err != nil {
		return nil, err
	}

	var result openAIEmbedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("openai error: %s (%s)", result.Error.Message, result.Error.Type)
	}

	// The API may return out of order; restore input order by index.
	vectors := make([][]float64, len(texts))
	for _, item := range result.Data {
		if item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	return vectors, nil
}

// HealthCheck verifies the API key by embedding a test string.
func (d *OpenAIDriver) HealthCheck(ctx context.Context) error {
	_, err := d.Embed(ctx, []string{"health check"})
	return err
}

// ── Ollama ──────────────────────────────────────────────────

// OllamaDriver embeds text through a local Ollama server. Supports
// nomic-embed-text (768d), mxbai-embed-large (1024d), all-minilm (384d).
type OllamaDriver struct {
	endpoint   string
	model      string
	dimensions int
	batchSize  int
	client     *http.Client
}

func NewOllamaDriver(endpoint, model string) *OllamaDriver {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	dims := 768
	switch model {
	case "mxbai-embed-large":
		dims = 1024
	case "all-minilm", "all-minilm:l6-v2":
		dims = 384
	}
	return &OllamaDriver{
		endpoint:   endpoint,
		model:      model,
		dimensions: dims,
		batchSize:  512,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (d *OllamaDriver) Kind() string      { return "ollama" }
func (d *OllamaDriver) Dimensions() int   { return d.dimensions }
func (d *OllamaDriver) MaxBatchSize() int { return d.batchSize }

func (d *OllamaDriver) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > d.batchSize {
		return nil, fmt.Errorf("batch size %d exceeds max %d", len(texts), d.batchSize)
	}

	respBody, err := postJSON(ctx, d.client, d.endpoint+"/api/embed", nil,
		map[string]interface{}{"model": d.model, "input": texts})
	if err != nil {
		return nil, err
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

// HealthCheck verifies the server is reachable and the model is pulled.
func (d *OllamaDriver) HealthCheck(ctx context.Context) error {
	_, err := d.Embed(ctx, []string{"health check"})
	return err
}
