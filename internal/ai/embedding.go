package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EmbeddingConfig holds API settings for text-embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// EmbeddingClient talks to an OpenAI-compatible /embeddings endpoint. It is
// the only model-facing piece of the service; everything downstream works
// with the returned vectors.
type EmbeddingClient struct {
	cfg        EmbeddingConfig
	httpClient *http.Client
}

func NewEmbeddingClient(cfg EmbeddingConfig) *EmbeddingClient {
	return &EmbeddingClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed returns the embedding vector for the given text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}
	vectors, err := c.request(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("embedding input %d is empty", i)
		}
	}
	vectors, err := c.request(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(vectors))
	}
	return vectors, nil
}

func (c *EmbeddingClient) request(ctx context.Context, input interface{}) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": c.cfg.Model,
		"input": input,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build embedding request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	result := make([][]float32, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(result) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		result[d.Index] = d.Embedding
	}
	return result, nil
}
