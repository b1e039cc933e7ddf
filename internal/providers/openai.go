// Package providers wraps an OpenAI-compatible model server exposing
// /v1/embeddings, /v1/rerank and /v1/chat/completions. The core never
// depends on this package; it only produces the function values the
// facade consumes.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	baseURL    string
	embedModel string
	chatModel  string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithEmbedModel overrides the embedding model name.
func WithEmbedModel(model string) Option {
	return func(c *Client) { c.embedModel = model }
}

// WithChatModel overrides the chat model name.
func WithChatModel(model string) Option {
	return func(c *Client) { c.chatModel = model }
}

// NewClient creates a provider client.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	c := &Client{
		baseURL:    baseURL,
		embedModel: "qwen3-vl-embedding",
		chatModel:  "qwen3-vl-chat",
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // generation requests can be slow
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one embedding per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embedResponse
	if err := c.post(ctx, "/v1/embeddings", embedRequest{Input: texts, Model: c.embedModel}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings API returned index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      *int     `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns the indices of documents ordered by descending
// relevance to the query.
func (c *Client) Rerank(ctx context.Context, query string, documents []string) ([]int, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	var resp rerankResponse
	if err := c.post(ctx, "/v1/rerank", rerankRequest{Query: query, Documents: documents}, &resp); err != nil {
		return nil, err
	}
	out := make([]int, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.Index)
	}
	return out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate produces an answer for the query given a retrieval context.
func (c *Client) Generate(ctx context.Context, contextText, query string) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: "Answer the question using the provided context. If the context is insufficient, say so."},
		{Role: "user", Content: "Context:\n" + contextText + "\n\nQuestion: " + query},
	}
	var resp chatResponse
	err := c.post(ctx, "/v1/chat/completions", chatRequest{
		Model:     c.chatModel,
		Messages:  messages,
		MaxTokens: 2048,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model API error: %d - %s", resp.StatusCode, string(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
