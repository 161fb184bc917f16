package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"intigra/internal/apperr"
)

const (
	ProviderTEI    = "tei"
	ProviderJina   = "jina"
	ProviderCohere = "cohere"
)

type Client struct {
	apiKey   string
	provider string
	client   *http.Client
	baseURL  string
}

func NewClient(provider, apiKey string) *Client {
	return &Client{
		provider: provider,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

type scored struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank scores every doc against query with the cross-encoder and returns
// the scores in input order.
func (c *Client) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return []float64{}, nil
	}

	var (
		results []scored
		err     error
	)
	switch c.provider {
	case ProviderTEI:
		results, err = c.rerankTEI(ctx, query, docs)
	case ProviderJina:
		results, err = c.rerankHosted(ctx, "https://api.jina.ai/v1/rerank", map[string]interface{}{
			"model":     "jina-reranker-v1-base-en",
			"query":     query,
			"documents": docs,
		})
	case ProviderCohere:
		results, err = c.rerankHosted(ctx, "https://api.cohere.ai/v1/rerank", map[string]interface{}{
			"model":            "rerank-english-v3.0",
			"query":            query,
			"documents":        docs,
			"top_n":            len(docs),
			"return_documents": false,
		})
	default:
		return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("unknown rerank provider %q", c.provider))
	}
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(docs))
	seen := make([]bool, len(docs))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("%s returned out-of-range index %d", c.provider, r.Index))
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("%s returned no score for document %d", c.provider, i))
		}
	}
	return scores, nil
}

// rerankTEI calls a text-embeddings-inference cross-encoder. raw_scores keeps
// logits so the confidence threshold applies on the model's native scale.
func (c *Client) rerankTEI(ctx context.Context, query string, docs []string) ([]scored, error) {
	url := "http://localhost:8082/rerank"
	if c.baseURL != "" {
		url = c.baseURL
	}

	reqBody := map[string]interface{}{
		"query":      query,
		"texts":      docs,
		"raw_scores": true,
		"truncate":   true,
	}

	var result []scored
	if err := c.do(ctx, url, reqBody, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) rerankHosted(ctx context.Context, defaultURL string, reqBody map[string]interface{}) ([]scored, error) {
	url := defaultURL
	if c.baseURL != "" {
		url = c.baseURL
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := c.do(ctx, url, reqBody, &result); err != nil {
		return nil, err
	}

	out := make([]scored, len(result.Results))
	for i, r := range result.Results {
		out[i] = scored{Index: r.Index, Score: r.Score}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, url string, reqBody interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return apperr.Wrap(apperr.ErrProcessing, "marshal rerank request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return apperr.Wrap(apperr.ErrProcessing, "create rerank request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ErrServiceUnavailable, "Reranker unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := apperr.ErrProcessing
		if resp.StatusCode >= 500 {
			kind = apperr.ErrServiceUnavailable
		}
		return apperr.New(kind, fmt.Sprintf("%s api error: %d %s", c.provider, resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.ErrProcessing, "decode rerank response", err)
	}
	return nil
}
