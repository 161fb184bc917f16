package ollama

import (
	"context"
	"fmt"
	"log/slog"

	"intigra/internal/apperr"
)

const DefaultEmbedModel = "all-minilm"

type Embedder struct {
	client *Client
	model  string
}

func NewEmbedder(c *Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbedModel
	}
	return &Embedder{client: c, model: model}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends the whole batch in one /api/embed call.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperr.New(apperr.ErrProcessing, "Invalid input for embedding generation")
	}

	var resp embedResponse
	if err := e.client.post(ctx, "/api/embed", embedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		slog.ErrorContext(ctx, "embedding failed", "model", e.model, "error", err)
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("Embedding count mismatch: sent %d, got %d", len(texts), len(resp.Embeddings)))
	}
	dim := len(resp.Embeddings[0])
	for _, v := range resp.Embeddings {
		if len(v) == 0 || len(v) != dim {
			return nil, apperr.New(apperr.ErrProcessing, "Embedding dimension mismatch in batch")
		}
	}

	slog.DebugContext(ctx, "embeddings generated", "model", e.model, "count", len(texts), "dim", dim)
	return resp.Embeddings, nil
}
