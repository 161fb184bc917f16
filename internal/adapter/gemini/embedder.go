package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"intigra/internal/apperr"
)

const (
	DefaultEmbeddingModel = "gemini-embedding-001"
	maxBatchSize          = 100
)

type Embedder struct {
	client *genai.Client
	model  string
}

func NewEmbedder(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Embedder, error) {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model}, nil
}

// Embed returns one vector per input, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperr.New(apperr.ErrProcessing, "Invalid input for embedding generation")
	}
	slog.DebugContext(ctx, "embedding content", "model", e.model, "count", len(texts))

	em := e.client.EmbeddingModel(e.model)
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))

		b := em.NewBatch()
		for _, t := range texts[start:end] {
			b.AddContent(genai.Text(t))
		}
		res, err := em.BatchEmbedContents(ctx, b)
		if err != nil {
			slog.ErrorContext(ctx, "embedding failed", "error", err)
			return nil, apperr.Wrap(apperr.ErrServiceUnavailable, "Embedding service unavailable", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("Embedding count mismatch: sent %d, got %d", end-start, len(res.Embeddings)))
		}
		for _, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, apperr.New(apperr.ErrProcessing, "Empty embedding received")
			}
			out = append(out, emb.Values)
		}
	}

	if err := checkDimensions(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}

func checkDimensions(vecs [][]float32) error {
	for i := 1; i < len(vecs); i++ {
		if len(vecs[i]) != len(vecs[0]) {
			return apperr.New(apperr.ErrProcessing, fmt.Sprintf("Embedding dimension mismatch: %d vs %d", len(vecs[i]), len(vecs[0])))
		}
	}
	return nil
}
