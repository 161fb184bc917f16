package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"intigra/internal/adapter/gemini"
	"intigra/internal/adapter/ollama"
	"intigra/internal/adapter/reranker"
	"intigra/internal/answer"
	"intigra/internal/config"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// Providers are the model backends. Reranker is nil when reranking is off.
type Providers struct {
	Embedder  Embedder
	Generator answer.Generator
	Reranker  Reranker

	closers []io.Closer
}

// NewProviders builds the embedder, generator and reranker chosen by cfg.
func NewProviders(ctx context.Context, cfg *config.Config) (*Providers, error) {
	p := &Providers{}
	ollamaClient := ollama.NewClient(cfg.OllamaURL, ollama.DefaultTimeout)

	switch cfg.EmbedProvider {
	case "gemini":
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		p.Embedder = e
		p.closers = append(p.closers, e)
	default:
		p.Embedder = ollama.NewEmbedder(ollamaClient, cfg.EmbedModel)
	}

	switch cfg.GeneratorProvider {
	case "gemini":
		g, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeneratorModel)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("gemini generator: %w", err)
		}
		p.Generator = g
		p.closers = append(p.closers, g)
	default:
		p.Generator = ollama.NewGenerator(ollamaClient, cfg.GeneratorModel)
	}

	if cfg.RerankProvider != "" && cfg.RerankProvider != "none" {
		rc := reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey)
		if cfg.RerankURL != "" {
			rc.SetBaseURL(cfg.RerankURL)
		}
		p.Reranker = rc
	}

	slog.Info("model providers ready",
		"embed", cfg.EmbedProvider,
		"generate", cfg.GeneratorProvider,
		"rerank", cfg.RerankProvider,
	)
	return p, nil
}

func (p *Providers) Close() {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close provider", "error", err)
		}
	}
}
