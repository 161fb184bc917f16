// Package settings holds the retrieval knobs that can change at runtime.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"intigra/internal/apperr"
)

type Settings struct {
	RerankThreshold  float64 `json:"rerank_threshold"`
	MaxRetrievalPool int     `json:"max_retrieval_pool"`
	DefaultTopK      int     `json:"default_top_k"`
}

func (s *Settings) Validate() error {
	if math.IsNaN(s.RerankThreshold) || math.IsInf(s.RerankThreshold, 0) {
		return apperr.New(apperr.ErrValidation, "rerank_threshold must be a finite number")
	}
	if s.MaxRetrievalPool < 1 {
		return apperr.New(apperr.ErrValidation, fmt.Sprintf("max_retrieval_pool must be greater than 0, got %d", s.MaxRetrievalPool))
	}
	if s.DefaultTopK < 1 {
		return apperr.New(apperr.ErrValidation, fmt.Sprintf("default_top_k must be greater than 0, got %d", s.DefaultTopK))
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo     Repository
	defaults Settings
}

// NewService falls back to defaults whenever the stored row is unreadable.
func NewService(repo Repository, defaults Settings) *Service {
	return &Service{repo: repo, defaults: defaults}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// Effective never fails: a repository error yields the configured defaults.
func (s *Service) Effective(ctx context.Context) *Settings {
	set, err := s.repo.Get(ctx)
	if err != nil || set == nil {
		slog.WarnContext(ctx, "settings unavailable, using defaults", "error", err)
		d := s.defaults
		return &d
	}
	return set
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}
