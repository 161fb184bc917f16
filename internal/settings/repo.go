package settings

import (
	"context"
	"database/sql"
	"errors"

	"intigra/internal/apperr"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	query := `SELECT rerank_threshold, max_retrieval_pool, default_top_k FROM settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&s.RerankThreshold, &s.MaxRetrievalPool, &s.DefaultTopK)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "settings row missing")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "load settings", err)
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `
		UPDATE settings
		SET rerank_threshold = $1, max_retrieval_pool = $2, default_top_k = $3, updated_at = NOW()
		WHERE id = 1
	`
	if _, err := r.db.ExecContext(ctx, query, s.RerankThreshold, s.MaxRetrievalPool, s.DefaultTopK); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "update settings", err)
	}
	return nil
}
