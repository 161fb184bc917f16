package document

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"intigra/internal/apperr"
	"intigra/internal/shard"
)

type ShardStore interface {
	Write(ctx context.Context, documentID string, rows []shard.Row) (string, error)
	Remove(path string) error
}

type Service struct {
	repo   Repository
	shards ShardStore
}

func NewService(repo Repository, shards ShardStore) *Service {
	return &Service{repo: repo, shards: shards}
}

// Store persists one ingested file. The document row is committed as
// processing first, then the shard is written, then chunk rows and the
// completed status land together. Any failure after the first step removes
// the shard and leaves the document failed.
func (s *Service) Store(ctx context.Context, filePath string, chunks []string, embeddings [][]float32) (*Document, error) {
	if len(chunks) == 0 {
		return nil, apperr.New(apperr.ErrProcessing, "no chunks to store")
	}
	if len(chunks) != len(embeddings) {
		return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("chunk count %d does not match embedding count %d", len(chunks), len(embeddings)))
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrProcessing, "stat source file", err)
	}

	doc := &Document{
		ID:       uuid.New().String(),
		FileName: filepath.Base(filePath),
		Source:   filePath,
		FileSize: info.Size(),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	rows := make([]shard.Row, len(chunks))
	for i, text := range chunks {
		rows[i] = shard.Row{
			ChunkID:    uuid.New().String(),
			DocumentID: doc.ID,
			ChunkIndex: int32(i),
			Text:       text,
			Embedding:  embeddings[i],
		}
	}

	path, err := s.shards.Write(ctx, doc.ID, rows)
	if err != nil {
		s.fail(ctx, doc, "")
		return nil, err
	}

	records := make([]Chunk, len(rows))
	for i, row := range rows {
		records[i] = Chunk{
			ID:          row.ChunkID,
			DocumentID:  doc.ID,
			ChunkIndex:  i,
			ParquetPath: path,
			RowNumber:   i,
		}
	}
	if err := s.repo.Complete(ctx, doc.ID, records); err != nil {
		s.fail(ctx, doc, path)
		return nil, err
	}

	doc.Status = StatusCompleted
	slog.InfoContext(ctx, "document stored", "document_id", doc.ID, "file", doc.FileName, "chunks", len(records))
	return doc, nil
}

func (s *Service) fail(ctx context.Context, doc *Document, shardPath string) {
	if shardPath != "" {
		if err := s.shards.Remove(shardPath); err != nil {
			slog.ErrorContext(ctx, "failed to remove shard", "document_id", doc.ID, "path", shardPath, "error", err)
		}
	}
	// The caller's context may be the reason we failed.
	if err := s.repo.MarkFailed(context.WithoutCancel(ctx), doc.ID); err != nil {
		slog.ErrorContext(ctx, "failed to mark document failed", "document_id", doc.ID, "error", err)
	}
	doc.Status = StatusFailed
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) CountChunks(ctx context.Context) (int, error) {
	return s.repo.CountChunks(ctx)
}

// ShardPaths lists the shards that belong to completed documents.
func (s *Service) ShardPaths(ctx context.Context) ([]string, error) {
	return s.repo.ShardPaths(ctx)
}
