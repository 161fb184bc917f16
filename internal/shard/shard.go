// Package shard persists one Parquet file of chunk rows per document.
package shard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"intigra/internal/apperr"
)

const Ext = ".parquet"

// Row is the on-disk layout of one chunk.
type Row struct {
	ChunkID    string    `parquet:"chunk_id"`
	DocumentID string    `parquet:"document_id"`
	ChunkIndex int32     `parquet:"chunk_index"`
	Text       string    `parquet:"text"`
	Embedding  []float32 `parquet:"embedding,list"`
}

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Path is where the shard for documentID lives.
func (s *Store) Path(documentID string) string {
	return filepath.Join(s.dir, documentID+Ext)
}

// Write stores rows as the shard for documentID. The file appears atomically:
// rows go to a temporary file that is renamed into place.
func (s *Store) Write(ctx context.Context, documentID string, rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", apperr.New(apperr.ErrProcessing, "shard has no rows")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperr.Wrap(apperr.ErrProcessing, "create storage dir", err)
	}

	path := s.Path(documentID)
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return "", apperr.Wrap(apperr.ErrProcessing, "write shard", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", apperr.Wrap(apperr.ErrProcessing, "publish shard", err)
	}

	slog.DebugContext(ctx, "shard written", "document_id", documentID, "rows", len(rows), "path", path)
	return path, nil
}

func (s *Store) Read(ctx context.Context, path string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrProcessing, fmt.Sprintf("read shard %s", filepath.Base(path)), err)
	}
	return rows, nil
}

// Remove deletes a shard. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.ErrProcessing, "remove shard", err)
	}
	return nil
}
