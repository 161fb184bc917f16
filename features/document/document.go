package document

import (
	"context"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Document struct {
	ID         string    `json:"document_id"`
	FileName   string    `json:"file_name"`
	Source     string    `json:"source"`
	FileSize   int64     `json:"file_size"`
	UploadTime time.Time `json:"upload_time"`
	Status     string    `json:"status"`
}

// Chunk locates one chunk row inside its document's shard.
type Chunk struct {
	ID          string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	ParquetPath string `json:"parquet_path"`
	RowNumber   int    `json:"row_number"`
}

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	Complete(ctx context.Context, documentID string, chunks []Chunk) error
	MarkFailed(ctx context.Context, documentID string) error
	List(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
	ShardPaths(ctx context.Context) ([]string, error)
}
