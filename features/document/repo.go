package document

import (
	"context"
	"database/sql"
	"fmt"

	"intigra/internal/apperr"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (document_id, file_name, source, file_size, status) VALUES ($1, $2, $3, $4, $5) RETURNING upload_time`
	err := r.db.QueryRowContext(ctx, query, doc.ID, doc.FileName, doc.Source, doc.FileSize, StatusProcessing).Scan(&doc.UploadTime)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "insert document", err)
	}
	doc.Status = StatusProcessing
	return nil
}

// Complete records the chunk rows and flips the document to completed in a
// single transaction.
func (r *PostgresRepo) Complete(ctx context.Context, documentID string, chunks []Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "begin transaction", err)
	}
	defer tx.Rollback()

	insert := `INSERT INTO chunks (chunk_id, document_id, chunk_index, parquet_path, row_number) VALUES ($1, $2, $3, $4, $5)`
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, insert, c.ID, documentID, c.ChunkIndex, c.ParquetPath, c.RowNumber); err != nil {
			return apperr.Wrap(apperr.ErrDatabase, fmt.Sprintf("insert chunk %d", c.ChunkIndex), err)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE documents SET status = $1 WHERE document_id = $2 AND status = $3`, StatusCompleted, documentID, StatusProcessing)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "complete document", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.ErrDatabase, fmt.Sprintf("document %s is not processing", documentID))
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "commit document", err)
	}
	return nil
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, documentID string) error {
	query := `UPDATE documents SET status = $1 WHERE document_id = $2`
	if _, err := r.db.ExecContext(ctx, query, StatusFailed, documentID); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "mark document failed", err)
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT document_id, file_name, source, file_size, upload_time, status FROM documents ORDER BY upload_time DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "list documents", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.FileName, &d.Source, &d.FileSize, &d.UploadTime, &d.Status); err != nil {
			return nil, apperr.Wrap(apperr.ErrDatabase, "scan document", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "list documents", err)
	}
	return docs, nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM documents WHERE status = $1`
	if err := r.db.QueryRowContext(ctx, query, StatusCompleted).Scan(&count); err != nil {
		return 0, apperr.Wrap(apperr.ErrDatabase, "count documents", err)
	}
	return count, nil
}

func (r *PostgresRepo) CountChunks(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM chunks`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, apperr.Wrap(apperr.ErrDatabase, "count chunks", err)
	}
	return count, nil
}

// ShardPaths lists the shard files of completed documents, oldest first.
func (r *PostgresRepo) ShardPaths(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT c.parquet_path, d.upload_time FROM chunks c JOIN documents d ON d.document_id = c.document_id WHERE d.status = $1 ORDER BY d.upload_time`
	rows, err := r.db.QueryContext(ctx, query, StatusCompleted)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "list shards", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var (
			p  string
			ts sql.NullTime
		)
		if err := rows.Scan(&p, &ts); err != nil {
			return nil, apperr.Wrap(apperr.ErrDatabase, "scan shard path", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "list shards", err)
	}
	return paths, nil
}
