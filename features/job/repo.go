package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"intigra/internal/apperr"
)

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context) ([]Job, error)
	Transition(ctx context.Context, id, to string, result *string, report *Report) (bool, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, j *Job) error {
	query := `INSERT INTO ingestion_jobs (path, status) VALUES ($1, $2) RETURNING id, created_at, updated_at`
	if err := r.db.QueryRowContext(ctx, query, j.Path, StatusPending).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "Failed to create ingestion job", err)
	}
	j.Status = StatusPending
	return nil
}

const selectJob = `SELECT id, path, status, result, report, created_at, updated_at FROM ingestion_jobs`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j      Job
		result sql.NullString
		report []byte
	)
	if err := row.Scan(&j.ID, &j.Path, &j.Status, &result, &report, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if result.Valid {
		j.Result = &result.String
	}
	if len(report) > 0 {
		j.Report = &Report{}
		if err := json.Unmarshal(report, j.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
	}
	return &j, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, selectJob+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, fmt.Sprintf("Job not found: %s", id))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "Failed to load job", err)
	}
	return j, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Job, error) {
	rows, err := r.db.QueryContext(ctx, selectJob+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "Failed to list jobs", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrDatabase, "Failed to list jobs", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "Failed to list jobs", err)
	}
	return jobs, nil
}

// Transition moves a job to status "to" only from one of its allowed source
// states. It reports false when the job was not in such a state.
func (r *PostgresRepo) Transition(ctx context.Context, id, to string, result *string, report *Report) (bool, error) {
	from, ok := allowedFrom[to]
	if !ok {
		return false, apperr.New(apperr.ErrValidation, fmt.Sprintf("invalid target status %q", to))
	}

	var reportJSON interface{}
	if report != nil {
		b, err := json.Marshal(report)
		if err != nil {
			return false, apperr.Wrap(apperr.ErrProcessing, "encode report", err)
		}
		reportJSON = string(b)
	}

	query := `UPDATE ingestion_jobs SET status = $1, result = $2, report = $3, updated_at = NOW() WHERE id = $4 AND status = ANY($5)`
	res, err := r.db.ExecContext(ctx, query, to, result, reportJSON, id, pq.Array(from))
	if err != nil {
		return false, apperr.Wrap(apperr.ErrDatabase, "Failed to update job status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.ErrDatabase, "Failed to update job status", err)
	}
	return n > 0, nil
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ingestion_jobs GROUP BY status`)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "Failed to count jobs", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperr.Wrap(apperr.ErrDatabase, "Failed to count jobs", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "Failed to count jobs", err)
	}
	return counts, nil
}
