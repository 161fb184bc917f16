package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"intigra/features/document"
	"intigra/internal/apperr"
	"intigra/internal/config"
	"intigra/internal/metrics"
	"intigra/internal/middleware"
)

type Collector interface {
	Collect(path string) ([]string, error)
}

type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type Chunker interface {
	Split(text string) ([]string, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type DocumentStore interface {
	Store(ctx context.Context, filePath string, chunks []string, embeddings [][]float32) (*document.Document, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Pipeline is the per-file chain a job drives: extract, chunk, embed, store.
type Pipeline struct {
	Collector Collector
	Extractor Extractor
	Chunker   Chunker
	Embedder  Embedder
	Store     DocumentStore
}

// Event is published on every job state change.
type Event struct {
	JobID         string  `json:"job_id"`
	Status        string  `json:"status"`
	Result        *string `json:"result,omitempty"`
	CorrelationID string  `json:"correlation_id"`
}

type Service struct {
	repo     Repository
	pipeline Pipeline
	pub      EventPublisher
	metrics  *metrics.Metrics

	wg  sync.WaitGroup
	now func() time.Time
}

func NewService(repo Repository, pipeline Pipeline, pub EventPublisher, m *metrics.Metrics) *Service {
	return &Service{repo: repo, pipeline: pipeline, pub: pub, metrics: m, now: time.Now}
}

// Submit records a PENDING job and runs it in the background. The background
// run outlives the caller's context but keeps its correlation id.
func (s *Service) Submit(ctx context.Context, path string) (*Job, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperr.New(apperr.ErrValidation, "Invalid or missing path in request")
	}

	j := &Job{Path: path}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "ingestion job created", "job_id", j.ID, "path", path)
	s.publish(ctx, j.ID, StatusPending, nil)

	bg := middleware.WithJobID(context.WithoutCancel(ctx), j.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(bg, j.ID, path)
	}()

	return j, nil
}

// Wait blocks until every job started by Submit has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Run drives one job through PROCESSING to a terminal state. Per-file errors
// land in the report; only errors outside the file loop fail the job. The
// returned report is nil unless the job completed.
func (s *Service) Run(ctx context.Context, id, path string) (report *Report) {
	ctx = middleware.WithJobID(ctx, id)
	start := s.now()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "ingestion job panicked", "panic", r)
			s.fail(ctx, id, fmt.Sprintf("panic: %v", r))
			report = nil
		}
	}()

	if _, err := s.repo.Get(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			slog.WarnContext(ctx, "job not found, skipping")
			return nil
		}
		s.fail(ctx, id, err.Error())
		return nil
	}

	moved, err := s.repo.Transition(ctx, id, StatusProcessing, nil, nil)
	if err != nil {
		s.fail(ctx, id, err.Error())
		return nil
	}
	if !moved {
		slog.WarnContext(ctx, "job is no longer pending, skipping")
		return nil
	}
	s.publish(ctx, id, StatusProcessing, nil)

	path = filepath.Clean(path)
	files, err := s.pipeline.Collector.Collect(path)
	if err != nil {
		s.fail(ctx, id, apperr.Message(err))
		return nil
	}
	if len(files) == 0 {
		s.fail(ctx, id, ResultNoFiles)
		return nil
	}
	slog.InfoContext(ctx, "starting ingestion", "files", len(files), "path", path)

	report = &Report{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			s.fail(ctx, id, err.Error())
			return nil
		}
		res := s.processFile(ctx, f)
		report.Add(res)
		if res.OK() {
			s.metrics.FileIngested("ok")
		} else {
			s.metrics.FileIngested("failed")
		}
	}
	report.ElapsedSeconds = s.now().Sub(start).Seconds()

	summary := report.Summary()
	if _, err := s.repo.Transition(ctx, id, StatusCompleted, &summary, report); err != nil {
		s.fail(ctx, id, err.Error())
		return nil
	}
	s.publish(ctx, id, StatusCompleted, &summary)
	s.metrics.JobFinished(StatusCompleted)

	slog.InfoContext(ctx, "ingestion job completed",
		"processed", report.Processed(),
		"failed", report.Failed(),
		"duration_s", report.ElapsedSeconds,
	)
	return report
}

func (s *Service) processFile(ctx context.Context, path string) FileResult {
	start := s.now()
	fail := func(reason string) FileResult {
		slog.WarnContext(ctx, "file failed", "file", path, "reason", reason)
		return Failed(path, reason)
	}

	text, err := s.pipeline.Extractor.Extract(ctx, path)
	if err != nil {
		return fail(err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return fail(ReasonEmptyFile)
	}

	chunks, err := s.pipeline.Chunker.Split(text)
	if err != nil {
		return fail(err.Error())
	}
	if len(chunks) == 0 {
		return fail(ReasonNoChunks)
	}

	embeddings, err := s.pipeline.Embedder.Embed(ctx, chunks)
	if err != nil {
		return fail(err.Error())
	}

	doc, err := s.pipeline.Store.Store(ctx, path, chunks, embeddings)
	if err != nil {
		return fail(err.Error())
	}

	slog.InfoContext(ctx, "file ingested", "file", path, "document_id", doc.ID, "chunks", len(chunks), "duration_s", s.now().Sub(start).Seconds())
	return Stored(path, doc.ID, len(chunks))
}

// fail moves the job to FAILED. The write ignores cancellation of ctx so a
// cancelled job still reaches a terminal state.
func (s *Service) fail(ctx context.Context, id, msg string) {
	wctx := context.WithoutCancel(ctx)
	moved, err := s.repo.Transition(wctx, id, StatusFailed, &msg, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark job failed", "error", err, "reason", msg)
		return
	}
	if !moved {
		return
	}
	slog.WarnContext(ctx, "ingestion job failed", "reason", msg)
	s.publish(ctx, id, StatusFailed, &msg)
	s.metrics.JobFinished(StatusFailed)
}

func (s *Service) publish(ctx context.Context, id, status string, result *string) {
	if s.pub == nil {
		return
	}
	body, err := json.Marshal(Event{
		JobID:         id,
		Status:        status,
		Result:        result,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode job event", "error", err)
		return
	}
	if err := s.pub.Publish(config.TopicJobEvents, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish job event", "status", status, "error", err)
	}
}

// Get returns a job by id; unknown or malformed ids are ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.New(apperr.ErrNotFound, fmt.Sprintf("Job not found: %s", id))
	}
	return s.repo.Get(ctx, id)
}

// List returns all jobs, newest first.
func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *Service) CountByStatus(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}
