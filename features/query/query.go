package query

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"intigra/internal/answer"
	"intigra/internal/apperr"
	"intigra/internal/metrics"
	"intigra/internal/middleware"
	"intigra/internal/retrieval"
	"intigra/internal/settings"
)

const (
	outcomeAnswered = "answered"
	outcomeEmpty    = "empty"
	outcomeError    = "error"
)

type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, query string, passages []answer.Passage) (*answer.Result, error)
}

type SettingsProvider interface {
	Effective(ctx context.Context) *settings.Settings
}

// Request is the query body. A nil TopK means the configured default.
type Request struct {
	Query      string `json:"query"`
	TopK       *int   `json:"top_k,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

type Metadata struct {
	RetrievalPoolSize     int     `json:"retrieval_pool_size"`
	FinalChunksUsed       int     `json:"final_chunks_used"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

type Response struct {
	Query    string          `json:"query"`
	Answer   string          `json:"answer"`
	Sources  []answer.Source `json:"sources"`
	Metadata *Metadata       `json:"metadata,omitempty"`
}

type Service struct {
	retriever   Retriever
	synthesizer Synthesizer
	settings    SettingsProvider
	log         *retrieval.QueryLogger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(r Retriever, s Synthesizer, set SettingsProvider, log *retrieval.QueryLogger, m *metrics.Metrics) *Service {
	return &Service{retriever: r, synthesizer: s, settings: set, log: log, metrics: m, now: time.Now}
}

// Query answers a question from the ingested documents. An empty corpus or
// an unmatched document filter is an answer, not an error.
func (s *Service) Query(ctx context.Context, req Request) (resp *Response, err error) {
	start := s.now()
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return nil, apperr.New(apperr.ErrValidation, "Query cannot be empty")
	}

	topK := s.settings.Effective(ctx).DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 {
		return nil, apperr.New(apperr.ErrValidation, "top_k must be greater than 0")
	}

	entry := retrieval.QueryLogEntry{
		Query:         req.Query,
		TopK:          topK,
		DocumentID:    req.DocumentID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	defer func() {
		elapsed := s.now().Sub(start)
		entry.Duration = elapsed
		switch {
		case err != nil:
			entry.Outcome = outcomeError
		case resp.Metadata == nil:
			entry.Outcome = outcomeEmpty
		default:
			entry.Outcome = outcomeAnswered
		}
		s.log.Log(entry)
		s.metrics.ObserveQuery(elapsed)
	}()

	slog.InfoContext(ctx, "query received", "top_k", topK, "document_id", req.DocumentID)

	res, err := s.retriever.Retrieve(ctx, retrieval.Request{Query: req.Query, TopK: topK, DocumentID: req.DocumentID})
	if err != nil {
		slog.ErrorContext(ctx, "retrieval failed", "error", err)
		return nil, err
	}
	if res.Empty != "" {
		return &Response{Query: req.Query, Answer: res.Empty, Sources: []answer.Source{}}, nil
	}
	entry.PoolSize = res.PoolSize

	passages := make([]answer.Passage, len(res.Candidates))
	for i, c := range res.Candidates {
		passages[i] = answer.Passage{
			DocumentID:  c.DocumentID,
			ChunkID:     c.ChunkID,
			Text:        c.Text,
			Similarity:  c.Similarity,
			RerankScore: c.RerankScore,
		}
		entry.ChunkIDs = append(entry.ChunkIDs, c.ChunkID)
	}
	entry.NumResults = len(passages)

	out, err := s.synthesizer.Synthesize(ctx, req.Query, passages)
	if err != nil {
		slog.ErrorContext(ctx, "answer synthesis failed", "error", err)
		return nil, err
	}

	elapsed := s.now().Sub(start).Seconds()
	return &Response{
		Query:   req.Query,
		Answer:  out.Answer,
		Sources: out.Sources,
		Metadata: &Metadata{
			RetrievalPoolSize:     res.PoolSize,
			FinalChunksUsed:       len(passages),
			ProcessingTimeSeconds: math.Round(elapsed*1000) / 1000,
		},
	}, nil
}
