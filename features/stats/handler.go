package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"intigra/internal/apperr"
	"intigra/internal/index"
	"intigra/internal/middleware"
)

type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
}

type JobCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type IndexPeeker interface {
	Peek() (*index.Snapshot, bool)
}

type Handler struct {
	documents DocumentCounter
	jobs      JobCounter
	index     IndexPeeker
}

func NewHandler(d DocumentCounter, j JobCounter, idx IndexPeeker) *Handler {
	return &Handler{documents: d, jobs: j, index: idx}
}

type IndexStats struct {
	Loaded bool `json:"loaded"`
	Rows   int  `json:"rows"`
}

type StatsResponse struct {
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	Jobs      map[string]int `json:"jobs"`
	Index     IndexStats     `json:"index"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	docs, err := h.documents.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, err)
		return
	}

	chunks, err := h.documents.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, err)
		return
	}

	jobs, err := h.jobs.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, err)
		return
	}

	resp := StatsResponse{Documents: docs, Chunks: chunks, Jobs: jobs}
	if h.index != nil {
		snap, loaded := h.index.Peek()
		resp.Index = IndexStats{Loaded: loaded, Rows: snap.Len()}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code, status := apperr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": apperr.Message(err),
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
