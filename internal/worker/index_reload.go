package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"intigra/features/job"
	"intigra/internal/middleware"
)

type Invalidator interface {
	Invalidate()
}

// IndexReloadConsumer drops the embedding index whenever an ingestion job
// completes, so the next query sees the new documents.
type IndexReloadConsumer struct {
	index Invalidator
}

func NewIndexReloadConsumer(idx Invalidator) *IndexReloadConsumer {
	return &IndexReloadConsumer{index: idx}
}

func (h *IndexReloadConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var ev job.Event
	err := json.Unmarshal(m.Body, &ev)

	correlationID := ev.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid job event", "error", err)
		return nil // Don't retry invalid messages
	}
	ctx = middleware.WithJobID(ctx, ev.JobID)

	if ev.Status != job.StatusCompleted {
		return nil
	}

	h.index.Invalidate()
	slog.InfoContext(ctx, "index invalidated after job completion")
	return nil
}
