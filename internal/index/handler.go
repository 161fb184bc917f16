package index

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"intigra/internal/apperr"
	"intigra/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type ReloadResponse struct {
	Rows     int        `json:"rows"`
	Dim      int        `json:"dim"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

// Reload rebuilds the index so documents stored since the last load become
// searchable.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.service.Reload(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "index reload failed", "error", err)
		code, status := apperr.HTTPStatus(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error":         map[string]string{"code": code, "message": apperr.Message(err)},
			"correlationId": middleware.GetCorrelationID(ctx),
		})
		return
	}

	resp := ReloadResponse{Rows: snap.Len()}
	if snap != nil {
		resp.Dim = snap.Dim
		resp.LoadedAt = &snap.LoadedAt
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
