package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nomis52/execstore/server/types"
	"github.com/nomis52/execstore/store"
)

// NextPushResponse describes the scheduled stats push.
type NextPushResponse struct {
	Scheduled bool       `json:"scheduled"`
	NextPush  *time.Time `json:"next_push,omitempty"`
}

// APIStatusResponse is the consolidated response for /api/status.
type APIStatusResponse struct {
	Server   types.ServerProperties `json:"server"`
	Store    store.Stats            `json:"store"`
	NextPush NextPushResponse       `json:"next_push"`
}

// APIStatusHandler handles requests for the consolidated status endpoint.
type APIStatusHandler struct {
	logger   *slog.Logger
	provider StatusProvider
}

// NewAPIStatusHandler creates a new APIStatusHandler.
func NewAPIStatusHandler(logger *slog.Logger, provider StatusProvider) *APIStatusHandler {
	return &APIStatusHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *APIStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.provider.Stats()
	if err != nil {
		h.logger.Error("failed to collect store stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to collect store stats: "+err.Error())
		return
	}

	nextPush := h.provider.NextPush()
	writeJSON(w, http.StatusOK, APIStatusResponse{
		Server: h.provider.Properties(),
		Store:  stats,
		NextPush: NextPushResponse{
			Scheduled: nextPush != nil,
			NextPush:  nextPush,
		},
	})
}
