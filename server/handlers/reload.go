package handlers

import (
	"log/slog"
	"net/http"
)

// ReloadHandler handles requests to reload the runtime config file into the store.
type ReloadHandler struct {
	logger   *slog.Logger
	reloader Reloader
}

// NewReloadHandler creates a new ReloadHandler.
func NewReloadHandler(logger *slog.Logger, reloader Reloader) *ReloadHandler {
	return &ReloadHandler{
		logger:   logger,
		reloader: reloader,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reloading runtime config")

	if err := h.reloader.Reload(); err != nil {
		h.logger.Error("failed to reload runtime config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload runtime config: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
