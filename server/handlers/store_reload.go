package handlers

import (
	"log/slog"
	"net/http"
)

// StoreReloadHandler handles requests to re-read a persistent store from its backing files.
type StoreReloadHandler struct {
	logger *slog.Logger
	store  Reloader
}

// NewStoreReloadHandler creates a new StoreReloadHandler.
func NewStoreReloadHandler(logger *slog.Logger, store Reloader) *StoreReloadHandler {
	return &StoreReloadHandler{
		logger: logger,
		store:  store,
	}
}

// ServeHTTP implements http.Handler.
func (h *StoreReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reloading store from disk")

	if err := h.store.Reload(); err != nil {
		h.logger.Error("failed to reload store", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload store: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
