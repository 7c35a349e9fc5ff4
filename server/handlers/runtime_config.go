package handlers

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/execstore/config"
	"github.com/nomis52/execstore/store"
)

// RuntimeConfigHandler returns the current runtime config as YAML.
type RuntimeConfigHandler struct {
	logger *slog.Logger
	store  store.Store
}

// NewRuntimeConfigHandler creates a new RuntimeConfigHandler.
func NewRuntimeConfigHandler(logger *slog.Logger, s store.Store) *RuntimeConfigHandler {
	return &RuntimeConfigHandler{logger: logger, store: s}
}

// ServeHTTP implements http.Handler.
func (h *RuntimeConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc, ok, err := h.store.RuntimeConfig()
	if err != nil {
		h.logger.Error("failed to read runtime config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read runtime config: "+err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no runtime config set")
		return
	}

	// Encode before writing the header so an encoding failure can still become a 500.
	var buf bytes.Buffer
	if err := yaml.NewEncoder(&buf).Encode(rc); err != nil {
		h.logger.Error("failed to encode runtime config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to encode runtime config")
		return
	}

	w.Header().Set("Content-Type", "text/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// SetRuntimeConfigHandler replaces the runtime config with the YAML request body.
// Unset fields take their defaults; nothing is merged from the previous config.
type SetRuntimeConfigHandler struct {
	logger *slog.Logger
	store  store.Store
}

// NewSetRuntimeConfigHandler creates a new SetRuntimeConfigHandler.
func NewSetRuntimeConfigHandler(logger *slog.Logger, s store.Store) *SetRuntimeConfigHandler {
	return &SetRuntimeConfigHandler{logger: logger, store: s}
}

// ServeHTTP implements http.Handler.
func (h *SetRuntimeConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var rc store.RuntimeConfig
	dec := yaml.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.KnownFields(true)
	if err := dec.Decode(&rc); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid runtime config: "+err.Error())
		return
	}
	config.SetRuntimeDefaults(&rc)
	if err := config.ValidateRuntime(rc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid runtime config: "+err.Error())
		return
	}

	if err := h.store.SetRuntimeConfig(rc); err != nil {
		h.logger.Error("failed to set runtime config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set runtime config: "+err.Error())
		return
	}

	h.logger.Info("runtime config replaced", "shell", rc.Shell, "timeout", rc.Timeout, "max_parallel", rc.MaxParallel)
	w.WriteHeader(http.StatusNoContent)
}
