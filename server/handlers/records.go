package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nomis52/execstore/store"
)

// RecordListHandler returns every stored record. The order is unspecified.
type RecordListHandler struct {
	logger *slog.Logger
	store  store.Store
}

// NewRecordListHandler creates a new RecordListHandler.
func NewRecordListHandler(logger *slog.Logger, s store.Store) *RecordListHandler {
	return &RecordListHandler{logger: logger, store: s}
}

// ServeHTTP implements http.Handler.
func (h *RecordListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.Records()
	if err != nil {
		h.logger.Error("failed to list records", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list records: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// RecordHandler returns the record named by the {id} path value.
type RecordHandler struct {
	logger *slog.Logger
	store  store.Store
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(logger *slog.Logger, s store.Store) *RecordHandler {
	return &RecordHandler{logger: logger, store: s}
}

// ServeHTTP implements http.Handler.
func (h *RecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := store.ParseExecutionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeRecord(w, h.logger, h.store, id)
}

// LatestRecordHandler returns the record written by the most recent add.
type LatestRecordHandler struct {
	logger *slog.Logger
	store  store.Store
}

// NewLatestRecordHandler creates a new LatestRecordHandler.
func NewLatestRecordHandler(logger *slog.Logger, s store.Store) *LatestRecordHandler {
	return &LatestRecordHandler{logger: logger, store: s}
}

// ServeHTTP implements http.Handler.
func (h *LatestRecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok, err := h.store.LatestID()
	if err != nil {
		h.logger.Error("failed to read latest id", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read latest id: "+err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no records")
		return
	}
	writeRecord(w, h.logger, h.store, id)
}

func writeRecord(w http.ResponseWriter, logger *slog.Logger, s store.Store, id store.ExecutionID) {
	record, ok, err := s.Record(id)
	if err != nil {
		logger.Error("failed to read record", "execution_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read record: "+err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "record "+id.String()+" not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// AddRecordHandler stores the JSON record in the request body.
// A record without an ID is assigned a new one.
type AddRecordHandler struct {
	logger *slog.Logger
	store  store.Store
}

// NewAddRecordHandler creates a new AddRecordHandler.
func NewAddRecordHandler(logger *slog.Logger, s store.Store) *AddRecordHandler {
	return &AddRecordHandler{logger: logger, store: s}
}

// ServeHTTP implements http.Handler.
func (h *AddRecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var record store.Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid record: "+err.Error())
		return
	}

	if record.ID.IsZero() {
		record.ID = store.NewExecutionID()
	}

	if err := h.store.AddRecord(record); err != nil {
		h.logger.Error("failed to add record", "execution_id", record.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add record: "+err.Error())
		return
	}

	h.logger.Debug("record added", "execution_id", record.ID, "state", record.State)
	writeJSON(w, http.StatusCreated, record)
}
