package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/execstore/store"
)

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("store unavailable")

func (brokenStore) AddRecord(store.Record) error { return errBroken }
func (brokenStore) Record(store.ExecutionID) (store.Record, bool, error) {
	return store.Record{}, false, errBroken
}
func (brokenStore) LatestID() (store.ExecutionID, bool, error) {
	return store.ExecutionID{}, false, errBroken
}
func (brokenStore) Records() ([]store.Record, error) { return nil, errBroken }
func (brokenStore) RuntimeConfig() (store.RuntimeConfig, bool, error) {
	return store.RuntimeConfig{}, false, errBroken
}
func (brokenStore) SetRuntimeConfig(store.RuntimeConfig) error { return errBroken }

// newMux wires the record handlers the same way the server does.
func newMux(s store.Store) *http.ServeMux {
	logger := slog.Default()
	mux := http.NewServeMux()
	mux.Handle("GET /records", NewRecordListHandler(logger, s))
	mux.Handle("POST /records", NewAddRecordHandler(logger, s))
	mux.Handle("GET /records/latest", NewLatestRecordHandler(logger, s))
	mux.Handle("GET /records/{id}", NewRecordHandler(logger, s))
	return mux
}

func serve(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAddRecordHandler(t *testing.T) {
	s := store.NewMemoryStore()
	mux := newMux(s)

	id := store.NewExecutionID()
	w := serve(mux, http.MethodPost, "/records", `{"id":"`+id.String()+`","command":"make","args":["test"],"state":"succeeded"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got store.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, id, got.ID)

	stored, ok, err := s.Record(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "make", stored.Command)
	assert.Equal(t, []string{"test"}, stored.Args)
	assert.Equal(t, store.RecordStateSucceeded, stored.State)
}

func TestAddRecordHandler_AssignsID(t *testing.T) {
	s := store.NewMemoryStore()
	w := serve(newMux(s), http.MethodPost, "/records", `{"command":"ls"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var got store.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.False(t, got.ID.IsZero())

	latest, ok, err := s.LatestID()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, got.ID, latest)
}

func TestAddRecordHandler_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{"},
		{name: "unknown field", body: `{"command":"ls","colour":"red"}`},
		{name: "bad id", body: `{"id":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			w := serve(newMux(s), http.MethodPost, "/records", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "invalid record")

			records, err := s.Records()
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestRecordHandler(t *testing.T) {
	s := store.NewMemoryStore()
	id := store.NewExecutionID()
	require.NoError(t, s.AddRecord(store.Record{ID: id, Command: "make"}))
	mux := newMux(s)

	t.Run("found", func(t *testing.T) {
		w := serve(mux, http.MethodGet, "/records/"+id.String(), "")
		require.Equal(t, http.StatusOK, w.Code)
		var got store.Record
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "make", got.Command)
	})

	t.Run("not found", func(t *testing.T) {
		w := serve(mux, http.MethodGet, "/records/"+store.NewExecutionID().String(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not found")
	})

	t.Run("bad id", func(t *testing.T) {
		w := serve(mux, http.MethodGet, "/records/xyz", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid execution id")
	})
}

func TestLatestRecordHandler(t *testing.T) {
	s := store.NewMemoryStore()
	mux := newMux(s)

	w := serve(mux, http.MethodGet, "/records/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	first, second := store.NewExecutionID(), store.NewExecutionID()
	require.NoError(t, s.AddRecord(store.Record{ID: first, Command: "a"}))
	require.NoError(t, s.AddRecord(store.Record{ID: second, Command: "b"}))
	require.NoError(t, s.AddRecord(store.Record{ID: first, Command: "c"}))

	w = serve(mux, http.MethodGet, "/records/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got store.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, first, got.ID)
	assert.Equal(t, "c", got.Command)
}

func TestRecordListHandler(t *testing.T) {
	s := store.NewMemoryStore()
	mux := newMux(s)

	w := serve(mux, http.MethodGet, "/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AddRecord(store.Record{ID: store.NewExecutionID(), Command: "run"}))
	}

	w = serve(mux, http.MethodGet, "/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []store.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Len(t, got, 3)
}

func TestRecordHandlers_StoreErrors(t *testing.T) {
	mux := newMux(brokenStore{})
	id := store.NewExecutionID().String()

	tests := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/records", ""},
		{http.MethodPost, "/records", `{"command":"ls"}`},
		{http.MethodGet, "/records/latest", ""},
		{http.MethodGet, "/records/" + id, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := serve(mux, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, w.Body.String(), "store unavailable")
		})
	}
}
