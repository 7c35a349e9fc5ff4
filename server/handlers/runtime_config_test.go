package handlers

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/execstore/store"
)

func newConfigMux(s store.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /config", NewRuntimeConfigHandler(slog.Default(), s))
	mux.Handle("PUT /config", NewSetRuntimeConfigHandler(slog.Default(), s))
	return mux
}

func TestRuntimeConfigHandler_NotSet(t *testing.T) {
	w := serve(newConfigMux(store.NewMemoryStore()), http.MethodGet, "/config", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no runtime config set")
}

func TestRuntimeConfigHandler(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.SetRuntimeConfig(store.RuntimeConfig{
		Shell:       "/bin/bash",
		Timeout:     30 * time.Second,
		MaxParallel: 2,
		Env:         map[string]string{"CI": "1"},
	}))

	w := serve(newConfigMux(s), http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/yaml", w.Header().Get("Content-Type"))

	var got store.RuntimeConfig
	require.NoError(t, yaml.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "/bin/bash", got.Shell)
	assert.Equal(t, 30*time.Second, got.Timeout)
	assert.Equal(t, 2, got.MaxParallel)
	assert.Equal(t, map[string]string{"CI": "1"}, got.Env)
}

func TestSetRuntimeConfigHandler_Replaces(t *testing.T) {
	s := store.NewMemoryStore()
	mux := newConfigMux(s)

	w := serve(mux, http.MethodPut, "/config", "shell: /bin/zsh\ntimeout: 30s\nenv:\n  A: \"1\"\n")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = serve(mux, http.MethodPut, "/config", "timeout: 60s\n")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	rc, ok, err := s.RuntimeConfig()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, rc.Timeout)
	assert.Equal(t, "/bin/sh", rc.Shell, "a set is a full replacement, unset fields take defaults")
	assert.Nil(t, rc.Env)
	assert.Equal(t, 1, rc.MaxParallel)
}

func TestSetRuntimeConfigHandler_BadBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "unknown field", body: "shel: /bin/sh\n", wantMsg: "invalid runtime config"},
		{name: "negative timeout", body: "timeout: -5s\n", wantMsg: "timeout must not be negative"},
		{name: "negative max parallel", body: "max_parallel: -1\n", wantMsg: "max_parallel must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()

			w := serve(newConfigMux(s), http.MethodPut, "/config", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)

			_, ok, err := s.RuntimeConfig()
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRuntimeConfigHandlers_StoreErrors(t *testing.T) {
	mux := newConfigMux(brokenStore{})

	w := serve(mux, http.MethodGet, "/config", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = serve(mux, http.MethodPut, "/config", "shell: /bin/sh\n")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "store unavailable")
}
