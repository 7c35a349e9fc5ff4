// Package handlers provides HTTP handlers for the execstore server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"time"

	"github.com/nomis52/execstore/server/types"
	"github.com/nomis52/execstore/store"
)

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// StatusProvider provides the data behind /api/status.
type StatusProvider interface {
	Stats() (store.Stats, error)
	NextPush() *time.Time
	Properties() types.ServerProperties
}
