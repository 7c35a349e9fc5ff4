// Package store holds execution records and the current runtime configuration.
//
// The state is split into two partitions that are locked independently:
//
//   - the record table maps ExecutionIDs to Records and remembers the ID passed to the
//     most recent AddRecord call
//   - the config cell holds at most one RuntimeConfig
//
// No operation touches both partitions, so record writes never contend with config
// reads and vice versa.
//
// # Example
//
//	s := store.NewMemoryStore()
//	id := store.NewExecutionID()
//	if err := s.AddRecord(store.Record{ID: id, Command: "make"}); err != nil {
//	    return err
//	}
//	rec, ok, err := s.Record(id)
//
// Records returns an unordered snapshot. Callers must not depend on the order of the
// returned slice, even when it happens to look stable.
package store

// Store is the capability set other components program against.
// Backends must be safe for concurrent use.
type Store interface {
	// AddRecord inserts or replaces the record for record.ID and marks it as latest.
	AddRecord(record Record) error
	// Record returns the record for id. A missing id is reported by ok == false, not an error.
	Record(id ExecutionID) (record Record, ok bool, err error)
	// LatestID returns the ID of the most recent AddRecord call.
	LatestID() (id ExecutionID, ok bool, err error)
	// Records returns a snapshot of all stored records in unspecified order.
	Records() ([]Record, error)
	// RuntimeConfig returns the current runtime config.
	RuntimeConfig() (config RuntimeConfig, ok bool, err error)
	// SetRuntimeConfig replaces the current runtime config.
	SetRuntimeConfig(config RuntimeConfig) error
}
