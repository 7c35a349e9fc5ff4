package store

import "fmt"

// Stats summarises the state of a Store.
type Stats struct {
	Records          int          `json:"records"`
	LatestID         *ExecutionID `json:"latest_id,omitempty"`
	RuntimeConfigSet bool         `json:"runtime_config_set"`
}

// Collect gathers Stats from s. The partitions are read one after the other, so the
// result is not an atomic view across both.
func Collect(s Store) (Stats, error) {
	records, err := s.Records()
	if err != nil {
		return Stats{}, fmt.Errorf("listing records: %w", err)
	}

	stats := Stats{Records: len(records)}

	id, ok, err := s.LatestID()
	if err != nil {
		return Stats{}, fmt.Errorf("reading latest id: %w", err)
	}
	if ok {
		stats.LatestID = &id
	}

	_, ok, err = s.RuntimeConfig()
	if err != nil {
		return Stats{}, fmt.Errorf("reading runtime config: %w", err)
	}
	stats.RuntimeConfigSet = ok

	return stats, nil
}
