package store

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/execstore/metrics"
)

const (
	resultOK    = "ok"
	resultMiss  = "miss"
	resultError = "error"
)

// Instrumented wraps a Store and records operation counts, the number of stored
// records and whether a runtime config is present. Both gauges start from the wrapped
// store's state. The records gauge is refreshed whenever a snapshot is taken through
// Records and the config gauge on every RuntimeConfig read.
type Instrumented struct {
	next       Store
	operations metrics.CounterVec
	records    metrics.Gauge
	configSet  metrics.Gauge
}

var _ Store = (*Instrumented)(nil)

// NewInstrumented registers the store metrics with registry and wraps next.
func NewInstrumented(next Store, registry metrics.Registry) (*Instrumented, error) {
	operations, err := registry.NewCounterVec(prometheus.CounterOpts{
		Name: "store_operations_total",
		Help: "Store operations by operation and result",
	}, []string{"operation", "result"})
	if err != nil {
		return nil, fmt.Errorf("creating operations counter: %w", err)
	}

	records, err := registry.NewGauge(prometheus.GaugeOpts{
		Name: "store_records",
		Help: "Number of execution records held by the store",
	})
	if err != nil {
		return nil, fmt.Errorf("creating records gauge: %w", err)
	}

	configSet, err := registry.NewGauge(prometheus.GaugeOpts{
		Name: "store_runtime_config_set",
		Help: "1 if a runtime config has been set, 0 otherwise",
	})
	if err != nil {
		return nil, fmt.Errorf("creating runtime config gauge: %w", err)
	}

	s := &Instrumented{
		next:       next,
		operations: operations,
		records:    records,
		configSet:  configSet,
	}

	// A persistent backend may already hold state.
	snapshot, err := next.Records()
	if err != nil {
		return nil, fmt.Errorf("reading initial records: %w", err)
	}
	s.records.Set(float64(len(snapshot)))
	_, ok, err := next.RuntimeConfig()
	if err != nil {
		return nil, fmt.Errorf("reading initial runtime config: %w", err)
	}
	s.setConfigGauge(ok)

	return s, nil
}

func (s *Instrumented) setConfigGauge(set bool) {
	if set {
		s.configSet.Set(1)
	} else {
		s.configSet.Set(0)
	}
}

func (s *Instrumented) observe(operation, result string) {
	s.operations.With(prometheus.Labels{"operation": operation, "result": result}).Inc()
}

func resultOf(ok bool, err error) string {
	switch {
	case err != nil:
		return resultError
	case !ok:
		return resultMiss
	default:
		return resultOK
	}
}

// AddRecord forwards to the wrapped store.
func (s *Instrumented) AddRecord(record Record) error {
	err := s.next.AddRecord(record)
	s.observe("add_record", resultOf(true, err))
	return err
}

// Record forwards to the wrapped store.
func (s *Instrumented) Record(id ExecutionID) (Record, bool, error) {
	record, ok, err := s.next.Record(id)
	s.observe("get_record", resultOf(ok, err))
	return record, ok, err
}

// LatestID forwards to the wrapped store.
func (s *Instrumented) LatestID() (ExecutionID, bool, error) {
	id, ok, err := s.next.LatestID()
	s.observe("get_latest_id", resultOf(ok, err))
	return id, ok, err
}

// Records forwards to the wrapped store and updates the records gauge from the snapshot.
func (s *Instrumented) Records() ([]Record, error) {
	records, err := s.next.Records()
	s.observe("get_records", resultOf(true, err))
	if err == nil {
		s.records.Set(float64(len(records)))
	}
	return records, err
}

// RuntimeConfig forwards to the wrapped store and updates the config gauge.
func (s *Instrumented) RuntimeConfig() (RuntimeConfig, bool, error) {
	config, ok, err := s.next.RuntimeConfig()
	s.observe("get_runtime_config", resultOf(ok, err))
	if err == nil {
		s.setConfigGauge(ok)
	}
	return config, ok, err
}

// SetRuntimeConfig forwards to the wrapped store.
func (s *Instrumented) SetRuntimeConfig(config RuntimeConfig) error {
	err := s.next.SetRuntimeConfig(config)
	s.observe("set_runtime_config", resultOf(true, err))
	if err == nil {
		s.setConfigGauge(true)
	}
	return err
}
