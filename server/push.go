package server

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/execstore/metrics"
	"github.com/nomis52/execstore/store"
)

// statsPusher publishes store.Stats through a PushRegistry.
type statsPusher struct {
	registry  *metrics.PushRegistry
	records   metrics.Gauge
	configSet metrics.Gauge
	hasLatest metrics.Gauge
}

func newStatsPusher(registry *metrics.PushRegistry) (*statsPusher, error) {
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
	hasLatest, err := registry.NewGauge(prometheus.GaugeOpts{
		Name: "store_latest_id_set",
		Help: "1 once at least one record has been added, 0 otherwise",
	})
	if err != nil {
		return nil, fmt.Errorf("creating latest id gauge: %w", err)
	}

	return &statsPusher{
		registry:  registry,
		records:   records,
		configSet: configSet,
		hasLatest: hasLatest,
	}, nil
}

func (p *statsPusher) push(ctx context.Context, stats store.Stats) error {
	p.records.Set(float64(stats.Records))
	p.configSet.Set(boolToFloat(stats.RuntimeConfigSet))
	p.hasLatest.Set(boolToFloat(stats.LatestID != nil))

	if err := p.registry.Push(ctx); err != nil {
		return fmt.Errorf("pushing store stats: %w", err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
