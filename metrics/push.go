package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	remoteWritePath = "/api/v1/write"
)

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint (e.g., "http://localhost:9090").
	URL string
	// Prefix is prepended to every metric name, separated by an underscore.
	Prefix string
	// Job is the job label for all metrics.
	Job string
	// Instance is the instance label for all metrics.
	Instance string
	// Timeout is the HTTP client timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// PushRegistry implements Registry for push-based metrics collection.
//
// Metric updates only change buffered values. Push sends the current value of every
// series to the remote write endpoint in a single request.
type PushRegistry struct {
	url        string
	httpClient *http.Client
	prefix     string
	job        string
	instance   string

	mu     sync.Mutex
	series map[string]*pushSeries
}

var _ Registry = (*PushRegistry)(nil)

type pushSeries struct {
	name   string
	labels map[string]string
	value  float64
}

// NewPushRegistry creates a PushRegistry for the endpoint in cfg.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &PushRegistry{
		url:        strings.TrimSuffix(cfg.URL, "/") + remoteWritePath,
		httpClient: &http.Client{Timeout: timeout},
		prefix:     cfg.Prefix,
		job:        cfg.Job,
		instance:   cfg.Instance,
		series:     make(map[string]*pushSeries),
	}
}

// NewGauge creates a new push-based Gauge.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushGauge{registry: r, name: opts.Name}, nil
}

// NewGaugeVec creates a new push-based GaugeVec.
func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	return &pushGaugeVec{registry: r, name: opts.Name}, nil
}

// NewCounter creates a new push-based Counter.
func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return &pushCounter{registry: r, name: opts.Name}, nil
}

// NewCounterVec creates a new push-based CounterVec.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{registry: r, name: opts.Name}, nil
}

// Push sends the buffered value of every series to the remote write endpoint.
// It is a no-op when nothing has been recorded yet.
func (r *PushRegistry) Push(ctx context.Context) error {
	timeseries := r.snapshot(time.Now())
	if len(timeseries) == 0 {
		return nil
	}

	data, err := proto.Marshal(&prompb.WriteRequest{Timeseries: timeseries})
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (r *PushRegistry) set(name string, labels map[string]string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup(name, labels).value = v
}

func (r *PushRegistry) add(name string, labels map[string]string, v float64) {
	if v < 0 {
		panic("counter cannot decrease in value")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup(name, labels).value += v
}

// lookup must be called with mu held.
func (r *PushRegistry) lookup(name string, labels map[string]string) *pushSeries {
	key := seriesKey(name, labels)
	s, ok := r.series[key]
	if !ok {
		s = &pushSeries{name: name, labels: labels}
		r.series[key] = s
	}
	return s
}

// snapshot converts the buffered series to remote write time series stamped with now.
func (r *PushRegistry) snapshot(now time.Time) []prompb.TimeSeries {
	r.mu.Lock()
	defer r.mu.Unlock()

	timeseries := make([]prompb.TimeSeries, 0, len(r.series))
	for _, s := range r.series {
		timeseries = append(timeseries, prompb.TimeSeries{
			Labels: r.labelsFor(s),
			Samples: []prompb.Sample{{
				Value:     s.value,
				Timestamp: now.UnixMilli(),
			}},
		})
	}
	return timeseries
}

// labelsFor builds the sorted label set for a series, including __name__, job and instance.
func (r *PushRegistry) labelsFor(s *pushSeries) []prompb.Label {
	name := s.name
	if r.prefix != "" {
		name = r.prefix + "_" + name
	}

	labels := make([]prompb.Label, 0, len(s.labels)+3)
	labels = append(labels, prompb.Label{Name: "__name__", Value: name})
	if r.job != "" {
		labels = append(labels, prompb.Label{Name: "job", Value: r.job})
	}
	if r.instance != "" {
		labels = append(labels, prompb.Label{Name: "instance", Value: r.instance})
	}
	for k, v := range s.labels {
		labels = append(labels, prompb.Label{Name: k, Value: v})
	}

	slices.SortFunc(labels, func(a, b prompb.Label) int {
		return strings.Compare(a.Name, b.Name)
	})
	return labels
}

// seriesKey builds a stable map key from a metric name and its labels.
func seriesKey(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("," + k + "=" + labels[k])
	}
	return b.String()
}

type pushGauge struct {
	registry *PushRegistry
	name     string
	labels   map[string]string
}

func (g *pushGauge) Set(v float64) {
	g.registry.set(g.name, g.labels, v)
}

type pushGaugeVec struct {
	registry *PushRegistry
	name     string
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{registry: g.registry, name: g.name, labels: labels}
}

type pushCounter struct {
	registry *PushRegistry
	name     string
	labels   map[string]string
}

func (c *pushCounter) Inc() {
	c.Add(1)
}

func (c *pushCounter) Add(v float64) {
	c.registry.add(c.name, c.labels, v)
}

type pushCounterVec struct {
	registry *PushRegistry
	name     string
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushCounter{registry: c.registry, name: c.name, labels: labels}
}
