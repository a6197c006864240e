package mqttroute

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryMetrics is an in-memory implementation of Metrics, mostly for tests
// and for exposing counters through a custom endpoint.
type MemoryMetrics struct {
	mu         sync.Mutex
	counters   map[string]*atomicFloat
	gauges     map[string]*atomicFloat
	histograms map[string]*memoryHistogram
}

// NewMemoryMetrics creates a new in-memory metrics instance.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{
		counters:   make(map[string]*atomicFloat),
		gauges:     make(map[string]*atomicFloat),
		histograms: make(map[string]*memoryHistogram),
	}
}

// metricKey renders name{k1=v1,k2=v2} with label keys sorted, so the same
// label set always maps to the same series.
func metricKey(name string, labels MetricLabels) string {
	if len(labels) == 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range slices.Sorted(maps.Keys(labels)) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func series[T any](mu *sync.Mutex, m map[string]*T, key string) *T {
	mu.Lock()
	defer mu.Unlock()

	if v, ok := m[key]; ok {
		return v
	}
	v := new(T)
	m[key] = v
	return v
}

// Counter returns a counter metric.
func (m *MemoryMetrics) Counter(name string, labels MetricLabels) Counter {
	return (*memoryCounter)(series(&m.mu, m.counters, metricKey(name, labels)))
}

// Gauge returns a gauge metric.
func (m *MemoryMetrics) Gauge(name string, labels MetricLabels) Gauge {
	return (*memoryGauge)(series(&m.mu, m.gauges, metricKey(name, labels)))
}

// Histogram returns a histogram metric.
func (m *MemoryMetrics) Histogram(name string, labels MetricLabels) Histogram {
	return series(&m.mu, m.histograms, metricKey(name, labels))
}

// CounterValue returns the current value of a counter, 0 if it was never used.
func (m *MemoryMetrics) CounterValue(name string, labels MetricLabels) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[metricKey(name, labels)]; ok {
		return c.load()
	}
	return 0
}

// GaugeValue returns the current value of a gauge, 0 if it was never used.
func (m *MemoryMetrics) GaugeValue(name string, labels MetricLabels) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gauges[metricKey(name, labels)]; ok {
		return g.load()
	}
	return 0
}

// HistogramCount returns the number of observations of a histogram.
func (m *MemoryMetrics) HistogramCount(name string, labels MetricLabels) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.histograms[metricKey(name, labels)]; ok {
		return h.Count()
	}
	return 0
}

// Snapshot returns every counter and gauge keyed by series name.
func (m *MemoryMetrics) Snapshot() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]float64, len(m.counters)+len(m.gauges))
	for k, v := range m.counters {
		out[k] = v.load()
	}
	for k, v := range m.gauges {
		out[k] = v.load()
	}
	return out
}

// atomicFloat is a float64 stored as bits for lock-free updates.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat) add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

type memoryCounter atomicFloat

func (c *memoryCounter) Inc() { c.Add(1) }

// Add ignores negative deltas; counters only go up.
func (c *memoryCounter) Add(delta float64) {
	if delta < 0 {
		return
	}
	(*atomicFloat)(c).add(delta)
}

func (c *memoryCounter) Value() float64 { return (*atomicFloat)(c).load() }

type memoryGauge atomicFloat

func (g *memoryGauge) Set(value float64) { (*atomicFloat)(g).store(value) }
func (g *memoryGauge) Inc()              { (*atomicFloat)(g).add(1) }
func (g *memoryGauge) Dec()              { (*atomicFloat)(g).add(-1) }
func (g *memoryGauge) Add(delta float64) { (*atomicFloat)(g).add(delta) }
func (g *memoryGauge) Value() float64    { return (*atomicFloat)(g).load() }

type memoryHistogram struct {
	count atomic.Uint64
	sum   atomicFloat
}

func (h *memoryHistogram) Observe(value float64) {
	h.count.Add(1)
	h.sum.add(value)
}

func (h *memoryHistogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

func (h *memoryHistogram) Count() uint64 {
	return h.count.Load()
}

func (h *memoryHistogram) Sum() float64 {
	return h.sum.load()
}
