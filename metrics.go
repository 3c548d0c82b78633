package raidguard

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type InMemoryMetricsCollector struct {
	counters map[string]map[string]int64
	gauges   map[string]map[string]float64
	mu       sync.RWMutex
}

func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		counters: make(map[string]map[string]int64),
		gauges:   make(map[string]map[string]float64),
	}
}

func (m *InMemoryMetricsCollector) IncrementCounter(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counters[name] == nil {
		m.counters[name] = make(map[string]int64)
	}
	m.counters[name][makeLabelKey(labels)]++
}

func (m *InMemoryMetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gauges[name] == nil {
		m.gauges[name] = make(map[string]float64)
	}
	m.gauges[name][makeLabelKey(labels)] = value
}

func makeLabelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

// GetCounterValue returns the current value of a counter (for testing/debugging)
func (m *InMemoryMetricsCollector) GetCounterValue(name string, labels map[string]string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if counters, exists := m.counters[name]; exists {
		return counters[makeLabelKey(labels)]
	}
	return 0
}

// HealthCheck performs a health check on the metrics collector
func (m *InMemoryMetricsCollector) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_ = len(m.counters)
	_ = len(m.gauges)
	return nil
}

// ExportPrometheus exports metrics in Prometheus format
func (m *InMemoryMetricsCollector) ExportPrometheus() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var output strings.Builder

	for name, labelMap := range m.counters {
		output.WriteString(fmt.Sprintf("# HELP %s Counter\n", name))
		output.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
		for labelKey, value := range labelMap {
			output.WriteString(fmt.Sprintf("%s{%s} %d\n", name, labelKey, value))
		}
	}
	for name, labelMap := range m.gauges {
		output.WriteString(fmt.Sprintf("# HELP %s Gauge\n", name))
		output.WriteString(fmt.Sprintf("# TYPE %s gauge\n", name))
		for labelKey, value := range labelMap {
			output.WriteString(fmt.Sprintf("%s{%s} %f\n", name, labelKey, value))
		}
	}
	return output.String()
}
