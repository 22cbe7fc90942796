package runner

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds between 1us and 60s with three
// significant digits.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics aggregates step latencies across repeated runs.
type Metrics struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	steps     map[string]*stepMetrics
	order     []string
	total     int64
	failed    int64
}

type stepMetrics struct {
	total     int64
	failed    int64
	histogram *hdrhistogram.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		steps:     make(map[string]*stepMetrics),
	}
}

// Record adds one step outcome. Skipped steps are ignored.
func (m *Metrics) Record(result *StepResult) {
	if result.Skipped {
		return
	}

	latencyUs := clampLatency(result.Duration)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if !result.Passed {
		m.failed++
	}
	_ = m.histogram.RecordValue(latencyUs)

	sm, ok := m.steps[result.Name]
	if !ok {
		sm = &stepMetrics{histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)}
		m.steps[result.Name] = sm
		m.order = append(m.order, result.Name)
	}
	sm.total++
	if !result.Passed {
		sm.failed++
	}
	_ = sm.histogram.RecordValue(latencyUs)
}

// RecordRun records every step of a run.
func (m *Metrics) RecordRun(run *RunResult) {
	for _, step := range run.Results {
		m.Record(step)
	}
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	return us
}

// Summary holds latency percentiles for all steps together and per step.
type Summary struct {
	Total  int64          `json:"total"`
	Failed int64          `json:"failed"`
	P50    time.Duration  `json:"p50"`
	P95    time.Duration  `json:"p95"`
	P99    time.Duration  `json:"p99"`
	Min    time.Duration  `json:"min"`
	Max    time.Duration  `json:"max"`
	Mean   time.Duration  `json:"mean"`
	Steps  []*StepSummary `json:"steps"`
}

type StepSummary struct {
	Name   string        `json:"name"`
	Total  int64         `json:"total"`
	Failed int64         `json:"failed"`
	P50    time.Duration `json:"p50"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Mean   time.Duration `json:"mean"`
}

// Summary returns the current figures. Steps are listed in the order they
// were first seen.
func (m *Metrics) Summary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Summary{
		Total:  m.total,
		Failed: m.failed,
	}
	if m.total > 0 {
		s.P50 = quantile(m.histogram, 50)
		s.P95 = quantile(m.histogram, 95)
		s.P99 = quantile(m.histogram, 99)
		s.Min = time.Duration(m.histogram.Min()) * time.Microsecond
		s.Max = time.Duration(m.histogram.Max()) * time.Microsecond
		s.Mean = time.Duration(m.histogram.Mean()) * time.Microsecond
	}

	for _, name := range m.order {
		sm := m.steps[name]
		s.Steps = append(s.Steps, &StepSummary{
			Name:   name,
			Total:  sm.total,
			Failed: sm.failed,
			P50:    quantile(sm.histogram, 50),
			P95:    quantile(sm.histogram, 95),
			P99:    quantile(sm.histogram, 99),
			Mean:   time.Duration(sm.histogram.Mean()) * time.Microsecond,
		})
	}
	return s
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}
