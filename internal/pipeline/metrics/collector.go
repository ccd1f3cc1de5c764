// Package metrics implements the pipeline executor's thread-safe per-stage
// call/duration counters and quality pass/fail tallies.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// StageMetrics is the accumulated call count and duration for one stage name.
type StageMetrics struct {
	Calls           uint64
	TotalDurationMs float64
	MaxDurationMs   float64
}

// Snapshot is a value-typed copy of the collector's state at a point in
// time; callers never receive a reference into the locked region.
type Snapshot struct {
	Stages          map[string]StageMetrics
	TotalDurationMs float64
	QualityPasses   uint64
	QualityFailures uint64
}

// Collector is a mutex-guarded accumulator shared between the pipeline
// executor and any external consumer (e.g. the metrics HTTP server).
type Collector struct {
	mu       sync.Mutex
	stages   map[string]StageMetrics
	totalMs  float64
	passes   uint64
	failures uint64
}

// NewCollector returns a fresh, empty Collector.
func NewCollector() *Collector {
	return &Collector{stages: make(map[string]StageMetrics)}
}

// StartStage begins timing one invocation of the named stage. The returned
// StageTimer records exactly one sample, on its first Stop() call; further
// calls are no-ops (idempotent recording), so a timer stopped both
// explicitly and via a deferred error-path Stop never double-counts.
func (c *Collector) StartStage(name string) *StageTimer {
	return &StageTimer{
		stage:     name,
		startedAt: time.Now(),
		collector: c,
	}
}

// RecordTotalDuration sets the whole-batch duration counter.
func (c *Collector) RecordTotalDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalMs = float64(d) / float64(time.Millisecond)
}

// RecordQualityPass increments the quality-gate pass counter.
func (c *Collector) RecordQualityPass() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes++
}

// RecordQualityFailure increments the quality-gate failure counter.
func (c *Collector) RecordQualityFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

// Snapshot returns a value copy of the collector's current state. Taking a
// snapshot never blocks executor progress beyond the duration of copying the
// state under the lock.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	stages := make(map[string]StageMetrics, len(c.stages))
	for k, v := range c.stages {
		stages[k] = v
	}
	return Snapshot{
		Stages:          stages,
		TotalDurationMs: c.totalMs,
		QualityPasses:   c.passes,
		QualityFailures: c.failures,
	}
}

// Reset clears all accumulated state. Called at the start of a batch: the
// executor resets whole-batch counters once per Execute call, not per input.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = make(map[string]StageMetrics)
	c.totalMs = 0
	c.passes = 0
	c.failures = 0
}

func (c *Collector) record(stage string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.stages[stage]
	m.Calls++
	durationMs := float64(d) / float64(time.Millisecond)
	m.TotalDurationMs += durationMs
	if durationMs > m.MaxDurationMs {
		m.MaxDurationMs = durationMs
	}
	c.stages[stage] = m
}

// StageTimer is a scoped, one-shot timer returned by Collector.StartStage.
type StageTimer struct {
	stage     string
	startedAt time.Time
	collector *Collector
	recorded  bool
}

// Stop records the elapsed duration as one call against the timer's stage.
// Safe to call more than once; only the first call records.
func (t *StageTimer) Stop() {
	if t.recorded {
		return
	}
	t.collector.record(t.stage, time.Since(t.startedAt))
	t.recorded = true
}

// ToPrometheus renders the snapshot as Prometheus text exposition format.
func (s Snapshot) ToPrometheus() string {
	var b strings.Builder

	b.WriteString("# HELP bunker_quality_passes_total Total number of quality gate passes\n")
	b.WriteString("# TYPE bunker_quality_passes_total counter\n")
	fmt.Fprintf(&b, "bunker_quality_passes_total %d\n", s.QualityPasses)

	b.WriteString("# HELP bunker_quality_failures_total Total number of quality gate failures\n")
	b.WriteString("# TYPE bunker_quality_failures_total counter\n")
	fmt.Fprintf(&b, "bunker_quality_failures_total %d\n", s.QualityFailures)

	b.WriteString("# HELP bunker_stage_calls_total Stage invocation count\n")
	b.WriteString("# TYPE bunker_stage_calls_total counter\n")
	b.WriteString("# HELP bunker_stage_duration_seconds_total Accumulated stage duration in seconds\n")
	b.WriteString("# TYPE bunker_stage_duration_seconds_total counter\n")
	b.WriteString("# HELP bunker_stage_duration_seconds_max Maximum stage duration in seconds\n")
	b.WriteString("# TYPE bunker_stage_duration_seconds_max gauge\n")

	names := make([]string, 0, len(s.Stages))
	for name := range s.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := s.Stages[name]
		fmt.Fprintf(&b, "bunker_stage_calls_total{stage=%q} %d\n", name, m.Calls)
		fmt.Fprintf(&b, "bunker_stage_duration_seconds_total{stage=%q} %.6f\n", name, m.TotalDurationMs/1000.0)
		fmt.Fprintf(&b, "bunker_stage_duration_seconds_max{stage=%q} %.6f\n", name, m.MaxDurationMs/1000.0)
	}

	b.WriteString("# HELP bunker_pipeline_duration_seconds Total pipeline duration\n")
	b.WriteString("# TYPE bunker_pipeline_duration_seconds gauge\n")
	fmt.Fprintf(&b, "bunker_pipeline_duration_seconds %.6f\n", s.TotalDurationMs/1000.0)

	return b.String()
}
