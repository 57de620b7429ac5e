package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/company-signals/internal/progress"
)

// PrometheusSink exports run progress via Prometheus. It owns collectors for
// runs started/completed/running, per-target outcomes and the number of
// targets still pending across active runs.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	targetsCompleted *prometheus.CounterVec
	targetDuration   *prometheus.HistogramVec
	targetsRemaining prometheus.Gauge

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signals_runs_started_total",
			Help: "Total runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_runs_completed_total",
			Help: "Total runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signals_runs_running",
			Help: "Current number of running runs.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signals_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		targetsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_targets_completed_total",
			Help: "Target completions partitioned by outcome and status class.",
		}, []string{"outcome", "status_class"}),
		targetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signals_target_duration_seconds",
			Help:    "Per-target scrape duration partitioned by outcome.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		targetsRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signals_targets_remaining",
			Help: "Targets not yet scraped across running runs.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.targetsCompleted,
		s.targetDuration,
		s.targetsRemaining,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID, evt.Total) {
			s.runsRunning.Inc()
		}
	case progress.StageTargetDone:
		s.handleTargetEvent(evt)
	case progress.StageRunDone:
		s.finishRun(evt, "success")
	case progress.StageRunError:
		s.finishRun(evt, "error")
	}
	s.targetsRemaining.Set(float64(s.tracker.remaining()))
}

func (s *PrometheusSink) handleTargetEvent(evt progress.Event) {
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.targetsCompleted.WithLabelValues(evt.Outcome, statusClass).Inc()
	if evt.Dur > 0 {
		s.targetDuration.WithLabelValues(evt.Outcome).Observe(evt.Dur.Seconds())
	}
	s.tracker.update(evt.RunID, evt.Remaining)
}

func (s *PrometheusSink) finishRun(evt progress.Event, label string) {
	s.runsCompleted.WithLabelValues(label).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]int64
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]int64)}
}

func (t *runTracker) start(id [16]byte, total int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = total
	return true
}

func (t *runTracker) update(id [16]byte, remaining int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		t.running[id] = remaining
	}
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

func (t *runTracker) remaining() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum int64
	for _, r := range t.running {
		sum += r
	}
	return sum
}
