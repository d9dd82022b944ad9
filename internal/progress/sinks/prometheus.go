package sinks

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/pace/internal/progress"
)

// PrometheusSink exports stage lifecycle metrics via Prometheus. Step and end
// counters are labelled with the stage name, so callers should keep stage
// names low-cardinality (for example "compile" rather than a file path).
type PrometheusSink struct {
	stagesBegun *prometheus.CounterVec
	stagesEnded *prometheus.CounterVec
	steps       *prometheus.CounterVec
	stagesOpen  prometheus.Gauge

	tracker *stageTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		stagesBegun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pace_stages_begun_total",
			Help: "Total stages begun, partitioned by stage name.",
		}, []string{"stage"}),
		stagesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pace_stages_ended_total",
			Help: "Total stages ended, partitioned by stage name.",
		}, []string{"stage"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pace_stage_steps_total",
			Help: "Total steps completed, partitioned by stage name.",
		}, []string{"stage"}),
		stagesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pace_stages_open",
			Help: "Current number of stages that have begun but not ended.",
		}),
		tracker: newStageTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.stagesBegun,
		s.stagesEnded,
		s.steps,
		s.stagesOpen,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register stage collector: %w", err)
		}
	}
	return s, nil
}

// Update implements progress.Updater. It is safe for concurrent use by
// multiple goroutines. Events naming a stage this sink never saw begin are
// counted under the "unknown" label.
func (s *PrometheusSink) Update(target progress.StageID, ev progress.Event) {
	switch ev.Kind {
	case progress.KindBegin:
		if s.tracker.begin(ev.ID, ev.Name) {
			s.stagesOpen.Inc()
		}
		s.stagesBegun.WithLabelValues(ev.Name).Inc()
	case progress.KindStep:
		s.steps.WithLabelValues(s.tracker.name(target)).Inc()
	case progress.KindEnd:
		name, open := s.tracker.end(target)
		s.stagesEnded.WithLabelValues(name).Inc()
		if open {
			s.stagesOpen.Dec()
		}
	}
}

const unknownStage = "unknown"

type stageTracker struct {
	mu    sync.Mutex
	names map[progress.StageID]string
	open  map[progress.StageID]struct{}
}

func newStageTracker() *stageTracker {
	return &stageTracker{
		names: make(map[progress.StageID]string),
		open:  make(map[progress.StageID]struct{}),
	}
}

func (t *stageTracker) begin(id progress.StageID, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names[id] = name
	if _, ok := t.open[id]; ok {
		return false
	}
	t.open[id] = struct{}{}
	return true
}

func (t *stageTracker) name(id progress.StageID) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if name, ok := t.names[id]; ok {
		return name
	}
	return unknownStage
}

// end reports the stage name and whether the stage was open. Ended stages
// forget their name since no further events may target them.
func (t *stageTracker) end(id progress.StageID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name, known := t.names[id]
	if !known {
		name = unknownStage
	}
	delete(t.names, id)
	if _, ok := t.open[id]; !ok {
		return name, false
	}
	delete(t.open, id)
	return name, true
}
