package dispatch

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics is the metric set of one executor and its handler
type Metrics struct {
	set       *metrics.Set
	submitted *metrics.Counter
	admitted  *metrics.Counter
	executed  *metrics.Counter
	failed    *metrics.Counter
	canceled  *metrics.Counter
	wait      *metrics.Histogram
}

func newMetrics(parked func() float64) *Metrics {
	set := metrics.NewSet()
	m := &Metrics{
		set:       set,
		submitted: set.NewCounter("dorder_dispatch_submitted_total"),
		admitted:  set.NewCounter("dorder_dispatch_admitted_total"),
		executed:  set.NewCounter("dorder_commands_executed_total"),
		failed:    set.NewCounter("dorder_commands_failed_total"),
		canceled:  set.NewCounter("dorder_commands_canceled_total"),
		wait:      set.NewHistogram("dorder_dispatch_wait_seconds"),
	}
	set.NewGauge("dorder_dispatch_parked", parked)
	return m
}

// WritePrometheus writes the metrics in Prometheus text format
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Submitted uint64 `yaml:"submitted"`
	Admitted  uint64 `yaml:"admitted"`
	Executed  uint64 `yaml:"executed"`
	Failed    uint64 `yaml:"failed"`
	Canceled  uint64 `yaml:"canceled"`
}

// Snapshot returns the current counter values
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Submitted: m.submitted.Get(),
		Admitted:  m.admitted.Get(),
		Executed:  m.executed.Get(),
		Failed:    m.failed.Get(),
		Canceled:  m.canceled.Get(),
	}
}
