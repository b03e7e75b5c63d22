package catalog

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// ProgressSink consumes batch progress: done increases monotonically by one
// per completed unit up to total. Implementations must tolerate calls from
// multiple goroutines.
type ProgressSink interface {
	Progress(done, total int)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(done, total int)

func (f ProgressFunc) Progress(done, total int) { f(done, total) }

// LogProgress returns a sink that logs each completed unit at debug level.
func LogProgress(log *slog.Logger) ProgressSink {
	return ProgressFunc(func(done, total int) {
		log.Debug("batch progress", "done", done, "total", total)
	})
}

// Metrics holds the prometheus collectors for batch dispatch.
type Metrics struct {
	UnitsCompleted prometheus.Counter
	UnitsFailed    prometheus.Counter
	BatchDuration  prometheus.Histogram
	PointsLoaded   prometheus.Counter
}

// NewMetrics builds the dispatch collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UnitsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_units_completed_total",
			Help: "Work units that finished successfully.",
		}),
		UnitsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_units_failed_total",
			Help: "Work units that finished with an error.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_batch_duration_seconds",
			Help:    "Wall time of whole batch runs.",
			Buckets: []float64{0.01, 0.1, 0.3, 0.6, 1, 3, 6, 9, 30, 60},
		}),
		PointsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_points_loaded_total",
			Help: "Point records returned by completed units.",
		}),
	}
	reg.MustRegister(m.UnitsCompleted, m.UnitsFailed, m.BatchDuration, m.PointsLoaded)
	return m
}
