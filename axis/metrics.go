package axis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what the axis servo loop did.
type Metrics struct {
	// plans by control mode and result kind
	Plans *prometheus.CounterVec
	// replans that failed while a trajectory was live, so it was kept
	KeptTrajectories prometheus.Counter
	// cycles driven by the closed-form fallback
	FallbackCycles prometheus.Counter
	UpdateSeconds  prometheus.Histogram
	Duration       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Plans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scurve_axis_plans_total",
			Help: "Trajectory plans by control mode and result",
		}, []string{"mode", "result"}),
		KeptTrajectories: f.NewCounter(prometheus.CounterOpts{
			Name: "scurve_axis_kept_trajectories_total",
			Help: "Failed replans that left the previous trajectory running",
		}),
		FallbackCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "scurve_axis_fallback_cycles_total",
			Help: "Servo cycles driven by closed-form velocity tracking",
		}),
		UpdateSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scurve_axis_update_seconds",
			Help:    "Time spent in one servo update",
			Buckets: prometheus.ExponentialBuckets(1e-6, 2, 14), // 1us to ~8ms
		}),
		Duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "scurve_axis_trajectory_duration_seconds",
			Help: "Duration of the active trajectory",
		}),
	}
}
