package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles the neighbour-list metrics. Labels are bounded:
// method is "brute_force" or "grid", reason is one of the Rebuild* constants.
type Collector struct {
	Builds          *prometheus.CounterVec
	BuildDuration   prometheus.Histogram
	Pairs           prometheus.Gauge
	Images          prometheus.Gauge
	Checks          prometheus.Counter
	Rebuilds        *prometheus.CounterVec
	MaxDisplacement prometheus.Histogram
}

// Rebuild reasons reported on the Rebuilds counter.
const (
	RebuildInitial      = "initial"
	RebuildDisplacement = "displacement"
	RebuildLattice      = "lattice"
	RebuildForced       = "forced"
)

// NewCollector creates the collectors and registers them on reg. A nil reg
// gets a private registry so several collectors can coexist in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Collector{
		Builds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nblist_pairlist_builds_total",
			Help: "Pair lists built, by search method",
		}, []string{"method"}),
		BuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nblist_pairlist_build_duration_seconds",
			Help:    "Time spent building a pair list",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		Pairs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nblist_pairs",
			Help: "Pairs in the most recently built self pair list",
		}),
		Images: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nblist_images",
			Help: "Periodic images in the most recently built image list",
		}),
		Checks: factory.NewCounter(prometheus.CounterOpts{
			Name: "nblist_update_checks_total",
			Help: "Staleness checks performed",
		}),
		Rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nblist_rebuilds_total",
			Help: "List rebuilds, by reason",
		}, []string{"reason"}),
		MaxDisplacement: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nblist_max_displacement",
			Help:    "Largest particle displacement seen by a staleness check",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
	}
}
