package vfscore

import "github.com/prometheus/client_golang/prometheus"

// Prometheus instrumentation for the cache core (SPEC_FULL.md §4 Domain
// Stack). Registration happens once at package init, mirroring the
// package-level flag.*Var wiring in cc.go: callers that want these series
// exported just need to register prometheus's default handler on their
// own mux, nothing here owns transport.
var (
	inodesTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vfscache",
		Name:      "inodes_in_use",
		Help:      "Inodes currently registered against a superblock.",
	}, []string{"superblock"})

	handlesOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vfscache",
		Name:      "handles_open",
		Help:      "Open file descriptors (file + dir) per superblock.",
	}, []string{"superblock"})

	freshnessChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vfscache",
		Name:      "freshness_checks_total",
		Help:      "dir_uptodate evaluations, partitioned by outcome.",
	}, []string{"outcome"}) // "hit" | "miss" | "forced"

	invalidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vfscache",
		Name:      "invalidations_total",
		Help:      "Root invalidations performed, partitioned by superblock.",
	}, []string{"superblock"})
)

func init() {
	prometheus.MustRegister(inodesTotal, handlesOpen, freshnessChecks, invalidations)
}

func observeFreshnessCheck(outcome string) {
	freshnessChecks.WithLabelValues(outcome).Inc()
}

func observeInvalidation(superName string) {
	invalidations.WithLabelValues(superName).Inc()
}

func setInodeGauge(superName string, n int64) {
	inodesTotal.WithLabelValues(superName).Set(float64(n))
}

func setHandleGauge(superName string, n int64) {
	handlesOpen.WithLabelValues(superName).Set(float64(n))
}
