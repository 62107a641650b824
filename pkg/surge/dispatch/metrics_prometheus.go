//go:build prometheus

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatcher metrics, exported when built with the prometheus tag.
var (
	acceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surge",
		Subsystem: "dispatch",
		Name:      "accepted_total",
		Help:      "Total number of accepted connections",
	})

	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surge",
		Subsystem: "dispatch",
		Name:      "requests_total",
		Help:      "Total number of requests handed to workers",
	})

	timeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surge",
		Subsystem: "dispatch",
		Name:      "timeouts_total",
		Help:      "Total number of connections reaped by deadline",
	})

	slabHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surge",
		Subsystem: "dispatch",
		Name:      "slab_hits_total",
		Help:      "Socket records reused from the free list",
	})

	slabMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surge",
		Subsystem: "dispatch",
		Name:      "slab_misses_total",
		Help:      "Socket records allocated because the free list was empty",
	})

	parseFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surge",
		Subsystem: "dispatch",
		Name:      "parse_failures_total",
		Help:      "Requests rejected by the parser",
	})

	disconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surge",
		Subsystem: "dispatch",
		Name:      "disconnects_total",
		Help:      "Connections closed by the peer",
	})
)

func metricAccepted()     { acceptedTotal.Inc() }
func metricRequest()      { requestsTotal.Inc() }
func metricTimeout()      { timeoutsTotal.Inc() }
func metricSlabHit()      { slabHitsTotal.Inc() }
func metricSlabMiss()     { slabMissesTotal.Inc() }
func metricParseFailed()  { parseFailedTotal.Inc() }
func metricDisconnected() { disconnectsTotal.Inc() }
