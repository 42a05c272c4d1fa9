// Package metrics holds the Prometheus collectors shared by the keeper, the
// oracle node and the tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "raffle"

type Metrics struct {
	UpkeepChecks    prometheus.Counter
	UpkeepPerformed prometheus.Counter
	UpkeepFailures  prometheus.Counter

	Fulfillments        prometheus.Counter
	FulfillmentFailures prometheus.Counter

	Entries       prometheus.Counter
	RoundsClosed  prometheus.Counter
	RoundsSettled prometheus.Counter
	Payouts       prometheus.Counter
	PoolSize      prometheus.Gauge
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		UpkeepChecks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "checks_total",
			Help:      "Number of upkeep eligibility checks.",
		}),
		UpkeepPerformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "performed_total",
			Help:      "Number of rounds closed by the keeper.",
		}),
		UpkeepFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "failures_total",
			Help:      "Number of failed round close attempts, races excluded.",
		}),
		Fulfillments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vrf",
			Name:      "fulfillments_total",
			Help:      "Number of randomness requests answered.",
		}),
		FulfillmentFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vrf",
			Name:      "fulfillment_failures_total",
			Help:      "Number of fulfillments rolled back.",
		}),
		Entries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "entries_total",
			Help:      "Number of indexed entries.",
		}),
		RoundsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "rounds_closed_total",
			Help:      "Number of indexed round closures.",
		}),
		RoundsSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "rounds_settled_total",
			Help:      "Number of indexed winner payouts.",
		}),
		Payouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "payouts_wei_total",
			Help:      "Sum of paid out prizes in wei, as a float approximation.",
		}),
		PoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "pool_size",
			Help:      "Entries in the current round.",
		}),
	}
}

// Handler serves the collectors of gatherer in the exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
