package hook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type instrumentation struct {
	fallbacks  *prometheus.CounterVec
	redirects  *prometheus.CounterVec
	increments *prometheus.CounterVec
}

func newInstrumentation(registerer prometheus.Registerer) *instrumentation {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)
	return &instrumentation{
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "hook",
			Name:      "fallbacks_total",
			Help:      "Operations served by the local cache after a remote failure.",
		}, []string{"table", "operation"}),
		redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "hook",
			Name:      "local_only_writes_total",
			Help:      "Dependent records written locally because their user was not found remotely.",
		}, []string{"table"}),
		increments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "hook",
			Name:      "download_counter_increments_total",
			Help:      "total_downloads increments by the store that applied them.",
		}, []string{"source"}),
	}
}

func (i *instrumentation) fallback(table, operation string) {
	i.fallbacks.WithLabelValues(table, operation).Inc()
}

func (i *instrumentation) redirect(table string) {
	i.redirects.WithLabelValues(table).Inc()
}

func (i *instrumentation) increment(source Source) {
	i.increments.WithLabelValues(string(source)).Inc()
}
