package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "OLAPMeta"

var (
	Registry = prometheus.NewRegistry()

	GRPCMetrics = grpcprometheus.NewServerMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = namespace
		},
	)

	// CacheLookups counts lookups by level (cluster, datasource) and
	// result (hit, miss, error).
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "cache lookups by level and result",
	}, []string{"level", "result"})

	// BrokerRequests counts broker requests by kind (status, metadata,
	// time_boundary) and result.
	BrokerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broker",
		Name:      "requests_total",
		Help:      "broker requests by kind and result",
	}, []string{"kind", "result"})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "listener",
		Name:      "notifications_total",
		Help:      "segment notifications by action and result",
	}, []string{"action", "result"})

	CachedDataSources = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "datasources",
		Help:      "number of cached datasource schemas",
	})
)

func init() {
	Registry.MustRegister(
		GRPCMetrics,
		CacheLookups,
		BrokerRequests,
		Notifications,
		CachedDataSources,
	)
	GRPCMetrics.EnableHandlingTimeHistogram(
		func(h *prometheus.HistogramOpts) {
			h.Namespace = namespace
		},
	)
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
