package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP request metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogue_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogue_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// FieldValueEdits counts saved field value changes by action (create/update/delete/override)
var FieldValueEdits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalogue_field_value_edits_total",
		Help: "Total number of field values written through the record editor",
	},
	[]string{"action"},
)

// PresentationItemsAdded counts records appended to presentations from a selection
var PresentationItemsAdded = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "catalogue_presentation_items_added_total",
		Help: "Total number of records added to presentations",
	},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogue_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogue_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogue_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
	prometheus.MustRegister(FieldValueEdits, PresentationItemsAdded)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
