package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askcampus_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	QueryResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askcampus_query_results_count",
			Help:    "Number of results served per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askcampus_reconcile_runs_total",
			Help: "Reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileRowsChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askcampus_reconcile_rows_total",
			Help: "Rows touched by reconciliation runs, by phase",
		},
		[]string{"phase"},
	)

	VectorizedDocuments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askcampus_vectorized_documents_total",
			Help: "Total documents embedded into the vector store",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryResultsCount)
	prometheus.MustRegister(ReconcileRuns)
	prometheus.MustRegister(ReconcileRowsChanged)
	prometheus.MustRegister(VectorizedDocuments)
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
