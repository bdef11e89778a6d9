package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Chain data-source metrics
	ChainAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelens_chain_api_calls_total",
			Help: "Total number of chain explorer API calls",
		},
		[]string{"network", "endpoint", "status"}, // status: success|error|rate_limited
	)

	ChainAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feelens_chain_api_latency_seconds",
			Help:    "Chain explorer API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"network", "endpoint"},
	)

	FetchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelens_fetch_retries_total",
			Help: "Total number of retried data-source calls",
		},
		[]string{"network"},
	)

	// Analysis pipeline metrics
	AnalysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelens_analysis_runs_total",
			Help: "Total number of analysis runs",
		},
		[]string{"network", "status"}, // status: success|error|no_data
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feelens_analysis_duration_seconds",
			Help:    "Analysis run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"network"},
	)

	RecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelens_records_skipped_total",
			Help: "Raw records dropped during normalization",
		},
		[]string{"network", "reason"}, // reason: malformed|unmapped_token|filtered
	)

	PeerFetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelens_peer_fetch_failures_total",
			Help: "Peer sampling attempts that exhausted retries",
		},
		[]string{"network"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(ChainAPICalls)
	prometheus.MustRegister(ChainAPILatency)
	prometheus.MustRegister(FetchRetries)
	prometheus.MustRegister(AnalysisRuns)
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(RecordsSkipped)
	prometheus.MustRegister(PeerFetchFailures)
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
