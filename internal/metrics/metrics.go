package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the wallet collectors.
	Registry = prometheus.NewRegistry()

	walletOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coin_wallet",
			Subsystem: "wallet",
			Name:      "operations_total",
			Help:      "Wallet operations by name and outcome.",
		},
		[]string{"operation", "result"},
	)

	coinFlow = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coin_wallet",
			Subsystem: "ledger",
			Name:      "coins_total",
			Help:      "Coins moved through the ledger by transaction type.",
		},
		[]string{"type"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coin_wallet",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Expiry sweep runs.",
		},
		[]string{"success"},
	)

	sweepFailedEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coin_wallet",
			Subsystem: "sweep",
			Name:      "failed_entries_total",
			Help:      "Credit entries the sweep could not expire.",
		},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coin_wallet",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of expiry sweep runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coin_wallet",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		walletOperations,
		coinFlow,
		sweepRuns,
		sweepFailedEntries,
		sweepDuration,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one wallet operation outcome.
func RecordOperation(operation, result string) {
	walletOperations.WithLabelValues(operation, result).Inc()
}

// AddCoins records coins moved by a ledger entry type.
func AddCoins(txType string, coins int64) {
	if coins < 0 {
		coins = -coins
	}
	coinFlow.WithLabelValues(txType).Add(float64(coins))
}

// RecordSweep records one expiry sweep run.
func RecordSweep(duration time.Duration, failedEntries int, err error) {
	sweepRuns.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	sweepFailedEntries.Add(float64(failedEntries))
	sweepDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest counts a served request by matched route.
func RecordHTTPRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
