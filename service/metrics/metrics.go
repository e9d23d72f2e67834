package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct is passed
// to all components that need to record metrics. A nil *Metrics is valid and
// records nothing, so callers never have to guard their call sites.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec

	// Scan Metrics
	accountsScannedTotal   *prometheus.CounterVec
	accountsCloseableTotal *prometheus.CounterVec

	// Batch Submission Metrics
	batchesSubmittedTotal   *prometheus.CounterVec
	batchSubmitDuration     *prometheus.HistogramVec
	accountsClosedTotal     *prometheus.CounterVec
	lamportsRecoveredTotal  *prometheus.CounterVec
	confirmationWaitSeconds *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),

		// Scan Metrics
		accountsScannedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_accounts_scanned_total",
				Help: "Total number of token accounts returned by wallet scans",
			},
			[]string{"wallet_address"},
		),
		accountsCloseableTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_accounts_closeable_total",
				Help: "Total number of zero-balance token accounts found by wallet scans",
			},
			[]string{"wallet_address"},
		),

		// Batch Submission Metrics
		batchesSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reclaim_batches_submitted_total",
				Help: "Total number of close-account batches submitted, by outcome",
			},
			[]string{"wallet_address", "status"},
		),
		batchSubmitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reclaim_batch_submit_duration_seconds",
				Help:    "Duration of batch build, submit and confirmation in seconds",
				Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"wallet_address", "status"},
		),
		accountsClosedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_accounts_closed_total",
				Help: "Total number of token accounts closed on-chain",
			},
			[]string{"wallet_address"},
		),
		lamportsRecoveredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rent_lamports_recovered_total",
				Help: "Total rent-exempt deposit lamports recovered by confirmed closes",
			},
			[]string{"wallet_address"},
		),
		confirmationWaitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reclaim_confirmation_wait_seconds",
				Help:    "Time spent waiting for transaction confirmation in seconds",
				Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	if m == nil {
		return
	}
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// Scan metric helpers

// RecordScan records the result of a wallet scan.
func (m *Metrics) RecordScan(walletAddress string, scanned, closeable int) {
	if m == nil {
		return
	}
	m.accountsScannedTotal.WithLabelValues(walletAddress).Add(float64(scanned))
	m.accountsCloseableTotal.WithLabelValues(walletAddress).Add(float64(closeable))
}

// Batch submission metric helpers

// RecordBatchSubmitted records a batch submission attempt with its outcome
// and total duration (build + send + confirmation wait).
func (m *Metrics) RecordBatchSubmitted(walletAddress, status string, duration float64) {
	if m == nil {
		return
	}
	m.batchesSubmittedTotal.WithLabelValues(walletAddress, status).Inc()
	m.batchSubmitDuration.WithLabelValues(walletAddress, status).Observe(duration)
}

// RecordAccountsClosed records confirmed account closures and the rent
// recovered by them.
func (m *Metrics) RecordAccountsClosed(walletAddress string, count int, lamports uint64) {
	if m == nil {
		return
	}
	m.accountsClosedTotal.WithLabelValues(walletAddress).Add(float64(count))
	m.lamportsRecoveredTotal.WithLabelValues(walletAddress).Add(float64(lamports))
}

// RecordConfirmationWait records how long a confirmation wait took.
func (m *Metrics) RecordConfirmationWait(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.confirmationWaitSeconds.WithLabelValues(endpoint).Observe(seconds)
}
