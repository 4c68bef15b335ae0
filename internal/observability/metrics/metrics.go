package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels stamped on every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// SettlementMetrics captures the settlement core's health signals. Gauges are
// fed by the ops health aggregator; counters by the sweeps and services.
type SettlementMetrics struct {
	outboxPending      prometheus.Gauge
	outboxSendingStuck prometheus.Gauge
	payoutQueued       prometheus.Gauge
	payoutSentStuck    prometheus.Gauge
	reconcileRequired  prometheus.Gauge
	alertsOpen         *prometheus.GaugeVec
	maxOutboxAge       prometheus.Gauge

	sweepRuns     *prometheus.CounterVec
	sweepErrors   *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec

	snapshotsCreated prometheus.Counter
	recalcRuns       *prometheus.CounterVec
	disputeActions   *prometheus.CounterVec
}

var (
	settlementOnce    sync.Once
	settlementMetrics *SettlementMetrics
)

// Settlement returns the singleton settlement metrics registry.
func Settlement() *SettlementMetrics {
	return SettlementWithConfig(Config{})
}

// SettlementWithConfig returns the singleton using config labels.
func SettlementWithConfig(cfg Config) *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementMetrics = newSettlementMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return settlementMetrics
}

// ResetSettlementMetricsForTest resets the singleton for tests.
func ResetSettlementMetricsForTest() {
	settlementOnce = sync.Once{}
	settlementMetrics = nil
}

func newSettlementMetrics(registerer prometheus.Registerer, cfg Config) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "pazar"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	outboxPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "pazar_payout_outbox_pending",
		Help:        "Payout outbox entries waiting to be dispatched.",
		ConstLabels: constLabels,
	})
	outboxSendingStuck := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "pazar_payout_outbox_sending_stuck",
		Help:        "Outbox entries wedged in SENDING past the staleness window.",
		ConstLabels: constLabels,
	})
	payoutQueued := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "pazar_provider_payout_queued",
		Help:        "Provider payouts in QUEUED status.",
		ConstLabels: constLabels,
	})
	payoutSentStuck := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "pazar_provider_payout_sent_stuck",
		Help:        "Provider payouts stuck in SENT past the staleness window.",
		ConstLabels: constLabels,
	})
	reconcileRequired := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "pazar_provider_payout_reconcile_required",
		Help:        "Provider payouts parked for manual reconciliation.",
		ConstLabels: constLabels,
	})
	alertsOpen := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "pazar_integrity_alerts_open",
		Help:        "Open finance integrity alerts by severity.",
		ConstLabels: constLabels,
	}, []string{"severity"})
	maxOutboxAge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "pazar_payout_outbox_max_age_minutes",
		Help:        "Age of the oldest pending outbox entry.",
		ConstLabels: constLabels,
	})

	sweepRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pazar_sweep_runs_total",
		Help:        "Background sweep runs by job name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	sweepErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pazar_sweep_errors_total",
		Help:        "Background sweep errors by job name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "pazar_sweep_duration_seconds",
		Help:        "Background sweep latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	}, []string{"job"})

	snapshotsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "pazar_commission_snapshots_created_total",
		Help:        "Commission snapshots persisted.",
		ConstLabels: constLabels,
	})
	recalcRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pazar_trust_recalc_total",
		Help:        "Trust recalculation attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	disputeActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pazar_dispute_actions_total",
		Help:        "Dispute state machine transitions by action type.",
		ConstLabels: constLabels,
	}, []string{"action"})

	registerer.MustRegister(
		outboxPending,
		outboxSendingStuck,
		payoutQueued,
		payoutSentStuck,
		reconcileRequired,
		alertsOpen,
		maxOutboxAge,
		sweepRuns,
		sweepErrors,
		sweepDuration,
		snapshotsCreated,
		recalcRuns,
		disputeActions,
	)

	return &SettlementMetrics{
		outboxPending:      outboxPending,
		outboxSendingStuck: outboxSendingStuck,
		payoutQueued:       payoutQueued,
		payoutSentStuck:    payoutSentStuck,
		reconcileRequired:  reconcileRequired,
		alertsOpen:         alertsOpen,
		maxOutboxAge:       maxOutboxAge,
		sweepRuns:          sweepRuns,
		sweepErrors:        sweepErrors,
		sweepDuration:      sweepDuration,
		snapshotsCreated:   snapshotsCreated,
		recalcRuns:         recalcRuns,
		disputeActions:     disputeActions,
	}
}

// SetHealthGauges publishes a health report's counts.
func (m *SettlementMetrics) SetHealthGauges(outboxPending, sendingStuck, queued, sentStuck, reconcile, criticalOpen, warningOpen, maxOutboxAgeMinutes int64) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(outboxPending))
	m.outboxSendingStuck.Set(float64(sendingStuck))
	m.payoutQueued.Set(float64(queued))
	m.payoutSentStuck.Set(float64(sentStuck))
	m.reconcileRequired.Set(float64(reconcile))
	m.alertsOpen.WithLabelValues("critical").Set(float64(criticalOpen))
	m.alertsOpen.WithLabelValues("warning").Set(float64(warningOpen))
	m.maxOutboxAge.Set(float64(maxOutboxAgeMinutes))
}

// IncSweepRun increments the run counter for a background job.
func (m *SettlementMetrics) IncSweepRun(job string) {
	if m == nil || m.sweepRuns == nil {
		return
	}
	m.sweepRuns.WithLabelValues(job).Inc()
}

// IncSweepError increments the error counter for a background job.
func (m *SettlementMetrics) IncSweepError(job string) {
	if m == nil || m.sweepErrors == nil {
		return
	}
	m.sweepErrors.WithLabelValues(job).Inc()
}

// ObserveSweepDuration records sweep latency in seconds.
func (m *SettlementMetrics) ObserveSweepDuration(job string, duration time.Duration) {
	if m == nil || m.sweepDuration == nil {
		return
	}
	m.sweepDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncSnapshotCreated counts one persisted commission snapshot.
func (m *SettlementMetrics) IncSnapshotCreated() {
	if m == nil || m.snapshotsCreated == nil {
		return
	}
	m.snapshotsCreated.Inc()
}

// IncRecalc counts a trust recalculation attempt by outcome.
func (m *SettlementMetrics) IncRecalc(outcome string) {
	if m == nil || m.recalcRuns == nil {
		return
	}
	m.recalcRuns.WithLabelValues(outcome).Inc()
}

// IncDisputeAction counts a dispute transition by action type.
func (m *SettlementMetrics) IncDisputeAction(action string) {
	if m == nil || m.disputeActions == nil {
		return
	}
	m.disputeActions.WithLabelValues(action).Inc()
}
