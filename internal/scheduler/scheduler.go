package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/locker"
	obsmetrics "github.com/pazarlabs/pazar/internal/observability/metrics"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	opsdomain "github.com/pazarlabs/pazar/internal/payoutops/domain"
	trustdomain "github.com/pazarlabs/pazar/internal/trust/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const leaderLockKey = "pazar:scheduler:leader"

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	AppConfig  config.Config
	Locker     *locker.Locker `optional:"true"`
	PayoutSvc  payoutdomain.Service
	PayoutRepo payoutdomain.Repository
	TrustSvc   trustdomain.Service
	OpsCmd     opsdomain.Commands
	OpsHealth  opsdomain.Health
	Metrics    *obsmetrics.SettlementMetrics
	Config     Config `optional:"true"`
}

// Scheduler drives the settlement background sweeps: outbox dispatch, stuck
// entry repair, reconciliation parking, the sentinel integrity scan, the daily
// trust recalculation, and periodic health snapshots. Each sweep logs a marker
// row the health aggregator reads back as a last-run timestamp.
type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	appCfg     config.Config
	clock      clock.Clock
	locker     *locker.Locker
	payoutSvc  payoutdomain.Service
	payoutRepo payoutdomain.Repository
	trustSvc   trustdomain.Service
	opsCmd     opsdomain.Commands
	opsHealth  opsdomain.Health
	metrics    *obsmetrics.SettlementMetrics

	lastTrustSweep time.Time
	lastHealthSnap time.Time
	lastSentinel   time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.PayoutSvc == nil || p.PayoutRepo == nil || p.TrustSvc == nil || p.OpsCmd == nil || p.OpsHealth == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		appCfg:     p.AppConfig,
		clock:      p.Clock,
		locker:     p.Locker,
		payoutSvc:  p.PayoutSvc,
		payoutRepo: p.PayoutRepo,
		trustSvc:   p.TrustSvc,
		opsCmd:     p.OpsCmd,
		opsHealth:  p.OpsHealth,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	s.metrics.IncSweepRun(name)
	err := fn(ctx)
	s.metrics.ObserveSweepDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out", zap.String("job", name), zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	s.metrics.IncSweepError(name)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one sweep cycle. Leadership is advisory: without redis the
// lock always grants, which is correct for single-node deployments.
func (s *Scheduler) RunOnce(parent context.Context) error {
	token, acquired, err := s.locker.TryLock(parent, leaderLockKey, s.cfg.RunInterval)
	if err != nil {
		s.log.Warn("leader lock unavailable, skipping sweep", zap.Error(err))
		return nil
	}
	if !acquired {
		return nil
	}
	defer func() {
		if releaseErr := s.locker.Release(parent, leaderLockKey, token); releaseErr != nil {
			s.log.Warn("leader lock release failed", zap.Error(releaseErr))
		}
	}()

	var runErr error
	runErr = errors.Join(runErr, s.runJob(parent, "outbox_dispatch", 30*time.Second, s.OutboxDispatchJob))
	runErr = errors.Join(runErr, s.runJob(parent, "stuck_outbox_reset", 30*time.Second, s.StuckOutboxResetJob))
	runErr = errors.Join(runErr, s.runJob(parent, "reconcile_fix", 30*time.Second, s.ReconcileFixJob))

	now := s.clock.Now()
	if now.Sub(s.lastSentinel) >= s.cfg.SentinelInterval {
		runErr = errors.Join(runErr, s.runJob(parent, "sentinel_scan", 30*time.Second, s.SentinelScanJob))
		s.lastSentinel = now
	}
	if now.Sub(s.lastTrustSweep) >= s.cfg.TrustSweepInterval {
		runErr = errors.Join(runErr, s.runJob(parent, "trust_sweep", 10*time.Minute, s.TrustSweepJob))
		s.lastTrustSweep = now
	}
	if now.Sub(s.lastHealthSnap) >= s.cfg.HealthSnapInterval {
		runErr = errors.Join(runErr, s.runJob(parent, "health_snapshot", 30*time.Second, s.HealthSnapshotJob))
		s.lastHealthSnap = now
	}

	return runErr
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// OutboxDispatchJob hands due outbox entries to the provider port and logs
// the OUTBOX_RUN marker.
func (s *Scheduler) OutboxDispatchJob(ctx context.Context) error {
	dispatched, err := s.payoutSvc.DispatchDue(ctx, s.cfg.OutboxBatchSize)
	if err != nil {
		return err
	}
	return s.opsCmd.LogMarker(ctx, opsdomain.MarkerOutboxRun, map[string]any{
		"dispatched": dispatched,
	})
}

// StuckOutboxResetJob re-queues outbox entries wedged in SENDING past the
// staleness window. A crashed dispatcher must not park a payout forever.
func (s *Scheduler) StuckOutboxResetJob(ctx context.Context) error {
	now := s.clock.Now()
	before := now.Add(-time.Duration(s.sendingStuckMinutes()) * time.Minute)

	stuck, err := s.payoutRepo.FindStuckSending(ctx, s.db, before, s.cfg.OutboxBatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	reset := 0
	for i := range stuck {
		entry := stuck[i]
		entry.Status = payoutdomain.OutboxPending
		entry.NextRetryAt = &now
		entry.UpdatedAt = now
		if err := s.payoutRepo.UpdateOutbox(ctx, s.db, &entry); err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		reset++
	}

	if err := s.opsCmd.LogMarker(ctx, opsdomain.MarkerStuckOutboxReset, map[string]any{
		"reset": reset,
	}); err != nil {
		jobErr = errors.Join(jobErr, err)
	}
	return jobErr
}

// ReconcileFixJob parks payouts stuck in SENT past the staleness window for
// manual reconciliation and raises a warning alert per payout.
func (s *Scheduler) ReconcileFixJob(ctx context.Context) error {
	now := s.clock.Now()
	before := now.Add(-time.Duration(s.sentStuckMinutes()) * time.Minute)

	stuck, err := s.payoutRepo.FindStuckSent(ctx, s.db, before, s.cfg.OutboxBatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	parked := 0
	for i := range stuck {
		payout := stuck[i]
		if err := s.payoutRepo.UpdatePayoutStatus(ctx, s.db, payout.ID, payoutdomain.PayoutReconcileRequired, now); err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if _, err := s.opsCmd.RaiseAlert(ctx, "PAYOUT_SENT_STUCK", opsdomain.SeverityWarning, payout.ProviderPayoutID,
			fmt.Sprintf("payout %s stuck in SENT since %s", payout.ProviderPayoutID, payout.UpdatedAt.UTC().Format(time.RFC3339))); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
		parked++
	}

	if err := s.opsCmd.LogMarker(ctx, opsdomain.MarkerReconcileFix, map[string]any{
		"parked": parked,
	}); err != nil {
		jobErr = errors.Join(jobErr, err)
	}
	return jobErr
}

// SentinelScanJob raises a critical alert when the backlog shows signs of a
// wedged pipeline that the regular sweeps did not clear.
func (s *Scheduler) SentinelScanJob(ctx context.Context) error {
	report, err := s.opsHealth.ComputeHealth(ctx)
	if err != nil {
		return err
	}

	var jobErr error
	if report.Counts.OutboxSendingStuck > 0 {
		if _, err := s.opsCmd.RaiseAlert(ctx, "OUTBOX_SENDING_STUCK", opsdomain.SeverityCritical, "",
			fmt.Sprintf("%d outbox entries stuck in SENDING", report.Counts.OutboxSendingStuck)); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
	}

	if err := s.opsCmd.LogMarker(ctx, opsdomain.MarkerSentinelScan, map[string]any{
		"outbox_pending":       report.Counts.OutboxPending,
		"outbox_sending_stuck": report.Counts.OutboxSendingStuck,
		"payout_sent_stuck":    report.Counts.PayoutSentStuck,
	}); err != nil {
		jobErr = errors.Join(jobErr, err)
	}
	return jobErr
}

// TrustSweepJob recalculates every active seller. The per-seller daily
// idempotency key makes repeated sweeps cheap.
func (s *Scheduler) TrustSweepJob(ctx context.Context) error {
	recalced, err := s.trustSvc.RecalcAllActive(ctx)
	if err != nil {
		return err
	}
	s.log.Info("trust sweep finished", zap.Int("recalculated", recalced))
	return nil
}

// HealthSnapshotJob persists a scheduled health snapshot and publishes the
// prometheus gauges.
func (s *Scheduler) HealthSnapshotJob(ctx context.Context) error {
	report, err := s.opsHealth.ComputeHealth(ctx)
	if err != nil {
		return err
	}
	s.metrics.SetHealthGauges(
		report.Counts.OutboxPending,
		report.Counts.OutboxSendingStuck,
		report.Counts.PayoutQueued,
		report.Counts.PayoutSentStuck,
		report.Counts.PayoutReconcileNeeded,
		report.Counts.AlertsCriticalOpen,
		report.Counts.AlertsWarningOpen,
		report.Lag.MaxOutboxAgeMinutes,
	)
	_, err = s.opsHealth.SaveSnapshot(ctx, opsdomain.ScopeScheduled, report)
	return err
}

func (s *Scheduler) sendingStuckMinutes() int {
	if s.appCfg.Settlement.SendingStuckMinutes > 0 {
		return s.appCfg.Settlement.SendingStuckMinutes
	}
	return 15
}

func (s *Scheduler) sentStuckMinutes() int {
	if s.appCfg.Settlement.SentStuckMinutes > 0 {
		return s.appCfg.Settlement.SentStuckMinutes
	}
	return 10
}
