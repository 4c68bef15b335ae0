package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	"github.com/pazarlabs/pazar/internal/payoutops/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const topAlertLimit = 10

type HealthParams struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
}

type HealthService struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	sendingStuck time.Duration
	sentStuck    time.Duration
}

func NewHealth(p HealthParams) domain.Health {
	return &HealthService{
		db:           p.DB,
		log:          p.Log.Named("payoutops.health"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		sendingStuck: time.Duration(p.Config.Settlement.SendingStuckMinutes) * time.Minute,
		sentStuck:    time.Duration(p.Config.Settlement.SentStuckMinutes) * time.Minute,
	}
}

// ComputeHealth is a pure read; it never writes.
func (s *HealthService) ComputeHealth(ctx context.Context) (*domain.HealthReport, error) {
	now := s.clock.Now()

	counts, err := s.collectCounts(ctx, now)
	if err != nil {
		return nil, err
	}

	lag := domain.LagMetrics{}
	if oldest, err := s.repo.OldestOutboxPendingAt(ctx, s.db); err != nil {
		return nil, err
	} else if oldest != nil {
		lag.MaxOutboxAgeMinutes = int64(now.Sub(*oldest) / time.Minute)
	}
	if oldest, err := s.repo.OldestPayoutSentAt(ctx, s.db); err != nil {
		return nil, err
	} else if oldest != nil {
		lag.MaxSentAgeMinutes = int64(now.Sub(*oldest) / time.Minute)
	}

	lastRuns, err := s.collectLastRuns(ctx)
	if err != nil {
		return nil, err
	}

	topCritical, err := s.repo.ListOpenAlerts(ctx, s.db, domain.SeverityCritical, topAlertLimit)
	if err != nil {
		return nil, err
	}

	return &domain.HealthReport{
		Timestamp:         now,
		Counts:            counts,
		Lag:               lag,
		LastRuns:          lastRuns,
		TopCriticalAlerts: topCritical,
	}, nil
}

func (s *HealthService) collectCounts(ctx context.Context, now time.Time) (domain.HealthCounts, error) {
	var counts domain.HealthCounts
	var err error

	if counts.OutboxPending, err = s.repo.CountOutboxByStatus(ctx, s.db, string(payoutdomain.OutboxPending)); err != nil {
		return counts, err
	}
	if counts.OutboxSendingStuck, err = s.repo.CountOutboxStuck(ctx, s.db, string(payoutdomain.OutboxSending), now.Add(-s.sendingStuck)); err != nil {
		return counts, err
	}
	if counts.PayoutQueued, err = s.repo.CountPayoutsByStatus(ctx, s.db, string(payoutdomain.PayoutQueued)); err != nil {
		return counts, err
	}
	if counts.PayoutSentStuck, err = s.repo.CountPayoutsStuck(ctx, s.db, string(payoutdomain.PayoutSent), now.Add(-s.sentStuck)); err != nil {
		return counts, err
	}
	if counts.PayoutReconcileNeeded, err = s.repo.CountPayoutsByStatus(ctx, s.db, string(payoutdomain.PayoutReconcileRequired)); err != nil {
		return counts, err
	}
	if counts.AlertsCriticalOpen, err = s.repo.CountOpenAlerts(ctx, s.db, domain.SeverityCritical); err != nil {
		return counts, err
	}
	if counts.AlertsWarningOpen, err = s.repo.CountOpenAlerts(ctx, s.db, domain.SeverityWarning); err != nil {
		return counts, err
	}
	return counts, nil
}

func (s *HealthService) collectLastRuns(ctx context.Context) (domain.LastRuns, error) {
	var runs domain.LastRuns

	markers := []struct {
		action string
		target **time.Time
	}{
		{domain.MarkerOutboxRun, &runs.LastOutboxRunAt},
		{domain.MarkerReconcileFix, &runs.LastReconcileFixAt},
		{domain.MarkerStuckOutboxReset, &runs.LastStuckResetAt},
		{domain.MarkerSentinelScan, &runs.LastSentinelScanAt},
	}
	for _, m := range markers {
		entry, err := s.repo.LastOpsLogByAction(ctx, s.db, m.action)
		if err != nil {
			return runs, err
		}
		if entry != nil {
			at := entry.CreatedAt
			*m.target = &at
		}
	}
	return runs, nil
}

func (s *HealthService) SaveSnapshot(ctx context.Context, scope domain.SnapshotScope, report *domain.HealthReport) (*domain.OpsHealthSnapshot, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	payload := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	snapshot := &domain.OpsHealthSnapshot{
		ID:        s.genID.Generate(),
		Scope:     scope,
		Payload:   payload,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertSnapshot(ctx, s.db, snapshot); err != nil {
		return nil, err
	}
	s.log.Info("ops health snapshot saved",
		zap.String("scope", string(scope)),
		zap.Int64("outbox_pending", report.Counts.OutboxPending),
	)
	return snapshot, nil
}
