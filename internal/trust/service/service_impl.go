package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	idempotencydomain "github.com/pazarlabs/pazar/internal/idempotency/domain"
	settingsdomain "github.com/pazarlabs/pazar/internal/settings/domain"
	"github.com/pazarlabs/pazar/internal/trust/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recalcScope = "TRUST_RECALC"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Runner     idempotencydomain.Runner
	Repo       domain.Repository
	Chargeback domain.ChargebackRateStrategy
	Receivable domain.ReceivableRateStrategy
	Settings   settingsdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	runner     idempotencydomain.Runner
	repo       domain.Repository
	chargeback domain.ChargebackRateStrategy
	receivable domain.ReceivableRateStrategy
	settings   settingsdomain.Service
	windowDays int
	baseHold   int
}

func NewService(p Params) domain.Service {
	windowDays := p.Cfg.Settlement.TrustWindowDays
	if windowDays <= 0 {
		windowDays = 90
	}
	baseHold := p.Cfg.Settlement.DefaultHoldDays
	if baseHold <= 0 {
		baseHold = 14
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("trust"),
		genID:      p.GenID,
		clock:      p.Clock,
		runner:     p.Runner,
		repo:       p.Repo,
		chargeback: p.Chargeback,
		receivable: p.Receivable,
		settings:   p.Settings,
		windowDays: windowDays,
		baseHold:   baseHold,
	}
}

func recalcKey(sellerTenantID string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", recalcScope, sellerTenantID, day.UTC().Format("2006-01-02"))
}

// SubmitRecalc aggregates the rolling window, scores it and upserts the
// seller's score row, at most once successfully per seller per UTC day. Every
// attempt leaves a job row; failed attempts carry the error text.
func (s *Service) SubmitRecalc(ctx context.Context, sellerTenantID, reason string) (*domain.RecalcJob, error) {
	sellerTenantID = strings.TrimSpace(sellerTenantID)
	if sellerTenantID == "" {
		return nil, domain.ErrSellerRequired
	}

	now := s.clock.Now()
	key := recalcKey(sellerTenantID, now)

	job := &domain.RecalcJob{
		ID:             s.genID.Generate(),
		SellerTenantID: sellerTenantID,
		Reason:         reason,
		IdempotencyKey: key,
		Status:         domain.JobRunning,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertJob(ctx, s.db, job); err != nil {
		return nil, err
	}

	op := idempotencydomain.Op{Key: key, Scope: recalcScope, TenantID: sellerTenantID}
	runErr := s.runner.RunOnce(ctx, op, func(tx *gorm.DB) error {
		windowEnd := s.clock.Now()
		windowStart := windowEnd.AddDate(0, 0, -s.windowDays)

		signals, err := s.aggregateSignals(ctx, tx, sellerTenantID, windowStart, windowEnd)
		if err != nil {
			return err
		}
		breakdown := ComputeScore(signals)

		if err := s.upsertScore(ctx, tx, sellerTenantID, breakdown, windowStart, windowEnd); err != nil {
			return err
		}

		job.Status = domain.JobSucceeded
		job.UpdatedAt = s.clock.Now()
		return s.repo.UpdateJob(ctx, tx, job)
	})
	if runErr == nil {
		return job, nil
	}

	// The guarded transaction rolled back (or never ran); record the outcome
	// on the job row durably.
	job.Status = domain.JobFailed
	job.Error = runErr.Error()
	job.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateJob(ctx, s.db, job); err != nil {
		s.log.Error("failed to persist recalc job outcome",
			zap.String("seller_tenant_id", sellerTenantID),
			zap.Error(err),
		)
	}
	return job, runErr
}

func (s *Service) upsertScore(ctx context.Context, tx *gorm.DB, sellerTenantID string, breakdown domain.ScoreBreakdown, windowStart, windowEnd time.Time) error {
	components, err := json.Marshal(breakdown)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindScore(ctx, tx, sellerTenantID)
	if err != nil {
		return err
	}

	score := &domain.SellerTrustScore{
		SellerTenantID: sellerTenantID,
		Score:          breakdown.FinalScore,
		Tier:           breakdown.Tier,
		Components:     components,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		Version:        1,
		UpdatedAt:      s.clock.Now(),
	}
	if existing != nil {
		score.Version = existing.Version + 1
	}
	return s.repo.UpsertScore(ctx, tx, score)
}

func (s *Service) GetScore(ctx context.Context, sellerTenantID string) (*domain.SellerTrustScore, error) {
	score, err := s.repo.FindScore(ctx, s.db, sellerTenantID)
	if err != nil {
		return nil, err
	}
	if score == nil {
		return nil, domain.ErrScoreNotFound
	}
	return score, nil
}

// ResolvePolicy maps the seller's current tier to escrow hold and
// early-release fee parameters. A seller without a score is treated as tier C
// so an unknown seller never gets the most lenient terms.
func (s *Service) ResolvePolicy(ctx context.Context, sellerTenantID string) (domain.Policy, error) {
	sellerTenantID = strings.TrimSpace(sellerTenantID)
	if sellerTenantID == "" {
		return domain.Policy{}, domain.ErrSellerRequired
	}

	tier := domain.TierC
	score, err := s.repo.FindScore(ctx, s.db, sellerTenantID)
	if err != nil {
		return domain.Policy{}, err
	}
	if score != nil {
		tier = score.Tier
	}

	baseHold := s.baseHold
	if s.settings != nil {
		if defaults, err := s.settings.EscrowDefaults(ctx); err == nil && defaults.DefaultHoldDays > 0 {
			baseHold = defaults.DefaultHoldDays
		}
	}

	holdDays := baseHold + holdDelta(tier)
	if holdDays < 0 {
		holdDays = 0
	}

	return domain.Policy{
		SellerTenantID:      sellerTenantID,
		Tier:                tier,
		HoldDays:            holdDays,
		EarlyReleaseFeeRate: earlyReleaseFeeRate(tier),
	}, nil
}

func holdDelta(tier domain.Tier) int {
	switch tier {
	case domain.TierA:
		return -7
	case domain.TierB:
		return -3
	case domain.TierD:
		return 7
	default:
		return 0
	}
}

func earlyReleaseFeeRate(tier domain.Tier) float64 {
	switch tier {
	case domain.TierA:
		return 0.5
	case domain.TierB:
		return 1.0
	case domain.TierD:
		return 4.0
	default:
		return 2.0
	}
}

// RecalcAllActive sweeps every seller with recent activity. Individual
// failures are logged and skipped so one seller cannot wedge the sweep.
func (s *Service) RecalcAllActive(ctx context.Context) (int, error) {
	since := s.clock.Now().AddDate(0, 0, -s.windowDays)
	sellers, err := s.repo.ListActiveSellers(ctx, s.db, since)
	if err != nil {
		return 0, err
	}

	succeeded := 0
	for _, seller := range sellers {
		if _, err := s.SubmitRecalc(ctx, seller, "SCHEDULED_SWEEP"); err != nil {
			if errors.Is(err, idempotencydomain.ErrAlreadySucceeded) || errors.Is(err, idempotencydomain.ErrAlreadyRunning) {
				continue
			}
			s.log.Warn("trust sweep recalc failed",
				zap.String("seller_tenant_id", seller),
				zap.Error(err),
			)
			continue
		}
		succeeded++
	}
	return succeeded, nil
}
