package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/commission/domain"
	idempotencydomain "github.com/pazarlabs/pazar/internal/idempotency/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const snapshotScope = "SNAPSHOT_CREATE"

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Runner idempotencydomain.Runner
	Repo   domain.Repository
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	runner idempotencydomain.Runner
	repo   domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("commission"),
		genID:  p.GenID,
		clock:  p.Clock,
		runner: p.Runner,
		repo:   p.Repo,
	}
}

func snapshotKey(orderID string) string {
	return fmt.Sprintf("%s:order:%s", snapshotScope, orderID)
}

func (s *Service) CreateSnapshot(ctx context.Context, tenantID, orderID string) (*domain.Snapshot, error) {
	var created *domain.Snapshot

	op := idempotencydomain.Op{
		Key:      snapshotKey(orderID),
		Scope:    snapshotScope,
		TenantID: tenantID,
	}

	err := s.runner.RunOnce(ctx, op, func(tx *gorm.DB) error {
		// A snapshot may exist from before the guard was introduced, or from
		// a run whose success marker was taken over; short-circuit either way.
		existing, err := s.repo.FindSnapshotByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if existing != nil {
			created = existing
			return nil
		}

		snapshot, err := s.buildSnapshot(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if err := s.repo.InsertSnapshot(ctx, tx, snapshot); err != nil {
			return err
		}
		created = snapshot
		return nil
	})

	if errors.Is(err, idempotencydomain.ErrAlreadySucceeded) {
		existing, findErr := s.repo.FindSnapshotByOrder(ctx, s.db, orderID)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, domain.ErrSnapshotNotFound
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("commission snapshot created",
		zap.String("order_id", orderID),
		zap.String("total_commission", created.TotalCommission.String()),
	)
	return created, nil
}

func (s *Service) buildSnapshot(ctx context.Context, tx *gorm.DB, tenantID, orderID string) (*domain.Snapshot, error) {
	order, err := s.repo.FindOrderWithLines(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrOrderNotFound, orderID)
	}

	plan, err := s.repo.FindDefaultPlanForSeller(ctx, tx, order.SellerTenantID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrNoActivePlan
	}
	if len(plan.Rules) == 0 {
		return nil, fmt.Errorf("%w: plan %s", domain.ErrPlanHasNoRules, plan.ID)
	}

	totalRate := decimal.Zero
	totalFixed := decimal.Zero
	cumulative := decimal.Zero
	matched := 0

	for _, line := range order.Lines {
		rule := ResolveRule(line.CategoryID, line.BrandID, plan.Rules)
		if rule == nil {
			// Partial snapshots are forbidden; one unresolvable line aborts
			// the whole order.
			return nil, fmt.Errorf("%w: product %s", domain.ErrNoMatchingRule, line.ProductID)
		}

		fee, err := CalculateLineFee(line.UnitPrice, line.Quantity, rule.RatePercentage, rule.FixedFee, plan.Precision, plan.RoundingMode)
		if err != nil {
			return nil, err
		}

		totalRate = totalRate.Add(rule.RatePercentage)
		totalFixed = totalFixed.Add(rule.FixedFee)
		cumulative = cumulative.Add(fee)
		matched++
	}

	avgRate := decimal.Zero
	avgFixed := decimal.Zero
	if matched > 0 {
		count := decimal.NewFromInt(int64(matched))
		avgRate = totalRate.Div(count)
		avgFixed = totalFixed.Div(count)
	}

	return &domain.Snapshot{
		ID:              s.genID.Generate(),
		TenantID:        tenantID,
		OrderID:         orderID,
		PlanID:          plan.ID,
		AppliedRate:     avgRate,
		AppliedFixedFee: avgFixed,
		TotalCommission: cumulative,
		CreatedAt:       s.clock.Now(),
	}, nil
}

func (s *Service) GetSnapshot(ctx context.Context, orderID string) (*domain.Snapshot, error) {
	snapshot, err := s.repo.FindSnapshotByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return snapshot, nil
}
