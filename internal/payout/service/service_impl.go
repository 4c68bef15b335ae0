package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/payout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Repo     domain.Repository
	Provider domain.ProviderPort
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	provider domain.ProviderPort
	backoff  time.Duration
}

func NewService(p Params) domain.Service {
	backoff := time.Duration(p.Cfg.Settlement.OutboxRetryBackoffMins) * time.Minute
	if backoff <= 0 {
		backoff = 5 * time.Minute
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payout"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		provider: p.Provider,
		backoff:  backoff,
	}
}

// QueuePayout records the payout decision and its outbox intent in one
// transaction. The external send happens later from the dispatcher, so this
// never blocks on network I/O.
func (s *Service) QueuePayout(ctx context.Context, req domain.QueueRequest) (*domain.ProviderPayout, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, domain.ErrKeyRequired
	}
	if req.GrossAmount.IsNegative() || req.CommissionAmount.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	net := req.GrossAmount.Sub(req.CommissionAmount)
	if net.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	var payout *domain.ProviderPayout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindPayoutByProviderID(ctx, tx, req.ProviderPayoutID)
		if err != nil {
			return err
		}
		if existing != nil {
			payout = existing
			return nil
		}

		now := s.clock.Now()
		payout = &domain.ProviderPayout{
			ID:               s.genID.Generate(),
			SellerTenantID:   req.SellerTenantID,
			ProviderPayoutID: req.ProviderPayoutID,
			GrossAmount:      req.GrossAmount,
			CommissionAmount: req.CommissionAmount,
			NetAmount:        net,
			Status:           domain.PayoutQueued,
			IdempotencyKey:   key,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.InsertPayout(ctx, tx, payout); err != nil {
			return err
		}

		entry := &domain.OutboxEntry{
			ID:             s.genID.Generate(),
			SellerTenantID: req.SellerTenantID,
			IdempotencyKey: key,
			Payload: datatypes.JSONMap{
				"provider_payout_id": req.ProviderPayoutID,
				"net_amount":         net.String(),
			},
			Status:    domain.OutboxPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.InsertOutbox(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// DispatchDue claims due entries (PENDING, or FAILED with a due retry),
// marks them SENDING, performs the provider send outside the claim
// transaction, then records the terminal status. Returns the number of
// entries attempted.
func (s *Service) DispatchDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	now := s.clock.Now()

	var claimed []domain.OutboxEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries, err := s.repo.ClaimDueOutbox(ctx, tx, now, limit)
		if err != nil {
			return err
		}
		for i := range entries {
			entries[i].Status = domain.OutboxSending
			entries[i].AttemptCount++
			entries[i].UpdatedAt = now
			if err := s.repo.UpdateOutbox(ctx, tx, &entries[i]); err != nil {
				return err
			}
		}
		claimed = entries
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := range claimed {
		s.dispatchOne(ctx, &claimed[i])
	}
	return len(claimed), nil
}

func (s *Service) dispatchOne(ctx context.Context, entry *domain.OutboxEntry) {
	sendErr := s.provider.SendPayout(ctx, *entry)
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.repo.FindPayoutByProviderID(ctx, tx, payloadPayoutID(entry))
		if sendErr != nil {
			entry.Status = domain.OutboxFailed
			retryAt := now.Add(s.backoff * time.Duration(entry.AttemptCount))
			entry.NextRetryAt = &retryAt
		} else {
			entry.Status = domain.OutboxSent
			entry.NextRetryAt = nil
		}
		entry.UpdatedAt = now
		if updateErr := s.repo.UpdateOutbox(ctx, tx, entry); updateErr != nil {
			return updateErr
		}
		if err != nil || payout == nil {
			return err
		}
		status := domain.PayoutSent
		if sendErr != nil {
			status = domain.PayoutFailed
		}
		return s.repo.UpdatePayoutStatus(ctx, tx, payout.ID, status, now)
	})
	if err != nil {
		s.log.Error("outbox dispatch bookkeeping failed",
			zap.String("idempotency_key", entry.IdempotencyKey),
			zap.Error(err),
		)
	}
	if sendErr != nil {
		s.log.Warn("payout send failed",
			zap.String("idempotency_key", entry.IdempotencyKey),
			zap.Int("attempt", entry.AttemptCount),
			zap.Error(sendErr),
		)
	}
}

func payloadPayoutID(entry *domain.OutboxEntry) string {
	if entry.Payload == nil {
		return ""
	}
	if v, ok := entry.Payload["provider_payout_id"].(string); ok {
		return v
	}
	return ""
}

// NoopProvider accepts every payout. Stands in for the real provider client,
// whose protocol is owned by the integration layer.
type NoopProvider struct{}

func (NoopProvider) SendPayout(ctx context.Context, entry domain.OutboxEntry) error {
	_ = ctx
	_ = entry
	return nil
}

var _ domain.ProviderPort = NoopProvider{}
