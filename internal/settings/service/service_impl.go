package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/pazarlabs/pazar/internal/audit/domain"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minReasonLength = 5

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Audit  auditdomain.Service
}

type Service struct {
	platformTenantID string
	defaultHoldDays  int
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	repo             domain.Repository
	audit            auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		platformTenantID: p.Config.PlatformTenantID,
		defaultHoldDays:  p.Config.Settlement.DefaultHoldDays,
		db:               p.DB,
		log:              p.Log.Named("settings"),
		genID:            p.GenID,
		clock:            p.Clock,
		repo:             p.Repo,
		audit:            p.Audit,
	}
}

func (s *Service) hardDefaults() domain.EscrowDefaults {
	return domain.EscrowDefaults{
		DefaultHoldDays:     s.defaultHoldDays,
		AllowEarlyRelease:   false,
		EarlyReleaseFeeRate: 2.0,
		Currency:            "TRY",
	}
}

func (s *Service) GetPolicies(ctx context.Context) (*domain.Policies, error) {
	rows, err := s.repo.FindByKeys(ctx, s.db, s.platformTenantID, []string{
		domain.KeyEscrowPaused,
		domain.KeyPayoutPaused,
		domain.KeyGlobalEscrowDefaults,
		domain.KeyTrustTierEffects,
	})
	if err != nil {
		return nil, err
	}

	policies := &domain.Policies{
		GlobalEscrowDefaults: s.hardDefaults(),
		TrustTierEffects: map[string]any{
			"A": map[string]any{"holdDaysDelta": -7},
			"B": map[string]any{"holdDaysDelta": -3},
			"C": map[string]any{"holdDaysDelta": 0},
			"D": map[string]any{"holdDaysDelta": 7},
		},
	}

	for _, row := range rows {
		switch row.Key {
		case domain.KeyEscrowPaused:
			_ = json.Unmarshal(row.Value, &policies.EscrowPaused)
		case domain.KeyPayoutPaused:
			_ = json.Unmarshal(row.Value, &policies.PayoutPaused)
		case domain.KeyGlobalEscrowDefaults:
			var defaults domain.EscrowDefaults
			if err := json.Unmarshal(row.Value, &defaults); err == nil {
				policies.GlobalEscrowDefaults = defaults
			}
		case domain.KeyTrustTierEffects:
			var effects map[string]any
			if err := json.Unmarshal(row.Value, &effects); err == nil {
				policies.TrustTierEffects = effects
			}
		}
	}
	return policies, nil
}

func (s *Service) UpdatePolicies(ctx context.Context, actorUserID string, update domain.PolicyUpdate) (*domain.Policies, error) {
	if len(strings.TrimSpace(update.Reason)) < minReasonLength {
		return nil, domain.ErrReasonRequired
	}

	changed := map[string]any{}
	if update.EscrowPaused != nil {
		changed[domain.KeyEscrowPaused] = *update.EscrowPaused
	}
	if update.PayoutPaused != nil {
		changed[domain.KeyPayoutPaused] = *update.PayoutPaused
	}
	if update.GlobalEscrowDefaults != nil {
		changed[domain.KeyGlobalEscrowDefaults] = *update.GlobalEscrowDefaults
	}
	if update.TrustTierEffects != nil {
		changed[domain.KeyTrustTierEffects] = update.TrustTierEffects
	}
	if len(changed) == 0 {
		return nil, domain.ErrNoFields
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		for key, value := range changed {
			raw, err := json.Marshal(value)
			if err != nil {
				return err
			}
			if err := s.repo.Upsert(ctx, tx, &domain.Setting{
				ID:        s.genID.Generate(),
				TenantID:  s.platformTenantID,
				Key:       key,
				Value:     raw,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}

		return s.audit.Record(ctx, tx, auditdomain.Entry{
			TenantID:   s.platformTenantID,
			Action:     "ESCROW_POLICY_UPDATE",
			Actor:      actorUserID,
			EntityType: "AppSettings",
			EntityID:   "GLOBAL_CONFIG",
			Payload: map[string]any{
				"reason":  strings.TrimSpace(update.Reason),
				"updates": changed,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("platform policies updated",
		zap.String("actor", actorUserID),
		zap.Int("fields", len(changed)),
	)
	return s.GetPolicies(ctx)
}

func (s *Service) EscrowDefaults(ctx context.Context) (domain.EscrowDefaults, error) {
	policies, err := s.GetPolicies(ctx)
	if err != nil {
		return s.hardDefaults(), err
	}
	return policies.GlobalEscrowDefaults, nil
}
