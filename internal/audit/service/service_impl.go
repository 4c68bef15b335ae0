package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/audit/domain"
	"github.com/pazarlabs/pazar/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry domain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return domain.ErrInvalidAction
	}
	if tx == nil {
		tx = s.db
	}

	payload := datatypes.JSONMap{}
	for key, value := range entry.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	record := &domain.FinanceAuditLog{
		ID:         s.genID.Generate(),
		TenantID:   strings.TrimSpace(entry.TenantID),
		Action:     action,
		Actor:      strings.TrimSpace(entry.Actor),
		EntityType: strings.TrimSpace(entry.EntityType),
		EntityID:   strings.TrimSpace(entry.EntityID),
		Payload:    payload,
		CreatedAt:  s.clock.Now(),
	}
	return s.repo.Insert(ctx, tx, record)
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.FinanceAuditLog, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, s.db, filter)
}
