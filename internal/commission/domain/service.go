package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	FindSnapshotByOrder(ctx context.Context, db *gorm.DB, orderID string) (*Snapshot, error)
	InsertSnapshot(ctx context.Context, db *gorm.DB, snapshot *Snapshot) error
	FindDefaultPlanForSeller(ctx context.Context, db *gorm.DB, sellerTenantID string) (*Plan, error)
	FindOrderWithLines(ctx context.Context, db *gorm.DB, orderID string) (*MarketOrder, error)
}

type Service interface {
	// CreateSnapshot computes and persists the commission snapshot for an
	// order at most once. Repeat calls return the already-persisted snapshot.
	CreateSnapshot(ctx context.Context, tenantID, orderID string) (*Snapshot, error)
	GetSnapshot(ctx context.Context, orderID string) (*Snapshot, error)
}

var (
	ErrOrderNotFound    = errors.New("order_not_found")
	ErrSnapshotNotFound = errors.New("commission_snapshot_not_found")
	ErrNoActivePlan     = errors.New("no_active_commission_plan")
	ErrPlanHasNoRules   = errors.New("commission_plan_has_no_rules")
	ErrNoMatchingRule   = errors.New("no_matching_commission_rule")
	ErrInvalidRounding  = errors.New("invalid_rounding_mode")
)
