package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ShipmentStats summarizes the delivery behaviour over the rolling window.
type ShipmentStats struct {
	Total     int64
	OnTime    int64
	SLABreach int64
	FirstAt   *time.Time
}

type Repository interface {
	ShipmentStats(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (ShipmentStats, error)
	CountOrders(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (int64, error)
	CountDisputes(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (int64, error)
	CountManualOverrides(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (int64, error)

	FindScore(ctx context.Context, db *gorm.DB, sellerTenantID string) (*SellerTrustScore, error)
	UpsertScore(ctx context.Context, db *gorm.DB, score *SellerTrustScore) error
	InsertJob(ctx context.Context, db *gorm.DB, job *RecalcJob) error
	UpdateJob(ctx context.Context, db *gorm.DB, job *RecalcJob) error
	ListActiveSellers(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error)
}

// ChargebackRateStrategy computes the chargeback signal. The production
// mapping is an approximation pending a dedicated ledger entry type, so it is
// swappable rather than hard-coded.
type ChargebackRateStrategy interface {
	Name() string
	ChargebackRate(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (float64, error)
}

// ReceivableRateStrategy mirrors ChargebackRateStrategy for the receivable
// exposure signal.
type ReceivableRateStrategy interface {
	ReceivableRate(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (float64, error)
}

type Service interface {
	// SubmitRecalc runs at most one successful recalculation per seller per
	// UTC day, whatever the trigger.
	SubmitRecalc(ctx context.Context, sellerTenantID, reason string) (*RecalcJob, error)
	// RecalcAllActive sweeps every seller with recent activity; used by the
	// scheduled daily sweep.
	RecalcAllActive(ctx context.Context) (int, error)
	GetScore(ctx context.Context, sellerTenantID string) (*SellerTrustScore, error)
	ResolvePolicy(ctx context.Context, sellerTenantID string) (Policy, error)
}

var (
	ErrSellerRequired = errors.New("seller_tenant_id_required")
	ErrScoreNotFound  = errors.New("trust_score_not_found")
)
