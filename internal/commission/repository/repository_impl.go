package repository

import (
	"context"
	"errors"

	"github.com/pazarlabs/pazar/internal/commission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindSnapshotByOrder(ctx context.Context, db *gorm.DB, orderID string) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *repo) InsertSnapshot(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot) error {
	return db.WithContext(ctx).Create(snapshot).Error
}

// FindDefaultPlanForSeller prefers a seller-scoped default plan over the
// platform-wide fallback; both must be non-archived defaults. The CASE
// ordering keeps the seller plan inside the limit window on every dialect,
// where NULL sort position for a bare column order differs.
func (r *repo) FindDefaultPlanForSeller(ctx context.Context, db *gorm.DB, sellerTenantID string) (*domain.Plan, error) {
	var plans []domain.Plan
	err := db.WithContext(ctx).
		Preload("Rules").
		Where("is_default = ? AND archived_at IS NULL", true).
		Where("seller_tenant_id = ? OR seller_tenant_id IS NULL", sellerTenantID).
		Order("CASE WHEN seller_tenant_id IS NULL THEN 1 ELSE 0 END").
		Limit(2).
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].SellerTenantID != nil {
			return &plans[i], nil
		}
	}
	if len(plans) > 0 {
		return &plans[0], nil
	}
	return nil, nil
}

func (r *repo) FindOrderWithLines(ctx context.Context, db *gorm.DB, orderID string) (*domain.MarketOrder, error) {
	var order domain.MarketOrder
	err := db.WithContext(ctx).Preload("Lines").Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
