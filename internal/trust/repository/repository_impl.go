package repository

import (
	"context"
	"errors"
	"time"

	commissiondomain "github.com/pazarlabs/pazar/internal/commission/domain"
	disputedomain "github.com/pazarlabs/pazar/internal/dispute/domain"
	opsdomain "github.com/pazarlabs/pazar/internal/payoutops/domain"
	"github.com/pazarlabs/pazar/internal/trust/domain"
	"gorm.io/gorm"
)

// slaGrace is how late a delivery may be before it counts as an SLA breach.
const slaGrace = 48 * time.Hour

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ShipmentStats(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (domain.ShipmentStats, error) {
	var stats domain.ShipmentStats

	// Interval arithmetic differs per dialect; the window is bounded, so the
	// counts are computed in memory.
	var shipments []domain.MarketShipment
	err := db.WithContext(ctx).
		Where("seller_tenant_id = ? AND created_at >= ? AND created_at < ?", sellerTenantID, from, to).
		Find(&shipments).Error
	if err != nil {
		return stats, err
	}

	stats.Total = int64(len(shipments))
	for _, shipment := range shipments {
		if shipment.DeliveredAt == nil || shipment.PromisedAt == nil {
			continue
		}
		if !shipment.DeliveredAt.After(*shipment.PromisedAt) {
			stats.OnTime++
		} else if shipment.DeliveredAt.After(shipment.PromisedAt.Add(slaGrace)) {
			stats.SLABreach++
		}
	}

	var first domain.MarketShipment
	err = db.WithContext(ctx).
		Where("seller_tenant_id = ?", sellerTenantID).
		Order("created_at asc").
		First(&first).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return stats, err
	}
	if err == nil {
		stats.FirstAt = &first.CreatedAt
	}
	return stats, nil
}

func (r *repo) CountOrders(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&commissiondomain.MarketOrder{}).
		Where("seller_tenant_id = ? AND created_at >= ? AND created_at < ?", sellerTenantID, from, to).
		Count(&count).Error
	return count, err
}

func (r *repo) CountDisputes(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&disputedomain.Case{}).
		Where("seller_tenant_id = ? AND created_at >= ? AND created_at < ?", sellerTenantID, from, to).
		Count(&count).Error
	return count, err
}

func (r *repo) CountManualOverrides(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&opsdomain.FinanceOpsLog{}).
		Where("action = ? AND entity_id = ? AND created_at >= ? AND created_at < ?",
			opsdomain.ActionTrustManualOverride, sellerTenantID, from, to).
		Count(&count).Error
	return count, err
}

func (r *repo) FindScore(ctx context.Context, db *gorm.DB, sellerTenantID string) (*domain.SellerTrustScore, error) {
	var score domain.SellerTrustScore
	err := db.WithContext(ctx).Where("seller_tenant_id = ?", sellerTenantID).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

func (r *repo) UpsertScore(ctx context.Context, db *gorm.DB, score *domain.SellerTrustScore) error {
	return db.WithContext(ctx).Save(score).Error
}

func (r *repo) InsertJob(ctx context.Context, db *gorm.DB, job *domain.RecalcJob) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) UpdateJob(ctx context.Context, db *gorm.DB, job *domain.RecalcJob) error {
	return db.WithContext(ctx).Save(job).Error
}

// ListActiveSellers returns sellers with any order activity since the cutoff;
// the daily sweep recalculates exactly these.
func (r *repo) ListActiveSellers(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var sellers []string
	err := db.WithContext(ctx).Model(&commissiondomain.MarketOrder{}).
		Where("created_at >= ?", since).
		Distinct("seller_tenant_id").
		Pluck("seller_tenant_id", &sellers).Error
	return sellers, err
}
