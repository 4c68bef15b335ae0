package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	"github.com/pazarlabs/pazar/internal/payoutops/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOpsLog(ctx context.Context, db *gorm.DB, entry *domain.FinanceOpsLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) LastOpsLogByAction(ctx context.Context, db *gorm.DB, actionContains string) (*domain.FinanceOpsLog, error) {
	var entry domain.FinanceOpsLog
	err := db.WithContext(ctx).
		Where("action LIKE ?", "%"+actionContains+"%").
		Order("created_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) FindAlert(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FinanceIntegrityAlert, error) {
	var alert domain.FinanceIntegrityAlert
	err := db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *repo) InsertAlert(ctx context.Context, db *gorm.DB, alert *domain.FinanceIntegrityAlert) error {
	return db.WithContext(ctx).Create(alert).Error
}

func (r *repo) UpdateAlert(ctx context.Context, db *gorm.DB, alert *domain.FinanceIntegrityAlert) error {
	return db.WithContext(ctx).Save(alert).Error
}

func (r *repo) CountOpenAlerts(ctx context.Context, db *gorm.DB, severity domain.Severity) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.FinanceIntegrityAlert{}).
		Where("severity = ? AND resolved_at IS NULL", severity).
		Count(&count).Error
	return count, err
}

func (r *repo) ListOpenAlerts(ctx context.Context, db *gorm.DB, severity domain.Severity, limit int) ([]domain.FinanceIntegrityAlert, error) {
	var alerts []domain.FinanceIntegrityAlert
	err := db.WithContext(ctx).
		Where("severity = ? AND resolved_at IS NULL", severity).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

func (r *repo) InsertSnapshot(ctx context.Context, db *gorm.DB, snapshot *domain.OpsHealthSnapshot) error {
	return db.WithContext(ctx).Create(snapshot).Error
}

func (r *repo) CountOutboxByStatus(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&payoutdomain.OutboxEntry{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *repo) CountOutboxStuck(ctx context.Context, db *gorm.DB, status string, before time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&payoutdomain.OutboxEntry{}).
		Where("status = ? AND updated_at < ?", status, before).
		Count(&count).Error
	return count, err
}

func (r *repo) CountPayoutsByStatus(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&payoutdomain.ProviderPayout{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *repo) CountPayoutsStuck(ctx context.Context, db *gorm.DB, status string, before time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&payoutdomain.ProviderPayout{}).
		Where("status = ? AND updated_at < ?", status, before).
		Count(&count).Error
	return count, err
}

func (r *repo) OldestOutboxPendingAt(ctx context.Context, db *gorm.DB) (*time.Time, error) {
	var entry payoutdomain.OutboxEntry
	err := db.WithContext(ctx).
		Where("status = ?", payoutdomain.OutboxPending).
		Order("created_at ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry.CreatedAt, nil
}

func (r *repo) OldestPayoutSentAt(ctx context.Context, db *gorm.DB) (*time.Time, error) {
	var payout payoutdomain.ProviderPayout
	err := db.WithContext(ctx).
		Where("status = ?", payoutdomain.PayoutSent).
		Order("updated_at ASC").
		First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout.UpdatedAt, nil
}
