package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/payout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindPayoutByProviderID(ctx context.Context, db *gorm.DB, providerPayoutID string) (*domain.ProviderPayout, error) {
	var payout domain.ProviderPayout
	err := db.WithContext(ctx).Where("provider_payout_id = ?", providerPayoutID).First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repo) InsertPayout(ctx context.Context, db *gorm.DB, payout *domain.ProviderPayout) error {
	return db.WithContext(ctx).Create(payout).Error
}

func (r *repo) UpdatePayoutStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.PayoutStatus, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.ProviderPayout{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": now}).Error
}

func (r *repo) FindOutboxByKey(ctx context.Context, db *gorm.DB, idempotencyKey string) (*domain.OutboxEntry, error) {
	var entry domain.OutboxEntry
	err := db.WithContext(ctx).Where("idempotency_key = ?", idempotencyKey).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) InsertOutbox(ctx context.Context, db *gorm.DB, entry *domain.OutboxEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) UpdateOutbox(ctx context.Context, db *gorm.DB, entry *domain.OutboxEntry) error {
	return db.WithContext(ctx).Save(entry).Error
}

// ClaimDueOutbox picks up PENDING entries plus FAILED ones whose scheduled
// retry has come due. FAILED entries without a retry time stay parked for the
// ops console.
func (r *repo) ClaimDueOutbox(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.OutboxEntry, error) {
	var entries []domain.OutboxEntry
	err := db.WithContext(ctx).
		Where("(status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)) OR (status = ? AND next_retry_at <= ?)",
			domain.OutboxPending, now, domain.OutboxFailed, now).
		Order("created_at asc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) FindStuckSending(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]domain.OutboxEntry, error) {
	var entries []domain.OutboxEntry
	err := db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.OutboxSending, before).
		Order("updated_at asc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) FindStuckSent(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]domain.ProviderPayout, error) {
	var payouts []domain.ProviderPayout
	err := db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.PayoutSent, before).
		Order("updated_at asc").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}
