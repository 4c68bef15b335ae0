package repository

import (
	"context"

	"github.com/pazarlabs/pazar/internal/settings/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByKeys(ctx context.Context, db *gorm.DB, tenantID string, keys []string) ([]domain.Setting, error) {
	var settings []domain.Setting
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND key IN ?", tenantID, keys).
		Find(&settings).Error
	return settings, err
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, setting *domain.Setting) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value_json", "updated_at"}),
	}).Create(setting).Error
}
