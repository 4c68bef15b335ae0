package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FinanceAuditLog is the append-only trail for every financial state change.
// Rows are never mutated after creation.
type FinanceAuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID   string            `gorm:"size:64;index" json:"tenant_id"`
	Action     string            `gorm:"size:128;not null;index" json:"action"`
	Actor      string            `gorm:"size:128" json:"actor"`
	EntityType string            `gorm:"size:64" json:"entity_type"`
	EntityID   string            `gorm:"size:64;index" json:"entity_id"`
	Payload    datatypes.JSONMap `gorm:"column:payload_json" json:"payload"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (FinanceAuditLog) TableName() string {
	return "finance_audit_logs"
}

type ListFilter struct {
	TenantID   string
	Action     string
	EntityType string
	EntityID   string
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *FinanceAuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*FinanceAuditLog, error)
}

// Service records audit entries inside the caller's transaction so the entry
// commits or rolls back together with the state change it describes.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	List(ctx context.Context, filter ListFilter) ([]*FinanceAuditLog, error)
}

// Entry is the write-side shape of an audit record.
type Entry struct {
	TenantID   string
	Action     string
	Actor      string
	EntityType string
	EntityID   string
	Payload    map[string]any
}

var ErrInvalidAction = errors.New("invalid_audit_action")
