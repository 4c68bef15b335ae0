package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type RecordStatus string

const (
	StatusStarted   RecordStatus = "STARTED"
	StatusSucceeded RecordStatus = "SUCCEEDED"
	StatusFailed    RecordStatus = "FAILED"
)

// Record tracks one logical operation instance. At most one row exists per
// key; a fresh STARTED row blocks concurrent execution, a stale one may be
// taken over. Rows are never deleted in normal operation.
type Record struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Key         string       `gorm:"size:256;not null;uniqueIndex" json:"key"`
	Scope       string       `gorm:"size:64;not null;index" json:"scope"`
	TenantID    string       `gorm:"size:64;index" json:"tenant_id"`
	Status      RecordStatus `gorm:"size:16;not null" json:"status"`
	LockedAt    time.Time    `json:"locked_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	LastError   string       `gorm:"size:1024" json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Record) TableName() string {
	return "idempotency_records"
}

type Repository interface {
	FindByKey(ctx context.Context, db *gorm.DB, key string) (*Record, error)
	Insert(ctx context.Context, db *gorm.DB, record *Record) error
	Update(ctx context.Context, db *gorm.DB, record *Record) error
}

// Op names a guarded operation.
type Op struct {
	Key      string
	Scope    string
	TenantID string
}

// Runner executes a function at most once per key. fn runs inside the same
// transaction as the record claim so business writes and the guard commit or
// roll back together.
type Runner interface {
	RunOnce(ctx context.Context, op Op, fn func(tx *gorm.DB) error) error
}

var (
	// ErrAlreadyRunning means a non-stale lock is held; callers should retry later.
	ErrAlreadyRunning = errors.New("operation_already_running")
	// ErrAlreadySucceeded means a previous execution committed; callers fetch
	// the persisted result instead of re-executing.
	ErrAlreadySucceeded = errors.New("operation_already_succeeded")
	ErrInvalidKey       = errors.New("invalid_idempotency_key")
)
