package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PayoutStatus string

const (
	PayoutQueued            PayoutStatus = "QUEUED"
	PayoutSent              PayoutStatus = "SENT"
	PayoutSucceeded         PayoutStatus = "SUCCEEDED"
	PayoutFailed            PayoutStatus = "FAILED"
	PayoutReconcileRequired PayoutStatus = "RECONCILE_REQUIRED"
	PayoutQuarantined       PayoutStatus = "QUARANTINED"
)

// ProviderPayout mirrors one money movement towards the payment provider.
type ProviderPayout struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	SellerTenantID   string          `gorm:"size:64;not null;index" json:"seller_tenant_id"`
	ProviderPayoutID string          `gorm:"size:128;not null;uniqueIndex" json:"provider_payout_id"`
	GrossAmount      decimal.Decimal `gorm:"type:decimal(18,4)" json:"gross_amount"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(18,4)" json:"commission_amount"`
	NetAmount        decimal.Decimal `gorm:"type:decimal(18,4)" json:"net_amount"`
	Status           PayoutStatus    `gorm:"size:32;not null;index" json:"status"`
	IdempotencyKey   string          `gorm:"size:256;not null;index" json:"idempotency_key"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `gorm:"index" json:"updated_at"`
}

func (ProviderPayout) TableName() string {
	return "provider_payouts"
}

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSending OutboxStatus = "SENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxFailed  OutboxStatus = "FAILED"
)

// OutboxEntry durably records the intent to send a payout before any network
// call, decoupling "decided to pay" from "successfully sent".
type OutboxEntry struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	SellerTenantID string            `gorm:"size:64;not null;index" json:"seller_tenant_id"`
	IdempotencyKey string            `gorm:"size:256;not null;uniqueIndex" json:"idempotency_key"`
	Payload        datatypes.JSONMap `gorm:"column:payload_json" json:"payload"`
	Status         OutboxStatus      `gorm:"size:16;not null;index" json:"status"`
	AttemptCount   int               `gorm:"not null;default:0" json:"attempt_count"`
	NextRetryAt    *time.Time        `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `gorm:"index" json:"updated_at"`
}

func (OutboxEntry) TableName() string {
	return "payout_outbox"
}

type Repository interface {
	FindPayoutByProviderID(ctx context.Context, db *gorm.DB, providerPayoutID string) (*ProviderPayout, error)
	InsertPayout(ctx context.Context, db *gorm.DB, payout *ProviderPayout) error
	UpdatePayoutStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status PayoutStatus, now time.Time) error

	FindOutboxByKey(ctx context.Context, db *gorm.DB, idempotencyKey string) (*OutboxEntry, error)
	InsertOutbox(ctx context.Context, db *gorm.DB, entry *OutboxEntry) error
	UpdateOutbox(ctx context.Context, db *gorm.DB, entry *OutboxEntry) error
	ClaimDueOutbox(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]OutboxEntry, error)
	FindStuckSending(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]OutboxEntry, error)
	FindStuckSent(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]ProviderPayout, error)
}

// ProviderPort is the boundary towards the external payment provider. The
// real network protocol is out of scope; implementations only need to report
// whether the send was accepted.
type ProviderPort interface {
	SendPayout(ctx context.Context, entry OutboxEntry) error
}

// Service queues payout intents and dispatches due outbox entries.
type Service interface {
	QueuePayout(ctx context.Context, req QueueRequest) (*ProviderPayout, error)
	DispatchDue(ctx context.Context, limit int) (int, error)
}

type QueueRequest struct {
	SellerTenantID   string
	ProviderPayoutID string
	GrossAmount      decimal.Decimal
	CommissionAmount decimal.Decimal
	IdempotencyKey   string
}

var (
	ErrPayoutNotFound = errors.New("payout_not_found")
	ErrOutboxNotFound = errors.New("payout_outbox_not_found")
	ErrInvalidAmount  = errors.New("invalid_payout_amount")
	ErrKeyRequired    = errors.New("payout_idempotency_key_required")
)
