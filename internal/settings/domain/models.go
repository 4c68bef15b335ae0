package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Platform setting keys. Kill switches pause a flow globally; the default
// blobs feed the policy resolver.
const (
	KeyEscrowPaused         = "escrowPaused"
	KeyPayoutPaused         = "payoutPaused"
	KeyGlobalEscrowDefaults = "globalEscrowDefaults"
	KeyTrustTierEffects     = "trustTierEffects"
)

// Setting is one platform-scoped key/value row.
type Setting struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	TenantID  string         `gorm:"size:64;not null;uniqueIndex:idx_settings_tenant_key" json:"tenant_id"`
	Key       string         `gorm:"size:64;not null;uniqueIndex:idx_settings_tenant_key" json:"key"`
	Value     datatypes.JSON `gorm:"column:value_json" json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Setting) TableName() string {
	return "app_settings"
}

// EscrowDefaults is the platform-wide escrow baseline the tier deltas apply to.
type EscrowDefaults struct {
	DefaultHoldDays     int     `json:"defaultHoldDays"`
	AllowEarlyRelease   bool    `json:"allowEarlyRelease"`
	EarlyReleaseFeeRate float64 `json:"earlyReleaseFeeRate"`
	Currency            string  `json:"currency"`
}

// Policies is the admin-facing view of the platform policy settings.
type Policies struct {
	EscrowPaused         bool           `json:"escrowPaused"`
	PayoutPaused         bool           `json:"payoutPaused"`
	GlobalEscrowDefaults EscrowDefaults `json:"globalEscrowDefaults"`
	TrustTierEffects     map[string]any `json:"trustTierEffects"`
}

// PolicyUpdate carries a partial policy change. Nil fields are left untouched.
// Reason is required; every change lands in the finance audit log.
type PolicyUpdate struct {
	Reason               string
	EscrowPaused         *bool
	PayoutPaused         *bool
	GlobalEscrowDefaults *EscrowDefaults
	TrustTierEffects     map[string]any
}

type Repository interface {
	FindByKeys(ctx context.Context, db *gorm.DB, tenantID string, keys []string) ([]Setting, error)
	Upsert(ctx context.Context, db *gorm.DB, setting *Setting) error
}

type Service interface {
	GetPolicies(ctx context.Context) (*Policies, error)
	UpdatePolicies(ctx context.Context, actorUserID string, update PolicyUpdate) (*Policies, error)
	EscrowDefaults(ctx context.Context) (EscrowDefaults, error)
}

var (
	ErrReasonRequired = errors.New("policy_reason_required")
	ErrNoFields       = errors.New("policy_no_fields_provided")
)
