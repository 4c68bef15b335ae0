package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type RuleScope string

const (
	RuleScopeGlobal          RuleScope = "GLOBAL"
	RuleScopeCompanyOverride RuleScope = "COMPANY_OVERRIDE"
)

type MatchType string

const (
	MatchCategoryAndBrand MatchType = "CATEGORY_AND_BRAND"
	MatchCategory         MatchType = "CATEGORY"
	MatchBrand            MatchType = "BRAND"
	MatchDefault          MatchType = "DEFAULT"
)

type RoundingMode string

const (
	RoundHalfUp RoundingMode = "HALF_UP"
	RoundUp     RoundingMode = "UP"
	RoundDown   RoundingMode = "DOWN"
)

// Plan groups the commission rules applied to a seller's orders. A plan with
// a nil SellerTenantID is the platform-wide fallback.
type Plan struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SellerTenantID *string      `gorm:"size:64;index" json:"seller_tenant_id,omitempty"`
	Name           string       `gorm:"size:128" json:"name"`
	IsDefault      bool         `gorm:"not null;default:false" json:"is_default"`
	Precision      int32        `gorm:"not null;default:2" json:"precision"`
	RoundingMode   RoundingMode `gorm:"size:16;not null;default:HALF_UP" json:"rounding_mode"`
	ArchivedAt     *time.Time   `json:"archived_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`

	Rules []Rule `gorm:"foreignKey:PlanID" json:"rules,omitempty"`
}

func (Plan) TableName() string {
	return "commission_plans"
}

// Rule is immutable once created and belongs to exactly one plan.
type Rule struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	PlanID         snowflake.ID    `gorm:"not null;index" json:"plan_id"`
	Scope          RuleScope       `gorm:"size:32;not null" json:"scope"`
	MatchType      MatchType       `gorm:"size:32;not null" json:"match_type"`
	Priority       int             `gorm:"not null;default:0" json:"priority"`
	CategoryID     *string         `gorm:"size:64" json:"category_id,omitempty"`
	BrandID        *string         `gorm:"size:64" json:"brand_id,omitempty"`
	RatePercentage decimal.Decimal `gorm:"type:decimal(10,4)" json:"rate_percentage"`
	FixedFee       decimal.Decimal `gorm:"type:decimal(18,4)" json:"fixed_fee"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (Rule) TableName() string {
	return "commission_rules"
}

// Snapshot is the legal record of what was charged for an order. Created
// exactly once per order, immutable thereafter.
type Snapshot struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID        string          `gorm:"size:64;not null;index" json:"tenant_id"`
	OrderID         string          `gorm:"size:64;not null;uniqueIndex" json:"order_id"`
	PlanID          snowflake.ID    `gorm:"not null" json:"plan_id"`
	AppliedRate     decimal.Decimal `gorm:"type:decimal(10,4)" json:"applied_rate"`
	AppliedFixedFee decimal.Decimal `gorm:"type:decimal(18,4)" json:"applied_fixed_fee"`
	TotalCommission decimal.Decimal `gorm:"type:decimal(18,4)" json:"total_commission"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (Snapshot) TableName() string {
	return "commission_snapshots"
}

// MarketOrder is the read projection of a marketplace order consumed by the
// settlement core. Category and brand are denormalized onto each line so rule
// resolution never walks the product graph.
type MarketOrder struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID       string    `gorm:"size:64;not null;index" json:"tenant_id"`
	SellerTenantID string    `gorm:"size:64;not null;index" json:"seller_tenant_id"`
	BuyerTenantID  string    `gorm:"size:64" json:"buyer_tenant_id"`
	Currency       string    `gorm:"size:8" json:"currency"`
	CreatedAt      time.Time `json:"created_at"`

	Lines []MarketOrderLine `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
}

func (MarketOrder) TableName() string {
	return "market_orders"
}

type MarketOrderLine struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrderID    string          `gorm:"size:64;not null;index" json:"order_id"`
	ProductID  string          `gorm:"size:64" json:"product_id"`
	CategoryID *string         `gorm:"size:64" json:"category_id,omitempty"`
	BrandID    *string         `gorm:"size:64" json:"brand_id,omitempty"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,4)" json:"unit_price"`
	Quantity   int64           `gorm:"not null" json:"quantity"`
}

func (MarketOrderLine) TableName() string {
	return "market_order_lines"
}
