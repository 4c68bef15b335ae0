package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Signals is the normalized input of the scoring function. All ratios are in
// [0,1]; counts are plain counts over the rolling window.
type Signals struct {
	OnTimeRatio    float64 `json:"on_time_ratio"`
	DisputeRate    float64 `json:"dispute_rate"`
	SLABreachCount float64 `json:"sla_breach_count"`
	ChargebackRate float64 `json:"chargeback_rate"`
	ReceivableRate float64 `json:"receivable_rate"`
	OverrideCount  float64 `json:"override_count"`
	StabilityScore float64 `json:"stability_score"`
	VolumeIndex    float64 `json:"volume_index"`
}

// ScoreBreakdown is the full output of the scoring function, kept per
// component so the persisted score row stays explainable.
type ScoreBreakdown struct {
	BaseScore           float64 `json:"base_score"`
	LateDeliveryPenalty float64 `json:"late_delivery_penalty"`
	DisputePenalty      float64 `json:"dispute_penalty"`
	SLABreachPenalty    float64 `json:"sla_breach_penalty"`
	ChargebackPenalty   float64 `json:"chargeback_penalty"`
	ReceivablePenalty   float64 `json:"receivable_penalty"`
	OverridePenalty     float64 `json:"override_penalty"`
	StabilityBonus      float64 `json:"stability_bonus"`
	VolumeBonus         float64 `json:"volume_bonus"`
	FinalScore          int     `json:"final_score"`
	Tier                Tier    `json:"tier"`
}

// SellerTrustScore is the current score row per seller, upserted by each
// recalculation. Version increments monotonically so readers can detect
// stale snapshots.
type SellerTrustScore struct {
	SellerTenantID string         `gorm:"primaryKey;size:64" json:"seller_tenant_id"`
	Score          int            `gorm:"not null" json:"score"`
	Tier           Tier           `gorm:"size:4;not null" json:"tier"`
	Components     datatypes.JSON `gorm:"column:components_json" json:"components"`
	WindowStart    time.Time      `json:"window_start"`
	WindowEnd      time.Time      `json:"window_end"`
	Version        int            `gorm:"not null;default:0" json:"version"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (SellerTrustScore) TableName() string {
	return "seller_trust_scores"
}

type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// RecalcJob records one recalculation attempt. Failures keep their error text
// so operators can inspect why a sweep did not land.
type RecalcJob struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SellerTenantID string       `gorm:"size:64;not null;index" json:"seller_tenant_id"`
	Reason         string       `gorm:"size:128" json:"reason"`
	IdempotencyKey string       `gorm:"size:256;not null;index" json:"idempotency_key"`
	Status         JobStatus    `gorm:"size:16;not null" json:"status"`
	Error          string       `gorm:"size:1024" json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (RecalcJob) TableName() string {
	return "trust_score_recalc_jobs"
}

// MarketShipment is the shipment read projection consumed by the signal
// aggregator.
type MarketShipment struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	OrderID        string     `gorm:"size:64;index" json:"order_id"`
	SellerTenantID string     `gorm:"size:64;not null;index" json:"seller_tenant_id"`
	Status         string     `gorm:"size:32" json:"status"`
	PromisedAt     *time.Time `json:"promised_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (MarketShipment) TableName() string {
	return "market_shipments"
}

// Policy is the tier-derived operational parameters for a seller.
type Policy struct {
	SellerTenantID      string  `json:"seller_tenant_id"`
	Tier                Tier    `json:"tier"`
	HoldDays            int     `json:"hold_days"`
	EarlyReleaseFeeRate float64 `json:"early_release_fee_rate"`
}
