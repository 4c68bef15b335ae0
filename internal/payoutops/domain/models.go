package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Ops log action names. The marker constants are written by the background
// sweeps and read back by the health aggregator as last-run evidence.
const (
	ActionOutboxRerun        = "OUTBOX_RERUN"
	ActionForceReconcile     = "PAYOUT_FORCE_RECONCILE"
	ActionForceFinalizeStart = "PAYOUT_FORCE_FINALIZE_START"
	ActionForceFinalizeEnd   = "PAYOUT_FORCE_FINALIZE_END"
	ActionQuarantined        = "PAYOUT_QUARANTINED"

	ActionTrustManualOverride = "TRUST_MANUAL_OVERRIDE"

	MarkerOutboxRun        = "OUTBOX_RUN"
	MarkerReconcileFix     = "RECONCILE_FIX"
	MarkerStuckOutboxReset = "STUCK_OUTBOX_RESET"
	MarkerSentinelScan     = "SENTINEL_SCAN"
)

// FinanceOpsLog is the append-only operational trail. Rows are never mutated.
type FinanceOpsLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64" json:"entity_type"`
	EntityID   string            `gorm:"size:64;index" json:"entity_id"`
	Severity   Severity          `gorm:"size:16;not null" json:"severity"`
	Payload    datatypes.JSONMap `gorm:"column:payload_json" json:"payload"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

func (FinanceOpsLog) TableName() string {
	return "finance_ops_logs"
}

// FinanceIntegrityAlert flags a detected inconsistency between local payout
// state and what the provider or ledger reports. Only acknowledgement and
// resolution fields are ever written after creation.
type FinanceIntegrityAlert struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Type        string       `gorm:"size:64;not null;index" json:"type"`
	Severity    Severity     `gorm:"size:16;not null;index" json:"severity"`
	ReferenceID string       `gorm:"size:128;index" json:"reference_id"`
	Message     string       `gorm:"size:512" json:"message"`
	AckedAt     *time.Time   `json:"acked_at,omitempty"`
	AckedBy     string       `gorm:"size:64" json:"acked_by,omitempty"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
	ResolvedBy  string       `gorm:"size:64" json:"resolved_by,omitempty"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
}

func (FinanceIntegrityAlert) TableName() string {
	return "finance_integrity_alerts"
}

type SnapshotScope string

const (
	ScopeGlobal    SnapshotScope = "GLOBAL"
	ScopeScheduled SnapshotScope = "SCHEDULED"
	ScopeManual    SnapshotScope = "MANUAL"
)

// OpsHealthSnapshot is a timestamped copy of one health report, kept for
// trend analysis.
type OpsHealthSnapshot struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Scope     SnapshotScope     `gorm:"size:16;not null;index" json:"scope"`
	Payload   datatypes.JSONMap `gorm:"column:payload_json" json:"payload"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (OpsHealthSnapshot) TableName() string {
	return "ops_health_snapshots"
}
