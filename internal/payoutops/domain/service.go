package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/principal"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOpsLog(ctx context.Context, db *gorm.DB, entry *FinanceOpsLog) error
	LastOpsLogByAction(ctx context.Context, db *gorm.DB, actionContains string) (*FinanceOpsLog, error)

	FindAlert(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FinanceIntegrityAlert, error)
	InsertAlert(ctx context.Context, db *gorm.DB, alert *FinanceIntegrityAlert) error
	UpdateAlert(ctx context.Context, db *gorm.DB, alert *FinanceIntegrityAlert) error
	CountOpenAlerts(ctx context.Context, db *gorm.DB, severity Severity) (int64, error)
	ListOpenAlerts(ctx context.Context, db *gorm.DB, severity Severity, limit int) ([]FinanceIntegrityAlert, error)

	InsertSnapshot(ctx context.Context, db *gorm.DB, snapshot *OpsHealthSnapshot) error

	CountOutboxByStatus(ctx context.Context, db *gorm.DB, status string) (int64, error)
	CountOutboxStuck(ctx context.Context, db *gorm.DB, status string, before time.Time) (int64, error)
	CountPayoutsByStatus(ctx context.Context, db *gorm.DB, status string) (int64, error)
	CountPayoutsStuck(ctx context.Context, db *gorm.DB, status string, before time.Time) (int64, error)
	OldestOutboxPendingAt(ctx context.Context, db *gorm.DB) (*time.Time, error)
	OldestPayoutSentAt(ctx context.Context, db *gorm.DB) (*time.Time, error)
}

// LedgerFinalizer posts the final ledger entries for a succeeded payout.
// The real ledger integration lives outside the settlement core.
type LedgerFinalizer interface {
	FinalizePayout(ctx context.Context, providerPayoutID string) error
}

type CommandResult struct {
	ProviderPayoutID string `json:"provider_payout_id"`
	PreviousStatus   string `json:"previous_status"`
	Status           string `json:"status"`
}

// Commands is the administrative payout console. Every command is atomic and
// leaves a FinanceOpsLog row.
type Commands interface {
	RerunOutbox(ctx context.Context, pr principal.Principal, providerPayoutID string) (*CommandResult, error)
	ForceReconcile(ctx context.Context, pr principal.Principal, providerPayoutID string) (*CommandResult, error)
	ForceFinalizeSucceeded(ctx context.Context, pr principal.Principal, providerPayoutID string) (*CommandResult, error)
	Quarantine(ctx context.Context, pr principal.Principal, providerPayoutID, reason string) (*CommandResult, error)

	AckAlert(ctx context.Context, pr principal.Principal, alertID snowflake.ID) (*FinanceIntegrityAlert, error)
	ResolveAlert(ctx context.Context, pr principal.Principal, alertID snowflake.ID) (*FinanceIntegrityAlert, error)

	RaiseAlert(ctx context.Context, alertType string, severity Severity, referenceID, message string) (*FinanceIntegrityAlert, error)
	LogMarker(ctx context.Context, marker string, payload map[string]any) error
}

type HealthCounts struct {
	OutboxPending         int64 `json:"payout_outbox_pending"`
	OutboxSendingStuck    int64 `json:"payout_outbox_sending_stuck"`
	PayoutQueued          int64 `json:"provider_payout_queued"`
	PayoutSentStuck       int64 `json:"provider_payout_sent_stuck"`
	PayoutReconcileNeeded int64 `json:"provider_payout_reconcile_required"`
	AlertsCriticalOpen    int64 `json:"integrity_alerts_critical_open"`
	AlertsWarningOpen     int64 `json:"integrity_alerts_warning_open"`
}

type LagMetrics struct {
	MaxOutboxAgeMinutes int64 `json:"max_outbox_age_minutes"`
	MaxSentAgeMinutes   int64 `json:"max_sent_age_minutes"`
}

type LastRuns struct {
	LastOutboxRunAt    *time.Time `json:"last_outbox_run_at,omitempty"`
	LastReconcileFixAt *time.Time `json:"last_reconcile_fix_at,omitempty"`
	LastStuckResetAt   *time.Time `json:"last_stuck_reset_at,omitempty"`
	LastSentinelScanAt *time.Time `json:"last_sentinel_scan_at,omitempty"`
}

type HealthReport struct {
	Timestamp         time.Time               `json:"timestamp"`
	Counts            HealthCounts            `json:"counts"`
	Lag               LagMetrics              `json:"lag_metrics"`
	LastRuns          LastRuns                `json:"last_run_timestamps"`
	TopCriticalAlerts []FinanceIntegrityAlert `json:"top_critical_alerts"`
}

// Health computes the operational health report. ComputeHealth has no side
// effects; persistence happens only through SaveSnapshot.
type Health interface {
	ComputeHealth(ctx context.Context) (*HealthReport, error)
	SaveSnapshot(ctx context.Context, scope SnapshotScope, report *HealthReport) (*OpsHealthSnapshot, error)
}

var (
	ErrAlertNotFound   = errors.New("integrity_alert_not_found")
	ErrUnauthorizedOps = errors.New("unauthorized_ops_command")
	ErrNotSucceeded    = errors.New("payout_not_succeeded")
	ErrReasonRequired  = errors.New("ops_reason_required")
	ErrAlreadyResolved = errors.New("integrity_alert_already_resolved")
)
