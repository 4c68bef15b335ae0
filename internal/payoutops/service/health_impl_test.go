package service

import (
	"context"
	"testing"
	"time"

	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	"github.com/pazarlabs/pazar/internal/payoutops/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func (f *opsFixture) seedOutboxAt(t *testing.T, key string, status payoutdomain.OutboxStatus, at time.Time) {
	t.Helper()
	require.NoError(t, f.conn.Create(&payoutdomain.OutboxEntry{
		ID:             f.node.Generate(),
		SellerTenantID: "seller-1",
		IdempotencyKey: key,
		Status:         status,
		CreatedAt:      at,
		UpdatedAt:      at,
	}).Error)
}

func (f *opsFixture) seedPayoutAt(t *testing.T, providerID string, status payoutdomain.PayoutStatus, at time.Time) {
	t.Helper()
	require.NoError(t, f.conn.Create(&payoutdomain.ProviderPayout{
		ID:               f.node.Generate(),
		SellerTenantID:   "seller-1",
		ProviderPayoutID: providerID,
		GrossAmount:      decimal.NewFromInt(100),
		CommissionAmount: decimal.NewFromInt(5),
		NetAmount:        decimal.NewFromInt(95),
		Status:           status,
		IdempotencyKey:   "PAYOUT:" + providerID,
		CreatedAt:        at,
		UpdatedAt:        at,
	}).Error)
}

func TestComputeHealthCounts(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()
	now := f.fake.Now()

	f.seedOutboxAt(t, "ob-pending", payoutdomain.OutboxPending, now.Add(-40*time.Minute))
	f.seedOutboxAt(t, "ob-stuck", payoutdomain.OutboxSending, now.Add(-20*time.Minute))
	f.seedOutboxAt(t, "ob-fresh", payoutdomain.OutboxSending, now.Add(-5*time.Minute))

	f.seedPayoutAt(t, "hp-1", payoutdomain.PayoutQueued, now.Add(-time.Hour))
	f.seedPayoutAt(t, "hp-2", payoutdomain.PayoutSent, now.Add(-30*time.Minute))
	f.seedPayoutAt(t, "hp-3", payoutdomain.PayoutSent, now.Add(-5*time.Minute))
	f.seedPayoutAt(t, "hp-4", payoutdomain.PayoutReconcileRequired, now.Add(-time.Hour))

	_, err := f.commands.RaiseAlert(ctx, "OUTBOX_SENDING_STUCK", domain.SeverityCritical, "", "wedged entries detected")
	require.NoError(t, err)
	_, err = f.commands.RaiseAlert(ctx, "PAYOUT_SENT_STUCK", domain.SeverityWarning, "hp-2", "no provider confirmation")
	require.NoError(t, err)

	report, err := f.health.ComputeHealth(ctx)
	require.NoError(t, err)

	require.EqualValues(t, 1, report.Counts.OutboxPending)
	require.EqualValues(t, 1, report.Counts.OutboxSendingStuck, "only the entry past the sending window counts")
	require.EqualValues(t, 1, report.Counts.PayoutQueued)
	require.EqualValues(t, 1, report.Counts.PayoutSentStuck, "only the payout past the sent window counts")
	require.EqualValues(t, 1, report.Counts.PayoutReconcileNeeded)
	require.EqualValues(t, 1, report.Counts.AlertsCriticalOpen)
	require.EqualValues(t, 1, report.Counts.AlertsWarningOpen)

	require.EqualValues(t, 40, report.Lag.MaxOutboxAgeMinutes)
	require.EqualValues(t, 30, report.Lag.MaxSentAgeMinutes)
	require.Len(t, report.TopCriticalAlerts, 1)
}

func TestComputeHealthLastRuns(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()

	require.NoError(t, f.commands.LogMarker(ctx, domain.MarkerOutboxRun, map[string]any{"dispatched": 3}))
	require.NoError(t, f.commands.LogMarker(ctx, domain.MarkerSentinelScan, map[string]any{"stuck": 0}))

	report, err := f.health.ComputeHealth(ctx)
	require.NoError(t, err)
	require.NotNil(t, report.LastRuns.LastOutboxRunAt)
	require.NotNil(t, report.LastRuns.LastSentinelScanAt)
	require.Nil(t, report.LastRuns.LastReconcileFixAt)
	require.Nil(t, report.LastRuns.LastStuckResetAt)
}

func TestComputeHealthExcludesResolvedAlerts(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()

	alert, err := f.commands.RaiseAlert(ctx, "OUTBOX_SENDING_STUCK", domain.SeverityCritical, "", "wedged")
	require.NoError(t, err)
	_, err = f.commands.RaiseAlert(ctx, "OUTBOX_SENDING_STUCK", domain.SeverityCritical, "", "still wedged")
	require.NoError(t, err)

	_, err = f.commands.ResolveAlert(ctx, financeAdmin, alert.ID)
	require.NoError(t, err)

	report, err := f.health.ComputeHealth(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Counts.AlertsCriticalOpen)
	require.Len(t, report.TopCriticalAlerts, 1)
}

func TestComputeHealthEmpty(t *testing.T) {
	f := setupOps(t)

	report, err := f.health.ComputeHealth(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Counts.OutboxPending)
	require.Zero(t, report.Lag.MaxOutboxAgeMinutes)
	require.Nil(t, report.LastRuns.LastOutboxRunAt)
	require.Empty(t, report.TopCriticalAlerts)
}

func TestSaveSnapshotPersistsReport(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()
	now := f.fake.Now()

	f.seedOutboxAt(t, "ob-snap", payoutdomain.OutboxPending, now.Add(-10*time.Minute))

	report, err := f.health.ComputeHealth(ctx)
	require.NoError(t, err)

	snapshot, err := f.health.SaveSnapshot(ctx, domain.ScopeManual, report)
	require.NoError(t, err)
	require.Equal(t, domain.ScopeManual, snapshot.Scope)

	var stored domain.OpsHealthSnapshot
	require.NoError(t, f.conn.First(&stored, "id = ?", snapshot.ID).Error)
	require.Equal(t, domain.ScopeManual, stored.Scope)
	require.Contains(t, stored.Payload, "counts")
}
