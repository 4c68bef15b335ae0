package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	payoutrepo "github.com/pazarlabs/pazar/internal/payout/repository"
	"github.com/pazarlabs/pazar/internal/payoutops/domain"
	"github.com/pazarlabs/pazar/internal/payoutops/repository"
	"github.com/pazarlabs/pazar/internal/principal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	financeAdmin = principal.Principal{UserID: "user-fin", Role: principal.RoleFinanceAdmin}
	riskAdmin    = principal.Principal{UserID: "user-risk", Role: principal.RoleRiskAdmin}
)

type opsFixture struct {
	commands domain.Commands
	health   domain.Health
	conn     *gorm.DB
	node     *snowflake.Node
	fake     *clock.FakeClock
}

func setupOps(t *testing.T) *opsFixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.FinanceOpsLog{},
		&domain.FinanceIntegrityAlert{},
		&domain.OpsHealthSnapshot{},
		&payoutdomain.ProviderPayout{},
		&payoutdomain.OutboxEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{Settlement: config.SettlementConfig{SendingStuckMinutes: 15, SentStuckMinutes: 10}}

	commands := NewCommands(CommandsParams{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Repo:       repository.Provide(),
		PayoutRepo: payoutrepo.Provide(),
		Finalizer:  NoopLedgerFinalizer{},
	})
	health := NewHealth(HealthParams{
		Config: cfg,
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Repo:   repository.Provide(),
	})
	return &opsFixture{commands: commands, health: health, conn: conn, node: node, fake: fake}
}

func (f *opsFixture) seedPayout(t *testing.T, providerID string, status payoutdomain.PayoutStatus, outboxStatus payoutdomain.OutboxStatus) *payoutdomain.ProviderPayout {
	t.Helper()

	payout := &payoutdomain.ProviderPayout{
		ID:               f.node.Generate(),
		SellerTenantID:   "seller-1",
		ProviderPayoutID: providerID,
		GrossAmount:      decimal.NewFromInt(100),
		CommissionAmount: decimal.NewFromInt(5),
		NetAmount:        decimal.NewFromInt(95),
		Status:           status,
		IdempotencyKey:   "PAYOUT:" + providerID,
		CreatedAt:        f.fake.Now(),
		UpdatedAt:        f.fake.Now(),
	}
	require.NoError(t, f.conn.Create(payout).Error)
	require.NoError(t, f.conn.Create(&payoutdomain.OutboxEntry{
		ID:             f.node.Generate(),
		SellerTenantID: "seller-1",
		IdempotencyKey: payout.IdempotencyKey,
		Status:         outboxStatus,
		AttemptCount:   3,
		CreatedAt:      f.fake.Now(),
		UpdatedAt:      f.fake.Now(),
	}).Error)
	return payout
}

func TestQuarantineStopsPayoutAndOutbox(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()

	f.seedPayout(t, "pp-1", payoutdomain.PayoutQueued, payoutdomain.OutboxPending)
	retryAt := f.fake.Now().Add(5 * time.Minute)
	require.NoError(t, f.conn.Model(&payoutdomain.OutboxEntry{}).
		Where("idempotency_key = ?", "PAYOUT:pp-1").
		Update("next_retry_at", retryAt).Error)

	result, err := f.commands.Quarantine(ctx, financeAdmin, "pp-1", "provider flagged account takeover")
	require.NoError(t, err)
	require.Equal(t, string(payoutdomain.PayoutQueued), result.PreviousStatus)
	require.Equal(t, string(payoutdomain.PayoutQuarantined), result.Status)

	var payout payoutdomain.ProviderPayout
	require.NoError(t, f.conn.First(&payout, "provider_payout_id = ?", "pp-1").Error)
	require.Equal(t, payoutdomain.PayoutQuarantined, payout.Status)

	// FAILED without a retry schedule, so the dispatcher can never pick the
	// entry back up.
	var outbox payoutdomain.OutboxEntry
	require.NoError(t, f.conn.First(&outbox, "idempotency_key = ?", "PAYOUT:pp-1").Error)
	require.Equal(t, payoutdomain.OutboxFailed, outbox.Status)
	require.Nil(t, outbox.NextRetryAt)

	var entry domain.FinanceOpsLog
	require.NoError(t, f.conn.First(&entry, "action = ?", domain.ActionQuarantined).Error)
	require.Equal(t, domain.SeverityCritical, entry.Severity)
	require.Equal(t, "provider flagged account takeover", entry.Payload["reason"])
}

func TestQuarantineLeavesSentOutboxAlone(t *testing.T) {
	f := setupOps(t)

	f.seedPayout(t, "pp-2", payoutdomain.PayoutSent, payoutdomain.OutboxSent)

	_, err := f.commands.Quarantine(context.Background(), financeAdmin, "pp-2", "manual fraud review")
	require.NoError(t, err)

	var outbox payoutdomain.OutboxEntry
	require.NoError(t, f.conn.First(&outbox, "idempotency_key = ?", "PAYOUT:pp-2").Error)
	require.Equal(t, payoutdomain.OutboxSent, outbox.Status)
}

func TestQuarantineParksScheduledRetry(t *testing.T) {
	f := setupOps(t)

	// A failed send left the outbox FAILED with a retry on the clock.
	// Quarantine must cancel it.
	f.seedPayout(t, "pp-8", payoutdomain.PayoutFailed, payoutdomain.OutboxFailed)
	retryAt := f.fake.Now().Add(5 * time.Minute)
	require.NoError(t, f.conn.Model(&payoutdomain.OutboxEntry{}).
		Where("idempotency_key = ?", "PAYOUT:pp-8").
		Update("next_retry_at", retryAt).Error)

	_, err := f.commands.Quarantine(context.Background(), financeAdmin, "pp-8", "chargeback storm")
	require.NoError(t, err)

	var outbox payoutdomain.OutboxEntry
	require.NoError(t, f.conn.First(&outbox, "idempotency_key = ?", "PAYOUT:pp-8").Error)
	require.Equal(t, payoutdomain.OutboxFailed, outbox.Status)
	require.Nil(t, outbox.NextRetryAt)
}

func TestQuarantineRequiresReason(t *testing.T) {
	f := setupOps(t)

	f.seedPayout(t, "pp-3", payoutdomain.PayoutQueued, payoutdomain.OutboxPending)

	_, err := f.commands.Quarantine(context.Background(), financeAdmin, "pp-3", "   ")
	require.ErrorIs(t, err, domain.ErrReasonRequired)
}

func TestRerunOutboxResetsRetryBudget(t *testing.T) {
	f := setupOps(t)

	f.seedPayout(t, "pp-4", payoutdomain.PayoutFailed, payoutdomain.OutboxFailed)

	result, err := f.commands.RerunOutbox(context.Background(), financeAdmin, "pp-4")
	require.NoError(t, err)
	require.Equal(t, string(payoutdomain.OutboxFailed), result.PreviousStatus)
	require.Equal(t, string(payoutdomain.OutboxPending), result.Status)

	var outbox payoutdomain.OutboxEntry
	require.NoError(t, f.conn.First(&outbox, "idempotency_key = ?", "PAYOUT:pp-4").Error)
	require.Equal(t, payoutdomain.OutboxPending, outbox.Status)
	require.Equal(t, 0, outbox.AttemptCount)
	require.NotNil(t, outbox.NextRetryAt)
}

func TestRerunOutboxUnknownPayout(t *testing.T) {
	f := setupOps(t)

	_, err := f.commands.RerunOutbox(context.Background(), financeAdmin, "pp-nope")
	require.ErrorIs(t, err, payoutdomain.ErrPayoutNotFound)
}

func TestForceReconcileParksPayout(t *testing.T) {
	f := setupOps(t)

	f.seedPayout(t, "pp-5", payoutdomain.PayoutSent, payoutdomain.OutboxSent)

	result, err := f.commands.ForceReconcile(context.Background(), financeAdmin, "pp-5")
	require.NoError(t, err)
	require.Equal(t, string(payoutdomain.PayoutReconcileRequired), result.Status)

	var payout payoutdomain.ProviderPayout
	require.NoError(t, f.conn.First(&payout, "provider_payout_id = ?", "pp-5").Error)
	require.Equal(t, payoutdomain.PayoutReconcileRequired, payout.Status)
}

func TestForceReconcileSucceededIsUntouched(t *testing.T) {
	f := setupOps(t)

	f.seedPayout(t, "pp-6", payoutdomain.PayoutSucceeded, payoutdomain.OutboxSent)

	result, err := f.commands.ForceReconcile(context.Background(), financeAdmin, "pp-6")
	require.NoError(t, err)
	require.Equal(t, string(payoutdomain.PayoutSucceeded), result.Status)

	var payout payoutdomain.ProviderPayout
	require.NoError(t, f.conn.First(&payout, "provider_payout_id = ?", "pp-6").Error)
	require.Equal(t, payoutdomain.PayoutSucceeded, payout.Status)
}

func TestForceFinalizeRequiresSucceeded(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()

	f.seedPayout(t, "pp-7", payoutdomain.PayoutSent, payoutdomain.OutboxSent)

	_, err := f.commands.ForceFinalizeSucceeded(ctx, financeAdmin, "pp-7")
	require.ErrorIs(t, err, domain.ErrNotSucceeded)

	f.seedPayout(t, "pp-8", payoutdomain.PayoutSucceeded, payoutdomain.OutboxSent)

	_, err = f.commands.ForceFinalizeSucceeded(ctx, financeAdmin, "pp-8")
	require.NoError(t, err)

	// Both bracket entries land so an interrupted run is visible.
	var entries int64
	require.NoError(t, f.conn.Model(&domain.FinanceOpsLog{}).
		Where("action IN ?", []string{domain.ActionForceFinalizeStart, domain.ActionForceFinalizeEnd}).
		Count(&entries).Error)
	require.EqualValues(t, 2, entries)
}

func TestMonetaryCommandsRejectRiskAdmin(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()

	f.seedPayout(t, "pp-9", payoutdomain.PayoutQueued, payoutdomain.OutboxPending)

	_, err := f.commands.Quarantine(ctx, riskAdmin, "pp-9", "attempted stop")
	require.ErrorIs(t, err, domain.ErrUnauthorizedOps)
	_, err = f.commands.RerunOutbox(ctx, riskAdmin, "pp-9")
	require.ErrorIs(t, err, domain.ErrUnauthorizedOps)
	_, err = f.commands.ForceReconcile(ctx, riskAdmin, "pp-9")
	require.ErrorIs(t, err, domain.ErrUnauthorizedOps)
	_, err = f.commands.ForceFinalizeSucceeded(ctx, riskAdmin, "pp-9")
	require.ErrorIs(t, err, domain.ErrUnauthorizedOps)
}

func TestAlertLifecycle(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()

	alert, err := f.commands.RaiseAlert(ctx, "PAYOUT_SENT_STUCK", domain.SeverityWarning, "pp-10", "sent 40m ago without provider confirmation")
	require.NoError(t, err)
	require.Nil(t, alert.AckedAt)

	acked, err := f.commands.AckAlert(ctx, riskAdmin, alert.ID)
	require.NoError(t, err)
	require.NotNil(t, acked.AckedAt)
	require.Equal(t, "user-risk", acked.AckedBy)

	// Ack is idempotent; the original acknowledgement survives.
	again, err := f.commands.AckAlert(ctx, financeAdmin, alert.ID)
	require.NoError(t, err)
	require.Equal(t, "user-risk", again.AckedBy)

	resolved, err := f.commands.ResolveAlert(ctx, financeAdmin, alert.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = f.commands.ResolveAlert(ctx, financeAdmin, alert.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestResolveAlertAcksImplicitly(t *testing.T) {
	f := setupOps(t)
	ctx := context.Background()

	alert, err := f.commands.RaiseAlert(ctx, "OUTBOX_SENDING_STUCK", domain.SeverityCritical, "", "3 entries wedged in SENDING")
	require.NoError(t, err)

	resolved, err := f.commands.ResolveAlert(ctx, financeAdmin, alert.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.AckedAt)
	require.Equal(t, "user-fin", resolved.AckedBy)
}

func TestAlertNotFound(t *testing.T) {
	f := setupOps(t)

	_, err := f.commands.AckAlert(context.Background(), financeAdmin, snowflake.ID(12345))
	require.ErrorIs(t, err, domain.ErrAlertNotFound)
}
