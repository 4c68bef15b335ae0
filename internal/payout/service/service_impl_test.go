package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/payout/domain"
	"github.com/pazarlabs/pazar/internal/payout/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type flakyProvider struct {
	fail  bool
	sends int
}

func (p *flakyProvider) SendPayout(ctx context.Context, entry domain.OutboxEntry) error {
	p.sends++
	if p.fail {
		return errors.New("provider rejected payout")
	}
	return nil
}

func setupPayout(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock, *flakyProvider) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.ProviderPayout{},
		&domain.OutboxEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	provider := &flakyProvider{}
	svc := NewService(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Cfg:      config.Config{Settlement: config.SettlementConfig{OutboxRetryBackoffMins: 5}},
		Repo:     repository.Provide(),
		Provider: provider,
	})
	return svc, conn, fake, provider
}

func queueReq(providerID string) domain.QueueRequest {
	return domain.QueueRequest{
		SellerTenantID:   "seller-1",
		ProviderPayoutID: providerID,
		GrossAmount:      decimal.NewFromInt(100),
		CommissionAmount: decimal.NewFromInt(5),
		IdempotencyKey:   "PAYOUT:" + providerID,
	}
}

func TestQueuePayoutCreatesPayoutAndOutbox(t *testing.T) {
	svc, conn, _, _ := setupPayout(t)

	payout, err := svc.QueuePayout(context.Background(), queueReq("pp-1"))
	require.NoError(t, err)
	require.Equal(t, domain.PayoutQueued, payout.Status)
	require.True(t, payout.NetAmount.Equal(decimal.NewFromInt(95)))

	var entry domain.OutboxEntry
	require.NoError(t, conn.First(&entry, "idempotency_key = ?", "PAYOUT:pp-1").Error)
	require.Equal(t, domain.OutboxPending, entry.Status)
	require.Equal(t, "pp-1", entry.Payload["provider_payout_id"])
}

func TestQueuePayoutIsIdempotent(t *testing.T) {
	svc, conn, _, _ := setupPayout(t)
	ctx := context.Background()

	first, err := svc.QueuePayout(ctx, queueReq("pp-2"))
	require.NoError(t, err)
	second, err := svc.QueuePayout(ctx, queueReq("pp-2"))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var payouts, entries int64
	require.NoError(t, conn.Model(&domain.ProviderPayout{}).Count(&payouts).Error)
	require.NoError(t, conn.Model(&domain.OutboxEntry{}).Count(&entries).Error)
	require.EqualValues(t, 1, payouts)
	require.EqualValues(t, 1, entries)
}

func TestQueuePayoutValidation(t *testing.T) {
	svc, _, _, _ := setupPayout(t)
	ctx := context.Background()

	req := queueReq("pp-3")
	req.IdempotencyKey = "   "
	_, err := svc.QueuePayout(ctx, req)
	require.ErrorIs(t, err, domain.ErrKeyRequired)

	req = queueReq("pp-3")
	req.GrossAmount = decimal.NewFromInt(-1)
	_, err = svc.QueuePayout(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	// Commission above gross would pay out a negative net.
	req = queueReq("pp-3")
	req.CommissionAmount = decimal.NewFromInt(200)
	_, err = svc.QueuePayout(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestDispatchDueMarksSent(t *testing.T) {
	svc, conn, _, provider := setupPayout(t)
	ctx := context.Background()

	_, err := svc.QueuePayout(ctx, queueReq("pp-4"))
	require.NoError(t, err)

	dispatched, err := svc.DispatchDue(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, dispatched)
	require.Equal(t, 1, provider.sends)

	var entry domain.OutboxEntry
	require.NoError(t, conn.First(&entry, "idempotency_key = ?", "PAYOUT:pp-4").Error)
	require.Equal(t, domain.OutboxSent, entry.Status)
	require.Equal(t, 1, entry.AttemptCount)

	var payout domain.ProviderPayout
	require.NoError(t, conn.First(&payout, "provider_payout_id = ?", "pp-4").Error)
	require.Equal(t, domain.PayoutSent, payout.Status)

	// Nothing left to claim.
	dispatched, err = svc.DispatchDue(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, dispatched)
}

func TestDispatchDueFailureSchedulesRetry(t *testing.T) {
	svc, conn, fake, provider := setupPayout(t)
	ctx := context.Background()
	provider.fail = true

	_, err := svc.QueuePayout(ctx, queueReq("pp-5"))
	require.NoError(t, err)

	dispatched, err := svc.DispatchDue(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, dispatched)

	var entry domain.OutboxEntry
	require.NoError(t, conn.First(&entry, "idempotency_key = ?", "PAYOUT:pp-5").Error)
	require.Equal(t, domain.OutboxFailed, entry.Status)
	require.NotNil(t, entry.NextRetryAt)
	require.WithinDuration(t, fake.Now().Add(5*time.Minute), *entry.NextRetryAt, time.Second)

	var payout domain.ProviderPayout
	require.NoError(t, conn.First(&payout, "provider_payout_id = ?", "pp-5").Error)
	require.Equal(t, domain.PayoutFailed, payout.Status)
}

func TestDispatchDueRetriesFailedEntryWhenDue(t *testing.T) {
	svc, conn, fake, provider := setupPayout(t)
	ctx := context.Background()
	provider.fail = true

	_, err := svc.QueuePayout(ctx, queueReq("pp-7"))
	require.NoError(t, err)

	dispatched, err := svc.DispatchDue(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, dispatched)

	// The failure parked the entry with a retry five minutes out; until then
	// nothing is claimable.
	provider.fail = false
	dispatched, err = svc.DispatchDue(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, dispatched)
	require.Equal(t, 1, provider.sends)

	fake.Advance(6 * time.Minute)
	dispatched, err = svc.DispatchDue(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, dispatched)
	require.Equal(t, 2, provider.sends)

	var entry domain.OutboxEntry
	require.NoError(t, conn.First(&entry, "idempotency_key = ?", "PAYOUT:pp-7").Error)
	require.Equal(t, domain.OutboxSent, entry.Status)
	require.Equal(t, 2, entry.AttemptCount)
	require.Nil(t, entry.NextRetryAt)

	var payout domain.ProviderPayout
	require.NoError(t, conn.First(&payout, "provider_payout_id = ?", "pp-7").Error)
	require.Equal(t, domain.PayoutSent, payout.Status)
}

func TestDispatchDueHonorsRetryBackoff(t *testing.T) {
	svc, conn, fake, provider := setupPayout(t)
	ctx := context.Background()

	_, err := svc.QueuePayout(ctx, queueReq("pp-6"))
	require.NoError(t, err)

	// Entries waiting on a future retry are not claimed.
	future := fake.Now().Add(10 * time.Minute)
	require.NoError(t, conn.Model(&domain.OutboxEntry{}).
		Where("idempotency_key = ?", "PAYOUT:pp-6").
		Update("next_retry_at", future).Error)

	dispatched, err := svc.DispatchDue(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, dispatched)
	require.Zero(t, provider.sends)

	fake.Advance(11 * time.Minute)
	dispatched, err = svc.DispatchDue(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, dispatched)
}
