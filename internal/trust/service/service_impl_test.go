package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pazarlabs/pazar/internal/clock"
	commissiondomain "github.com/pazarlabs/pazar/internal/commission/domain"
	"github.com/pazarlabs/pazar/internal/config"
	disputedomain "github.com/pazarlabs/pazar/internal/dispute/domain"
	idempotencydomain "github.com/pazarlabs/pazar/internal/idempotency/domain"
	idempotencyrepo "github.com/pazarlabs/pazar/internal/idempotency/repository"
	idempotencyservice "github.com/pazarlabs/pazar/internal/idempotency/service"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	opsdomain "github.com/pazarlabs/pazar/internal/payoutops/domain"
	settingsdomain "github.com/pazarlabs/pazar/internal/settings/domain"
	"github.com/pazarlabs/pazar/internal/trust/domain"
	"github.com/pazarlabs/pazar/internal/trust/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubSettings struct {
	defaults settingsdomain.EscrowDefaults
}

func (s stubSettings) GetPolicies(ctx context.Context) (*settingsdomain.Policies, error) {
	return nil, nil
}

func (s stubSettings) UpdatePolicies(ctx context.Context, actorUserID string, update settingsdomain.PolicyUpdate) (*settingsdomain.Policies, error) {
	return nil, nil
}

func (s stubSettings) EscrowDefaults(ctx context.Context) (settingsdomain.EscrowDefaults, error) {
	return s.defaults, nil
}

func setupTrust(t *testing.T, settings settingsdomain.Service) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&idempotencydomain.Record{},
		&domain.RecalcJob{},
		&domain.SellerTrustScore{},
		&domain.MarketShipment{},
		&commissiondomain.MarketOrder{},
		&disputedomain.Case{},
		&opsdomain.FinanceOpsLog{},
		&payoutdomain.ProviderPayout{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	runner := idempotencyservice.NewRunner(idempotencyservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Cfg:   config.Config{Settlement: config.SettlementConfig{LockStaleMinutes: 15}},
		Repo:  idempotencyrepo.Provide(),
	})

	svc := NewService(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Cfg:        config.Config{Settlement: config.SettlementConfig{TrustWindowDays: 90, DefaultHoldDays: 14}},
		Runner:     runner,
		Repo:       repository.Provide(),
		Chargeback: EarningsApproximation{},
		Receivable: PayoutReceivableRate{},
		Settings:   settings,
	})
	return svc, conn, fake
}

func TestSubmitRecalcCreatesScore(t *testing.T) {
	svc, conn, _ := setupTrust(t, nil)
	ctx := context.Background()

	job, err := svc.SubmitRecalc(ctx, "seller-1", "MANUAL_RECALC")
	require.NoError(t, err)
	require.Equal(t, domain.JobSucceeded, job.Status)

	score, err := svc.GetScore(ctx, "seller-1")
	require.NoError(t, err)
	require.Equal(t, 100, score.Score)
	require.Equal(t, domain.TierA, score.Tier)
	require.Equal(t, 1, score.Version)
	require.NotEmpty(t, score.Components)

	var jobs int64
	require.NoError(t, conn.Model(&domain.RecalcJob{}).Where("seller_tenant_id = ?", "seller-1").Count(&jobs).Error)
	require.EqualValues(t, 1, jobs)
}

func TestSubmitRecalcSameDayReplayIsRejected(t *testing.T) {
	svc, conn, _ := setupTrust(t, nil)
	ctx := context.Background()

	_, err := svc.SubmitRecalc(ctx, "seller-2", "MANUAL_RECALC")
	require.NoError(t, err)

	job, err := svc.SubmitRecalc(ctx, "seller-2", "MANUAL_RECALC")
	require.ErrorIs(t, err, idempotencydomain.ErrAlreadySucceeded)
	require.Equal(t, domain.JobFailed, job.Status)
	require.NotEmpty(t, job.Error)

	score, err := svc.GetScore(ctx, "seller-2")
	require.NoError(t, err)
	require.Equal(t, 1, score.Version)

	// Both attempts leave a job row.
	var jobs int64
	require.NoError(t, conn.Model(&domain.RecalcJob{}).Where("seller_tenant_id = ?", "seller-2").Count(&jobs).Error)
	require.EqualValues(t, 2, jobs)
}

func TestSubmitRecalcNextDayIncrementsVersion(t *testing.T) {
	svc, _, fake := setupTrust(t, nil)
	ctx := context.Background()

	_, err := svc.SubmitRecalc(ctx, "seller-3", "MANUAL_RECALC")
	require.NoError(t, err)

	fake.Advance(24 * time.Hour)
	_, err = svc.SubmitRecalc(ctx, "seller-3", "MANUAL_RECALC")
	require.NoError(t, err)

	score, err := svc.GetScore(ctx, "seller-3")
	require.NoError(t, err)
	require.Equal(t, 2, score.Version)
}

func TestSubmitRecalcEmptySeller(t *testing.T) {
	svc, _, _ := setupTrust(t, nil)

	_, err := svc.SubmitRecalc(context.Background(), "  ", "MANUAL_RECALC")
	require.ErrorIs(t, err, domain.ErrSellerRequired)
}

func TestSubmitRecalcAggregatesShipmentSignals(t *testing.T) {
	svc, conn, fake := setupTrust(t, nil)
	ctx := context.Background()

	now := fake.Now()
	firstAt := now.AddDate(0, 0, -60)
	promised := now.AddDate(0, 0, -30)
	onTime := promised.Add(-time.Hour)
	wayLate := promised.Add(72 * time.Hour)

	ships := []domain.MarketShipment{
		{ID: "ship-1", SellerTenantID: "seller-4", PromisedAt: &promised, DeliveredAt: &onTime, CreatedAt: firstAt},
		{ID: "ship-2", SellerTenantID: "seller-4", PromisedAt: &promised, DeliveredAt: &onTime, CreatedAt: firstAt},
		{ID: "ship-3", SellerTenantID: "seller-4", PromisedAt: &promised, DeliveredAt: &wayLate, CreatedAt: firstAt},
		{ID: "ship-4", SellerTenantID: "seller-4", PromisedAt: &promised, DeliveredAt: &wayLate, CreatedAt: firstAt},
	}
	for i := range ships {
		require.NoError(t, conn.Create(&ships[i]).Error)
	}

	_, err := svc.SubmitRecalc(ctx, "seller-4", "MANUAL_RECALC")
	require.NoError(t, err)

	// half on time: 20 late penalty; two breaches past the grace window: 10
	// penalty; 60 days of history: 2 stability bonus. 100-30+2 = 72.
	score, err := svc.GetScore(ctx, "seller-4")
	require.NoError(t, err)
	require.Equal(t, 72, score.Score)
	require.Equal(t, domain.TierB, score.Tier)
}

func TestResolvePolicyUnknownSellerIsTierC(t *testing.T) {
	svc, _, _ := setupTrust(t, nil)

	policy, err := svc.ResolvePolicy(context.Background(), "seller-unknown")
	require.NoError(t, err)
	require.Equal(t, domain.TierC, policy.Tier)
	require.Equal(t, 14, policy.HoldDays)
	require.Equal(t, 2.0, policy.EarlyReleaseFeeRate)
}

func TestResolvePolicyPerTier(t *testing.T) {
	svc, conn, fake := setupTrust(t, nil)
	ctx := context.Background()

	tests := []struct {
		seller   string
		tier     domain.Tier
		wantHold int
		wantFee  float64
	}{
		{"seller-a", domain.TierA, 7, 0.5},
		{"seller-b", domain.TierB, 11, 1.0},
		{"seller-c", domain.TierC, 14, 2.0},
		{"seller-d", domain.TierD, 21, 4.0},
	}
	for _, tt := range tests {
		require.NoError(t, conn.Create(&domain.SellerTrustScore{
			SellerTenantID: tt.seller,
			Score:          50,
			Tier:           tt.tier,
			Version:        1,
			UpdatedAt:      fake.Now(),
		}).Error)

		policy, err := svc.ResolvePolicy(ctx, tt.seller)
		require.NoError(t, err)
		require.Equal(t, tt.tier, policy.Tier)
		require.Equal(t, tt.wantHold, policy.HoldDays, "tier %s", tt.tier)
		require.Equal(t, tt.wantFee, policy.EarlyReleaseFeeRate, "tier %s", tt.tier)
	}
}

func TestResolvePolicySettingsOverrideBaseHold(t *testing.T) {
	svc, conn, fake := setupTrust(t, stubSettings{
		defaults: settingsdomain.EscrowDefaults{DefaultHoldDays: 5},
	})
	ctx := context.Background()

	require.NoError(t, conn.Create(&domain.SellerTrustScore{
		SellerTenantID: "seller-5",
		Score:          90,
		Tier:           domain.TierA,
		Version:        1,
		UpdatedAt:      fake.Now(),
	}).Error)

	// 5 base minus the tier A delta of 7 clamps at zero.
	policy, err := svc.ResolvePolicy(ctx, "seller-5")
	require.NoError(t, err)
	require.Equal(t, 0, policy.HoldDays)

	// Unknown sellers get the overridden base unchanged.
	policy, err = svc.ResolvePolicy(ctx, "seller-other")
	require.NoError(t, err)
	require.Equal(t, 5, policy.HoldDays)
}

func TestResolvePolicyEmptySeller(t *testing.T) {
	svc, _, _ := setupTrust(t, nil)

	_, err := svc.ResolvePolicy(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrSellerRequired)
}

func TestRecalcAllActiveSweepsSellersOnce(t *testing.T) {
	svc, conn, _ := setupTrust(t, nil)
	ctx := context.Background()

	for _, seller := range []string{"seller-6", "seller-7"} {
		require.NoError(t, conn.Create(&commissiondomain.MarketOrder{
			ID:             "order-" + seller,
			TenantID:       "tenant-1",
			SellerTenantID: seller,
		}).Error)
	}

	succeeded, err := svc.RecalcAllActive(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, succeeded)

	for _, seller := range []string{"seller-6", "seller-7"} {
		_, err := svc.GetScore(ctx, seller)
		require.NoError(t, err)
	}

	// Same day again: the daily guard skips both without failing the sweep.
	succeeded, err = svc.RecalcAllActive(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, succeeded)
}

func TestGetScoreNotFound(t *testing.T) {
	svc, _, _ := setupTrust(t, nil)

	_, err := svc.GetScore(context.Background(), "seller-none")
	require.ErrorIs(t, err, domain.ErrScoreNotFound)
}
