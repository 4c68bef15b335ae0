package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/commission/domain"
	"github.com/pazarlabs/pazar/internal/commission/repository"
	"github.com/pazarlabs/pazar/internal/config"
	idempotencydomain "github.com/pazarlabs/pazar/internal/idempotency/domain"
	idempotencyrepo "github.com/pazarlabs/pazar/internal/idempotency/repository"
	idempotencyservice "github.com/pazarlabs/pazar/internal/idempotency/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&idempotencydomain.Record{},
		&domain.Plan{},
		&domain.Rule{},
		&domain.Snapshot{},
		&domain.MarketOrder{},
		&domain.MarketOrderLine{},
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
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Runner: runner,
		Repo:   repository.Provide(),
	})
	return svc, conn, node
}

func seedOrder(t *testing.T, conn *gorm.DB, node *snowflake.Node, orderID, sellerID string) {
	t.Helper()

	order := domain.MarketOrder{
		ID:             orderID,
		TenantID:       "tenant-1",
		SellerTenantID: sellerID,
		BuyerTenantID:  "buyer-1",
		Currency:       "USD",
	}
	require.NoError(t, conn.Create(&order).Error)
	require.NoError(t, conn.Create(&domain.MarketOrderLine{
		ID:        node.Generate(),
		OrderID:   orderID,
		ProductID: "prod-1",
		UnitPrice: dec("50.00"),
		Quantity:  2,
	}).Error)
}

func seedDefaultPlan(t *testing.T, conn *gorm.DB, node *snowflake.Node, rules ...domain.Rule) domain.Plan {
	t.Helper()

	plan := domain.Plan{
		ID:           node.Generate(),
		Name:         "Platform default",
		IsDefault:    true,
		Precision:    2,
		RoundingMode: domain.RoundHalfUp,
	}
	require.NoError(t, conn.Create(&plan).Error)
	for i := range rules {
		rules[i].ID = node.Generate()
		rules[i].PlanID = plan.ID
		require.NoError(t, conn.Create(&rules[i]).Error)
	}
	return plan
}

func TestCreateSnapshotComputesTotal(t *testing.T) {
	svc, conn, node := setupService(t)
	ctx := context.Background()

	seedOrder(t, conn, node, "order-100", "seller-1")
	seedDefaultPlan(t, conn, node, domain.Rule{
		Scope:          domain.RuleScopeGlobal,
		MatchType:      domain.MatchDefault,
		RatePercentage: dec("5"),
		FixedFee:       dec("0"),
	})

	snapshot, err := svc.CreateSnapshot(ctx, "tenant-1", "order-100")
	require.NoError(t, err)
	require.Equal(t, "order-100", snapshot.OrderID)
	require.True(t, snapshot.TotalCommission.Equal(dec("5.00")), "got %s", snapshot.TotalCommission)
	require.True(t, snapshot.AppliedRate.Equal(dec("5")))
}

func TestCreateSnapshotIsIdempotent(t *testing.T) {
	svc, conn, node := setupService(t)
	ctx := context.Background()

	seedOrder(t, conn, node, "order-101", "seller-2")
	seedDefaultPlan(t, conn, node, domain.Rule{
		Scope:          domain.RuleScopeGlobal,
		MatchType:      domain.MatchDefault,
		RatePercentage: dec("5"),
		FixedFee:       dec("0"),
	})

	first, err := svc.CreateSnapshot(ctx, "tenant-1", "order-101")
	require.NoError(t, err)

	second, err := svc.CreateSnapshot(ctx, "tenant-1", "order-101")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&domain.Snapshot{}).Where("order_id = ?", "order-101").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateSnapshotMissingOrder(t *testing.T) {
	svc, conn, node := setupService(t)

	seedDefaultPlan(t, conn, node, domain.Rule{
		Scope:          domain.RuleScopeGlobal,
		MatchType:      domain.MatchDefault,
		RatePercentage: dec("5"),
	})

	_, err := svc.CreateSnapshot(context.Background(), "tenant-1", "order-missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCreateSnapshotNoPlan(t *testing.T) {
	svc, conn, node := setupService(t)

	seedOrder(t, conn, node, "order-102", "seller-3")

	_, err := svc.CreateSnapshot(context.Background(), "tenant-1", "order-102")
	require.ErrorIs(t, err, domain.ErrNoActivePlan)
}

func TestCreateSnapshotUnresolvableLine(t *testing.T) {
	svc, conn, node := setupService(t)

	seedOrder(t, conn, node, "order-103", "seller-4")
	electronics := "cat-electronics"
	seedDefaultPlan(t, conn, node, domain.Rule{
		Scope:          domain.RuleScopeGlobal,
		MatchType:      domain.MatchCategory,
		CategoryID:     &electronics,
		RatePercentage: dec("5"),
	})

	_, err := svc.CreateSnapshot(context.Background(), "tenant-1", "order-103")
	require.ErrorIs(t, err, domain.ErrNoMatchingRule)

	var count int64
	require.NoError(t, conn.Model(&domain.Snapshot{}).Where("order_id = ?", "order-103").Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestCreateSnapshotSellerPlanBeatsPlatformDefault(t *testing.T) {
	svc, conn, node := setupService(t)
	ctx := context.Background()

	seedOrder(t, conn, node, "order-104", "seller-5")
	seedDefaultPlan(t, conn, node, domain.Rule{
		Scope:          domain.RuleScopeGlobal,
		MatchType:      domain.MatchDefault,
		RatePercentage: dec("10"),
	})

	sellerID := "seller-5"
	sellerPlan := domain.Plan{
		ID:             node.Generate(),
		SellerTenantID: &sellerID,
		Name:           "Negotiated",
		IsDefault:      true,
		Precision:      2,
		RoundingMode:   domain.RoundHalfUp,
	}
	require.NoError(t, conn.Create(&sellerPlan).Error)
	require.NoError(t, conn.Create(&domain.Rule{
		ID:             node.Generate(),
		PlanID:         sellerPlan.ID,
		Scope:          domain.RuleScopeCompanyOverride,
		MatchType:      domain.MatchDefault,
		RatePercentage: dec("2"),
	}).Error)

	snapshot, err := svc.CreateSnapshot(ctx, "tenant-1", "order-104")
	require.NoError(t, err)
	require.Equal(t, sellerPlan.ID, snapshot.PlanID)
	require.True(t, snapshot.TotalCommission.Equal(dec("2.00")), "got %s", snapshot.TotalCommission)
}

func TestCreateSnapshotSellerPlanSurvivesExtraGlobalDefaults(t *testing.T) {
	svc, conn, node := setupService(t)
	ctx := context.Background()

	seedOrder(t, conn, node, "order-105", "seller-6")

	// Two platform-wide defaults, as happens mid plan rollover. Neither may
	// crowd the seller-scoped plan out of the lookup.
	for i := 0; i < 2; i++ {
		seedDefaultPlan(t, conn, node, domain.Rule{
			Scope:          domain.RuleScopeGlobal,
			MatchType:      domain.MatchDefault,
			RatePercentage: dec("10"),
		})
	}

	sellerID := "seller-6"
	sellerPlan := domain.Plan{
		ID:             node.Generate(),
		SellerTenantID: &sellerID,
		Name:           "Negotiated",
		IsDefault:      true,
		Precision:      2,
		RoundingMode:   domain.RoundHalfUp,
	}
	require.NoError(t, conn.Create(&sellerPlan).Error)
	require.NoError(t, conn.Create(&domain.Rule{
		ID:             node.Generate(),
		PlanID:         sellerPlan.ID,
		Scope:          domain.RuleScopeCompanyOverride,
		MatchType:      domain.MatchDefault,
		RatePercentage: dec("2"),
	}).Error)

	snapshot, err := svc.CreateSnapshot(ctx, "tenant-1", "order-105")
	require.NoError(t, err)
	require.Equal(t, sellerPlan.ID, snapshot.PlanID)
	require.True(t, snapshot.TotalCommission.Equal(dec("2.00")), "got %s", snapshot.TotalCommission)
}

func TestGetSnapshotNotFound(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.GetSnapshot(context.Background(), "order-nope")
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}
