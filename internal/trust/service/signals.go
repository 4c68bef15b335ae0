package service

import (
	"context"
	"time"

	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	"github.com/pazarlabs/pazar/internal/trust/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// aggregateSignals reads the seller's activity over the rolling window and
// normalizes it into scoring inputs. A seller with no activity gets perfect
// signals; penalties only accrue from observed behaviour.
func (s *Service) aggregateSignals(ctx context.Context, tx *gorm.DB, sellerTenantID string, from, to time.Time) (domain.Signals, error) {
	signals := domain.Signals{OnTimeRatio: 1}

	shipments, err := s.repo.ShipmentStats(ctx, tx, sellerTenantID, from, to)
	if err != nil {
		return signals, err
	}
	if shipments.Total > 0 {
		signals.OnTimeRatio = float64(shipments.OnTime) / float64(shipments.Total)
	}
	signals.SLABreachCount = float64(shipments.SLABreach)

	orders, err := s.repo.CountOrders(ctx, tx, sellerTenantID, from, to)
	if err != nil {
		return signals, err
	}
	disputes, err := s.repo.CountDisputes(ctx, tx, sellerTenantID, from, to)
	if err != nil {
		return signals, err
	}
	if orders > 0 {
		signals.DisputeRate = float64(disputes) / float64(orders)
	}

	signals.ChargebackRate, err = s.chargeback.ChargebackRate(ctx, tx, sellerTenantID, from, to)
	if err != nil {
		return signals, err
	}
	signals.ReceivableRate, err = s.receivable.ReceivableRate(ctx, tx, sellerTenantID, from, to)
	if err != nil {
		return signals, err
	}

	overrides, err := s.repo.CountManualOverrides(ctx, tx, sellerTenantID, from, to)
	if err != nil {
		return signals, err
	}
	signals.OverrideCount = float64(overrides)

	if shipments.FirstAt != nil {
		monthsActive := to.Sub(*shipments.FirstAt).Hours() / (24 * 30)
		if monthsActive > 10 {
			monthsActive = 10
		}
		if monthsActive > 0 {
			signals.StabilityScore = monthsActive
		}
	}
	signals.VolumeIndex = float64(orders)

	return signals, nil
}

// EarningsApproximation derives the chargeback rate from payout rows,
// using the commission amount as a stand-in for the chargeback amount. This
// mapping is provisional until a dedicated ledger entry type exists; swap the
// strategy rather than editing it.
type EarningsApproximation struct{}

func (EarningsApproximation) Name() string {
	return "earnings_approximation"
}

func (EarningsApproximation) ChargebackRate(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (float64, error) {
	var payouts []payoutdomain.ProviderPayout
	err := db.WithContext(ctx).
		Where("seller_tenant_id = ? AND created_at >= ? AND created_at < ?", sellerTenantID, from, to).
		Find(&payouts).Error
	if err != nil {
		return 0, err
	}

	gross := decimal.Zero
	disputed := decimal.Zero
	for _, payout := range payouts {
		gross = gross.Add(payout.GrossAmount)
		switch payout.Status {
		case payoutdomain.PayoutFailed, payoutdomain.PayoutQuarantined:
			disputed = disputed.Add(payout.CommissionAmount)
		}
	}
	if gross.IsZero() {
		return 0, nil
	}
	rate, _ := disputed.Div(gross).Float64()
	return clampRate(rate), nil
}

var _ domain.ChargebackRateStrategy = EarningsApproximation{}

// PayoutReceivableRate computes the share of net payout value still sitting
// in FAILED status over the window.
type PayoutReceivableRate struct{}

func (PayoutReceivableRate) ReceivableRate(ctx context.Context, db *gorm.DB, sellerTenantID string, from, to time.Time) (float64, error) {
	var payouts []payoutdomain.ProviderPayout
	err := db.WithContext(ctx).
		Where("seller_tenant_id = ? AND created_at >= ? AND created_at < ?", sellerTenantID, from, to).
		Find(&payouts).Error
	if err != nil {
		return 0, err
	}

	total := decimal.Zero
	outstanding := decimal.Zero
	for _, payout := range payouts {
		total = total.Add(payout.NetAmount)
		if payout.Status == payoutdomain.PayoutFailed {
			outstanding = outstanding.Add(payout.NetAmount)
		}
	}
	if total.IsZero() {
		return 0, nil
	}
	rate, _ := outstanding.Div(total).Float64()
	return clampRate(rate), nil
}

var _ domain.ReceivableRateStrategy = PayoutReceivableRate{}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
