package service

import (
	"context"

	"go.uber.org/zap"
)

// NoopLedgerFinalizer stands in for the real ledger integration, which lives
// outside the settlement core.
type NoopLedgerFinalizer struct {
	Log *zap.Logger
}

func (f NoopLedgerFinalizer) FinalizePayout(ctx context.Context, providerPayoutID string) error {
	if f.Log != nil {
		f.Log.Info("ledger finalization requested", zap.String("provider_payout_id", providerPayoutID))
	}
	return nil
}
