package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/clock"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	"github.com/pazarlabs/pazar/internal/payoutops/domain"
	"github.com/pazarlabs/pazar/internal/principal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CommandsParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	PayoutRepo payoutdomain.Repository
	Finalizer  domain.LedgerFinalizer
}

type CommandService struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	payoutRepo payoutdomain.Repository
	finalizer  domain.LedgerFinalizer
}

func NewCommands(p CommandsParams) domain.Commands {
	return &CommandService{
		db:         p.DB,
		log:        p.Log.Named("payoutops"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		payoutRepo: p.PayoutRepo,
		finalizer:  p.Finalizer,
	}
}

// RerunOutbox resets the outbox entry of a payout back to PENDING with a
// fresh retry budget, regardless of whether it is FAILED or wedged mid-send.
func (s *CommandService) RerunOutbox(ctx context.Context, pr principal.Principal, providerPayoutID string) (*domain.CommandResult, error) {
	if !pr.CanMoveMoney() {
		return nil, domain.ErrUnauthorizedOps
	}

	var result *domain.CommandResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.payoutRepo.FindPayoutByProviderID(ctx, tx, providerPayoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return fmt.Errorf("%w: %s", payoutdomain.ErrPayoutNotFound, providerPayoutID)
		}
		outbox, err := s.payoutRepo.FindOutboxByKey(ctx, tx, payout.IdempotencyKey)
		if err != nil {
			return err
		}
		if outbox == nil {
			return fmt.Errorf("%w: key %s", payoutdomain.ErrOutboxNotFound, payout.IdempotencyKey)
		}

		previous := outbox.Status
		now := s.clock.Now()
		outbox.Status = payoutdomain.OutboxPending
		outbox.AttemptCount = 0
		outbox.NextRetryAt = &now
		outbox.UpdatedAt = now
		if err := s.payoutRepo.UpdateOutbox(ctx, tx, outbox); err != nil {
			return err
		}

		if err := s.writeLog(ctx, tx, domain.ActionOutboxRerun, "PayoutOutbox", outbox.ID.String(), domain.SeverityWarning, datatypes.JSONMap{
			"admin_user_id":      pr.UserID,
			"provider_payout_id": providerPayoutID,
			"previous_status":    string(previous),
		}); err != nil {
			return err
		}

		result = &domain.CommandResult{
			ProviderPayoutID: providerPayoutID,
			PreviousStatus:   string(previous),
			Status:           string(payoutdomain.OutboxPending),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForceReconcile parks a payout for manual reconciliation. Already succeeded
// payouts are left untouched.
func (s *CommandService) ForceReconcile(ctx context.Context, pr principal.Principal, providerPayoutID string) (*domain.CommandResult, error) {
	if !pr.CanMoveMoney() {
		return nil, domain.ErrUnauthorizedOps
	}

	var result *domain.CommandResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.payoutRepo.FindPayoutByProviderID(ctx, tx, providerPayoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return fmt.Errorf("%w: %s", payoutdomain.ErrPayoutNotFound, providerPayoutID)
		}

		previous := payout.Status
		if previous == payoutdomain.PayoutSucceeded {
			result = &domain.CommandResult{
				ProviderPayoutID: providerPayoutID,
				PreviousStatus:   string(previous),
				Status:           string(previous),
			}
			return nil
		}

		now := s.clock.Now()
		if err := s.payoutRepo.UpdatePayoutStatus(ctx, tx, payout.ID, payoutdomain.PayoutReconcileRequired, now); err != nil {
			return err
		}

		if err := s.writeLog(ctx, tx, domain.ActionForceReconcile, "ProviderPayout", payout.ID.String(), domain.SeverityWarning, datatypes.JSONMap{
			"admin_user_id":      pr.UserID,
			"provider_payout_id": providerPayoutID,
			"previous_status":    string(previous),
		}); err != nil {
			return err
		}

		result = &domain.CommandResult{
			ProviderPayoutID: providerPayoutID,
			PreviousStatus:   string(previous),
			Status:           string(payoutdomain.PayoutReconcileRequired),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForceFinalizeSucceeded pushes a SUCCEEDED payout through ledger
// finalization, bracketing the call with START and END log entries so an
// interrupted run is visible.
func (s *CommandService) ForceFinalizeSucceeded(ctx context.Context, pr principal.Principal, providerPayoutID string) (*domain.CommandResult, error) {
	if !pr.CanMoveMoney() {
		return nil, domain.ErrUnauthorizedOps
	}

	payout, err := s.payoutRepo.FindPayoutByProviderID(ctx, s.db, providerPayoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, fmt.Errorf("%w: %s", payoutdomain.ErrPayoutNotFound, providerPayoutID)
	}
	if payout.Status != payoutdomain.PayoutSucceeded {
		return nil, fmt.Errorf("%w: status %s", domain.ErrNotSucceeded, payout.Status)
	}

	if err := s.writeLog(ctx, s.db, domain.ActionForceFinalizeStart, "ProviderPayout", payout.ID.String(), domain.SeverityInfo, datatypes.JSONMap{
		"admin_user_id":      pr.UserID,
		"provider_payout_id": providerPayoutID,
	}); err != nil {
		return nil, err
	}

	finalizeErr := s.finalizer.FinalizePayout(ctx, providerPayoutID)

	endPayload := datatypes.JSONMap{
		"admin_user_id":      pr.UserID,
		"provider_payout_id": providerPayoutID,
	}
	if finalizeErr != nil {
		endPayload["error"] = finalizeErr.Error()
	}
	if err := s.writeLog(ctx, s.db, domain.ActionForceFinalizeEnd, "ProviderPayout", payout.ID.String(), domain.SeverityInfo, endPayload); err != nil {
		return nil, err
	}
	if finalizeErr != nil {
		return nil, finalizeErr
	}

	return &domain.CommandResult{
		ProviderPayoutID: providerPayoutID,
		PreviousStatus:   string(payoutdomain.PayoutSucceeded),
		Status:           string(payoutdomain.PayoutSucceeded),
	}, nil
}

// Quarantine stops a payout dead: QUARANTINED status plus, in the same
// transaction, any not-yet-SENT outbox entry flipped to FAILED with its retry
// schedule cleared so no further send attempt can fire. Safe to call in any
// current status.
func (s *CommandService) Quarantine(ctx context.Context, pr principal.Principal, providerPayoutID, reason string) (*domain.CommandResult, error) {
	if !pr.CanMoveMoney() {
		return nil, domain.ErrUnauthorizedOps
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrReasonRequired
	}

	var result *domain.CommandResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.payoutRepo.FindPayoutByProviderID(ctx, tx, providerPayoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return fmt.Errorf("%w: %s", payoutdomain.ErrPayoutNotFound, providerPayoutID)
		}

		previous := payout.Status
		now := s.clock.Now()
		if err := s.payoutRepo.UpdatePayoutStatus(ctx, tx, payout.ID, payoutdomain.PayoutQuarantined, now); err != nil {
			return err
		}

		outbox, err := s.payoutRepo.FindOutboxByKey(ctx, tx, payout.IdempotencyKey)
		if err != nil {
			return err
		}
		if outbox != nil && outbox.Status != payoutdomain.OutboxSent {
			outbox.Status = payoutdomain.OutboxFailed
			// No retry schedule: the dispatcher redelivers FAILED entries
			// with a due next_retry_at, and a quarantined payout must not
			// come back on its own.
			outbox.NextRetryAt = nil
			outbox.UpdatedAt = now
			if err := s.payoutRepo.UpdateOutbox(ctx, tx, outbox); err != nil {
				return err
			}
		}

		if err := s.writeLog(ctx, tx, domain.ActionQuarantined, "ProviderPayout", payout.ID.String(), domain.SeverityCritical, datatypes.JSONMap{
			"admin_user_id":      pr.UserID,
			"provider_payout_id": providerPayoutID,
			"previous_status":    string(previous),
			"reason":             strings.TrimSpace(reason),
		}); err != nil {
			return err
		}

		result = &domain.CommandResult{
			ProviderPayoutID: providerPayoutID,
			PreviousStatus:   string(previous),
			Status:           string(payoutdomain.PayoutQuarantined),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn("payout quarantined",
		zap.String("provider_payout_id", providerPayoutID),
		zap.String("actor", pr.UserID),
	)
	return result, nil
}

func (s *CommandService) AckAlert(ctx context.Context, pr principal.Principal, alertID snowflake.ID) (*domain.FinanceIntegrityAlert, error) {
	if !pr.CanAdministerDisputes() {
		return nil, domain.ErrUnauthorizedOps
	}
	alert, err := s.repo.FindAlert(ctx, s.db, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, domain.ErrAlertNotFound
	}
	if alert.AckedAt == nil {
		now := s.clock.Now()
		alert.AckedAt = &now
		alert.AckedBy = pr.UserID
		if err := s.repo.UpdateAlert(ctx, s.db, alert); err != nil {
			return nil, err
		}
	}
	return alert, nil
}

func (s *CommandService) ResolveAlert(ctx context.Context, pr principal.Principal, alertID snowflake.ID) (*domain.FinanceIntegrityAlert, error) {
	if !pr.CanAdministerDisputes() {
		return nil, domain.ErrUnauthorizedOps
	}
	alert, err := s.repo.FindAlert(ctx, s.db, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, domain.ErrAlertNotFound
	}
	if alert.ResolvedAt != nil {
		return nil, domain.ErrAlreadyResolved
	}
	now := s.clock.Now()
	alert.ResolvedAt = &now
	alert.ResolvedBy = pr.UserID
	if alert.AckedAt == nil {
		alert.AckedAt = &now
		alert.AckedBy = pr.UserID
	}
	if err := s.repo.UpdateAlert(ctx, s.db, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *CommandService) RaiseAlert(ctx context.Context, alertType string, severity domain.Severity, referenceID, message string) (*domain.FinanceIntegrityAlert, error) {
	alert := &domain.FinanceIntegrityAlert{
		ID:          s.genID.Generate(),
		Type:        alertType,
		Severity:    severity,
		ReferenceID: referenceID,
		Message:     message,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.InsertAlert(ctx, s.db, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// LogMarker records a sweep run so the health aggregator can report when each
// background job last fired.
func (s *CommandService) LogMarker(ctx context.Context, marker string, payload map[string]any) error {
	p := datatypes.JSONMap{}
	for k, v := range payload {
		p[k] = v
	}
	return s.writeLog(ctx, s.db, marker, "Sweep", "", domain.SeverityInfo, p)
}

func (s *CommandService) writeLog(ctx context.Context, db *gorm.DB, action, entityType, entityID string, severity domain.Severity, payload datatypes.JSONMap) error {
	return s.repo.InsertOpsLog(ctx, db, &domain.FinanceOpsLog{
		ID:         s.genID.Generate(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Severity:   severity,
		Payload:    payload,
		CreatedAt:  s.clock.Now(),
	})
}
