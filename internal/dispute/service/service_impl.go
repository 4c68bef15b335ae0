package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/pazarlabs/pazar/internal/audit/domain"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/dispute/domain"
	idempotencydomain "github.com/pazarlabs/pazar/internal/idempotency/domain"
	"github.com/pazarlabs/pazar/internal/principal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	actionScope      = "DISPUTE_ACTION"
	requestInfoScope = "DISPUTE_REQUEST_INFO"
	minReasonLength  = 5
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Runner idempotencydomain.Runner
	Repo   domain.Repository
	Audit  auditdomain.Service
}

type Service struct {
	platformTenantID string
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	runner           idempotencydomain.Runner
	repo             domain.Repository
	audit            auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		platformTenantID: p.Config.PlatformTenantID,
		db:               p.DB,
		log:              p.Log.Named("dispute"),
		genID:            p.GenID,
		clock:            p.Clock,
		runner:           p.Runner,
		repo:             p.Repo,
		audit:            p.Audit,
	}
}

func (s *Service) PerformAction(ctx context.Context, pr principal.Principal, ticketID string, req domain.ActionRequest) (*domain.ActionResult, error) {
	if !req.ActionType.Known() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAction, req.ActionType)
	}
	if req.ActionType.IsMonetary() {
		if !pr.CanMoveMoney() {
			return nil, domain.ErrUnauthorizedAction
		}
	} else if !pr.CanAdministerDisputes() {
		return nil, domain.ErrUnauthorizedAction
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, domain.ErrKeyRequired
	}
	if len(strings.TrimSpace(req.Reason)) < minReasonLength {
		return nil, domain.ErrReasonRequired
	}
	if req.ActionType == domain.ActionPartialRelease && (req.Amount == nil || !req.Amount.IsPositive()) {
		return nil, domain.ErrAmountRequired
	}

	var result *domain.ActionResult

	op := idempotencydomain.Op{
		Key:      req.IdempotencyKey,
		Scope:    actionScope,
		TenantID: s.platformTenantID,
	}

	err := s.runner.RunOnce(ctx, op, func(tx *gorm.DB) error {
		dCase, err := s.ensureCase(ctx, tx, ticketID)
		if err != nil {
			return err
		}

		if err := checkTransition(req.ActionType, dCase.EscrowActionState); err != nil {
			return err
		}

		nextState := dCase.EscrowActionState
		nextStatus := dCase.Status
		switch req.ActionType {
		case domain.ActionHoldEscrow:
			nextState = domain.EscrowHeld
		case domain.ActionFullRelease:
			nextState = domain.EscrowReleased
		case domain.ActionPartialRelease:
			nextState = domain.EscrowPartiallyReleased
		case domain.ActionRefund:
			nextState = domain.EscrowRefunded
		}

		resolving := req.ActionType == domain.ActionFullRelease ||
			req.ActionType == domain.ActionPartialRelease ||
			req.ActionType == domain.ActionRefund
		if resolving {
			nextStatus = domain.CaseResolved
			now := s.clock.Now()
			dCase.ResolvedAt = &now
			if code := strings.TrimSpace(req.ResolutionCode); code != "" {
				dCase.ResolutionCode = &code
			}
			if summary := strings.TrimSpace(req.ResolutionSummary); summary != "" {
				dCase.ResolutionSummary = summary
			}
		}

		action := &domain.Action{
			ID:             s.genID.Generate(),
			CaseID:         dCase.ID,
			ActionType:     req.ActionType,
			ActorUserID:    pr.UserID,
			ActorRole:      pr.Role,
			Amount:         req.Amount,
			Reason:         strings.TrimSpace(req.Reason),
			Payload:        actionPayload(ticketID, req),
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      s.clock.Now(),
		}
		if err := s.repo.InsertAction(ctx, tx, action); err != nil {
			return err
		}

		dCase.EscrowActionState = nextState
		dCase.Status = nextStatus
		dCase.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateCase(ctx, tx, dCase); err != nil {
			return err
		}

		// Audit row commits with the transition or not at all.
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			TenantID:   s.platformTenantID,
			Action:     "DISPUTE_ACTION_" + string(req.ActionType),
			Actor:      pr.UserID,
			EntityType: "DisputeCase",
			EntityID:   dCase.ID.String(),
			Payload:    actionPayload(ticketID, req),
		}); err != nil {
			return err
		}

		result = &domain.ActionResult{
			ActionID:   action.ID,
			NextState:  nextState,
			NextStatus: nextStatus,
		}
		return nil
	})

	if errors.Is(err, idempotencydomain.ErrAlreadySucceeded) {
		return s.replayAction(ctx, req.IdempotencyKey, ticketID)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("dispute action applied",
		zap.String("ticket_id", ticketID),
		zap.String("action_type", string(req.ActionType)),
		zap.String("next_state", string(result.NextState)),
	)
	return result, nil
}

// replayAction rebuilds the result of a previously committed action so a
// retried caller gets the same answer without new side effects.
func (s *Service) replayAction(ctx context.Context, key, ticketID string) (*domain.ActionResult, error) {
	action, err := s.repo.FindActionByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, domain.ErrCaseNotFound
	}
	dCase, err := s.repo.FindCaseByTicket(ctx, s.db, ticketID)
	if err != nil {
		return nil, err
	}
	if dCase == nil {
		return nil, domain.ErrCaseNotFound
	}
	return &domain.ActionResult{
		ActionID:   action.ID,
		NextState:  dCase.EscrowActionState,
		NextStatus: dCase.Status,
	}, nil
}

func (s *Service) RequestInfo(ctx context.Context, pr principal.Principal, ticketID string, req domain.InfoRequest) (*domain.Case, error) {
	if !pr.CanAdministerDisputes() {
		return nil, domain.ErrUnauthorizedAction
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, domain.ErrKeyRequired
	}

	var updated *domain.Case

	op := idempotencydomain.Op{
		Key:      req.IdempotencyKey,
		Scope:    requestInfoScope,
		TenantID: s.platformTenantID,
	}

	err := s.runner.RunOnce(ctx, op, func(tx *gorm.DB) error {
		dCase, err := s.ensureCase(ctx, tx, ticketID)
		if err != nil {
			return err
		}

		body := "Additional information requested"
		if len(req.FieldsRequested) > 0 {
			body = "Additional information requested: " + strings.Join(req.FieldsRequested, ", ")
		}
		msg := &domain.TicketMessage{
			ID:         s.genID.Generate(),
			TicketID:   ticketID,
			SenderRole: domain.MessageSenderSystem,
			Body:       body,
			Payload: datatypes.JSONMap{
				"kind":             "INFO_REQUEST",
				"fields_requested": req.FieldsRequested,
				"note":             req.Note,
				"requested_by":     pr.UserID,
			},
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.InsertMessage(ctx, tx, msg); err != nil {
			return err
		}

		dCase.Status = domain.CaseNeedsInfo
		dCase.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateCase(ctx, tx, dCase); err != nil {
			return err
		}
		if err := s.repo.UpdateTicketStatus(ctx, tx, ticketID, domain.TicketStatusInProgress); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			TenantID:   s.platformTenantID,
			Action:     "DISPUTE_REQUEST_INFO",
			Actor:      pr.UserID,
			EntityType: "DisputeCase",
			EntityID:   dCase.ID.String(),
			Payload: map[string]any{
				"ticket_id":        ticketID,
				"fields_requested": req.FieldsRequested,
			},
		}); err != nil {
			return err
		}

		updated = dCase
		return nil
	})

	if errors.Is(err, idempotencydomain.ErrAlreadySucceeded) {
		return s.GetCase(ctx, ticketID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) GetCase(ctx context.Context, ticketID string) (*domain.Case, error) {
	dCase, err := s.repo.FindCaseByTicket(ctx, s.db, ticketID)
	if err != nil {
		return nil, err
	}
	if dCase == nil {
		return nil, domain.ErrCaseNotFound
	}
	return dCase, nil
}

// ensureCase loads the case for a ticket, creating it lazily when the ticket
// is a shipping dispute that has not been escalated yet.
func (s *Service) ensureCase(ctx context.Context, tx *gorm.DB, ticketID string) (*domain.Case, error) {
	dCase, err := s.repo.FindCaseByTicket(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}
	if dCase != nil {
		return dCase, nil
	}

	ticket, err := s.repo.FindTicket(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: ticket %s", domain.ErrTicketNotFound, ticketID)
	}
	if ticket.Type != domain.TicketTypeShippingDispute {
		return nil, fmt.Errorf("%w: ticket %s", domain.ErrNotDisputeTicket, ticketID)
	}

	now := s.clock.Now()
	dCase = &domain.Case{
		ID:                s.genID.Generate(),
		TicketID:          ticketID,
		BuyerTenantID:     ticket.TenantID,
		SellerTenantID:    ticket.CounterpartyTenantID,
		Status:            domain.CaseOpen,
		EscrowActionState: domain.EscrowNone,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.InsertCase(ctx, tx, dCase); err != nil {
		return nil, err
	}
	return dCase, nil
}

// checkTransition enforces the escrow state machine. RELEASED and REFUNDED
// are terminal for money movement.
func checkTransition(action domain.ActionType, state domain.EscrowActionState) error {
	switch action {
	case domain.ActionHoldEscrow:
		if state != domain.EscrowNone && state != domain.EscrowHeld {
			return fmt.Errorf("%w: cannot hold escrow in state %s", domain.ErrEscrowHoldConflict, state)
		}
	case domain.ActionFullRelease:
		if state == domain.EscrowReleased || state == domain.EscrowRefunded {
			return fmt.Errorf("%w: escrow already in state %s", domain.ErrEscrowAlreadyProcessed, state)
		}
	}
	return nil
}

func actionPayload(ticketID string, req domain.ActionRequest) datatypes.JSONMap {
	payload := datatypes.JSONMap{
		"ticket_id":   ticketID,
		"action_type": string(req.ActionType),
		"reason":      strings.TrimSpace(req.Reason),
	}
	if req.Amount != nil {
		payload["amount"] = req.Amount.String()
	}
	if req.ResolutionCode != "" {
		payload["resolution_code"] = req.ResolutionCode
	}
	return payload
}
