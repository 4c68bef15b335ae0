package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/principal"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindCaseByTicket(ctx context.Context, db *gorm.DB, ticketID string) (*Case, error)
	InsertCase(ctx context.Context, db *gorm.DB, c *Case) error
	UpdateCase(ctx context.Context, db *gorm.DB, c *Case) error
	FindTicket(ctx context.Context, db *gorm.DB, ticketID string) (*Ticket, error)
	UpdateTicketStatus(ctx context.Context, db *gorm.DB, ticketID, status string) error
	InsertAction(ctx context.Context, db *gorm.DB, action *Action) error
	FindActionByKey(ctx context.Context, db *gorm.DB, key string) (*Action, error)
	InsertMessage(ctx context.Context, db *gorm.DB, msg *TicketMessage) error
}

// ActionRequest is one state machine invocation. The idempotency key comes
// from the caller, not the core.
type ActionRequest struct {
	ActionType        ActionType
	Amount            *decimal.Decimal
	Reason            string
	ResolutionCode    string
	ResolutionSummary string
	IdempotencyKey    string
}

type ActionResult struct {
	ActionID   snowflake.ID      `json:"action_id"`
	NextState  EscrowActionState `json:"next_state"`
	NextStatus CaseStatus        `json:"next_status"`
}

type InfoRequest struct {
	FieldsRequested []string
	Note            string
	IdempotencyKey  string
}

type Service interface {
	PerformAction(ctx context.Context, pr principal.Principal, ticketID string, req ActionRequest) (*ActionResult, error)
	RequestInfo(ctx context.Context, pr principal.Principal, ticketID string, req InfoRequest) (*Case, error)
	GetCase(ctx context.Context, ticketID string) (*Case, error)
}

var (
	ErrCaseNotFound       = errors.New("dispute_case_not_found")
	ErrTicketNotFound     = errors.New("ticket_not_found")
	ErrNotDisputeTicket   = errors.New("ticket_not_shipping_dispute")
	ErrUnauthorizedAction = errors.New("unauthorized_dispute_action")
	ErrKeyRequired        = errors.New("idempotency_key_required")
	ErrReasonRequired     = errors.New("dispute_reason_required")
	ErrUnknownAction      = errors.New("unknown_dispute_action")

	// ErrEscrowHoldConflict: HOLD_ESCROW on an escrow already released or refunded.
	ErrEscrowHoldConflict = errors.New("escrow_hold_conflict")
	// ErrEscrowAlreadyProcessed: FULL_RELEASE on an escrow already released or refunded.
	ErrEscrowAlreadyProcessed = errors.New("escrow_already_processed")
	// ErrAmountRequired: PARTIAL_RELEASE without a positive amount.
	ErrAmountRequired = errors.New("partial_release_amount_required")
)
