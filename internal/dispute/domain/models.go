package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CaseStatus string

const (
	CaseOpen      CaseStatus = "OPEN"
	CaseNeedsInfo CaseStatus = "NEEDS_INFO"
	CaseResolved  CaseStatus = "RESOLVED"
)

type EscrowActionState string

const (
	EscrowNone              EscrowActionState = "NONE"
	EscrowHeld              EscrowActionState = "HELD"
	EscrowPartiallyReleased EscrowActionState = "PARTIALLY_RELEASED"
	EscrowReleased          EscrowActionState = "RELEASED"
	EscrowRefunded          EscrowActionState = "REFUNDED"
)

type ActionType string

const (
	ActionHoldEscrow     ActionType = "HOLD_ESCROW"
	ActionPartialRelease ActionType = "PARTIAL_RELEASE"
	ActionFullRelease    ActionType = "FULL_RELEASE"
	ActionRefund         ActionType = "REFUND"
	ActionFlagChargeback ActionType = "FLAG_CHARGEBACK"
	ActionStatusChange   ActionType = "STATUS_CHANGE"
	ActionRequestInfo    ActionType = "REQUEST_INFO"
)

// IsMonetary reports whether the action moves or earmarks held funds.
// Monetary actions are restricted to finance and platform admins.
func (a ActionType) IsMonetary() bool {
	switch a {
	case ActionHoldEscrow, ActionPartialRelease, ActionFullRelease, ActionRefund, ActionFlagChargeback:
		return true
	}
	return false
}

func (a ActionType) Known() bool {
	switch a {
	case ActionHoldEscrow, ActionPartialRelease, ActionFullRelease, ActionRefund,
		ActionFlagChargeback, ActionStatusChange, ActionRequestInfo:
		return true
	}
	return false
}

// Case tracks held marketplace funds for a disputed order. The escrow action
// state moves independently of the ticket's conversational status and is
// mutated only through the action state machine.
type Case struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	TicketID          string            `gorm:"size:64;not null;uniqueIndex" json:"ticket_id"`
	BuyerTenantID     string            `gorm:"size:64;index" json:"buyer_tenant_id"`
	SellerTenantID    string            `gorm:"size:64;index" json:"seller_tenant_id"`
	Status            CaseStatus        `gorm:"size:16;not null" json:"status"`
	EscrowActionState EscrowActionState `gorm:"size:24;not null" json:"escrow_action_state"`
	ResolutionCode    *string           `gorm:"size:64" json:"resolution_code,omitempty"`
	ResolutionSummary string            `gorm:"size:512" json:"resolution_summary,omitempty"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty"`
	CreatedAt         time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Case) TableName() string {
	return "dispute_cases"
}

// Action is the append-only record of one state machine transition.
type Action struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	CaseID         snowflake.ID      `gorm:"not null;index" json:"case_id"`
	ActionType     ActionType        `gorm:"size:32;not null" json:"action_type"`
	ActorUserID    string            `gorm:"size:64" json:"actor_user_id"`
	ActorRole      string            `gorm:"size:64" json:"actor_role"`
	Amount         *decimal.Decimal  `gorm:"type:decimal(20,4)" json:"amount,omitempty"`
	Reason         string            `gorm:"size:512;not null" json:"reason"`
	Payload        datatypes.JSONMap `gorm:"column:payload_json" json:"payload"`
	IdempotencyKey string            `gorm:"size:256;not null;uniqueIndex" json:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (Action) TableName() string {
	return "dispute_actions"
}

const (
	TicketTypeShippingDispute = "SHIPPING_DISPUTE"

	TicketStatusOpen       = "OPEN"
	TicketStatusInProgress = "IN_PROGRESS"

	MessageSenderSystem = "SYSTEM"
)

// Ticket is a read projection of the support ticket a case hangs off.
// The ticket itself is owned by the support layer; only the status column
// is written back here.
type Ticket struct {
	ID                   string    `gorm:"primaryKey;size:64" json:"id"`
	Type                 string    `gorm:"size:32" json:"type"`
	Status               string    `gorm:"size:24" json:"status"`
	TenantID             string    `gorm:"size:64" json:"tenant_id"`
	CounterpartyTenantID string    `gorm:"size:64" json:"counterparty_tenant_id"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// TicketMessage carries conversation entries, including the structured
// system messages written by info requests.
type TicketMessage struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	TicketID   string            `gorm:"size:64;not null;index" json:"ticket_id"`
	SenderRole string            `gorm:"size:24;not null" json:"sender_role"`
	Body       string            `gorm:"size:2048" json:"body"`
	Payload    datatypes.JSONMap `gorm:"column:payload_json" json:"payload"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (TicketMessage) TableName() string {
	return "ticket_messages"
}
