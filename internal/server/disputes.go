package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	disputedomain "github.com/pazarlabs/pazar/internal/dispute/domain"
	"github.com/shopspring/decimal"
)

type disputeActionRequest struct {
	Action            string `json:"action"`
	Amount            string `json:"amount"`
	Reason            string `json:"reason"`
	ResolutionCode    string `json:"resolution_code"`
	ResolutionSummary string `json:"resolution_summary"`
	IdempotencyKey    string `json:"idempotency_key"`
}

func (s *Server) PerformDisputeAction(c *gin.Context) {
	ticketID := strings.TrimSpace(c.Param("ticketId"))
	if ticketID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var body disputeActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" {
		key = strings.TrimSpace(body.IdempotencyKey)
	}

	var amount *decimal.Decimal
	if raw := strings.TrimSpace(body.Amount); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		amount = &parsed
	}

	result, err := s.disputeSvc.PerformAction(c.Request.Context(), currentPrincipal(c), ticketID, disputedomain.ActionRequest{
		ActionType:        disputedomain.ActionType(strings.TrimSpace(body.Action)),
		Amount:            amount,
		Reason:            body.Reason,
		ResolutionCode:    body.ResolutionCode,
		ResolutionSummary: body.ResolutionSummary,
		IdempotencyKey:    key,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.metrics != nil {
		s.metrics.IncDisputeAction(body.Action)
	}
	c.JSON(http.StatusOK, result)
}

type disputeInfoRequest struct {
	FieldsRequested []string `json:"fields_requested"`
	Note            string   `json:"note"`
	IdempotencyKey  string   `json:"idempotency_key"`
}

func (s *Server) RequestDisputeInfo(c *gin.Context) {
	ticketID := strings.TrimSpace(c.Param("ticketId"))
	if ticketID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var body disputeInfoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" {
		key = strings.TrimSpace(body.IdempotencyKey)
	}

	caseRow, err := s.disputeSvc.RequestInfo(c.Request.Context(), currentPrincipal(c), ticketID, disputedomain.InfoRequest{
		FieldsRequested: body.FieldsRequested,
		Note:            body.Note,
		IdempotencyKey:  key,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, caseRow)
}

func (s *Server) GetDisputeCase(c *gin.Context) {
	ticketID := strings.TrimSpace(c.Param("ticketId"))
	if ticketID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	caseRow, err := s.disputeSvc.GetCase(c.Request.Context(), ticketID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, caseRow)
}
