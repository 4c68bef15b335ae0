package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/pazarlabs/pazar/internal/commission/domain"
	disputedomain "github.com/pazarlabs/pazar/internal/dispute/domain"
	idempotencydomain "github.com/pazarlabs/pazar/internal/idempotency/domain"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	opsdomain "github.com/pazarlabs/pazar/internal/payoutops/domain"
	settingsdomain "github.com/pazarlabs/pazar/internal/settings/domain"
	trustdomain "github.com/pazarlabs/pazar/internal/trust/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, disputedomain.ErrUnauthorizedAction),
		errors.Is(err, opsdomain.ErrUnauthorizedOps):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, disputedomain.ErrKeyRequired),
		errors.Is(err, disputedomain.ErrReasonRequired),
		errors.Is(err, disputedomain.ErrUnknownAction),
		errors.Is(err, disputedomain.ErrAmountRequired),
		errors.Is(err, disputedomain.ErrNotDisputeTicket),
		errors.Is(err, trustdomain.ErrSellerRequired),
		errors.Is(err, settingsdomain.ErrReasonRequired),
		errors.Is(err, settingsdomain.ErrNoFields),
		errors.Is(err, opsdomain.ErrReasonRequired),
		errors.Is(err, payoutdomain.ErrInvalidAmount),
		errors.Is(err, payoutdomain.ErrKeyRequired),
		errors.Is(err, idempotencydomain.ErrInvalidKey),
		errors.Is(err, commissiondomain.ErrNoActivePlan),
		errors.Is(err, commissiondomain.ErrPlanHasNoRules),
		errors.Is(err, commissiondomain.ErrNoMatchingRule),
		errors.Is(err, commissiondomain.ErrInvalidRounding):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, commissiondomain.ErrOrderNotFound),
		errors.Is(err, commissiondomain.ErrSnapshotNotFound),
		errors.Is(err, trustdomain.ErrScoreNotFound),
		errors.Is(err, disputedomain.ErrTicketNotFound),
		errors.Is(err, disputedomain.ErrCaseNotFound),
		errors.Is(err, payoutdomain.ErrPayoutNotFound),
		errors.Is(err, payoutdomain.ErrOutboxNotFound),
		errors.Is(err, opsdomain.ErrAlertNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, idempotencydomain.ErrAlreadyRunning),
		errors.Is(err, disputedomain.ErrEscrowHoldConflict),
		errors.Is(err, disputedomain.ErrEscrowAlreadyProcessed),
		errors.Is(err, opsdomain.ErrNotSucceeded),
		errors.Is(err, opsdomain.ErrAlreadyResolved):
		return true
	default:
		return false
	}
}
