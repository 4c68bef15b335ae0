package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	opsdomain "github.com/pazarlabs/pazar/internal/payoutops/domain"
)

func (s *Server) RerunPayoutOutbox(c *gin.Context) {
	providerPayoutID := strings.TrimSpace(c.Param("providerPayoutId"))
	if providerPayoutID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.opsCommands.RerunOutbox(c.Request.Context(), currentPrincipal(c), providerPayoutID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ForceReconcilePayout(c *gin.Context) {
	providerPayoutID := strings.TrimSpace(c.Param("providerPayoutId"))
	if providerPayoutID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.opsCommands.ForceReconcile(c.Request.Context(), currentPrincipal(c), providerPayoutID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ForceFinalizePayout(c *gin.Context) {
	providerPayoutID := strings.TrimSpace(c.Param("providerPayoutId"))
	if providerPayoutID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.opsCommands.ForceFinalizeSucceeded(c.Request.Context(), currentPrincipal(c), providerPayoutID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type quarantineRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) QuarantinePayout(c *gin.Context) {
	providerPayoutID := strings.TrimSpace(c.Param("providerPayoutId"))
	if providerPayoutID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var body quarantineRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.opsCommands.Quarantine(c.Request.Context(), currentPrincipal(c), providerPayoutID, body.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) AckIntegrityAlert(c *gin.Context) {
	alertID, err := parseAlertID(c.Param("alertId"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	alert, err := s.opsCommands.AckAlert(c.Request.Context(), currentPrincipal(c), alertID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, alert)
}

func (s *Server) ResolveIntegrityAlert(c *gin.Context) {
	alertID, err := parseAlertID(c.Param("alertId"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	alert, err := s.opsCommands.ResolveAlert(c.Request.Context(), currentPrincipal(c), alertID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, alert)
}

func (s *Server) GetOpsHealth(c *gin.Context) {
	pr := currentPrincipal(c)
	if !pr.CanAdministerDisputes() {
		AbortWithError(c, ErrForbidden)
		return
	}

	report, err := s.opsHealth.ComputeHealth(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) SaveOpsHealthSnapshot(c *gin.Context) {
	pr := currentPrincipal(c)
	if !pr.CanMoveMoney() {
		AbortWithError(c, ErrForbidden)
		return
	}

	report, err := s.opsHealth.ComputeHealth(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snapshot, err := s.opsHealth.SaveSnapshot(c.Request.Context(), opsdomain.ScopeManual, report)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func parseAlertID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
