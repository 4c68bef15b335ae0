package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	settingsdomain "github.com/pazarlabs/pazar/internal/settings/domain"
)

func (s *Server) GetEscrowPolicies(c *gin.Context) {
	pr := currentPrincipal(c)
	if !pr.CanAdministerDisputes() {
		AbortWithError(c, ErrForbidden)
		return
	}

	policies, err := s.settingsSvc.GetPolicies(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, policies)
}

type updatePoliciesRequest struct {
	Reason               string                         `json:"reason"`
	EscrowPaused         *bool                          `json:"escrowPaused"`
	PayoutPaused         *bool                          `json:"payoutPaused"`
	GlobalEscrowDefaults *settingsdomain.EscrowDefaults `json:"globalEscrowDefaults"`
	TrustTierEffects     map[string]any                 `json:"trustTierEffects"`
}

func (s *Server) UpdateEscrowPolicies(c *gin.Context) {
	pr := currentPrincipal(c)
	if !pr.CanMoveMoney() {
		AbortWithError(c, ErrForbidden)
		return
	}

	var body updatePoliciesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	policies, err := s.settingsSvc.UpdatePolicies(c.Request.Context(), pr.UserID, settingsdomain.PolicyUpdate{
		Reason:               body.Reason,
		EscrowPaused:         body.EscrowPaused,
		PayoutPaused:         body.PayoutPaused,
		GlobalEscrowDefaults: body.GlobalEscrowDefaults,
		TrustTierEffects:     body.TrustTierEffects,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, policies)
}
