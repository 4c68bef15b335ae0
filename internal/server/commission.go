package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) CreateCommissionSnapshot(c *gin.Context) {
	pr := currentPrincipal(c)
	if !pr.CanMoveMoney() {
		AbortWithError(c, ErrForbidden)
		return
	}

	orderID := strings.TrimSpace(c.Param("orderId"))
	if orderID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	snapshot, err := s.commissionSvc.CreateSnapshot(c.Request.Context(), pr.TenantID, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.metrics != nil {
		s.metrics.IncSnapshotCreated()
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) GetCommissionSnapshot(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("orderId"))
	if orderID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	snapshot, err := s.commissionSvc.GetSnapshot(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
