package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	idempotencydomain "github.com/pazarlabs/pazar/internal/idempotency/domain"
)

type recalcTrustRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RecalcTrustScore(c *gin.Context) {
	pr := currentPrincipal(c)
	if !pr.CanAdministerDisputes() {
		AbortWithError(c, ErrForbidden)
		return
	}

	sellerID := strings.TrimSpace(c.Param("sellerId"))
	if sellerID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var body recalcTrustRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = "MANUAL_RECALC"
	}

	job, err := s.trustSvc.SubmitRecalc(c.Request.Context(), sellerID, reason)
	if err != nil {
		// One successful recalculation per seller per UTC day; a repeat is
		// not an error for the caller.
		if errors.Is(err, idempotencydomain.ErrAlreadySucceeded) {
			score, scoreErr := s.trustSvc.GetScore(c.Request.Context(), sellerID)
			if scoreErr != nil {
				AbortWithError(c, scoreErr)
				return
			}
			if s.metrics != nil {
				s.metrics.IncRecalc("already_processed")
			}
			c.JSON(http.StatusOK, gin.H{
				"already_processed": true,
				"score":             score,
			})
			return
		}
		if s.metrics != nil {
			s.metrics.IncRecalc("error")
		}
		AbortWithError(c, err)
		return
	}

	if s.metrics != nil {
		s.metrics.IncRecalc("ok")
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) GetTrustScore(c *gin.Context) {
	sellerID := strings.TrimSpace(c.Param("sellerId"))
	if sellerID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	score, err := s.trustSvc.GetScore(c.Request.Context(), sellerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, score)
}

func (s *Server) GetTrustPolicy(c *gin.Context) {
	sellerID := strings.TrimSpace(c.Param("sellerId"))
	if sellerID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	policy, err := s.trustSvc.ResolvePolicy(c.Request.Context(), sellerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, policy)
}
