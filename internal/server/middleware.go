package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pazarlabs/pazar/internal/principal"
	"go.uber.org/zap"
)

// Identity headers set by the gateway in front of the settlement core. The
// gateway has already authenticated the session; these headers are trusted.
const (
	HeaderUserID         = "X-User-ID"
	HeaderTenantID       = "X-Tenant-ID"
	HeaderRole           = "X-Role"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			fields = append(fields, zap.Error(lastErr.Err))
		}
		if c.Writer.Status() >= 500 {
			log.Error("request failed", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

func (s *Server) PrincipalRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		pr := principal.Principal{
			UserID:   strings.TrimSpace(c.GetHeader(HeaderUserID)),
			TenantID: strings.TrimSpace(c.GetHeader(HeaderTenantID)),
			Role:     strings.TrimSpace(c.GetHeader(HeaderRole)),
		}
		if pr.UserID == "" || pr.Role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(principal.WithPrincipal(c.Request.Context(), pr))
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) principal.Principal {
	pr, _ := principal.FromContext(c.Request.Context())
	return pr
}
