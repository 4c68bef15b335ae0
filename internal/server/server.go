package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pazarlabs/pazar/internal/audit"
	auditdomain "github.com/pazarlabs/pazar/internal/audit/domain"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/commission"
	commissiondomain "github.com/pazarlabs/pazar/internal/commission/domain"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/dispute"
	disputedomain "github.com/pazarlabs/pazar/internal/dispute/domain"
	"github.com/pazarlabs/pazar/internal/idempotency"
	"github.com/pazarlabs/pazar/internal/locker"
	"github.com/pazarlabs/pazar/internal/migration"
	"github.com/pazarlabs/pazar/internal/observability"
	obsmetrics "github.com/pazarlabs/pazar/internal/observability/metrics"
	"github.com/pazarlabs/pazar/internal/payout"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	"github.com/pazarlabs/pazar/internal/payoutops"
	opsdomain "github.com/pazarlabs/pazar/internal/payoutops/domain"
	"github.com/pazarlabs/pazar/internal/scheduler"
	"github.com/pazarlabs/pazar/internal/settings"
	settingsdomain "github.com/pazarlabs/pazar/internal/settings/domain"
	"github.com/pazarlabs/pazar/internal/trust"
	trustdomain "github.com/pazarlabs/pazar/internal/trust/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	migration.Module,
	locker.Module,
	observability.Module,
	audit.Module,
	idempotency.Module,
	commission.Module,
	trust.Module,
	dispute.Module,
	payout.Module,
	payoutops.Module,
	settings.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	clock         clock.Clock
	auditSvc      auditdomain.Service
	commissionSvc commissiondomain.Service
	trustSvc      trustdomain.Service
	disputeSvc    disputedomain.Service
	settingsSvc   settingsdomain.Service
	payoutSvc     payoutdomain.Service
	opsCommands   opsdomain.Commands
	opsHealth     opsdomain.Health
	metrics       *obsmetrics.SettlementMetrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Clock         clock.Clock
	AuditSvc      auditdomain.Service
	CommissionSvc commissiondomain.Service
	TrustSvc      trustdomain.Service
	DisputeSvc    disputedomain.Service
	SettingsSvc   settingsdomain.Service
	PayoutSvc     payoutdomain.Service
	OpsCommands   opsdomain.Commands
	OpsHealth     opsdomain.Health
	Metrics       *obsmetrics.SettlementMetrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		clock:         p.Clock,
		auditSvc:      p.AuditSvc,
		commissionSvc: p.CommissionSvc,
		trustSvc:      p.TrustSvc,
		disputeSvc:    p.DisputeSvc,
		settingsSvc:   p.SettingsSvc,
		payoutSvc:     p.PayoutSvc,
		opsCommands:   p.OpsCommands,
		opsHealth:     p.OpsHealth,
		metrics:       p.Metrics,
	}

	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.PrincipalRequired())

	// -------- Disputes --------
	admin.GET("/disputes/:ticketId/case", s.GetDisputeCase)
	admin.POST("/disputes/:ticketId/actions", s.PerformDisputeAction)
	admin.POST("/disputes/:ticketId/request-info", s.RequestDisputeInfo)

	// -------- Commission --------
	admin.POST("/finance/orders/:orderId/commission-snapshot", s.CreateCommissionSnapshot)
	admin.GET("/finance/orders/:orderId/commission-snapshot", s.GetCommissionSnapshot)

	// -------- Trust --------
	admin.POST("/finance/trust/:sellerId/recalc", s.RecalcTrustScore)
	admin.GET("/finance/trust/:sellerId/score", s.GetTrustScore)
	admin.GET("/finance/trust/:sellerId/policy", s.GetTrustPolicy)

	// -------- Escrow Policies --------
	admin.GET("/payments-escrow/policies", s.GetEscrowPolicies)
	admin.POST("/payments-escrow/policies", s.UpdateEscrowPolicies)

	// -------- Payout Ops Console --------
	admin.POST("/ops/payouts/:providerPayoutId/rerun-outbox", s.RerunPayoutOutbox)
	admin.POST("/ops/payouts/:providerPayoutId/force-reconcile", s.ForceReconcilePayout)
	admin.POST("/ops/payouts/:providerPayoutId/force-finalize", s.ForceFinalizePayout)
	admin.POST("/ops/payouts/:providerPayoutId/quarantine", s.QuarantinePayout)

	// -------- Integrity Alerts --------
	admin.POST("/ops/alerts/:alertId/ack", s.AckIntegrityAlert)
	admin.POST("/ops/alerts/:alertId/resolve", s.ResolveIntegrityAlert)

	// -------- Ops Health --------
	admin.GET("/ops/health", s.GetOpsHealth)
	admin.POST("/ops/health/snapshot", s.SaveOpsHealthSnapshot)
}
