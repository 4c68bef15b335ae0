package migration

import (
	auditdomain "github.com/pazarlabs/pazar/internal/audit/domain"
	commissiondomain "github.com/pazarlabs/pazar/internal/commission/domain"
	"github.com/pazarlabs/pazar/internal/config"
	disputedomain "github.com/pazarlabs/pazar/internal/dispute/domain"
	idempotencydomain "github.com/pazarlabs/pazar/internal/idempotency/domain"
	payoutdomain "github.com/pazarlabs/pazar/internal/payout/domain"
	opsdomain "github.com/pazarlabs/pazar/internal/payoutops/domain"
	settingsdomain "github.com/pazarlabs/pazar/internal/settings/domain"
	trustdomain "github.com/pazarlabs/pazar/internal/trust/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		// sqlite and mysql deployments (local, CI) lean on gorm's schema sync.
		return AutoMigrate(conn)
	}),
)

// AutoMigrate creates the settlement schema from the model definitions.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&idempotencydomain.Record{},
		&commissiondomain.Plan{},
		&commissiondomain.Rule{},
		&commissiondomain.Snapshot{},
		&commissiondomain.MarketOrder{},
		&commissiondomain.MarketOrderLine{},
		&trustdomain.SellerTrustScore{},
		&trustdomain.RecalcJob{},
		&trustdomain.MarketShipment{},
		&disputedomain.Case{},
		&disputedomain.Action{},
		&disputedomain.Ticket{},
		&disputedomain.TicketMessage{},
		&payoutdomain.ProviderPayout{},
		&payoutdomain.OutboxEntry{},
		&opsdomain.FinanceOpsLog{},
		&opsdomain.FinanceIntegrityAlert{},
		&opsdomain.OpsHealthSnapshot{},
		&settingsdomain.Setting{},
		&auditdomain.FinanceAuditLog{},
	)
}
