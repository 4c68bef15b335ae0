package idempotency

import (
	"github.com/pazarlabs/pazar/internal/idempotency/repository"
	"github.com/pazarlabs/pazar/internal/idempotency/service"
	"go.uber.org/fx"
)

var Module = fx.Module("idempotency",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewRunner),
)
