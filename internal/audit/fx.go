package audit

import (
	"github.com/devmarvs/backoffice/internal/audit/repository"
	"github.com/devmarvs/backoffice/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
