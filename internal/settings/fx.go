package settings

import (
	"github.com/devmarvs/backoffice/internal/settings/repository"
	"github.com/devmarvs/backoffice/internal/settings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settings.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
