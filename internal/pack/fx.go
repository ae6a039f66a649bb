package pack

import (
	"github.com/devmarvs/backoffice/internal/pack/repository"
	"github.com/devmarvs/backoffice/internal/pack/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pack.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
