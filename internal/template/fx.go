package template

import (
	"github.com/devmarvs/backoffice/internal/template/repository"
	"github.com/devmarvs/backoffice/internal/template/service"
	"go.uber.org/fx"
)

var Module = fx.Module("template.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
