package followup

import (
	"github.com/devmarvs/backoffice/internal/followup/repository"
	"github.com/devmarvs/backoffice/internal/followup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("followup.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
