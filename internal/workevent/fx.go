package workevent

import (
	"github.com/devmarvs/backoffice/internal/workevent/repository"
	"github.com/devmarvs/backoffice/internal/workevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workevent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewAutopilot),
	fx.Provide(service.NewService),
)
