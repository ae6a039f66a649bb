package reminder

import (
	"github.com/devmarvs/backoffice/internal/reminder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reminder.service",
	fx.Provide(service.NewService),
)
