package providers

import (
	"github.com/devmarvs/backoffice/internal/providers/email"
	"github.com/devmarvs/backoffice/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
