package billing

import (
	"github.com/devmarvs/backoffice/internal/billing/paypal"
	"github.com/devmarvs/backoffice/internal/billing/repository"
	"github.com/devmarvs/backoffice/internal/billing/service"
	"github.com/devmarvs/backoffice/internal/billing/stripe"
	"github.com/devmarvs/backoffice/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(newStripeAdapter),
	fx.Provide(newStripeClient),
	fx.Provide(newPayPalClient),
	fx.Provide(service.NewLinkDeactivator),
	fx.Provide(service.NewService),
)

func newStripeAdapter(cfg config.Config) *stripe.Adapter {
	return stripe.NewAdapter(cfg.StripeWebhookSecret)
}

func newStripeClient(cfg config.Config) *stripe.Client {
	return stripe.NewClient(cfg.StripeSecretKey)
}

func newPayPalClient(cfg config.Config) *paypal.Client {
	return paypal.NewClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret)
}
