package stripe

import (
	"go.uber.org/fx"

	"github.com/SystonTigers/app-sub004/internal/config"
	"github.com/SystonTigers/app-sub004/internal/provider"
)

// Module contributes the Stripe provider to the payment provider group.
var Module = fx.Provide(
	fx.Annotate(
		func(cfg config.Config) *Provider {
			return New(Config{WebhookSecret: cfg.Providers.Stripe.WebhookSecret})
		},
		fx.As(new(provider.Provider)),
		fx.ResultTags(`group:"payment.providers"`),
	),
)
