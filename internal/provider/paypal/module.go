package paypal

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/SystonTigers/app-sub004/internal/config"
	"github.com/SystonTigers/app-sub004/internal/provider"
)

// Module contributes the PayPal provider and its token source to the payment
// provider group. HTTP clients are constructed here and injected explicitly.
var Module = fx.Options(
	fx.Provide(func(cfg config.Config) *TokenSource {
		pp := cfg.Providers.PayPal
		return NewTokenSource(pp.APIBase, pp.ClientID, pp.ClientSecret, &http.Client{Timeout: pp.TokenTimeout})
	}),
	fx.Provide(
		fx.Annotate(
			func(cfg config.Config, tokens *TokenSource, logger *zap.Logger) *Provider {
				pp := cfg.Providers.PayPal
				return New(Config{
					APIBase:      pp.APIBase,
					ClientID:     pp.ClientID,
					ClientSecret: pp.ClientSecret,
					WebhookID:    pp.WebhookID,
				}, tokens, &http.Client{Timeout: pp.VerifyTimeout}, logger)
			},
			fx.As(new(provider.Provider)),
			fx.ResultTags(`group:"payment.providers"`),
		),
	),
)
