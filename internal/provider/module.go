package provider

import "go.uber.org/fx"

// Module provides the provider registry to Fx, collecting every
// implementation contributed to the payment.providers group.
var Module = fx.Provide(
	fx.Annotate(
		NewRegistry,
		fx.ParamTags(`group:"payment.providers"`),
	),
)
