package webhook

import "go.uber.org/fx"

// Module provides the webhook processing service to Fx.
var Module = fx.Provide(NewService)
