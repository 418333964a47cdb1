package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/SystonTigers/app-sub004/internal/transport/http/order"
	webhooktransport "github.com/SystonTigers/app-sub004/internal/transport/http/webhook"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	webhooktransport.Module,
)
