package app

import (
	"go.uber.org/fx"

	"github.com/SystonTigers/app-sub004/internal/cache"
	"github.com/SystonTigers/app-sub004/internal/config"
	"github.com/SystonTigers/app-sub004/internal/database"
	"github.com/SystonTigers/app-sub004/internal/logger"
	"github.com/SystonTigers/app-sub004/internal/messaging"
	"github.com/SystonTigers/app-sub004/internal/metrics"
	"github.com/SystonTigers/app-sub004/internal/observability"
	"github.com/SystonTigers/app-sub004/internal/provider"
	providerpaypal "github.com/SystonTigers/app-sub004/internal/provider/paypal"
	providerstripe "github.com/SystonTigers/app-sub004/internal/provider/stripe"
	repositoryorder "github.com/SystonTigers/app-sub004/internal/repository/order"
	grpcserver "github.com/SystonTigers/app-sub004/internal/server/grpc"
	httpserver "github.com/SystonTigers/app-sub004/internal/server/http"
	serviceorder "github.com/SystonTigers/app-sub004/internal/service/order"
	servicewebhook "github.com/SystonTigers/app-sub004/internal/service/webhook"
	transporthttp "github.com/SystonTigers/app-sub004/internal/transport/http"
	"github.com/SystonTigers/app-sub004/internal/worker"
	workerorder "github.com/SystonTigers/app-sub004/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	metrics.Module,
	observability.Module,
	provider.Module,
	providerstripe.Module,
	providerpaypal.Module,
	repositoryorder.Module,
	serviceorder.Module,
	servicewebhook.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
