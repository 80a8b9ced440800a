//go:build wireinject
// +build wireinject

package di

import (
	"roombook/config"
	"roombook/infras/kafka"
	"roombook/infras/otel"
	"roombook/infras/postgres"
	"roombook/infras/redis"
	"roombook/infras/s3"
	"roombook/permissions"
	"roombook/shared/cache"
	"roombook/transport/http"
	"roombook/transport/http/middleware"
	"roombook/transport/http/router"

	bookingRepository "roombook/internal/domains/booking/repository"
	bookingService "roombook/internal/domains/booking/service"
	"roombook/internal/domains/payment/gateway"
	reconciliationRepository "roombook/internal/domains/reconciliation/repository"
	reconciliationService "roombook/internal/domains/reconciliation/service"
	roomRepository "roombook/internal/domains/room/repository"
	roomService "roombook/internal/domains/room/service"

	"github.com/google/wire"

	bookingHandler "roombook/internal/handlers/booking"
	reconciliationHandler "roombook/internal/handlers/reconciliation"
	roomHandler "roombook/internal/handlers/room"
)

var configurations = wire.NewSet(
	config.Get,
	permissions.Get,
)

var infrastructures = wire.NewSet(
	postgres.New,
	otel.New,
	redis.New,
	kafka.New,
	s3.New,
)

var middlewares = wire.NewSet(
	middleware.NewAppMiddleware,
	middleware.NewOperatorMiddleware,
)

var sharedHelpers = wire.NewSet(
	cache.NewRedisCache,
)

var paymentDomain = wire.NewSet(
	gateway.New,
)

var roomDomain = wire.NewSet(
	roomRepository.New,
	roomService.New,
)

var reconciliationDomain = wire.NewSet(
	reconciliationRepository.New,
	reconciliationService.New,
)

var bookingDomain = wire.NewSet(
	bookingRepository.New,
	bookingService.NewCoordinator,
	bookingService.New,
)

var domains = wire.NewSet(
	paymentDomain,
	roomDomain,
	reconciliationDomain,
	bookingDomain,
)

var routing = wire.NewSet(
	wire.Struct(new(router.DomainHandlers), "*"),
	roomHandler.New,
	bookingHandler.New,
	reconciliationHandler.New,
	router.New,
)

func InitializeService() (*http.HTTP, error) {
	wire.Build(
		configurations,
		infrastructures,
		middlewares,
		sharedHelpers,
		domains,
		routing,
		http.New,
	)

	return &http.HTTP{}, nil
}

func InitializeReconcileToolkit() (*ReconcileToolkit, error) {
	wire.Build(
		config.Get,
		infrastructures,
		sharedHelpers,
		paymentDomain,
		reconciliationDomain,
		wire.Struct(new(ReconcileToolkit), "*"),
	)

	return &ReconcileToolkit{}, nil
}
