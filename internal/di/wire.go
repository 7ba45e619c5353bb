//go:build wireinject
// +build wireinject

package di

import (
	"FinProfile/pkg/config"
	"FinProfile/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgresClient,
		ProvideCache,
		ProvideKafkaProducer,

		// Repositories
		ProvideSignalPublisher,
		ProvideNakedStore,
		ProvideBarSource,
		ProvideMarketStream,

		// Use cases
		ProvideBootstrapper,
		ProvideTradeProcessor,
		ProvidePipeline,
		ProvideTradeCollector,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,

		// Transport
		ProvideProfileHandler,
		ProvideInfra,
		ProvideApp,
	)
	return &server.App{}, nil
}
