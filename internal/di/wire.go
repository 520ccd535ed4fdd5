//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/campusmarket/accountkit/internal/app"
)

func InitializeApp() (*app.App, error) {
	panic(wire.Build(
		ServerConfigSet,
		ObservabilitySet,
		RuntimeInfraSet,
		RepositorySet,
		SecuritySet,
		ServiceSet,
		HTTPSet,
		AppSet,
	))
}

func InitializeAccountClient() (*AccountClient, error) {
	panic(wire.Build(
		ConfigSet,
		ClientSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, error) {
	panic(wire.Build(
		ConfigSet,
		provideOpenDB,
		NewMigrationRunner,
	))
}
