//go:build wireinject
// +build wireinject

package main

import (
	"github.com/beldeveloper/deploy-lego/controller"
	"github.com/beldeveloper/deploy-lego/service"
	"github.com/beldeveloper/deploy-lego/service/credentials"
	"github.com/beldeveloper/deploy-lego/service/marshaller"
	"github.com/beldeveloper/deploy-lego/service/orchestrator"
	"github.com/beldeveloper/deploy-lego/service/os"
	"github.com/beldeveloper/deploy-lego/service/store"
	"github.com/beldeveloper/deploy-lego/service/validation"
	"github.com/google/wire"
)

func InitializeController() (controller.Service, error) {
	wire.Build(
		store.NewPostgres,
		wire.Bind(new(store.Service), new(store.Postgres)),
		credentials.NewEnv,
		wire.Bind(new(credentials.Resolver), new(credentials.Env)),
		os.NewOS,
		wire.Bind(new(os.Service), new(os.OS)),
		marshaller.NewYaml,
		wire.Bind(new(marshaller.Service), new(marshaller.Yaml)),
		validation.NewValidation,
		wire.Bind(new(validation.Service), new(validation.Validation)),
		orchestrator.NewOrchestrator,
		wire.Bind(new(orchestrator.Service), new(orchestrator.Orchestrator)),
		adapterRegistry,
		wire.Struct(new(service.Container), "*"),
		controller.NewController,
		wire.Bind(new(controller.Service), new(controller.Controller)),
		postgresConn,
		postgresSchema,
		orchestratorConfig,
	)
	return controller.Controller{}, nil
}
