package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/beldeveloper/deploy-lego/controller"
	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/service"
	"github.com/beldeveloper/deploy-lego/service/adapter"
	"github.com/beldeveloper/deploy-lego/service/adapter/dockerhost"
	"github.com/beldeveloper/deploy-lego/service/adapter/githost"
	"github.com/beldeveloper/deploy-lego/service/adapter/objectstore"
	"github.com/beldeveloper/deploy-lego/service/adapter/paas"
	"github.com/beldeveloper/deploy-lego/service/credentials"
	"github.com/beldeveloper/deploy-lego/service/marshaller"
	"github.com/beldeveloper/deploy-lego/service/orchestrator"
	appOs "github.com/beldeveloper/deploy-lego/service/os"
	"github.com/beldeveloper/deploy-lego/service/store"
	"github.com/beldeveloper/deploy-lego/service/validation"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deployctl",
	Short: "Deploy artifacts to heterogeneous backends",
	Long:  "deployctl provisions, uploads and activates build artifacts on PaaS, object store, git host and docker host targets.",
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildController assembles the same stack the server runs, pointed at the
// database from the environment. Without a database configured the records
// live only for the lifetime of the command.
func buildController() (controller.Service, error) {
	records, err := buildStore()
	if err != nil {
		return nil, err
	}
	yaml := marshaller.NewYaml()
	osSvc := appOs.NewOS()
	registry := adapter.NewRegistry(
		paas.NewPaaS(),
		objectstore.NewS3(),
		githost.NewGit(yaml),
		dockerhost.NewDocker(osSvc),
	)
	cfg := orchestratorConfig()
	return controller.NewController(service.Container{
		Adapters:     registry,
		Orchestrator: orchestrator.NewOrchestrator(registry, records, cfg),
		Store:        records,
		Credentials:  credentials.NewChain(credentials.NewKeyring(), credentials.NewEnv()),
		Validation:   validation.NewValidation(),
		Marshaller:   yaml,
		OS:           osSvc,
	}), nil
}

func buildStore() (store.Service, error) {
	host := os.Getenv("DEPLOY_LEGO_DB_HOST")
	if host == "" {
		return store.NewMemory(), nil
	}
	pgs := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host,
		os.Getenv("DEPLOY_LEGO_DB_PORT"),
		os.Getenv("DEPLOY_LEGO_DB_USER"),
		os.Getenv("DEPLOY_LEGO_DB_PASSWORD"),
		os.Getenv("DEPLOY_LEGO_DB_NAME"),
	)
	pool, err := pgxpool.Connect(context.Background(), pgs)
	if err != nil {
		return nil, fmt.Errorf("connect to the database: %w", err)
	}
	return store.NewPostgres(pool, model.PgSchema(os.Getenv("DEPLOY_LEGO_DB_SCHEMA"))), nil
}

func orchestratorConfig() model.OrchestratorConfig {
	cfg := model.DefaultOrchestratorConfig()
	if v := os.Getenv("DEPLOY_LEGO_CONFLICT_POLICY"); v == model.ConflictPolicyBlock || v == model.ConflictPolicyReject {
		cfg.ConflictPolicy = v
	}
	return cfg
}
