package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/beldeveloper/deploy-lego/controller"
	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/provider/rest"
	"github.com/beldeveloper/deploy-lego/service/adapter"
	"github.com/beldeveloper/deploy-lego/service/adapter/dockerhost"
	"github.com/beldeveloper/deploy-lego/service/adapter/githost"
	"github.com/beldeveloper/deploy-lego/service/adapter/objectstore"
	"github.com/beldeveloper/deploy-lego/service/adapter/paas"
	"github.com/beldeveloper/deploy-lego/service/marshaller"
	appOs "github.com/beldeveloper/deploy-lego/service/os"
	"github.com/jackc/pgx/v4/pgxpool"
)

func main() {
	c, err := InitializeController()
	if err != nil {
		log.Fatalf("main: %v\n", err)
	}
	ctx := context.Background()
	go c.WatchHealthJob(ctx)
	runHttpServer(c)
}

func postgresConn() (*pgxpool.Pool, error) {
	pgs := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DEPLOY_LEGO_DB_HOST"),
		os.Getenv("DEPLOY_LEGO_DB_PORT"),
		os.Getenv("DEPLOY_LEGO_DB_USER"),
		os.Getenv("DEPLOY_LEGO_DB_PASSWORD"),
		os.Getenv("DEPLOY_LEGO_DB_NAME"),
	)
	return pgxpool.Connect(context.Background(), pgs)
}

func postgresSchema() model.PgSchema {
	return model.PgSchema(os.Getenv("DEPLOY_LEGO_DB_SCHEMA"))
}

func adapterRegistry(m marshaller.Service, osSvc appOs.Service) adapter.Registry {
	return adapter.NewRegistry(
		paas.NewPaaS(),
		objectstore.NewS3(),
		githost.NewGit(m),
		dockerhost.NewDocker(osSvc),
	)
}

func orchestratorConfig() model.OrchestratorConfig {
	cfg := model.DefaultOrchestratorConfig()
	if v, err := strconv.Atoi(os.Getenv("DEPLOY_LEGO_MAX_ATTEMPTS")); err == nil && v > 0 {
		cfg.MaxAttempts = v
	}
	if v, err := time.ParseDuration(os.Getenv("DEPLOY_LEGO_INITIAL_BACKOFF")); err == nil && v > 0 {
		cfg.InitialBackoff = v
	}
	if v, err := time.ParseDuration(os.Getenv("DEPLOY_LEGO_MAX_BACKOFF")); err == nil && v > 0 {
		cfg.MaxBackoff = v
	}
	if v, err := time.ParseDuration(os.Getenv("DEPLOY_LEGO_STEP_TIMEOUT")); err == nil && v > 0 {
		cfg.StepTimeout = v
	}
	if v := os.Getenv("DEPLOY_LEGO_CONFLICT_POLICY"); v == model.ConflictPolicyBlock || v == model.ConflictPolicyReject {
		cfg.ConflictPolicy = v
	}
	return cfg
}

func runHttpServer(c controller.Service) {
	httpPort := os.Getenv("DEPLOY_LEGO_HTTP_PORT")
	crtFile := os.Getenv("DEPLOY_LEGO_HTTPS_CRT")
	keyFile := os.Getenv("DEPLOY_LEGO_HTTPS_KEY")
	srv := &http.Server{
		Addr:    ":" + httpPort,
		Handler: rest.CreateRouter(c),
	}
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		var err error
		if len(crtFile) > 0 {
			err = srv.ListenAndServeTLS(crtFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("main: serve http: %v; port = %s\n", err, httpPort)
		}
	}()
	log.Printf("Listening :%s for HTTP connections...\n", httpPort)
	<-done
	log.Print("Stopping the application...\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("main: server shutdown: %v\n", err)
	}
}
