package controller

import (
	"context"

	"github.com/beldeveloper/deploy-lego/model"
)

// Service defines the controller interface.
type Service interface {
	Deploy(context.Context, model.FormDeploy) (model.DeploymentRecord, error)
	Resume(context.Context, string) (model.DeploymentRecord, error)
	Teardown(context.Context, string) error
	Status(context.Context, string) (model.HealthState, error)
	Deployments(context.Context) ([]model.DeploymentRecord, error)
	Kinds() []string
	WatchHealthJob(context.Context)
}
