package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/service"
)

// WatchHealthFrequency defines the frequency of the health watch job.
const WatchHealthFrequency = time.Second * 30

// NewController creates a new instance of the application controller.
func NewController(services service.Container) Controller {
	return Controller{services: services}
}

// Controller implements the application controller.
type Controller struct {
	services service.Container
}

// Deploy validates the request, resolves the credentials for the target kind
// and runs the deployment.
func (c Controller) Deploy(ctx context.Context, f model.FormDeploy) (model.DeploymentRecord, error) {
	f, err := c.services.Validation.Deploy(ctx, f)
	if err != nil {
		if errors.Is(err, model.ErrBadInput) || errors.Is(err, model.ErrUnknownKind) {
			return model.DeploymentRecord{}, err
		}
		return model.DeploymentRecord{}, fmt.Errorf("controller.Deploy: error during validation: %w", err)
	}
	creds, err := c.services.Credentials.Resolve(ctx, f.Target.Kind)
	if err != nil {
		return model.DeploymentRecord{}, fmt.Errorf("controller.Deploy: resolve credentials: %w", err)
	}
	return c.services.Orchestrator.Deploy(ctx, f, creds)
}

// Resume continues the non-terminal deployment from its last completed step.
func (c Controller) Resume(ctx context.Context, id string) (model.DeploymentRecord, error) {
	d, err := c.services.Store.Get(ctx, id)
	if err != nil {
		return d, fmt.Errorf("controller.Resume: find the deployment: %w", err)
	}
	creds, err := c.services.Credentials.Resolve(ctx, d.TargetKind)
	if err != nil {
		return d, fmt.Errorf("controller.Resume: resolve credentials: %w", err)
	}
	return c.services.Orchestrator.Resume(ctx, id, creds)
}

// Teardown releases the remote resources of the deployment.
func (c Controller) Teardown(ctx context.Context, id string) error {
	d, err := c.services.Store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("controller.Teardown: find the deployment: %w", err)
	}
	creds, err := c.services.Credentials.Resolve(ctx, d.TargetKind)
	if err != nil {
		return fmt.Errorf("controller.Teardown: resolve credentials: %w", err)
	}
	return c.services.Orchestrator.Teardown(ctx, id, creds)
}

// Status reports the health of the deployment.
func (c Controller) Status(ctx context.Context, id string) (model.HealthState, error) {
	d, err := c.services.Store.Get(ctx, id)
	if err != nil {
		return model.HealthUnknown, fmt.Errorf("controller.Status: find the deployment: %w", err)
	}
	creds, err := c.services.Credentials.Resolve(ctx, d.TargetKind)
	if err != nil {
		return model.HealthUnknown, fmt.Errorf("controller.Status: resolve credentials: %w", err)
	}
	return c.services.Orchestrator.Status(ctx, id, creds)
}

// Deployments returns the list of deployments.
func (c Controller) Deployments(ctx context.Context) ([]model.DeploymentRecord, error) {
	return c.services.Orchestrator.Deployments(ctx)
}

// Kinds returns the list of the registered target kinds.
func (c Controller) Kinds() []string {
	return c.services.Adapters.Kinds()
}

// WatchHealthJob is a job that periodically refreshes the health of the
// active deployments.
func (c Controller) WatchHealthJob(ctx context.Context) {
	t := time.NewTicker(WatchHealthFrequency)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			list, err := c.services.Orchestrator.Deployments(ctx)
			if err != nil {
				log.Printf("controller.WatchHealthJob: couldn't fetch the deployments: %v\n", err)
				break
			}
			for _, d := range list {
				if d.Status != model.DeploymentStatusActive {
					continue
				}
				h, err := c.Status(ctx, d.ID)
				if err != nil {
					log.Printf("controller.WatchHealthJob: couldn't check the deployment %s: %v\n", d.ID, err)
					continue
				}
				if h != model.HealthHealthy {
					log.Printf("controller.WatchHealthJob: the deployment %s is %s\n", d.ID, h)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
