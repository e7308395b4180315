package orchestrator

import (
	"context"

	"github.com/beldeveloper/deploy-lego/model"
)

// Service defines the interface of the deployment orchestrator.
type Service interface {
	// Deploy drives the artifact through provision, upload and activate on
	// the requested target and records every transition.
	Deploy(ctx context.Context, f model.FormDeploy, c model.CredentialBundle) (model.DeploymentRecord, error)
	// Resume continues a non-terminal deployment from its last completed step.
	Resume(ctx context.Context, id string, c model.CredentialBundle) (model.DeploymentRecord, error)
	// Teardown releases the remote resources of an active or failed deployment.
	Teardown(ctx context.Context, id string, c model.CredentialBundle) error
	// Status reports the health of the deployment and records the observation.
	Status(ctx context.Context, id string, c model.CredentialBundle) (model.HealthState, error)
	// Deployments returns all deployment records, newest first.
	Deployments(ctx context.Context) ([]model.DeploymentRecord, error)
}
