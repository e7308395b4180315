package adapter

import (
	"context"

	"github.com/beldeveloper/deploy-lego/model"
)

// Service defines the interface of a deployment backend adapter. One
// implementation exists per target kind. Every step must be idempotent for
// the same target name: running it twice must not create a duplicate remote
// resource. Failures are classified with model.Transient or model.Permanent;
// anything else is treated as permanent.
type Service interface {
	// Kind returns the target kind this adapter serves.
	Kind() string
	// Provision prepares the remote slot for the target.
	Provision(ctx context.Context, t model.TargetConfig, c model.CredentialBundle) (model.ProvisionHandle, error)
	// Upload places the artifact on the provisioned slot.
	Upload(ctx context.Context, h model.ProvisionHandle, a model.ArtifactRef, c model.CredentialBundle) (model.UploadHandle, error)
	// Activate makes the uploaded artifact the serving one.
	Activate(ctx context.Context, h model.UploadHandle, c model.CredentialBundle) (model.ActivationInfo, error)
	// Status reports the health of an activated deployment.
	Status(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) (model.HealthState, error)
	// Teardown releases the remote resources of the deployment.
	Teardown(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) error
}
