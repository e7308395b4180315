package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beldeveloper/deploy-lego/model"
)

type stubAdapter struct {
	kind string
}

func (s stubAdapter) Kind() string { return s.kind }
func (s stubAdapter) Provision(ctx context.Context, t model.TargetConfig, c model.CredentialBundle) (model.ProvisionHandle, error) {
	return model.ProvisionHandle{TargetName: t.Name}, nil
}
func (s stubAdapter) Upload(ctx context.Context, h model.ProvisionHandle, a model.ArtifactRef, c model.CredentialBundle) (model.UploadHandle, error) {
	return model.UploadHandle{TargetName: h.TargetName}, nil
}
func (s stubAdapter) Activate(ctx context.Context, h model.UploadHandle, c model.CredentialBundle) (model.ActivationInfo, error) {
	return model.ActivationInfo{TargetName: h.TargetName}, nil
}
func (s stubAdapter) Status(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) (model.HealthState, error) {
	return model.HealthHealthy, nil
}
func (s stubAdapter) Teardown(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) error {
	return nil
}

func TestResolve(t *testing.T) {
	r := NewRegistry(stubAdapter{kind: "paas"}, stubAdapter{kind: "githost"})

	a, err := r.Resolve("paas")
	require.NoError(t, err)
	assert.Equal(t, "paas", a.Kind())

	_, err = r.Resolve("mainframe")
	assert.ErrorIs(t, err, model.ErrUnknownKind)
}

func TestKindsSorted(t *testing.T) {
	r := NewRegistry(stubAdapter{kind: "paas"}, stubAdapter{kind: "dockerhost"}, stubAdapter{kind: "githost"})
	assert.Equal(t, []string{"dockerhost", "githost", "paas"}, r.Kinds())
}
