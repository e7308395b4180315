package controller

import (
	"context"
	"testing"
	"time"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/service"
	"github.com/beldeveloper/deploy-lego/service/store"
	"github.com/beldeveloper/deploy-lego/service/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrchestrator struct {
	deployForm  model.FormDeploy
	deployCreds model.CredentialBundle
	resumedID   string
	tornDownID  string
	health      model.HealthState
	err         error
}

func (s *stubOrchestrator) Deploy(ctx context.Context, f model.FormDeploy, c model.CredentialBundle) (model.DeploymentRecord, error) {
	s.deployForm = f
	s.deployCreds = c
	return model.DeploymentRecord{ID: "d1", Status: model.DeploymentStatusActive}, s.err
}

func (s *stubOrchestrator) Resume(ctx context.Context, id string, c model.CredentialBundle) (model.DeploymentRecord, error) {
	s.resumedID = id
	return model.DeploymentRecord{ID: id}, s.err
}

func (s *stubOrchestrator) Teardown(ctx context.Context, id string, c model.CredentialBundle) error {
	s.tornDownID = id
	return s.err
}

func (s *stubOrchestrator) Status(ctx context.Context, id string, c model.CredentialBundle) (model.HealthState, error) {
	return s.health, s.err
}

func (s *stubOrchestrator) Deployments(ctx context.Context) ([]model.DeploymentRecord, error) {
	return nil, s.err
}

type stubResolver struct {
	kind string
}

func (s *stubResolver) Resolve(ctx context.Context, kind string) (model.CredentialBundle, error) {
	s.kind = kind
	return model.CredentialBundle{Kind: kind, Secrets: map[string]string{"token": "t"}}, nil
}

func newTestController(o *stubOrchestrator, r *stubResolver) (Controller, *store.Memory) {
	records := store.NewMemory()
	c := NewController(service.Container{
		Orchestrator: o,
		Store:        records,
		Credentials:  r,
		Validation:   validation.NewValidation(),
	})
	return c, records
}

func TestDeployResolvesCredentialsForKind(t *testing.T) {
	o := &stubOrchestrator{}
	r := &stubResolver{}
	c, _ := newTestController(o, r)
	_, err := c.Deploy(context.Background(), model.FormDeploy{
		Artifact: model.ArtifactRef{ID: "a", URI: "u", Fingerprint: "f"},
		Target:   model.TargetConfig{Kind: "dockerhost", Name: "web", Params: map[string]string{"image": "web"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "dockerhost", r.kind)
	assert.Equal(t, "t", o.deployCreds.Secret("token"))
}

func TestDeployRejectsInvalidForm(t *testing.T) {
	o := &stubOrchestrator{}
	c, _ := newTestController(o, &stubResolver{})
	_, err := c.Deploy(context.Background(), model.FormDeploy{
		Target: model.TargetConfig{Kind: "dockerhost"},
	})
	require.ErrorIs(t, err, model.ErrBadInput)
	assert.Empty(t, o.deployForm.Target.Kind)
}

func TestDeployRejectsUnknownKind(t *testing.T) {
	c, _ := newTestController(&stubOrchestrator{}, &stubResolver{})
	_, err := c.Deploy(context.Background(), model.FormDeploy{
		Artifact: model.ArtifactRef{ID: "a", Fingerprint: "f"},
		Target:   model.TargetConfig{Kind: "mainframe", Name: "web"},
	})
	assert.ErrorIs(t, err, model.ErrUnknownKind)
}

func TestTeardownResolvesCredentialsFromRecord(t *testing.T) {
	o := &stubOrchestrator{}
	r := &stubResolver{}
	c, records := newTestController(o, r)
	_, err := records.Upsert(context.Background(), model.DeploymentRecord{
		ID:         "d2",
		TargetKind: "paas",
		TargetName: "web",
		Status:     model.DeploymentStatusActive,
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, c.Teardown(context.Background(), "d2"))
	assert.Equal(t, "paas", r.kind)
	assert.Equal(t, "d2", o.tornDownID)
}

func TestTeardownMissingDeployment(t *testing.T) {
	c, _ := newTestController(&stubOrchestrator{}, &stubResolver{})
	err := c.Teardown(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
