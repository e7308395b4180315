package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/service/adapter"
	"github.com/beldeveloper/deploy-lego/service/store"
	"github.com/beldeveloper/go-errors-context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdapter struct {
	kind string

	mu             sync.Mutex
	provisionErrs  []error
	uploadErrs     []error
	activateErrs   []error
	statusErr      error
	teardownErr    error
	health         model.HealthState
	onProvision    func()
	provisionCalls int
	uploadCalls    int
	activateCalls  int
	teardownCalls  int
	tornDown       []model.ActivationInfo
}

func (m *mockAdapter) Kind() string { return m.kind }

func (m *mockAdapter) Provision(ctx context.Context, t model.TargetConfig, c model.CredentialBundle) (model.ProvisionHandle, error) {
	m.mu.Lock()
	m.provisionCalls++
	err := pop(&m.provisionErrs)
	hook := m.onProvision
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return model.ProvisionHandle{}, err
	}
	return model.ProvisionHandle{TargetName: t.Name, Data: map[string]string{"app": t.Name}}, nil
}

func (m *mockAdapter) Upload(ctx context.Context, h model.ProvisionHandle, a model.ArtifactRef, c model.CredentialBundle) (model.UploadHandle, error) {
	m.mu.Lock()
	m.uploadCalls++
	err := pop(&m.uploadErrs)
	m.mu.Unlock()
	if err != nil {
		return model.UploadHandle{}, err
	}
	return model.UploadHandle{TargetName: h.TargetName, Data: map[string]string{"release": a.Fingerprint}}, nil
}

func (m *mockAdapter) Activate(ctx context.Context, h model.UploadHandle, c model.CredentialBundle) (model.ActivationInfo, error) {
	m.mu.Lock()
	m.activateCalls++
	err := pop(&m.activateErrs)
	m.mu.Unlock()
	if err != nil {
		return model.ActivationInfo{}, err
	}
	return model.ActivationInfo{TargetName: h.TargetName, Endpoint: "https://" + h.TargetName, Data: h.Data}, nil
}

func (m *mockAdapter) Status(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) (model.HealthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return model.HealthUnknown, m.statusErr
	}
	if m.health == "" {
		return model.HealthHealthy, nil
	}
	return m.health, nil
}

func (m *mockAdapter) Teardown(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownCalls++
	if m.teardownErr != nil {
		return m.teardownErr
	}
	m.tornDown = append(m.tornDown, i)
	return nil
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func testConfig() model.OrchestratorConfig {
	return model.OrchestratorConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		StepTimeout:    time.Second,
		ConflictPolicy: model.ConflictPolicyReject,
	}
}

func testForm() model.FormDeploy {
	return model.FormDeploy{
		Artifact: model.ArtifactRef{ID: "web:1.4.0", URI: "/tmp/web.tar", Fingerprint: "sha256:abc123"},
		Target:   model.TargetConfig{Kind: "paas", Name: "web-prod", Params: map[string]string{"api_url": "https://paas.test"}},
	}
}

func newTestOrchestrator(ad *mockAdapter) (Orchestrator, *store.Memory) {
	records := store.NewMemory()
	return NewOrchestrator(adapter.NewRegistry(ad), records, testConfig()), records
}

func TestDeployHappyPath(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, records := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusActive, d.Status)
	assert.Equal(t, "web-prod", d.Provision.TargetName)
	assert.Equal(t, "sha256:abc123", d.Upload.Data["release"])
	assert.Equal(t, "https://web-prod", d.Activation.Endpoint)
	statuses := make([]string, 0, len(d.Transitions))
	for _, tr := range d.Transitions {
		statuses = append(statuses, tr.Status)
	}
	assert.Equal(t, []string{
		model.DeploymentStatusPending,
		model.DeploymentStatusProvisioning,
		model.DeploymentStatusUploading,
		model.DeploymentStatusActivating,
		model.DeploymentStatusActive,
	}, statuses)
	saved, err := records.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusActive, saved.Status)
}

func TestDeployRetriesTransientFailure(t *testing.T) {
	ad := &mockAdapter{kind: "paas", provisionErrs: []error{model.Transient(fmt.Errorf("gateway timeout"))}}
	s, _ := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusActive, d.Status)
	assert.Equal(t, 2, ad.provisionCalls)
}

func TestDeployRetryExhaustionFails(t *testing.T) {
	ad := &mockAdapter{kind: "paas", uploadErrs: []error{
		model.Transient(fmt.Errorf("io timeout")),
		model.Transient(fmt.Errorf("io timeout")),
		model.Transient(fmt.Errorf("io timeout")),
	}}
	s, records := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.Error(t, err)
	assert.Equal(t, model.DeploymentStatusFailed, d.Status)
	assert.Equal(t, 3, ad.uploadCalls)
	assert.Contains(t, d.LastError, "io timeout")
	// the provisioned resources are kept for inspection
	assert.Zero(t, ad.teardownCalls)
	saved, err := records.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, "web-prod", saved.Provision.TargetName)
}

func TestDeployPermanentFailureDoesNotRetry(t *testing.T) {
	ad := &mockAdapter{kind: "paas", activateErrs: []error{model.Permanent(fmt.Errorf("forbidden"))}}
	s, _ := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.Error(t, err)
	assert.Equal(t, model.DeploymentStatusFailed, d.Status)
	assert.Equal(t, 1, ad.activateCalls)
}

func TestDeployUnknownKindLeavesNoRecord(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, records := newTestOrchestrator(ad)
	f := testForm()
	f.Target.Kind = "mainframe"
	_, err := s.Deploy(context.Background(), f, model.CredentialBundle{})
	require.ErrorIs(t, err, model.ErrUnknownKind)
	list, err := records.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeployConflictsWithActiveDeployment(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, _ := newTestOrchestrator(ad)
	_, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	_, err = s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestDeployRejectsConcurrentOperationOnSameTarget(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ad := &mockAdapter{kind: "paas", onProvision: func() {
		close(started)
		<-release
	}}
	s, _ := newTestOrchestrator(ad)
	done := make(chan error, 1)
	go func() {
		_, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
		done <- err
	}()
	<-started
	_, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	assert.ErrorIs(t, err, model.ErrConflict)
	close(release)
	require.NoError(t, <-done)
}

func TestDeployReplaceTearsDownPreviousAfterActivation(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, records := newTestOrchestrator(ad)
	first, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	f := testForm()
	f.Artifact.Fingerprint = "sha256:def456"
	f.Replace = true
	second, err := s.Deploy(context.Background(), f, model.CredentialBundle{})
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusActive, second.Status)
	require.Len(t, ad.tornDown, 1)
	assert.Equal(t, first.Activation.Endpoint, ad.tornDown[0].Endpoint)
	old, err := records.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusTornDown, old.Status)
	owner, err := records.FindActive(context.Background(), "paas", "web-prod")
	require.NoError(t, err)
	assert.Equal(t, second.ID, owner.ID)
}

func TestDeployFailedReplaceLeavesPreviousActive(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, records := newTestOrchestrator(ad)
	first, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	ad.mu.Lock()
	ad.uploadErrs = []error{model.Permanent(fmt.Errorf("artifact rejected"))}
	ad.mu.Unlock()
	f := testForm()
	f.Replace = true
	_, err = s.Deploy(context.Background(), f, model.CredentialBundle{})
	require.Error(t, err)
	assert.Zero(t, ad.teardownCalls)
	old, err := records.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusActive, old.Status)
}

func TestDeploySurfacesNotResumableWithoutFailing(t *testing.T) {
	ad := &mockAdapter{kind: "paas", activateErrs: []error{
		model.Permanent(fmt.Errorf("release is gone: %w", model.ErrNotResumable)),
	}}
	s, records := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.ErrorIs(t, err, model.ErrNotResumable)
	assert.Equal(t, model.DeploymentStatusActivating, d.Status)
	saved, err := records.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.NotEqual(t, model.DeploymentStatusFailed, saved.Status)
}

func TestCancellationBetweenStepsIsResumable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ad := &mockAdapter{kind: "paas", onProvision: cancel}
	s, records := newTestOrchestrator(ad)
	d, err := s.Deploy(ctx, testForm(), model.CredentialBundle{})
	require.ErrorIs(t, err, model.ErrCanceled)
	// provisioning finished and was persisted before the cancellation took effect
	saved, err := records.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, "web-prod", saved.Provision.TargetName)
	assert.False(t, saved.Terminal())

	resumed, err := s.Resume(context.Background(), d.ID, model.CredentialBundle{})
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusActive, resumed.Status)
	assert.Equal(t, 1, ad.provisionCalls)
	assert.Equal(t, 1, ad.uploadCalls)
}

func TestResumeRejectsTerminalRecord(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, _ := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	_, err = s.Resume(context.Background(), d.ID, model.CredentialBundle{})
	assert.ErrorIs(t, err, model.ErrBadInput)
}

func TestResumeMissingRecord(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, _ := newTestOrchestrator(ad)
	_, err := s.Resume(context.Background(), "nope", model.CredentialBundle{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTeardownActiveDeployment(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, records := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	require.NoError(t, s.Teardown(context.Background(), d.ID, model.CredentialBundle{}))
	require.Len(t, ad.tornDown, 1)
	assert.Equal(t, d.Activation.Endpoint, ad.tornDown[0].Endpoint)
	saved, err := records.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusTornDown, saved.Status)
}

func TestTeardownIsIdempotent(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, _ := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	require.NoError(t, s.Teardown(context.Background(), d.ID, model.CredentialBundle{}))
	require.NoError(t, s.Teardown(context.Background(), d.ID, model.CredentialBundle{}))
	assert.Equal(t, 1, ad.teardownCalls)
}

func TestTeardownRejectsInProgressDeployment(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, records := newTestOrchestrator(ad)
	d := model.DeploymentRecord{
		ID:         "in-flight",
		TargetKind: "paas",
		TargetName: "web-prod",
		Status:     model.DeploymentStatusUploading,
		CreatedAt:  time.Now(),
	}
	_, err := records.Upsert(context.Background(), d)
	require.NoError(t, err)
	err = s.Teardown(context.Background(), d.ID, model.CredentialBundle{})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestTeardownFailedDeploymentUsesStoredHandles(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, records := newTestOrchestrator(ad)
	d := model.DeploymentRecord{
		ID:         "half-done",
		TargetKind: "paas",
		TargetName: "web-prod",
		Status:     model.DeploymentStatusFailed,
		Provision:  model.ProvisionHandle{TargetName: "web-prod", Data: map[string]string{"app": "web-prod"}},
		Upload:     model.UploadHandle{TargetName: "web-prod", Data: map[string]string{"release": "r1"}},
		CreatedAt:  time.Now(),
	}
	_, err := records.Upsert(context.Background(), d)
	require.NoError(t, err)
	require.NoError(t, s.Teardown(context.Background(), d.ID, model.CredentialBundle{}))
	require.Len(t, ad.tornDown, 1)
	assert.Equal(t, "r1", ad.tornDown[0].Data["release"])
}

func TestStatusReportsAndRecordsHealth(t *testing.T) {
	ad := &mockAdapter{kind: "paas", health: model.HealthDegraded}
	s, records := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	h, err := s.Status(context.Background(), d.ID, model.CredentialBundle{})
	require.NoError(t, err)
	assert.Equal(t, model.HealthDegraded, h)
	saved, err := records.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HealthDegraded, saved.LastHealth)
	require.NotNil(t, saved.ObservedAt)
}

func TestStatusTornDownSkipsRemoteCall(t *testing.T) {
	ad := &mockAdapter{kind: "paas", statusErr: model.Transient(fmt.Errorf("must not be called"))}
	s, _ := newTestOrchestrator(ad)
	d, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	require.NoError(t, s.Teardown(context.Background(), d.ID, model.CredentialBundle{}))
	h, err := s.Status(context.Background(), d.ID, model.CredentialBundle{})
	require.NoError(t, err)
	assert.Equal(t, model.HealthTornDown, h)
}

func TestStatusBeforeActivationIsUnknown(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, records := newTestOrchestrator(ad)
	d := model.DeploymentRecord{
		ID:         "early",
		TargetKind: "paas",
		TargetName: "web-prod",
		Status:     model.DeploymentStatusProvisioning,
		CreatedAt:  time.Now(),
	}
	_, err := records.Upsert(context.Background(), d)
	require.NoError(t, err)
	h, err := s.Status(context.Background(), d.ID, model.CredentialBundle{})
	require.NoError(t, err)
	assert.Equal(t, model.HealthUnknown, h)
}

func TestDeploymentsListsNewestFirst(t *testing.T) {
	ad := &mockAdapter{kind: "paas"}
	s, _ := newTestOrchestrator(ad)
	first, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	require.NoError(t, s.Teardown(context.Background(), first.ID, model.CredentialBundle{}))
	second, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
	require.NoError(t, err)
	list, err := s.Deployments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestBlockPolicyWaitsForSlot(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	ad := &mockAdapter{kind: "paas"}
	ad.onProvision = func() {
		once.Do(func() {
			close(started)
			<-release
		})
	}
	cfg := testConfig()
	cfg.ConflictPolicy = model.ConflictPolicyBlock
	records := store.NewMemory()
	s := NewOrchestrator(adapter.NewRegistry(ad), records, cfg)
	done := make(chan error, 1)
	go func() {
		_, err := s.Deploy(context.Background(), testForm(), model.CredentialBundle{})
		done <- err
	}()
	<-started
	second := make(chan error, 1)
	go func() {
		f := testForm()
		f.Replace = true
		_, err := s.Deploy(context.Background(), f, model.CredentialBundle{})
		second <- err
	}()
	select {
	case <-second:
		t.Fatal("the second deploy must wait for the slot")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-second)
}

func TestWrapContextKeepsSentinel(t *testing.T) {
	err := errors.WrapContext(model.ErrConflict, errors.Context{Path: "test"})
	assert.ErrorIs(t, err, model.ErrConflict)
}
