package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/service/adapter"
	"github.com/beldeveloper/deploy-lego/service/store"
	"github.com/beldeveloper/go-errors-context"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// NewOrchestrator creates a new instance of the deployment orchestrator.
func NewOrchestrator(adapters adapter.Registry, records store.Service, cfg model.OrchestratorConfig) Orchestrator {
	return Orchestrator{
		adapters: adapters,
		records:  records,
		cfg:      cfg,
		locks:    newTargetLocker(cfg.ConflictPolicy),
	}
}

// Orchestrator implements the deployment orchestrator. It owns the record
// lifecycle; the remote side effects belong to the adapters.
type Orchestrator struct {
	adapters adapter.Registry
	records  store.Service
	cfg      model.OrchestratorConfig
	locks    *targetLocker
}

// Deploy drives the artifact through provision, upload and activate on the
// requested target. Every step transition is persisted before the step runs,
// so a crash leaves a record that Resume can continue from. Cancellation is
// honored between the steps only; once activation has begun the deployment
// runs to completion and the caller should use Teardown instead.
func (s Orchestrator) Deploy(ctx context.Context, f model.FormDeploy, c model.CredentialBundle) (model.DeploymentRecord, error) {
	ad, err := s.adapters.Resolve(f.Target.Kind)
	if err != nil {
		return model.DeploymentRecord{}, err
	}
	unlock, err := s.locks.acquire(f.Target.Kind, f.Target.Name)
	if err != nil {
		return model.DeploymentRecord{}, err
	}
	defer unlock()
	prev, err := s.records.FindActive(ctx, f.Target.Kind, f.Target.Name)
	replacing := false
	switch {
	case err == nil && prev.InProgress():
		return model.DeploymentRecord{}, fmt.Errorf(
			"%w: deployment %s is %s on target %s/%s",
			model.ErrConflict, prev.ID, prev.Status, f.Target.Kind, f.Target.Name,
		)
	case err == nil && !f.Replace:
		return model.DeploymentRecord{}, fmt.Errorf(
			"%w: deployment %s is already active on target %s/%s; request replace to supersede it",
			model.ErrConflict, prev.ID, f.Target.Kind, f.Target.Name,
		)
	case err == nil:
		replacing = true
	case !errors.Is(err, model.ErrNotFound):
		return model.DeploymentRecord{}, errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Deploy: find active",
			Params: errors.Params{"kind": f.Target.Kind, "name": f.Target.Name},
		})
	}
	now := time.Now()
	d := model.DeploymentRecord{
		ID:                  uuid.NewString(),
		TargetKind:          f.Target.Kind,
		TargetName:          f.Target.Name,
		TargetParams:        f.Target.Params,
		ArtifactID:          f.Artifact.ID,
		ArtifactURI:         f.Artifact.URI,
		ArtifactFingerprint: f.Artifact.Fingerprint,
		Status:              model.DeploymentStatusPending,
		CreatedAt:           now,
		Transitions:         []model.StatusTransition{{Status: model.DeploymentStatusPending, At: now}},
	}
	d, err = s.records.Upsert(ctx, d)
	if err != nil {
		return d, errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Deploy: create record",
			Params: errors.Params{"deployment": d.ID},
		})
	}
	d, err = s.advance(ctx, ad, d, c)
	if err != nil {
		return d, err
	}
	if replacing {
		// blue/green: the previous activation is released only after the new
		// one is active, so the target slot never serves nothing
		if terr := s.releaseRecord(ctx, ad, prev, c); terr != nil {
			log.Println(errors.WrapContext(terr, errors.Context{
				Path:   "service.orchestrator.Deploy: release replaced deployment",
				Params: errors.Params{"deployment": prev.ID},
			}))
		}
		// the record is retired even if the remote release failed, since the
		// slot must have a single owner; the failure above is for the operator
		if _, terr := s.transition(ctx, prev, model.DeploymentStatusTornDown); terr != nil {
			log.Println(terr)
		}
	}
	log.Printf("The deployment %s is active on target %s/%s\n", d.ID, d.TargetKind, d.TargetName)
	return d, nil
}

// Resume continues a non-terminal deployment from its last completed step.
// If the adapter no longer recognizes a stored handle, the record is left
// untouched and the failure is surfaced.
func (s Orchestrator) Resume(ctx context.Context, id string, c model.CredentialBundle) (model.DeploymentRecord, error) {
	d, err := s.records.Get(ctx, id)
	if err != nil {
		return d, errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Resume: get record",
			Params: errors.Params{"deployment": id},
		})
	}
	ad, err := s.adapters.Resolve(d.TargetKind)
	if err != nil {
		return d, err
	}
	unlock, err := s.locks.acquire(d.TargetKind, d.TargetName)
	if err != nil {
		return d, err
	}
	defer unlock()
	d, err = s.records.Get(ctx, id)
	if err != nil {
		return d, errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Resume: reread record",
			Params: errors.Params{"deployment": id},
		})
	}
	if d.Terminal() {
		return d, fmt.Errorf("%w: deployment %s is %s and cannot be resumed", model.ErrBadInput, id, d.Status)
	}
	return s.advance(ctx, ad, d, c)
}

// Teardown releases the remote resources of an active or failed deployment
// and marks the record torn down. A deployment that is mid-transition is
// rejected; a torn down one is a no-op.
func (s Orchestrator) Teardown(ctx context.Context, id string, c model.CredentialBundle) error {
	d, err := s.records.Get(ctx, id)
	if err != nil {
		return errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Teardown: get record",
			Params: errors.Params{"deployment": id},
		})
	}
	ad, err := s.adapters.Resolve(d.TargetKind)
	if err != nil {
		return err
	}
	unlock, err := s.locks.acquire(d.TargetKind, d.TargetName)
	if err != nil {
		return err
	}
	defer unlock()
	d, err = s.records.Get(ctx, id)
	if err != nil {
		return errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Teardown: reread record",
			Params: errors.Params{"deployment": id},
		})
	}
	if d.InProgress() {
		return fmt.Errorf("%w: deployment %s is %s; wait for it to settle or resume it first", model.ErrConflict, id, d.Status)
	}
	if d.Status == model.DeploymentStatusTornDown {
		return nil
	}
	if err = s.releaseRecord(ctx, ad, d, c); err != nil {
		return err
	}
	_, err = s.transition(ctx, d, model.DeploymentStatusTornDown)
	if err != nil {
		return err
	}
	log.Printf("The deployment %s is torn down\n", id)
	return nil
}

// Status reports the health of the deployment and appends the observation to
// the record. A torn down deployment reports HealthTornDown without a remote
// call; a deployment that never activated reports HealthUnknown.
func (s Orchestrator) Status(ctx context.Context, id string, c model.CredentialBundle) (model.HealthState, error) {
	d, err := s.records.Get(ctx, id)
	if err != nil {
		return model.HealthUnknown, errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Status: get record",
			Params: errors.Params{"deployment": id},
		})
	}
	if d.Status == model.DeploymentStatusTornDown {
		return model.HealthTornDown, nil
	}
	if d.Activation.Empty() {
		return model.HealthUnknown, nil
	}
	ad, err := s.adapters.Resolve(d.TargetKind)
	if err != nil {
		return model.HealthUnknown, err
	}
	stepCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()
	h, err := ad.Status(stepCtx, d.Activation, c)
	if err != nil {
		return h, errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Status: adapter",
			Params: errors.Params{"deployment": id},
		})
	}
	now := time.Now()
	d.LastHealth = h
	d.ObservedAt = &now
	_, err = s.records.Upsert(ctx, d)
	if err != nil {
		return h, errors.WrapContext(err, errors.Context{
			Path:   "service.orchestrator.Status: record observation",
			Params: errors.Params{"deployment": id},
		})
	}
	return h, nil
}

// Deployments returns all deployment records, newest first.
func (s Orchestrator) Deployments(ctx context.Context) ([]model.DeploymentRecord, error) {
	res, err := s.records.List(ctx)
	return res, errors.WrapContext(err, errors.Context{Path: "service.orchestrator.Deployments"})
}

// advance walks the record through the steps that are still missing their
// handles. The step status is persisted before the step runs.
func (s Orchestrator) advance(ctx context.Context, ad adapter.Service, d model.DeploymentRecord, c model.CredentialBundle) (model.DeploymentRecord, error) {
	var err error
	if d.Provision.Empty() {
		if err = canceled(ctx, d.ID); err != nil {
			return d, err
		}
		if d, err = s.transition(ctx, d, model.DeploymentStatusProvisioning); err != nil {
			return d, err
		}
		err = s.runStep(ctx, false, func(stepCtx context.Context) error {
			h, stepErr := ad.Provision(stepCtx, d.Target(), c)
			if stepErr != nil {
				return stepErr
			}
			d.Provision = h
			return nil
		})
		if err != nil {
			return s.fail(ctx, d, "provision", err)
		}
		if d, err = s.persist(ctx, d); err != nil {
			return d, err
		}
	}
	if d.Upload.Empty() {
		if err = canceled(ctx, d.ID); err != nil {
			return d, err
		}
		if d, err = s.transition(ctx, d, model.DeploymentStatusUploading); err != nil {
			return d, err
		}
		err = s.runStep(ctx, false, func(stepCtx context.Context) error {
			h, stepErr := ad.Upload(stepCtx, d.Provision, d.Artifact(), c)
			if stepErr != nil {
				return stepErr
			}
			d.Upload = h
			return nil
		})
		if err != nil {
			return s.fail(ctx, d, "upload", err)
		}
		if d, err = s.persist(ctx, d); err != nil {
			return d, err
		}
	}
	if d.Activation.Empty() {
		if err = canceled(ctx, d.ID); err != nil {
			return d, err
		}
		if d, err = s.transition(ctx, d, model.DeploymentStatusActivating); err != nil {
			return d, err
		}
		// activation runs to completion even if the caller goes away
		err = s.runStep(ctx, true, func(stepCtx context.Context) error {
			i, stepErr := ad.Activate(stepCtx, d.Upload, c)
			if stepErr != nil {
				return stepErr
			}
			d.Activation = i
			return nil
		})
		if err != nil {
			return s.fail(ctx, d, "activate", err)
		}
	}
	return s.transition(ctx, d, model.DeploymentStatusActive)
}

// runStep executes one adapter step with bounded exponential backoff on
// transient failures. Each attempt gets its own timeout and is never
// interrupted mid-call; with detach set, the retry loop itself also ignores
// the caller's cancellation.
func (s Orchestrator) runStep(ctx context.Context, detach bool, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	attempts := s.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var policy backoff.BackOff = backoff.WithMaxRetries(b, uint64(attempts-1))
	if !detach {
		policy = backoff.WithContext(policy, ctx)
	}
	return backoff.Retry(func() error {
		stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StepTimeout)
		defer cancel()
		err := fn(stepCtx)
		if err == nil {
			return nil
		}
		if model.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// releaseRecord invokes the adapter teardown with the best handle the record
// has. A record that failed before provisioning has no remote resources, so
// no remote call is made for it.
func (s Orchestrator) releaseRecord(ctx context.Context, ad adapter.Service, d model.DeploymentRecord, c model.CredentialBundle) error {
	info := d.Activation
	if info.Empty() && !d.Upload.Empty() {
		info = model.ActivationInfo{TargetName: d.TargetName, Data: d.Upload.Data}
	}
	if info.Empty() && !d.Provision.Empty() {
		info = model.ActivationInfo{TargetName: d.TargetName, Data: d.Provision.Data}
	}
	if info.Empty() {
		return nil
	}
	err := s.runStep(ctx, false, func(stepCtx context.Context) error {
		return ad.Teardown(stepCtx, info, c)
	})
	return errors.WrapContext(err, errors.Context{
		Path:   "service.orchestrator.releaseRecord",
		Params: errors.Params{"deployment": d.ID},
	})
}

// fail marks the record failed and keeps the remote resources in place: a
// silent cleanup could hide partially-active state from the operator. The
// only exception is a resumability failure, which leaves the record as-is so
// the operator can inspect it.
func (s Orchestrator) fail(ctx context.Context, d model.DeploymentRecord, step string, cause error) (model.DeploymentRecord, error) {
	if errors.Is(cause, model.ErrNotResumable) {
		return d, cause
	}
	d.LastError = cause.Error()
	failed, err := s.transition(ctx, d, model.DeploymentStatusFailed)
	if err != nil {
		return d, err
	}
	return failed, errors.WrapContext(cause, errors.Context{
		Path:   "service.orchestrator." + step,
		Params: errors.Params{"deployment": d.ID},
	})
}

func (s Orchestrator) transition(ctx context.Context, d model.DeploymentRecord, status string) (model.DeploymentRecord, error) {
	d.Status = status
	d.Transitions = append(d.Transitions, model.StatusTransition{Status: status, At: time.Now()})
	d, err := s.records.Upsert(ctx, d)
	return d, errors.WrapContext(err, errors.Context{
		Path:   "service.orchestrator.transition",
		Params: errors.Params{"deployment": d.ID, "status": status},
	})
}

func (s Orchestrator) persist(ctx context.Context, d model.DeploymentRecord) (model.DeploymentRecord, error) {
	d, err := s.records.Upsert(ctx, d)
	return d, errors.WrapContext(err, errors.Context{
		Path:   "service.orchestrator.persist",
		Params: errors.Params{"deployment": d.ID},
	})
}

func canceled(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: deployment %s: %s", model.ErrCanceled, id, err)
	}
	return nil
}
