// Package storetest provides the behavior contract that every deployment
// record store implementation must satisfy.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/service/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the store contract against a fresh store produced by the factory.
func Run(t *testing.T, factory func(t *testing.T) store.Service) {
	t.Run("GetMissing", func(t *testing.T) {
		s := factory(t)
		_, err := s.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
	t.Run("UpsertAndGet", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		d := record("d1", "paas", "svc-1", model.DeploymentStatusPending, time.Now().UTC())
		_, err := s.Upsert(ctx, d)
		require.NoError(t, err)
		got, err := s.Get(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, d.TargetKind, got.TargetKind)
		assert.Equal(t, d.TargetName, got.TargetName)
		assert.Equal(t, model.DeploymentStatusPending, got.Status)
	})
	t.Run("UpsertReplacesRecord", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		d := record("d1", "paas", "svc-1", model.DeploymentStatusPending, time.Now().UTC())
		_, err := s.Upsert(ctx, d)
		require.NoError(t, err)
		d.Status = model.DeploymentStatusActive
		d.Activation = model.ActivationInfo{TargetName: "svc-1", Endpoint: "https://svc-1.example.com"}
		_, err = s.Upsert(ctx, d)
		require.NoError(t, err)
		got, err := s.Get(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, model.DeploymentStatusActive, got.Status)
		assert.Equal(t, "https://svc-1.example.com", got.Activation.Endpoint)
	})
	t.Run("FindReturnsNewest", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		base := time.Now().UTC().Add(-time.Hour)
		_, err := s.Upsert(ctx, record("d1", "paas", "svc-1", model.DeploymentStatusTornDown, base))
		require.NoError(t, err)
		_, err = s.Upsert(ctx, record("d2", "paas", "svc-1", model.DeploymentStatusActive, base.Add(time.Minute)))
		require.NoError(t, err)
		got, err := s.Find(ctx, "paas", "svc-1")
		require.NoError(t, err)
		assert.Equal(t, "d2", got.ID)
	})
	t.Run("FindActiveSkipsTerminalFailures", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		base := time.Now().UTC().Add(-time.Hour)
		_, err := s.Upsert(ctx, record("d1", "paas", "svc-1", model.DeploymentStatusActive, base))
		require.NoError(t, err)
		_, err = s.Upsert(ctx, record("d2", "paas", "svc-1", model.DeploymentStatusFailed, base.Add(time.Minute)))
		require.NoError(t, err)
		got, err := s.FindActive(ctx, "paas", "svc-1")
		require.NoError(t, err)
		assert.Equal(t, "d1", got.ID)

		_, err = s.FindActive(ctx, "paas", "other")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
	t.Run("ListNewestFirst", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		base := time.Now().UTC().Add(-time.Hour)
		_, err := s.Upsert(ctx, record("d1", "paas", "svc-1", model.DeploymentStatusActive, base))
		require.NoError(t, err)
		_, err = s.Upsert(ctx, record("d2", "githost", "docs", model.DeploymentStatusPending, base.Add(time.Minute)))
		require.NoError(t, err)
		res, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "d2", res[0].ID)
		assert.Equal(t, "d1", res[1].ID)
	})
}

func record(id, kind, name, status string, createdAt time.Time) model.DeploymentRecord {
	return model.DeploymentRecord{
		ID:                  id,
		TargetKind:          kind,
		TargetName:          name,
		ArtifactID:          "artifact-1",
		ArtifactFingerprint: "sha256:abc",
		Status:              status,
		CreatedAt:           createdAt,
		Transitions:         []model.StatusTransition{{Status: status, At: createdAt}},
	}
}
