package store

import (
	"context"

	"github.com/beldeveloper/deploy-lego/model"
)

// Service defines the interface of the deployment record store. Writes are
// atomic per record: a concurrent reader never observes a record with only
// some of its fields updated.
type Service interface {
	// Upsert saves the record, replacing the stored one with the same ID.
	Upsert(ctx context.Context, d model.DeploymentRecord) (model.DeploymentRecord, error)
	// Get returns the record with the specific ID.
	Get(ctx context.Context, id string) (model.DeploymentRecord, error)
	// Find returns the most recent record for the target slot.
	Find(ctx context.Context, kind, name string) (model.DeploymentRecord, error)
	// FindActive returns the record that currently owns the target slot:
	// the one that is active or still in progress.
	FindActive(ctx context.Context, kind, name string) (model.DeploymentRecord, error)
	// List returns all records ordered by creation time, newest first.
	List(ctx context.Context) ([]model.DeploymentRecord, error)
}
