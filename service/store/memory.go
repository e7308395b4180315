package store

import (
	"context"
	"sort"
	"sync"

	"github.com/beldeveloper/deploy-lego/model"
)

// NewMemory creates a new instance of the in-memory deployment record store.
// It backs the tests and the single-shot dry-run mode of the CLI.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.DeploymentRecord)}
}

// Memory implements the deployment record store on top of a mutex-guarded map.
type Memory struct {
	mu      sync.RWMutex
	records map[string]model.DeploymentRecord
}

// Upsert saves the record, replacing the stored one with the same ID.
func (m *Memory) Upsert(ctx context.Context, d model.DeploymentRecord) (model.DeploymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[d.ID] = cloneRecord(d)
	return d, nil
}

// Get returns the record with the specific ID.
func (m *Memory) Get(ctx context.Context, id string) (model.DeploymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.records[id]
	if !ok {
		return model.DeploymentRecord{}, model.ErrNotFound
	}
	return cloneRecord(d), nil
}

// Find returns the most recent record for the target slot.
func (m *Memory) Find(ctx context.Context, kind, name string) (model.DeploymentRecord, error) {
	return m.find(kind, name, func(model.DeploymentRecord) bool { return true })
}

// FindActive returns the record that currently owns the target slot.
func (m *Memory) FindActive(ctx context.Context, kind, name string) (model.DeploymentRecord, error) {
	return m.find(kind, name, func(d model.DeploymentRecord) bool {
		return d.Status != model.DeploymentStatusFailed && d.Status != model.DeploymentStatusTornDown
	})
}

// List returns all records ordered by creation time, newest first.
func (m *Memory) List(ctx context.Context) ([]model.DeploymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]model.DeploymentRecord, 0, len(m.records))
	for _, d := range m.records {
		res = append(res, cloneRecord(d))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *Memory) find(kind, name string, match func(model.DeploymentRecord) bool) (model.DeploymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res model.DeploymentRecord
	var found bool
	for _, d := range m.records {
		if d.TargetKind != kind || d.TargetName != name || !match(d) {
			continue
		}
		if !found || d.CreatedAt.After(res.CreatedAt) {
			res = d
			found = true
		}
	}
	if !found {
		return model.DeploymentRecord{}, model.ErrNotFound
	}
	return cloneRecord(res), nil
}

func cloneRecord(d model.DeploymentRecord) model.DeploymentRecord {
	c := d
	c.TargetParams = cloneMap(d.TargetParams)
	c.Provision.Data = cloneMap(d.Provision.Data)
	c.Upload.Data = cloneMap(d.Upload.Data)
	c.Activation.Data = cloneMap(d.Activation.Data)
	if d.Transitions != nil {
		c.Transitions = make([]model.StatusTransition, len(d.Transitions))
		copy(c.Transitions, d.Transitions)
	}
	if d.ObservedAt != nil {
		at := *d.ObservedAt
		c.ObservedAt = &at
	}
	return c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
