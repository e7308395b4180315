package orchestrator

import (
	"fmt"
	"sync"

	"github.com/beldeveloper/deploy-lego/model"
)

// targetLocker serializes the operations per target slot. Depending on the
// configured policy a busy slot either blocks the caller or rejects it with
// a conflict error.
type targetLocker struct {
	policy string
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
}

func newTargetLocker(policy string) *targetLocker {
	return &targetLocker{policy: policy, locks: make(map[string]*sync.Mutex)}
}

// acquire takes the slot lock and returns the release function.
func (l *targetLocker) acquire(kind, name string) (func(), error) {
	key := kind + "/" + name
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	if l.policy == model.ConflictPolicyBlock {
		m.Lock()
		return m.Unlock, nil
	}
	if !m.TryLock() {
		return nil, fmt.Errorf("%w: another operation is in flight for target %s", model.ErrConflict, key)
	}
	return m.Unlock, nil
}
