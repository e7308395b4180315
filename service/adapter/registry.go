package adapter

import (
	"fmt"
	"sort"

	"github.com/beldeveloper/deploy-lego/model"
)

// NewRegistry creates a new instance of the adapter registry.
func NewRegistry(adapters ...Service) Registry {
	m := make(map[string]Service, len(adapters))
	for _, a := range adapters {
		m[a.Kind()] = a
	}
	return Registry{adapters: m}
}

// Registry keeps the backend adapters keyed by the target kind.
type Registry struct {
	adapters map[string]Service
}

// Resolve returns the adapter for the specific target kind.
func (r Registry) Resolve(kind string) (Service, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s; registered kinds: %v", model.ErrUnknownKind, kind, r.Kinds())
	}
	return a, nil
}

// Kinds returns the sorted list of the registered target kinds.
func (r Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
