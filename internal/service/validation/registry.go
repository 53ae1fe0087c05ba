package validation

import (
	"sync"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// Registry maps predicate references from the requirement catalog to
// executable predicates. Requirements reference predicates by name; there
// is no dynamic rule-text execution anywhere in the pipeline.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

// NewRegistry creates an empty predicate registry.
func NewRegistry() *Registry {
	return &Registry{predicates: make(map[string]Predicate)}
}

// Register binds a predicate to a reference, replacing any previous
// binding.
func (r *Registry) Register(ref string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[ref] = p
}

// Lookup resolves a predicate reference.
func (r *Registry) Lookup(ref string) (Predicate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[ref]
	if !ok {
		return nil, errors.NewPredicateError(ref, "no predicate registered for reference "+ref)
	}
	return p, nil
}

// Refs returns the registered references, for diagnostics.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]string, 0, len(r.predicates))
	for ref := range r.predicates {
		refs = append(refs, ref)
	}
	return refs
}
