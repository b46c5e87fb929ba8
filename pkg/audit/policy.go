package audit

import (
	"sync"

	"github.com/ekaya-inc/ekaya-audit/pkg/reconcile"
)

// Policy is what the recorder strips from the records of one entity type.
type Policy struct {
	// Redact names fields removed from snapshots and changes.
	Redact reconcile.FieldSet
	// Skip names fields left out of change detection.
	Skip reconcile.FieldSet
}

// PolicySet maps entity types to policies. Every entity type also gets the
// default redact and skip names.
type PolicySet struct {
	mu       sync.RWMutex
	defaults Policy
	byType   map[string]Policy
}

func NewPolicySet(defaultRedact, defaultSkip []string) *PolicySet {
	return &PolicySet{
		defaults: Policy{
			Redact: reconcile.NewFieldSet(defaultRedact...),
			Skip:   reconcile.NewFieldSet(defaultSkip...),
		},
		byType: make(map[string]Policy),
	}
}

// Set replaces the entity-specific names for entityType.
func (p *PolicySet) Set(entityType string, redact, skip []string) {
	policy := Policy{
		Redact: p.defaults.Redact.Union(reconcile.NewFieldSet(redact...)),
		Skip:   p.defaults.Skip.Union(reconcile.NewFieldSet(skip...)),
	}

	p.mu.Lock()
	p.byType[entityType] = policy
	p.mu.Unlock()
}

// For returns the policy for entityType, falling back to the defaults.
func (p *PolicySet) For(entityType string) Policy {
	if p == nil {
		return Policy{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if policy, ok := p.byType[entityType]; ok {
		return policy
	}
	return p.defaults
}
