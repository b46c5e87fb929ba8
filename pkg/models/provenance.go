// Package models contains the audit record types and the sample entities
// the reconciliation engine is exercised with.
package models

import (
	"context"
)

// ProvenanceSource represents how an operation reached the service.
type ProvenanceSource string

const (
	SourceAPI    ProvenanceSource = "api"    // HTTP or RPC request on behalf of a user
	SourceCLI    ProvenanceSource = "cli"    // ekaya-audit command line
	SourceSystem ProvenanceSource = "system" // background jobs and migrations
)

// SystemActor is recorded when no actor is known.
const SystemActor = "system"

func (s ProvenanceSource) String() string {
	return string(s)
}

// IsValid returns true if the source is a known provenance source.
func (s ProvenanceSource) IsValid() bool {
	switch s {
	case SourceAPI, SourceCLI, SourceSystem:
		return true
	default:
		return false
	}
}

// ProvenanceContext carries who is acting, and through which surface,
// through a request.
type ProvenanceContext struct {
	Source ProvenanceSource

	// Actor identifies the user or service account. It is stored verbatim
	// as the audit record's performed_by.
	Actor string
}

type provenanceKey struct{}

// WithProvenance returns a new context with provenance information attached.
func WithProvenance(ctx context.Context, p ProvenanceContext) context.Context {
	return context.WithValue(ctx, provenanceKey{}, p)
}

// GetProvenance retrieves provenance information from the context.
func GetProvenance(ctx context.Context) (ProvenanceContext, bool) {
	p, ok := ctx.Value(provenanceKey{}).(ProvenanceContext)
	return p, ok
}

// WithActor is shorthand for API provenance with the given actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return WithProvenance(ctx, ProvenanceContext{Source: SourceAPI, Actor: actor})
}

// ActorFromContext returns the actor in ctx, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if p, ok := GetProvenance(ctx); ok && p.Actor != "" {
		return p.Actor
	}
	return SystemActor
}
