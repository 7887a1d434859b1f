// Package upstream defines the connector contract: one Fetcher per upstream
// platform, each normalizing that platform's API responses into Identity
// pairs and Proof edges materialized in the graph store.
package upstream

import (
	"context"
	"fmt"

	"relationd/internal/graph"
)

// Connection is the normalized unit a Fetcher emits per discovered link. It
// is not persisted as its own entity; it only aggregates the records
// materialized as a side effect of the fetch.
type Connection struct {
	From  *graph.Identity `json:"from"`
	To    *graph.Identity `json:"to"`
	Proof *graph.Proof    `json:"proof"`
}

// Fetcher pulls raw data from one upstream service and materializes it.
//
// Fetch is not a pure read: every successfully linked item causes two vertex
// upserts and one idempotent edge upsert against the store. Each item is its
// own unit of work, so a failure or cancellation partway through leaves
// earlier items materialized; that is safe because every upsert is
// independently idempotent and a retry converges.
//
// Error contract:
//   - domain-errors CodeBadRequest before any I/O for malformed input
//   - domain-errors CodeUpstream for non-success responses or an embedded
//     failure status, carrying the upstream's own diagnostic text
//   - sentinel.ErrNoResult (wrapped) when the upstream cannot resolve the
//     subject at all, as distinct from a resolved subject with zero links,
//     which returns an empty slice and no error
//   - store errors propagate unwrapped
//
// Items whose platform string is outside the closed Platform enumeration are
// skipped silently; upstreams assert proof types this system does not model.
type Fetcher interface {
	Fetch(ctx context.Context, platform graph.Platform, identity string) ([]Connection, error)
}

// Registry resolves the Fetcher responsible for a subject platform.
// Connectors are registered at wiring time; add-a-platform is a new enum
// variant plus a new Fetcher, nothing else.
type Registry struct {
	fetchers map[graph.Platform]Fetcher
}

// NewRegistry builds an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[graph.Platform]Fetcher)}
}

// Register binds a connector to the subject platform it serves.
func (r *Registry) Register(platform graph.Platform, fetcher Fetcher) {
	r.fetchers[platform] = fetcher
}

// For returns the connector for a platform.
func (r *Registry) For(platform graph.Platform) (Fetcher, error) {
	fetcher, ok := r.fetchers[platform]
	if !ok {
		return nil, fmt.Errorf("no connector registered for platform %q", platform)
	}
	return fetcher, nil
}

// Platforms lists the platforms with a registered connector.
func (r *Registry) Platforms() []graph.Platform {
	platforms := make([]graph.Platform, 0, len(r.fetchers))
	for p := range r.fetchers {
		platforms = append(platforms, p)
	}
	return platforms
}
