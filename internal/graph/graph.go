// Package graph defines the identity-graph data model: typed vertices and
// edges, the generic contracts they satisfy, and the Store interface the
// persistence layer implements.
//
// The store layer stays kind-agnostic: a concrete vertex or edge kind brings
// its own upsert key and dedup semantics, and satisfies Vertex or Edge so the
// query surface and connectors can treat all kinds uniformly.
package graph

import (
	"context"

	"github.com/google/uuid"
)

// Vertex is implemented by node kinds persisted in the identity graph,
// parameterized by the persisted record type R.
type Vertex[R any] interface {
	// UUID returns the vertex's identity, or uuid.Nil if not yet assigned.
	UUID() uuid.UUID

	// CreateOrUpdate upserts this vertex. The store resolves the kind's
	// natural key to an existing record and updates mutable fields, or
	// inserts a new record if none exists.
	CreateOrUpdate(ctx context.Context, g Store) (R, error)

	// Neighbors returns all vertices directly linked by any outgoing edge.
	// Order is not guaranteed.
	Neighbors(ctx context.Context, g Store) ([]R, error)
}

// Edge is implemented by directed link kinds between two vertex records,
// parameterized by the endpoint record types and the persisted record type R.
type Edge[From, To, R any] interface {
	// UUID returns the edge's identity, or uuid.Nil if not yet assigned.
	UUID() uuid.UUID

	// Connect upserts the directed link from → to. The kind's dedup key
	// decides whether an equivalent edge already exists; re-observing the
	// same fact must return the existing record, never create a second one.
	Connect(ctx context.Context, g Store, from From, to To) (R, error)
}

// Store is the graph persistence contract. Implementations provide point
// lookup by uuid, natural-key resolution for upserts, dedup-tuple filtering,
// directed-edge creation, and the uniqueness enforcement that makes
// concurrent duplicate writers converge on a single edge.
//
// Lookups return sentinel.ErrNotFound (possibly wrapped) for absent records;
// callers decide whether that is an error at their boundary.
//
// The store handle is passed explicitly rather than held as a process-wide
// singleton so tests can substitute an isolated instance.
type Store interface {
	// UpsertIdentity resolves (platform, identity) to an existing vertex and
	// updates DisplayName, AvatarURL, ProfileURL and UpdatedAt, or inserts a
	// new vertex with a fresh uuid. The returned record reflects the stored
	// state: an update keeps the original uuid and AddedAt.
	UpsertIdentity(ctx context.Context, identity *Identity) (*Identity, error)

	// FindIdentityByUUID is a point lookup on the vertex uuid.
	FindIdentityByUUID(ctx context.Context, id uuid.UUID) (*Identity, error)

	// FindIdentityByPlatform resolves the natural key (platform, identity).
	FindIdentityByPlatform(ctx context.Context, platform Platform, identity string) (*Identity, error)

	// Neighbors returns the target vertices of all outgoing edges of the
	// given vertex. Order is not guaranteed.
	Neighbors(ctx context.Context, from uuid.UUID) ([]*Identity, error)

	// ConnectProof creates the directed edge from → to carrying the proof's
	// fields, or returns the existing edge matching the proof's dedup tuple
	// (from, to, source, record_id) with LastFetchedAt refreshed. The check
	// and insert are atomic with respect to concurrent callers: two writers
	// racing on the same tuple converge on one edge, and the first writer's
	// uuid survives.
	ConnectProof(ctx context.Context, from, to uuid.UUID, proof *Proof) (*Proof, error)

	// FindProofByUUID is a point lookup on the edge uuid, independent of
	// direction or endpoints.
	FindProofByUUID(ctx context.Context, id uuid.UUID) (*Proof, error)

	// FindProofByTuple resolves the dedup tuple to an existing edge, without
	// writing. A nil RecordID matches any edge with the same endpoints and
	// source; a set RecordID matches exactly.
	FindProofByTuple(ctx context.Context, tuple ProofTuple) (*Proof, error)
}

// ProofTuple is the dedup key for Proof edges. Direction matters:
// (From, To) and (To, From) name two distinct edges.
type ProofTuple struct {
	From     uuid.UUID
	To       uuid.UUID
	Source   DataSource
	RecordID *string
}
