package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Proof is a directed edge between two Identity vertices asserting that both
// accounts are controlled by the same party, tagged with provenance.
//
// Invariants:
//   - At most one edge exists per (From, To, Source, RecordID) tuple.
//     Re-fetching the same fact returns the existing edge with
//     LastFetchedAt refreshed; it never creates a second edge.
//   - Direction is meaningful: the edge states origin and target of the
//     assertion, so (A, B) and (B, A) are distinct edges.
//   - UID, Source, RecordID and CreatedAt are immutable once stored.
type Proof struct {
	// UID is the edge uuid; uuid.Nil until the edge is stored. Assigned by
	// this system for global addressability across data exchanges.
	UID uuid.UUID `json:"uuid"`
	// Source is the upstream service that asserted the link.
	Source DataSource `json:"source"`
	// RecordID locates the asserting record at the source, if it has one.
	RecordID *string `json:"record_id,omitempty"`
	// CreatedAt is the upstream-reported assertion time, if given.
	CreatedAt *time.Time `json:"created_at,omitempty"`
	// LastFetchedAt is bumped every time this fact is re-observed.
	LastFetchedAt time.Time `json:"last_fetched_at"`

	// From and To are the endpoint vertex uuids, set once stored.
	From uuid.UUID `json:"from"`
	To   uuid.UUID `json:"to"`
}

var _ Edge[*Identity, *Identity, *Proof] = (*Proof)(nil)

// NewProof builds an unstored Proof edge observed at now.
func NewProof(source DataSource, recordID *string, createdAt *time.Time, now time.Time) *Proof {
	return &Proof{
		Source:        source,
		RecordID:      recordID,
		CreatedAt:     createdAt,
		LastFetchedAt: now,
	}
}

// UUID returns the edge uuid, or uuid.Nil if not yet assigned.
func (p *Proof) UUID() uuid.UUID {
	return p.UID
}

// Connect upserts the directed edge from → to. Both endpoints must already be
// stored. Re-connecting an equivalent proof returns the stored edge with the
// first writer's uuid.
func (p *Proof) Connect(ctx context.Context, g Store, from, to *Identity) (*Proof, error) {
	return g.ConnectProof(ctx, from.UID, to.UID, p)
}

// Tuple returns the dedup key this proof occupies between from and to.
func (p *Proof) Tuple(from, to uuid.UUID) ProofTuple {
	return ProofTuple{From: from, To: to, Source: p.Source, RecordID: p.RecordID}
}

// FindProofByUUID is a point lookup keyed purely on the edge's own uuid.
func FindProofByUUID(ctx context.Context, g Store, id uuid.UUID) (*Proof, error) {
	return g.FindProofByUUID(ctx, id)
}
