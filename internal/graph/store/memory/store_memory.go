// Package memory provides the in-memory graph store used by tests and
// single-process development. It intentionally favors clarity over
// performance.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"relationd/internal/graph"
	"relationd/pkg/platform/sentinel"
)

// Store keeps the whole graph behind one mutex, so the check-then-insert in
// ConnectProof is atomic in-process: concurrent writers of the same dedup
// tuple converge on a single edge, matching the uniqueness guarantees the
// PostgreSQL store enforces with indexes.
type Store struct {
	mu         sync.RWMutex
	identities map[uuid.UUID]*graph.Identity
	byKey      map[identityKey]uuid.UUID
	proofs     map[uuid.UUID]*graph.Proof
}

var _ graph.Store = (*Store)(nil)

type identityKey struct {
	platform graph.Platform
	identity string
}

// New builds an empty in-memory graph store.
func New() *Store {
	return &Store{
		identities: make(map[uuid.UUID]*graph.Identity),
		byKey:      make(map[identityKey]uuid.UUID),
		proofs:     make(map[uuid.UUID]*graph.Proof),
	}
}

func (s *Store) UpsertIdentity(_ context.Context, identity *graph.Identity) (*graph.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey{platform: identity.Platform, identity: identity.Identity}
	if id, ok := s.byKey[key]; ok {
		stored := s.identities[id]
		stored.DisplayName = identity.DisplayName
		stored.AvatarURL = identity.AvatarURL
		stored.ProfileURL = identity.ProfileURL
		stored.UpdatedAt = identity.UpdatedAt
		return cloneIdentity(stored), nil
	}

	stored := cloneIdentity(identity)
	if stored.UID == uuid.Nil {
		stored.UID = uuid.New()
	}
	s.identities[stored.UID] = stored
	s.byKey[key] = stored.UID
	return cloneIdentity(stored), nil
}

func (s *Store) FindIdentityByUUID(_ context.Context, id uuid.UUID) (*graph.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity, ok := s.identities[id]; ok {
		return cloneIdentity(identity), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) FindIdentityByPlatform(_ context.Context, platform graph.Platform, identity string) (*graph.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byKey[identityKey{platform: platform, identity: identity}]; ok {
		return cloneIdentity(s.identities[id]), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) Neighbors(_ context.Context, from uuid.UUID) ([]*graph.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var neighbors []*graph.Identity
	seen := make(map[uuid.UUID]struct{})
	for _, proof := range s.proofs {
		if proof.From != from {
			continue
		}
		if _, dup := seen[proof.To]; dup {
			continue
		}
		seen[proof.To] = struct{}{}
		if target, ok := s.identities[proof.To]; ok {
			neighbors = append(neighbors, cloneIdentity(target))
		}
	}
	return neighbors, nil
}

func (s *Store) ConnectProof(_ context.Context, from, to uuid.UUID, proof *graph.Proof) (*graph.Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[from]; !ok {
		return nil, sentinel.ErrNotFound
	}
	if _, ok := s.identities[to]; !ok {
		return nil, sentinel.ErrNotFound
	}

	if existing := s.findByTuple(proof.Tuple(from, to)); existing != nil {
		existing.LastFetchedAt = proof.LastFetchedAt
		return cloneProof(existing), nil
	}

	stored := cloneProof(proof)
	if stored.UID == uuid.Nil {
		stored.UID = uuid.New()
	}
	stored.From = from
	stored.To = to
	s.proofs[stored.UID] = stored
	return cloneProof(stored), nil
}

func (s *Store) FindProofByUUID(_ context.Context, id uuid.UUID) (*graph.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if proof, ok := s.proofs[id]; ok {
		return cloneProof(proof), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) FindProofByTuple(_ context.Context, tuple graph.ProofTuple) (*graph.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if proof := s.findByTuple(tuple); proof != nil {
		return cloneProof(proof), nil
	}
	return nil, sentinel.ErrNotFound
}

// findByTuple must be called with the lock held. A nil RecordID matches any
// edge with the same endpoints and source; a set RecordID matches exactly.
func (s *Store) findByTuple(tuple graph.ProofTuple) *graph.Proof {
	for _, proof := range s.proofs {
		if proof.From != tuple.From || proof.To != tuple.To || proof.Source != tuple.Source {
			continue
		}
		if tuple.RecordID == nil {
			return proof
		}
		if proof.RecordID != nil && *proof.RecordID == *tuple.RecordID {
			return proof
		}
	}
	return nil
}

func cloneIdentity(i *graph.Identity) *graph.Identity {
	c := *i
	if i.AvatarURL != nil {
		v := *i.AvatarURL
		c.AvatarURL = &v
	}
	if i.ProfileURL != nil {
		v := *i.ProfileURL
		c.ProfileURL = &v
	}
	if i.CreatedAt != nil {
		t := *i.CreatedAt
		c.CreatedAt = &t
	}
	return &c
}

func cloneProof(p *graph.Proof) *graph.Proof {
	c := *p
	if p.RecordID != nil {
		v := *p.RecordID
		c.RecordID = &v
	}
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		c.CreatedAt = &t
	}
	return &c
}
