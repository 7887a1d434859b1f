package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identity is a vertex: one account on one platform.
//
// Invariants:
//   - (Platform, Identity) is the natural external key; at most one vertex
//     exists per pair. Rediscovering the same account updates the existing
//     vertex, never creates a duplicate.
//   - UID, Platform, Identity and AddedAt are immutable once stored.
//   - DisplayName, AvatarURL and ProfileURL refresh on every rediscovery;
//     UpdatedAt is bumped alongside them.
//
// UID is assigned by this system rather than taken from any upstream so
// records stay globally addressable regardless of which source produced them.
type Identity struct {
	// UID is the record uuid; uuid.Nil until the vertex is stored.
	UID uuid.UUID `json:"uuid"`
	// Platform is the account namespace.
	Platform Platform `json:"platform"`
	// Identity is the platform-native account identifier.
	Identity string `json:"identity"`
	// DisplayName is the human-readable name the upstream reported.
	DisplayName string `json:"display_name"`
	// AvatarURL and ProfileURL are optional and refreshable.
	AvatarURL  *string `json:"avatar_url,omitempty"`
	ProfileURL *string `json:"profile_url,omitempty"`
	// CreatedAt is the upstream-reported account creation time, if given.
	CreatedAt *time.Time `json:"created_at,omitempty"`
	// AddedAt is when this system first saw the account.
	AddedAt time.Time `json:"added_at"`
	// UpdatedAt is bumped on every refresh.
	UpdatedAt time.Time `json:"updated_at"`
}

var _ Vertex[*Identity] = (*Identity)(nil)

// NewIdentity builds an unstored Identity vertex stamped with now.
func NewIdentity(platform Platform, identity, displayName string, now time.Time) *Identity {
	return &Identity{
		Platform:    platform,
		Identity:    identity,
		DisplayName: displayName,
		AddedAt:     now,
		UpdatedAt:   now,
	}
}

// UUID returns the vertex uuid, or uuid.Nil if not yet assigned.
func (i *Identity) UUID() uuid.UUID {
	return i.UID
}

// CreateOrUpdate upserts this vertex on its (Platform, Identity) key.
func (i *Identity) CreateOrUpdate(ctx context.Context, g Store) (*Identity, error) {
	return g.UpsertIdentity(ctx, i)
}

// Neighbors returns all identities directly linked by an outgoing edge.
func (i *Identity) Neighbors(ctx context.Context, g Store) ([]*Identity, error) {
	return g.Neighbors(ctx, i.UID)
}

// FindIdentityByUUID is a point lookup; absent records surface as
// sentinel.ErrNotFound from the store.
func FindIdentityByUUID(ctx context.Context, g Store, id uuid.UUID) (*Identity, error) {
	return g.FindIdentityByUUID(ctx, id)
}
