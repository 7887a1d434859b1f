// Package postgres provides the production graph store. Uniqueness is
// enforced by the database: identities carry a unique (platform, identity)
// index and proofs a unique dedup-tuple index, so concurrent duplicate
// writers converge on one row inside a single INSERT ... ON CONFLICT
// statement with no application-side locking.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"relationd/internal/graph"
	"relationd/pkg/platform/sentinel"
)

// Store persists the identity graph in PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ graph.Store = (*Store)(nil)

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL with the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Health reports whether the database is reachable.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	uuid          UUID PRIMARY KEY,
	platform      TEXT NOT NULL,
	identity      TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT,
	profile_url   TEXT,
	created_at    TIMESTAMPTZ,
	added_at      TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS identities_platform_identity_key
	ON identities (platform, identity);

CREATE TABLE IF NOT EXISTS proofs (
	uuid             UUID PRIMARY KEY,
	from_uuid        UUID NOT NULL REFERENCES identities (uuid),
	to_uuid          UUID NOT NULL REFERENCES identities (uuid),
	source           TEXT NOT NULL,
	record_id        TEXT,
	created_at       TIMESTAMPTZ,
	last_fetched_at  TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS proofs_dedup_key
	ON proofs (from_uuid, to_uuid, source, COALESCE(record_id, ''));

CREATE INDEX IF NOT EXISTS proofs_from_idx ON proofs (from_uuid);
`

// Migrate creates the tables and indexes if they do not exist. The dedup
// index is what makes ConnectProof race-free; do not drop it.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate graph schema: %w", err)
	}
	return nil
}

const identityColumns = `uuid, platform, identity, display_name, avatar_url, profile_url, created_at, added_at, updated_at`

func (s *Store) UpsertIdentity(ctx context.Context, identity *graph.Identity) (*graph.Identity, error) {
	uid := identity.UID
	if uid == uuid.Nil {
		uid = uuid.New()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (platform, identity) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url   = EXCLUDED.avatar_url,
			profile_url  = EXCLUDED.profile_url,
			updated_at   = EXCLUDED.updated_at
		RETURNING `+identityColumns+`;`,
		uid, identity.Platform.String(), identity.Identity, identity.DisplayName,
		nullString(identity.AvatarURL), nullString(identity.ProfileURL),
		nullTime(identity.CreatedAt), identity.AddedAt, identity.UpdatedAt,
	)
	stored, err := scanIdentity(row)
	if err != nil {
		return nil, fmt.Errorf("upsert identity (%s, %s): %w", identity.Platform, identity.Identity, err)
	}
	return stored, nil
}

func (s *Store) FindIdentityByUUID(ctx context.Context, id uuid.UUID) (*graph.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE uuid = $1;`, id)
	stored, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity by uuid: %w", err)
	}
	return stored, nil
}

func (s *Store) FindIdentityByPlatform(ctx context.Context, platform graph.Platform, identity string) (*graph.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE platform = $1 AND identity = $2;`,
		platform.String(), identity)
	stored, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity by platform key: %w", err)
	}
	return stored, nil
}

func (s *Store) Neighbors(ctx context.Context, from uuid.UUID) ([]*graph.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT i.uuid, i.platform, i.identity, i.display_name, i.avatar_url,
			i.profile_url, i.created_at, i.added_at, i.updated_at
		FROM identities i
		JOIN proofs p ON i.uuid = p.to_uuid
		WHERE p.from_uuid = $1;`, from)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	defer rows.Close()

	var neighbors []*graph.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		neighbors = append(neighbors, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return neighbors, nil
}

const proofColumns = `uuid, from_uuid, to_uuid, source, record_id, created_at, last_fetched_at`

func (s *Store) ConnectProof(ctx context.Context, from, to uuid.UUID, proof *graph.Proof) (*graph.Proof, error) {
	// A proof without a record id dedups against any edge with the same
	// endpoints and source, which a conflict target cannot express; resolve
	// it with a read first. The trailing upsert still converges the racing
	// no-record-id writers through the unique index.
	if proof.RecordID == nil {
		existing, err := s.FindProofByTuple(ctx, proof.Tuple(from, to))
		if err == nil {
			return s.touchProof(ctx, existing.UID, proof.LastFetchedAt)
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
	}

	uid := proof.UID
	if uid == uuid.Nil {
		uid = uuid.New()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO proofs (`+proofColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (from_uuid, to_uuid, source, COALESCE(record_id, '')) DO UPDATE SET
			last_fetched_at = EXCLUDED.last_fetched_at
		RETURNING `+proofColumns+`;`,
		uid, from, to, proof.Source.String(), nullString(proof.RecordID),
		nullTime(proof.CreatedAt), proof.LastFetchedAt,
	)
	stored, err := scanProof(row)
	if err != nil {
		return nil, fmt.Errorf("connect proof %s -> %s: %w", from, to, err)
	}
	return stored, nil
}

func (s *Store) FindProofByUUID(ctx context.Context, id uuid.UUID) (*graph.Proof, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+proofColumns+` FROM proofs WHERE uuid = $1;`, id)
	stored, err := scanProof(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find proof by uuid: %w", err)
	}
	return stored, nil
}

func (s *Store) FindProofByTuple(ctx context.Context, tuple graph.ProofTuple) (*graph.Proof, error) {
	query := `SELECT ` + proofColumns + ` FROM proofs WHERE from_uuid = $1 AND to_uuid = $2 AND source = $3`
	args := []any{tuple.From, tuple.To, tuple.Source.String()}
	if tuple.RecordID != nil {
		query += ` AND record_id = $4`
		args = append(args, *tuple.RecordID)
	}
	query += ` LIMIT 1;`

	row := s.db.QueryRowContext(ctx, query, args...)
	stored, err := scanProof(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find proof by tuple: %w", err)
	}
	return stored, nil
}

func (s *Store) touchProof(ctx context.Context, id uuid.UUID, fetchedAt time.Time) (*graph.Proof, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE proofs SET last_fetched_at = $2 WHERE uuid = $1
		RETURNING `+proofColumns+`;`, id, fetchedAt)
	stored, err := scanProof(row)
	if err != nil {
		return nil, fmt.Errorf("refresh proof %s: %w", id, err)
	}
	return stored, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*graph.Identity, error) {
	var (
		identity  graph.Identity
		platform  string
		avatar    sql.NullString
		profile   sql.NullString
		createdAt sql.NullTime
	)
	err := row.Scan(&identity.UID, &platform, &identity.Identity, &identity.DisplayName,
		&avatar, &profile, &createdAt, &identity.AddedAt, &identity.UpdatedAt)
	if err != nil {
		return nil, err
	}
	identity.Platform = graph.Platform(platform)
	identity.AvatarURL = stringPtr(avatar)
	identity.ProfileURL = stringPtr(profile)
	identity.CreatedAt = timePtr(createdAt)
	return &identity, nil
}

func scanProof(row rowScanner) (*graph.Proof, error) {
	var (
		proof     graph.Proof
		source    string
		recordID  sql.NullString
		createdAt sql.NullTime
	)
	err := row.Scan(&proof.UID, &proof.From, &proof.To, &source,
		&recordID, &createdAt, &proof.LastFetchedAt)
	if err != nil {
		return nil, err
	}
	proof.Source = graph.DataSource(source)
	proof.RecordID = stringPtr(recordID)
	proof.CreatedAt = timePtr(createdAt)
	return &proof, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
