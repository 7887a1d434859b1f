// Package service orchestrates fetch-and-materialize runs and the read-side
// lookups the query surface exposes. Business rules live here; transport and
// persistence stay in their own layers.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"relationd/internal/events"
	"relationd/internal/graph"
	graphmetrics "relationd/internal/graph/metrics"
	"relationd/internal/upstream"
	dErrors "relationd/pkg/domain-errors"
	"relationd/pkg/platform/sentinel"
)

const instrumentationName = "relationd/internal/graph/service"

// Locker serializes fetches of one subject across processes. The redis
// client implements it; without redis an in-process locker stands in.
type Locker interface {
	AcquireFetchLock(ctx context.Context, subject string, ttl time.Duration) (bool, error)
	ReleaseFetchLock(ctx context.Context, subject string) error
}

// Cooldown remembers recently fetched subjects so scheduler re-polls inside
// the window skip the upstream call.
type Cooldown interface {
	MarkFetched(ctx context.Context, subject string, ttl time.Duration) error
	RecentlyFetched(ctx context.Context, subject string) (bool, error)
}

// Subject names one account to fetch.
type Subject struct {
	Platform graph.Platform `json:"platform"`
	Identity string         `json:"identity"`
}

func (s Subject) key() string {
	return s.Platform.String() + ":" + s.Identity
}

// ProofDetail is a proof with its endpoint identities resolved on demand.
type ProofDetail struct {
	Proof *graph.Proof    `json:"proof"`
	From  *graph.Identity `json:"from"`
	To    *graph.Identity `json:"to"`
}

// Service wires the graph store, the connector registry, and the
// coordination primitives around them.
type Service struct {
	store     graph.Store
	registry  *upstream.Registry
	locks     Locker
	cooldown  Cooldown
	publisher *events.Publisher
	metrics   *graphmetrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer

	cooldownTTL time.Duration
	lockTTL     time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *graphmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLocker replaces the in-process subject locker, typically with redis.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locks = l
		}
	}
}

// WithCooldown enables the fetch cooldown window.
func WithCooldown(c Cooldown, ttl time.Duration) Option {
	return func(s *Service) {
		s.cooldown = c
		s.cooldownTTL = ttl
	}
}

// WithPublisher enables proof.linked event publishing.
func WithPublisher(p *events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLockTTL bounds how long a crashed fetch can hold a subject lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) { s.lockTTL = ttl }
}

// New builds the graph service.
func New(store graph.Store, registry *upstream.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		locks:    newMemoryLocker(),
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
		lockTTL:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchSubject runs the connector for one subject and materializes whatever
// it discovers. Returns the discovered connections; an empty slice means the
// subject resolved with zero links, or that the run was skipped because the
// subject is inside its cooldown window or locked by a concurrent fetch.
func (s *Service) FetchSubject(ctx context.Context, subject Subject) ([]upstream.Connection, error) {
	ctx, span := s.tracer.Start(ctx, "graph.FetchSubject", trace.WithAttributes(
		attribute.String("subject.platform", subject.Platform.String()),
		attribute.String("subject.identity", subject.Identity),
	))
	defer span.End()

	if _, err := graph.ParsePlatform(subject.Platform.String()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unsupported platform")
	}
	if subject.Identity == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identity is required")
	}

	fetcher, err := s.registry.For(subject.Platform)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "no connector for platform")
	}

	if s.cooldown != nil {
		recent, err := s.cooldown.RecentlyFetched(ctx, subject.key())
		if err != nil {
			s.logger.WarnContext(ctx, "cooldown check failed, fetching anyway", "error", err)
		} else if recent {
			s.metrics.IncCooldownHit()
			return nil, nil
		}
	}

	acquired, err := s.locks.AcquireFetchLock(ctx, subject.key(), s.lockTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "acquire subject lock")
	}
	if !acquired {
		s.metrics.IncLockContended()
		s.logger.InfoContext(ctx, "subject fetch already in flight",
			"platform", subject.Platform, "identity", subject.Identity)
		return nil, nil
	}
	defer func() {
		if err := s.locks.ReleaseFetchLock(ctx, subject.key()); err != nil {
			s.logger.WarnContext(ctx, "release subject lock failed", "error", err)
		}
	}()

	start := time.Now()
	connections, err := fetcher.Fetch(ctx, subject.Platform, subject.Identity)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveFetch(subject.Platform.String(), outcomeLabel(err), elapsed)
		return nil, err
	}
	s.metrics.ObserveFetch(subject.Platform.String(), "ok", elapsed)
	for _, conn := range connections {
		s.metrics.IncConnections(conn.Proof.Source.String(), 1)
	}

	s.publisher.PublishConnections(ctx, connections)

	if s.cooldown != nil {
		if err := s.cooldown.MarkFetched(ctx, subject.key(), s.cooldownTTL); err != nil {
			s.logger.WarnContext(ctx, "mark fetch cooldown failed", "error", err)
		}
	}

	s.logger.InfoContext(ctx, "subject fetched",
		"platform", subject.Platform,
		"identity", subject.Identity,
		"connections", len(connections),
		"elapsed", elapsed,
	)
	return connections, nil
}

// FetchMany fans out independent subjects concurrently; the first failure
// cancels the remaining fetches. Each subject stays its own unit of work, so
// a cancelled run leaves earlier subjects fully materialized.
func (s *Service) FetchMany(ctx context.Context, subjects []Subject) (map[Subject][]upstream.Connection, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([]([]upstream.Connection), len(subjects))
	for i, subject := range subjects {
		g.Go(func() error {
			connections, err := s.FetchSubject(ctx, subject)
			if err != nil {
				return err
			}
			results[i] = connections
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bySubject := make(map[Subject][]upstream.Connection, len(subjects))
	for i, subject := range subjects {
		bySubject[subject] = results[i]
	}
	return bySubject, nil
}

// ProofByUUID resolves a proof and its endpoints. An unparsable or unknown
// UUID is a not-found at this boundary, never an internal error.
func (s *Service) ProofByUUID(ctx context.Context, raw string) (*ProofDetail, error) {
	ctx, span := s.tracer.Start(ctx, "graph.ProofByUUID")
	defer span.End()

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "proof not found")
	}
	proof, err := graph.FindProofByUUID(ctx, s.store, id)
	if err != nil {
		return nil, translateStoreErr(err, "proof not found")
	}

	from, err := graph.FindIdentityByUUID(ctx, s.store, proof.From)
	if err != nil {
		return nil, translateStoreErr(err, "proof origin missing")
	}
	to, err := graph.FindIdentityByUUID(ctx, s.store, proof.To)
	if err != nil {
		return nil, translateStoreErr(err, "proof target missing")
	}
	return &ProofDetail{Proof: proof, From: from, To: to}, nil
}

// IdentityByUUID is a point lookup on the vertex uuid.
func (s *Service) IdentityByUUID(ctx context.Context, raw string) (*graph.Identity, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	identity, err := graph.FindIdentityByUUID(ctx, s.store, id)
	if err != nil {
		return nil, translateStoreErr(err, "identity not found")
	}
	return identity, nil
}

// NeighborsOf returns the identities directly linked from the given vertex.
func (s *Service) NeighborsOf(ctx context.Context, raw string) ([]*graph.Identity, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	identity, err := graph.FindIdentityByUUID(ctx, s.store, id)
	if err != nil {
		return nil, translateStoreErr(err, "identity not found")
	}
	return identity.Neighbors(ctx, s.store)
}

func translateStoreErr(err error, notFoundMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "graph store failure")
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrNoResult):
		return "no_result"
	case dErrors.HasCode(err, dErrors.CodeUpstream):
		return "upstream_error"
	case dErrors.HasCode(err, dErrors.CodeBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}
