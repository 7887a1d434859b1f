//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"relationd/pkg/testutil/containers"
)

type RedisClientSuite struct {
	suite.Suite
	rc     *containers.RedisContainer
	client *Client
	ctx    context.Context
}

func (s *RedisClientSuite) SetupSuite() {
	s.ctx = context.Background()
	s.rc = containers.NewRedisContainer(s.T())
	s.client = &Client{Client: s.rc.Client}
}

func (s *RedisClientSuite) SetupTest() {
	s.Require().NoError(s.rc.FlushAll(s.ctx))
}

func TestRedisClientSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed redis tests in short mode")
	}
	suite.Run(t, new(RedisClientSuite))
}

// secondClient opens an independent connection to the same server, standing
// in for another process instance.
func (s *RedisClientSuite) secondClient() *Client {
	opts, err := goredis.ParseURL(s.rc.URL)
	s.Require().NoError(err)
	raw := goredis.NewClient(opts)
	s.T().Cleanup(func() { _ = raw.Close() })
	return &Client{Client: raw}
}

// TestFetchLock verifies SET NX mutual exclusion across client instances.
func (s *RedisClientSuite) TestFetchLock() {
	other := s.secondClient()

	s.Run("second holder loses the contested subject", func() {
		acquired, err := s.client.AcquireFetchLock(s.ctx, "keybase:alice", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)

		contended, err := other.AcquireFetchLock(s.ctx, "keybase:alice", time.Minute)
		s.Require().NoError(err)
		s.False(contended)
	})

	s.Run("other subjects stay independently lockable", func() {
		acquired, err := other.AcquireFetchLock(s.ctx, "keybase:bob", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)
	})

	s.Run("release frees the subject for the other holder", func() {
		s.Require().NoError(s.client.ReleaseFetchLock(s.ctx, "keybase:alice"))

		reacquired, err := other.AcquireFetchLock(s.ctx, "keybase:alice", time.Minute)
		s.Require().NoError(err)
		s.True(reacquired)
	})

	s.Run("releasing an absent lock is not an error", func() {
		s.NoError(s.client.ReleaseFetchLock(s.ctx, "keybase:nobody"))
	})
}

// TestFetchLockTTLExpiry verifies a crashed holder cannot wedge a subject.
func (s *RedisClientSuite) TestFetchLockTTLExpiry() {
	acquired, err := s.client.AcquireFetchLock(s.ctx, "keybase:alice", 100*time.Millisecond)
	s.Require().NoError(err)
	s.True(acquired)

	// The first holder never releases; the key must expire on its own.
	s.Require().Eventually(func() bool {
		reacquired, err := s.secondClient().AcquireFetchLock(s.ctx, "keybase:alice", time.Minute)
		return err == nil && reacquired
	}, 5*time.Second, 50*time.Millisecond)
}

// TestFetchCooldown verifies the cooldown marker and its TTL lapse.
func (s *RedisClientSuite) TestFetchCooldown() {
	s.Run("unmarked subject is not recently fetched", func() {
		recent, err := s.client.RecentlyFetched(s.ctx, "keybase:alice")
		s.Require().NoError(err)
		s.False(recent)
	})

	s.Run("marked subject is inside the window on any client", func() {
		s.Require().NoError(s.client.MarkFetched(s.ctx, "keybase:alice", time.Minute))

		recent, err := s.secondClient().RecentlyFetched(s.ctx, "keybase:alice")
		s.Require().NoError(err)
		s.True(recent)
	})

	s.Run("window lapses with the TTL", func() {
		s.Require().NoError(s.client.MarkFetched(s.ctx, "keybase:bob", 100*time.Millisecond))

		s.Require().Eventually(func() bool {
			recent, err := s.client.RecentlyFetched(s.ctx, "keybase:bob")
			return err == nil && !recent
		}, 5*time.Second, 50*time.Millisecond)
	})

	s.Run("cooldown keys do not collide with lock keys", func() {
		s.Require().NoError(s.client.MarkFetched(s.ctx, "keybase:carol", time.Minute))

		acquired, err := s.client.AcquireFetchLock(s.ctx, "keybase:carol", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)
	})
}
