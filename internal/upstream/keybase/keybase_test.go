package keybase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relationd/internal/graph"
	"relationd/internal/graph/store/memory"
	dErrors "relationd/pkg/domain-errors"
	"relationd/pkg/platform/sentinel"
	"relationd/pkg/requestcontext"
)

// aliceLookup is a trimmed user/lookup.json response: one twitter proof, one
// github proof, and one proof type outside the platform enumeration.
const aliceLookup = `{
	"status": {"code": 0, "name": "OK"},
	"them": [{
		"id": "alice_kb_id",
		"basics": {"username": "alice", "ctime": 1500000000},
		"proofs_summary": {"all": [
			{"proof_type": "twitter", "nametag": "alice_tw", "state": 1, "proof_id": "p1", "human_url": "https://twitter.com/alice_tw/status/1"},
			{"proof_type": "github", "nametag": "alice-gh", "state": 1, "proof_id": "p2", "human_url": "https://gist.github.com/2"},
			{"proof_type": "mastodon", "nametag": "alice@example", "state": 1, "proof_id": "p3"}
		]}
	}]
}`

func testContext() context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestFetchMaterializesProofs(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(aliceLookup))
	}))
	defer server.Close()

	store := memory.New()
	fetcher := New(store, server.URL, server.Client())

	connections, err := fetcher.Fetch(testContext(), graph.PlatformKeybase, "alice")
	require.NoError(t, err)

	// The mastodon proof is skipped, not an error.
	require.Len(t, connections, 2)
	assert.Contains(t, gotQuery, "usernames=alice")
	assert.Contains(t, gotQuery, "fields=proofs_summary")

	subject, err := store.FindIdentityByPlatform(context.Background(), graph.PlatformKeybase, "alice_kb_id")
	require.NoError(t, err)
	assert.Equal(t, "alice", subject.DisplayName)
	require.NotNil(t, subject.CreatedAt)
	assert.Equal(t, time.Unix(1500000000, 0).UTC(), *subject.CreatedAt)

	for _, conn := range connections {
		assert.Equal(t, subject.UID, conn.From.UID)
		assert.Equal(t, subject.UID, conn.Proof.From)
		assert.Equal(t, conn.To.UID, conn.Proof.To)
		assert.Equal(t, graph.DataSourceKeybase, conn.Proof.Source)
		require.NotNil(t, conn.Proof.RecordID)
	}

	twitter, err := store.FindIdentityByPlatform(context.Background(), graph.PlatformTwitter, "alice_tw")
	require.NoError(t, err)
	require.NotNil(t, twitter.ProfileURL)
	assert.Equal(t, "https://twitter.com/alice_tw/status/1", *twitter.ProfileURL)
}

func TestFetchIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(aliceLookup))
	}))
	defer server.Close()

	store := memory.New()
	fetcher := New(store, server.URL, server.Client())

	first, err := fetcher.Fetch(testContext(), graph.PlatformKeybase, "alice")
	require.NoError(t, err)
	second, err := fetcher.Fetch(testContext(), graph.PlatformKeybase, "alice")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	firstByRecord := make(map[string]string)
	for _, conn := range first {
		firstByRecord[*conn.Proof.RecordID] = conn.Proof.UID.String()
	}
	for _, conn := range second {
		assert.Equal(t, firstByRecord[*conn.Proof.RecordID], conn.Proof.UID.String(),
			"re-fetch must return the existing edge, not a new one")
	}
}

func TestFetchByProvenPlatform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice_tw", r.URL.Query().Get("twitter"))
		w.Write([]byte(aliceLookup))
	}))
	defer server.Close()

	fetcher := New(memory.New(), server.URL, server.Client())
	_, err := fetcher.Fetch(testContext(), graph.PlatformTwitter, "alice_tw")
	require.NoError(t, err)
}

func TestFetchNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status": {"code": 0, "name": "OK"}, "them": []}`))
	}))
	defer server.Close()

	fetcher := New(memory.New(), server.URL, server.Client())
	_, err := fetcher.Fetch(testContext(), graph.PlatformKeybase, "nobody")
	require.ErrorIs(t, err, sentinel.ErrNoResult)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoResult))
}

func TestFetchUpstreamErrors(t *testing.T) {
	t.Run("non-200 carries the upstream message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"message": "keybase is down for maintenance"}`))
		}))
		defer server.Close()

		fetcher := New(memory.New(), server.URL, server.Client())
		_, err := fetcher.Fetch(testContext(), graph.PlatformKeybase, "alice")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstream))
		assert.Contains(t, err.Error(), "keybase is down for maintenance")
	})

	t.Run("embedded status code fails even on HTTP 200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"status": {"code": 205, "name": "INPUT_ERROR"}, "them": []}`))
		}))
		defer server.Close()

		fetcher := New(memory.New(), server.URL, server.Client())
		_, err := fetcher.Fetch(testContext(), graph.PlatformKeybase, "alice")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstream))
		assert.Contains(t, err.Error(), "INPUT_ERROR")
	})
}

func TestFetchRejectsEmptyIdentity(t *testing.T) {
	fetcher := New(memory.New(), "http://unreachable.invalid", nil)
	_, err := fetcher.Fetch(testContext(), graph.PlatformKeybase, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
