package sybil

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

const sybilList = `{
	"0xAbC0000000000000000000000000000000000001": {
		"twitter": {"timestamp": 1600000000, "tweetID": "t1", "handle": "alice_tw"},
		"github": {"timestamp": 1600000100, "tweetID": "", "handle": "alice-gh"}
	},
	"0x0000000000000000000000000000000000000002": {
		"twitter": {"timestamp": 0, "tweetID": "", "handle": ""}
	}
}`

func testContext() context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func newListServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sybilList))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchLinksListedAddress(t *testing.T) {
	server := newListServer(t)
	store := memory.New()
	fetcher := New(store, server.URL, server.Client())

	// Case differs from the list to exercise the case-insensitive match.
	connections, err := fetcher.Fetch(testContext(), graph.PlatformEthereum,
		"0xabc0000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Len(t, connections, 2)

	subject, err := store.FindIdentityByPlatform(context.Background(), graph.PlatformEthereum,
		"0xabc0000000000000000000000000000000000001")
	require.NoError(t, err)

	twitterConn := connections[0]
	assert.Equal(t, subject.UID, twitterConn.From.UID)
	assert.Equal(t, graph.PlatformTwitter, twitterConn.To.Platform)
	assert.Equal(t, "alice_tw", twitterConn.To.Identity)
	assert.Equal(t, graph.DataSourceSybilList, twitterConn.Proof.Source)
	require.NotNil(t, twitterConn.Proof.RecordID)
	assert.Equal(t, "t1", *twitterConn.Proof.RecordID)
	require.NotNil(t, twitterConn.Proof.CreatedAt)
	assert.Equal(t, time.Unix(1600000000, 0).UTC(), *twitterConn.Proof.CreatedAt)

	githubConn := connections[1]
	assert.Equal(t, graph.PlatformGithub, githubConn.To.Platform)
	assert.Nil(t, githubConn.Proof.RecordID)
}

func TestFetchSkipsEmptyHandles(t *testing.T) {
	server := newListServer(t)
	fetcher := New(memory.New(), server.URL, server.Client())

	connections, err := fetcher.Fetch(testContext(), graph.PlatformEthereum,
		"0x0000000000000000000000000000000000000002")
	require.NoError(t, err)
	assert.Empty(t, connections)
}

func TestFetchAddressNotListed(t *testing.T) {
	server := newListServer(t)
	fetcher := New(memory.New(), server.URL, server.Client())

	_, err := fetcher.Fetch(testContext(), graph.PlatformEthereum,
		"0x00000000000000000000000000000000000000ff")
	require.ErrorIs(t, err, sentinel.ErrNoResult)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoResult))
}

func TestFetchRejectsNonEthereumSubject(t *testing.T) {
	fetcher := New(memory.New(), "http://unreachable.invalid", nil)
	_, err := fetcher.Fetch(testContext(), graph.PlatformTwitter, "alice_tw")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestFetchUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := New(memory.New(), server.URL, server.Client())
	_, err := fetcher.Fetch(testContext(), graph.PlatformEthereum,
		"0xabc0000000000000000000000000000000000001")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstream))
}
