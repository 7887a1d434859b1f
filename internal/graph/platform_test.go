package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	for _, known := range []string{"keybase", "twitter", "github", "reddit", "hackernews", "dns", "ethereum", "nextid"} {
		p, err := ParsePlatform(known)
		require.NoError(t, err, known)
		assert.Equal(t, known, p.String())
	}

	for _, unknown := range []string{"", "mastodon", "Twitter", "keybase "} {
		_, err := ParsePlatform(unknown)
		assert.Error(t, err, "expected %q to be rejected", unknown)
	}
}

func TestParseDataSource(t *testing.T) {
	for _, known := range []string{"keybase", "nextid", "sybil_list"} {
		ds, err := ParseDataSource(known)
		require.NoError(t, err, known)
		assert.Equal(t, known, ds.String())
	}

	_, err := ParseDataSource("sybil-list")
	assert.Error(t, err)
}
