package graph

import (
	"fmt"
)

// Platform names an account namespace: which service or chain an identity
// lives on. It is a closed enumeration; every consumption site matches it
// exhaustively and unknown strings fail ParsePlatform.
type Platform string

const (
	PlatformKeybase    Platform = "keybase"
	PlatformTwitter    Platform = "twitter"
	PlatformGithub     Platform = "github"
	PlatformReddit     Platform = "reddit"
	PlatformHackerNews Platform = "hackernews"
	PlatformDNS        Platform = "dns"
	PlatformEthereum   Platform = "ethereum"
	PlatformNextID     Platform = "nextid"
)

// knownPlatforms is the source of truth for the closed set. Adding a platform
// means adding a constant, an entry here, and a Fetcher; nothing else changes.
var knownPlatforms = map[Platform]struct{}{
	PlatformKeybase:    {},
	PlatformTwitter:    {},
	PlatformGithub:     {},
	PlatformReddit:     {},
	PlatformHackerNews: {},
	PlatformDNS:        {},
	PlatformEthereum:   {},
	PlatformNextID:     {},
}

// ParsePlatform validates and returns a Platform.
// An error here is a skip condition for upstream proof items, not a failure:
// upstreams report proof types this system does not model yet.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if _, ok := knownPlatforms[p]; !ok {
		return "", fmt.Errorf("unknown platform: %q", s)
	}
	return p, nil
}

func (p Platform) String() string {
	return string(p)
}
