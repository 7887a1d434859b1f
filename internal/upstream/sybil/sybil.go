// Package sybil links Ethereum addresses to the social handles published in
// a community-maintained sybil list (a single JSON document mapping address
// to verified accounts). It exists to prove the Fetcher contract generalizes
// past Keybase: same mutation contract, entirely different response shape.
package sybil

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"relationd/internal/graph"
	"relationd/internal/upstream"
	dErrors "relationd/pkg/domain-errors"
	"relationd/pkg/platform/sentinel"
	"relationd/pkg/requestcontext"
)

// Fetcher resolves one address against the list and materializes the links
// the list asserts for it.
type Fetcher struct {
	listURL string
	client  *http.Client
	store   graph.Store
}

var _ upstream.Fetcher = (*Fetcher)(nil)

// New builds a sybil-list connector reading from listURL.
func New(store graph.Store, listURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{listURL: listURL, client: client, store: store}
}

// entry is one address's verification block in the list.
type entry struct {
	Twitter *socialProof `json:"twitter"`
	Github  *socialProof `json:"github"`
}

type socialProof struct {
	Timestamp int64  `json:"timestamp"`
	TweetID   string `json:"tweetID"`
	Handle    string `json:"handle"`
}

// Fetch downloads the list, resolves the address, and links each verified
// handle. Addresses are matched case-insensitively; an address absent from
// the list is a no-result, not an error response.
func (f *Fetcher) Fetch(ctx context.Context, platform graph.Platform, identity string) ([]upstream.Connection, error) {
	if platform != graph.PlatformEthereum {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "sybil list resolves ethereum addresses, not %s", platform)
	}
	if identity == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "address is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.listURL, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "build sybil list request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "sybil list fetch failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.Newf(dErrors.CodeUpstream, "sybil list fetch: %s", resp.Status)
	}

	var list map[string]entry
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "decode sybil list")
	}

	address := strings.ToLower(identity)
	var found *entry
	for listed, e := range list {
		if strings.ToLower(listed) == address {
			found = &e
			break
		}
	}
	if found == nil {
		return nil, dErrors.Wrap(sentinel.ErrNoResult, dErrors.CodeNoResult, "address not in sybil list")
	}

	now := requestcontext.Now(ctx)
	subject := graph.NewIdentity(graph.PlatformEthereum, address, address, now)
	fromRecord, err := subject.CreateOrUpdate(ctx, f.store)
	if err != nil {
		return nil, err
	}

	var connections []upstream.Connection
	link := func(targetPlatform graph.Platform, proof *socialProof) error {
		if proof == nil || proof.Handle == "" {
			return nil
		}
		target := graph.NewIdentity(targetPlatform, proof.Handle, proof.Handle, now)
		toRecord, err := target.CreateOrUpdate(ctx, f.store)
		if err != nil {
			return err
		}

		var recordID *string
		if proof.TweetID != "" {
			recordID = &proof.TweetID
		}
		var createdAt *time.Time
		if proof.Timestamp > 0 {
			t := time.Unix(proof.Timestamp, 0).UTC()
			createdAt = &t
		}
		edge := graph.NewProof(graph.DataSourceSybilList, recordID, createdAt, now)
		proofRecord, err := edge.Connect(ctx, f.store, fromRecord, toRecord)
		if err != nil {
			return err
		}
		connections = append(connections, upstream.Connection{
			From:  fromRecord,
			To:    toRecord,
			Proof: proofRecord,
		})
		return nil
	}

	if err := link(graph.PlatformTwitter, found.Twitter); err != nil {
		return nil, err
	}
	if err := link(graph.PlatformGithub, found.Github); err != nil {
		return nil, err
	}
	return connections, nil
}
