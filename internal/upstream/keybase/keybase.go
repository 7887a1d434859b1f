// Package keybase is the reference Fetcher instantiation. Keybase's user
// lookup endpoint returns the subject's profile plus a summary of its
// third-party proofs; every other connector follows the same shape with a
// different request and response schema.
package keybase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"relationd/internal/graph"
	"relationd/internal/upstream"
	dErrors "relationd/pkg/domain-errors"
	"relationd/pkg/platform/sentinel"
	"relationd/pkg/requestcontext"
)

// DefaultBaseURL is the production Keybase API root.
const DefaultBaseURL = "https://keybase.io"

// Fetcher queries Keybase's user lookup API and materializes one Proof edge
// per recognized third-party proof.
type Fetcher struct {
	baseURL string
	client  *http.Client
	store   graph.Store
}

var _ upstream.Fetcher = (*Fetcher)(nil)

// New builds a Keybase connector against the given store. A nil client falls
// back to a short-timeout default.
func New(store graph.Store, baseURL string, client *http.Client) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{baseURL: baseURL, client: client, store: store}
}

// lookupResponse is Keybase's user/lookup.json envelope. The embedded status
// code signals failure even on HTTP 200.
type lookupResponse struct {
	Status statusBlock  `json:"status"`
	Them   []personInfo `json:"them"`
}

type statusBlock struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type personInfo struct {
	ID            string        `json:"id"`
	Basics        basics        `json:"basics"`
	ProofsSummary proofsSummary `json:"proofs_summary"`
}

type basics struct {
	Username string `json:"username"`
	Ctime    int64  `json:"ctime"`
}

type proofsSummary struct {
	All []proofItem `json:"all"`
}

type proofItem struct {
	ProofType string `json:"proof_type"`
	Nametag   string `json:"nametag"`
	State     int    `json:"state"`
	ProofURL  string `json:"proof_url"`
	SigID     string `json:"sig_id"`
	ProofID   string `json:"proof_id"`
	HumanURL  string `json:"human_url"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Fetch looks up the subject, upserts its Identity vertex, and links one
// recognized proof per response item. Proof types outside the Platform
// enumeration are skipped without failing the fetch.
func (f *Fetcher) Fetch(ctx context.Context, platform graph.Platform, identity string) ([]upstream.Connection, error) {
	if identity == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identity is required")
	}
	endpoint, err := f.lookupURL(platform, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "build keybase lookup url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "build keybase request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "keybase lookup failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.Newf(dErrors.CodeUpstream, "keybase lookup: %s", upstreamMessage(resp))
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "decode keybase response")
	}
	if body.Status.Code != 0 {
		return nil, dErrors.Newf(dErrors.CodeUpstream, "keybase lookup: %s", body.Status.Name)
	}
	if len(body.Them) == 0 {
		return nil, dErrors.Wrap(sentinel.ErrNoResult, dErrors.CodeNoResult,
			fmt.Sprintf("keybase has no user for %s=%s", platform, identity))
	}
	person := body.Them[len(body.Them)-1]

	now := requestcontext.Now(ctx)
	subject := graph.NewIdentity(graph.PlatformKeybase, person.ID, person.Basics.Username, now)
	if person.Basics.Ctime > 0 {
		ctime := time.Unix(person.Basics.Ctime, 0).UTC()
		subject.CreatedAt = &ctime
	}
	fromRecord, err := subject.CreateOrUpdate(ctx, f.store)
	if err != nil {
		return nil, err
	}

	connections := make([]upstream.Connection, 0, len(person.ProofsSummary.All))
	for _, item := range person.ProofsSummary.All {
		targetPlatform, err := graph.ParsePlatform(item.ProofType)
		if err != nil {
			// Forward compatibility: keybase proves services this
			// system does not model yet.
			continue
		}

		target := graph.NewIdentity(targetPlatform, item.Nametag, item.Nametag, now)
		if item.HumanURL != "" {
			profileURL := item.HumanURL
			target.ProfileURL = &profileURL
		}
		toRecord, err := target.CreateOrUpdate(ctx, f.store)
		if err != nil {
			return nil, err
		}

		recordID := item.ProofID
		proof := graph.NewProof(graph.DataSourceKeybase, &recordID, &now, now)
		proofRecord, err := proof.Connect(ctx, f.store, fromRecord, toRecord)
		if err != nil {
			return nil, err
		}

		connections = append(connections, upstream.Connection{
			From:  fromRecord,
			To:    toRecord,
			Proof: proofRecord,
		})
	}
	return connections, nil
}

// lookupURL builds the user lookup endpoint. The subject platform doubles as
// the lookup field name: keybase resolves its own usernames as well as the
// handles it has proofs for.
func (f *Fetcher) lookupURL(platform graph.Platform, identity string) (string, error) {
	base, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	base = base.JoinPath("/_/api/1.0/user/lookup.json")
	field := "usernames"
	if platform != graph.PlatformKeybase {
		field = platform.String()
	}
	q := url.Values{}
	q.Set(field, identity)
	q.Set("fields", "proofs_summary")
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// upstreamMessage extracts keybase's own diagnostic from an error response,
// falling back to the HTTP status line.
func upstreamMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
			return parsed.Message
		}
	}
	return resp.Status
}
