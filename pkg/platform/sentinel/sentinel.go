package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and upstream clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the graph store
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrNoResult: the upstream resolved no subject at all
// - ErrUnavailable: store or upstream temporarily unavailable
//
// For validation errors (bad input, unparsable identifiers), use
// pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrNoResult    = errors.New("no result")
	ErrUnavailable = errors.New("unavailable")
)
