// Package handler is the thin HTTP layer over the graph service: request
// decoding, error-to-status translation, nothing else. The query endpoints
// are deliberately pass-throughs over the store lookups.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"relationd/internal/graph"
	"relationd/internal/graph/service"
	"relationd/internal/upstream"
	dErrors "relationd/pkg/domain-errors"
	"relationd/pkg/requestcontext"
)

// Service defines the graph operations the HTTP layer exposes.
type Service interface {
	FetchSubject(ctx context.Context, subject service.Subject) ([]upstream.Connection, error)
	FetchMany(ctx context.Context, subjects []service.Subject) (map[service.Subject][]upstream.Connection, error)
	ProofByUUID(ctx context.Context, raw string) (*service.ProofDetail, error)
	IdentityByUUID(ctx context.Context, raw string) (*graph.Identity, error)
	NeighborsOf(ctx context.Context, raw string) ([]*graph.Identity, error)
}

// Handler wires graph endpoints to the graph service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a graph handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterQueries mounts the public read side.
func (h *Handler) RegisterQueries(r chi.Router) {
	r.Get("/v1/proofs/{uuid}", h.HandleProof)
	r.Get("/v1/identities/{uuid}", h.HandleIdentity)
	r.Get("/v1/identities/{uuid}/neighbors", h.HandleNeighbors)
}

// RegisterFetch mounts the fetch triggers; callers put them behind the token
// middleware.
func (h *Handler) RegisterFetch(r chi.Router) {
	r.Post("/v1/fetch", h.HandleFetch)
	r.Post("/v1/fetch/batch", h.HandleFetchBatch)
}

type fetchRequest struct {
	Platform string `json:"platform"`
	Identity string `json:"identity"`
}

type fetchResponse struct {
	Connections []upstream.Connection `json:"connections"`
}

// HandleFetch handles POST /v1/fetch: run the connector for one subject and
// return whatever it materialized.
func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	platform, err := graph.ParsePlatform(req.Platform)
	if err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeBadRequest, "unsupported platform"))
		return
	}

	connections, err := h.service.FetchSubject(ctx, service.Subject{
		Platform: platform,
		Identity: req.Identity,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if connections == nil {
		connections = []upstream.Connection{}
	}
	h.writeJSON(w, http.StatusOK, fetchResponse{Connections: connections})
}

type batchFetchRequest struct {
	Subjects []fetchRequest `json:"subjects"`
}

type batchFetchResult struct {
	Platform    string                `json:"platform"`
	Identity    string                `json:"identity"`
	Connections []upstream.Connection `json:"connections"`
}

// HandleFetchBatch handles POST /v1/fetch/batch: fan out independent
// subjects concurrently. All-or-nothing at the response level, but each
// subject's writes stand on their own, so a failed batch is safely retried.
func (h *Handler) HandleFetchBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req batchFetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Subjects) == 0 {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "subjects is required"))
		return
	}

	subjects := make([]service.Subject, 0, len(req.Subjects))
	for _, s := range req.Subjects {
		platform, err := graph.ParsePlatform(s.Platform)
		if err != nil {
			h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeBadRequest, "unsupported platform"))
			return
		}
		subjects = append(subjects, service.Subject{Platform: platform, Identity: s.Identity})
	}

	bySubject, err := h.service.FetchMany(ctx, subjects)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	results := make([]batchFetchResult, 0, len(subjects))
	for _, subject := range subjects {
		connections := bySubject[subject]
		if connections == nil {
			connections = []upstream.Connection{}
		}
		results = append(results, batchFetchResult{
			Platform:    subject.Platform.String(),
			Identity:    subject.Identity,
			Connections: connections,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// HandleProof handles GET /v1/proofs/{uuid}: the proof's scalar fields plus
// its endpoints resolved on demand. Absent or unparsable UUIDs are 404s.
func (h *Handler) HandleProof(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.ProofByUUID(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// HandleIdentity handles GET /v1/identities/{uuid}.
func (h *Handler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := h.service.IdentityByUUID(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, identity)
}

// HandleNeighbors handles GET /v1/identities/{uuid}/neighbors.
func (h *Handler) HandleNeighbors(w http.ResponseWriter, r *http.Request) {
	neighbors, err := h.service.NeighborsOf(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	if neighbors == nil {
		neighbors = []*graph.Identity{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"neighbors": neighbors})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := dErrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	body := errorBody{Error: string(dErrors.CodeOf(err)), Message: publicMessage(err)}
	h.writeJSON(w, status, body)
}

// publicMessage keeps internal error detail out of responses while letting
// upstream diagnostics and validation messages through.
func publicMessage(err error) string {
	var de *dErrors.Error
	if !errors.As(err, &de) || de.Code == dErrors.CodeInternal {
		return "internal error"
	}
	return de.Message
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}
