package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/meigma/refval"
	"github.com/meigma/refval/broadcast"
	"github.com/meigma/refval/cache"
	"github.com/meigma/refval/extractor"
)

// server exposes the provenance submit and reference value query API.
type server struct {
	handler     *extractor.Handler
	broadcaster *broadcast.Broadcaster
	store       cache.Cache
	logger      *slog.Logger
}

// provenanceRequest is the submit payload.
type provenanceRequest struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Provenance string            `json:"provenance"`
	Parameters map[string]string `json:"parameters"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/provenance", s.handleSubmit)
	mux.HandleFunc("GET /v1/reference-values", s.handleList)
	mux.HandleFunc("GET /v1/reference-values/{name}", s.handleGet)
	return mux
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req provenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	rv, err := s.handler.HandleProvenance(r.Context(), req.Type, req.Name, []byte(req.Provenance), req.Parameters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.broadcaster.StoreAndPublish(r.Context(), rv); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rv)
}

func (s *server) handleList(w http.ResponseWriter, _ *http.Request) {
	values, err := s.store.GetAll()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	value, ok := s.store.Get(r.PathValue("name"))
	if !ok {
		http.Error(w, "no reference value for artifact", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, value)
}

// writeError maps the pipeline's error kinds to HTTP statuses. Error
// kinds surface unchanged from the pipeline, so errors.Is is reliable
// here.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, extractor.ErrUnsupportedType),
		errors.Is(err, extractor.ErrMissingParameter),
		errors.Is(err, refval.ErrMalformedExpiration),
		errors.Is(err, refval.ErrEmptyName):
		status = http.StatusBadRequest
	case errors.Is(err, extractor.ErrVerificationFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, extractor.ErrNotImplemented):
		status = http.StatusNotImplemented
	case errors.Is(err, broadcast.ErrChannelUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, cache.ErrBackend):
		status = http.StatusServiceUnavailable
	}
	s.logger.Warn("request failed", slog.Int("status", status), slog.Any("error", err))
	http.Error(w, err.Error(), status)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", slog.Any("error", err))
	}
}
