package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nao1215/sitesearch/internal/model"
	"github.com/nao1215/sitesearch/internal/report"
	"github.com/nao1215/sitesearch/internal/search"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

// parseRequest builds a SearchRequest from the query string. "start_url"
// and "max_depth" are accepted as aliases of "url" and "depth".
func parseRequest(r *http.Request) (model.SearchRequest, error) {
	q := r.URL.Query()

	req := model.SearchRequest{
		StartURL: strings.TrimSpace(firstNonEmpty(q.Get("url"), q.Get("start_url"))),
		Query:    q.Get("query"),
		MaxDepth: model.DefaultMaxDepth,
	}

	if raw := firstNonEmpty(q.Get("depth"), q.Get("max_depth")); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: %q", search.ErrInvalidDepth, raw)
		}
		req.MaxDepth = depth
	}

	return req, search.ValidateRequest(req)
}

// handleSearch crawls the requested site and replies with the report.
//
// Method: GET
// Path:   /search?url=...&query=...&depth=...
// Example:
//
//	curl "http://localhost:8080/search?url=https://go.dev/&query=generics&depth=1"
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	rep, err := s.factory(req).Search(ctx, req)
	if rep == nil {
		// Validation already passed, so only an unexpected failure lands here.
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if r.Context().Err() != nil {
		s.logger.Debug("client went away", "url", req.StartURL)
		return
	}
	if err != nil && !rep.TimedOut {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.save(r.Context(), rep)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := report.NewJSONWriter(w).Write(rep); err != nil {
		s.logger.Warn("failed to write response", "id", rep.ID, "error", err)
	}
}

// handleGetReport returns a previously saved report.
//
// Method: GET
// Path:   /reports/{id}
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("search history is disabled"))
		return
	}

	id := r.PathValue("id")
	rep, err := s.store.FindReport(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("report %q not found", id))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := report.NewJSONWriter(w).Write(rep); err != nil {
		s.logger.Warn("failed to write response", "id", rep.ID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// save stores rep if a store is configured. Failures are logged only: the
// caller still gets the report.
func (s *Server) save(ctx context.Context, rep *model.SearchReport) {
	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := s.store.SaveReport(ctx, rep); err != nil {
		s.logger.Warn("failed to save search report", "id", rep.ID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, errorResponse{Error: msg}, status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
