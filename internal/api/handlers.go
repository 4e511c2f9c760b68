package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// UserResponse is returned by GET /auth/v1/user.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// DeleteResponse is returned by DELETE /rest/v1/{table}.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message, Code: code})
}

// statusForKind maps a backend error kind to an HTTP status.
func statusForKind(k backend.Kind, code string) int {
	switch k {
	case backend.KindUnauthenticated:
		return http.StatusUnauthorized
	case backend.KindForbidden:
		return http.StatusForbidden
	case backend.KindNotFound:
		return http.StatusNotFound
	case backend.KindValidation:
		if code == backend.CodeUnique {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case backend.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeBackendError reports a backend failure. Classified errors expose
// their message; anything else is logged and reported generically.
func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	kind := backend.KindOf(err)
	code := backend.Code(err)
	status := statusForKind(kind, code)

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", kind.String(),
			"error", err,
		)
		writeError(w, status, "internal_error", "Internal server error", "")
		return
	}

	msg := backend.UserMessage(err)
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		msg = be.Message
	}
	writeError(w, status, kind.String(), msg, code)
}

// backendFor returns the backend acting as the authenticated user.
func (s *Server) backendFor(r *http.Request) backend.Backend {
	return s.backends(UserID(r.Context()))
}

// decodeBody reads a JSON object body into a row.
func decodeBody(w http.ResponseWriter, r *http.Request) (backend.Row, bool) {
	var row backend.Row
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&row); err != nil || row == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON object", "")
		return nil, false
	}
	return row, true
}

// handleUser returns the authenticated identity.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	id, err := s.backendFor(r).CurrentIdentity(r.Context())
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "No profile for this user", "")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{ID: id.ID, Email: id.Email})
}

// handleSelect returns the rows of a table matching the URL filters.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	q, err := query.DecodeSelect(chi.URLParam(r, "table"), r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error(), "")
		return
	}
	rows, err := s.backendFor(r).Select(r.Context(), q)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	if rows == nil {
		rows = []backend.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleUpdate patches the rows matching the URL filters and returns the
// first updated row.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	where, err := query.DecodeFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error(), "")
		return
	}
	patch, ok := decodeBody(w, r)
	if !ok {
		return
	}
	row, err := s.backendFor(r).Update(r.Context(), chi.URLParam(r, "table"), where, backend.Patch(patch))
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleInsert creates a row.
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	row, ok := decodeBody(w, r)
	if !ok {
		return
	}
	created, err := s.backendFor(r).Insert(r.Context(), chi.URLParam(r, "table"), row)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleDelete removes the rows matching the URL filters.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	where, err := query.DecodeFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error(), "")
		return
	}
	n, err := s.backendFor(r).Delete(r.Context(), chi.URLParam(r, "table"), where)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}
