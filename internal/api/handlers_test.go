package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/testutil"
)

func TestSelectLetters(t *testing.T) {
	srv, st := newTestServer(t)
	first := testutil.MustSend(t, st, "alice", "bob", "first")
	second := testutil.MustSend(t, st, "alice", "bob", "second")

	params, err := query.EncodeSelect(query.UnreadInbox("bob", query.FilterSpec{}))
	testutil.MustNoErr(t, err, "EncodeSelect")

	w := do(t, srv, "GET", "/rest/v1/letters?"+params.Encode(), "tok-bob", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	rows := decode[[]backend.Row](t, w)
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.String(query.ColID))
	}
	testutil.AssertStrings(t, ids, first.ID, second.ID)

	// alice sees nothing addressed to her.
	params, _ = query.EncodeSelect(query.UnreadInbox("alice", query.FilterSpec{}))
	w = do(t, srv, "GET", "/rest/v1/letters?"+params.Encode(), "tok-alice", "")
	if got := decode[[]backend.Row](t, w); len(got) != 0 {
		t.Errorf("alice inbox = %v, want empty array", got)
	}
}

func TestInsertAndUpdate(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "POST", "/rest/v1/letters", "tok-alice",
		`{"recipient_id":"bob","content":"hello","created_at":"1999-01-01T00:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("insert status = %d: %s", w.Code, w.Body.String())
	}
	created := decode[backend.Row](t, w)
	id := created.String(query.ColID)
	if id == "" || created.String(query.ColAuthorID) != "alice" {
		t.Fatalf("created = %v", created)
	}
	if created.String(query.ColCreatedAt) == "1999-01-01T00:00:00Z" {
		t.Error("client created_at was honored")
	}

	filter := url.Values{}
	testutil.MustNoErr(t, query.EncodeFilter(filter, query.LetterByID(id)), "EncodeFilter")
	target := "/rest/v1/letters?" + filter.Encode()

	// Only the recipient may mark it read.
	w = do(t, srv, "PATCH", target, "tok-alice", `{"is_read":true}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("author mark-read status = %d, want 403", w.Code)
	}
	w = do(t, srv, "PATCH", target, "tok-bob", `{"is_read":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("recipient mark-read status = %d: %s", w.Code, w.Body.String())
	}
	updated := decode[backend.Row](t, w)
	if !updated.Bool(query.ColIsRead) || updated[query.ColReadAt] == nil {
		t.Errorf("updated = %v, want read with read_at", updated)
	}

	// Read state is one-way.
	w = do(t, srv, "PATCH", target, "tok-bob", `{"is_read":false}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unread status = %d, want 400", w.Code)
	}
}

func TestInsertErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		table      string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed body", "letters", `{`, http.StatusBadRequest, ""},
		{"array body", "letters", `[]`, http.StatusBadRequest, ""},
		{"unknown recipient", "letters", `{"recipient_id":"nobody","content":"x"}`, http.StatusBadRequest, backend.CodeForeignKey},
		{"empty content", "letters", `{"recipient_id":"bob","content":" "}`, http.StatusBadRequest, ""},
		{"for another user", "letters", `{"author_id":"bob","recipient_id":"bob","content":"x"}`, http.StatusForbidden, ""},
		{"unknown table", "secrets", `{"a":"b"}`, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/rest/v1/"+tt.table, "tok-alice", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if e := decode[ErrorResponse](t, w); e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestDuplicateContactConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `{"contact_user_id":"bob","display_name":"Bob"}`

	if w := do(t, srv, "POST", "/rest/v1/contacts", "tok-alice", body); w.Code != http.StatusCreated {
		t.Fatalf("first insert status = %d: %s", w.Code, w.Body.String())
	}
	w := do(t, srv, "POST", "/rest/v1/contacts", "tok-alice", body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
	if e := decode[ErrorResponse](t, w); e.Code != backend.CodeUnique {
		t.Errorf("code = %q, want %q", e.Code, backend.CodeUnique)
	}
}

func TestDelete(t *testing.T) {
	srv, st := newTestServer(t)
	l := testutil.MustSend(t, st, "alice", "bob", "oops")

	filter := url.Values{}
	testutil.MustNoErr(t, query.EncodeFilter(filter, query.LetterByID(l.ID)), "EncodeFilter")
	target := "/rest/v1/letters?" + filter.Encode()

	if w := do(t, srv, "DELETE", target, "tok-bob", ""); w.Code != http.StatusForbidden {
		t.Errorf("recipient delete status = %d, want 403", w.Code)
	}
	w := do(t, srv, "DELETE", target, "tok-alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("author delete status = %d: %s", w.Code, w.Body.String())
	}
	if d := decode[DeleteResponse](t, w); d.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", d.Deleted)
	}
}

func TestInvalidQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, target := range []string{
		"/rest/v1/letters?order=created_at.sideways",
		"/rest/v1/letters?id=like.x",
		"/rest/v1/letters?id=in.(a",
	} {
		if w := do(t, srv, "GET", target, "tok-alice", ""); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, w.Code)
		}
	}
}

// failingBackend fails every call with err.
type failingBackend struct {
	backend.Backend
	err error
}

func (f failingBackend) Select(_ context.Context, _ query.Select) ([]backend.Row, error) {
	return nil, f.err
}

func TestBackendErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{"forbidden", backend.Errorf(backend.KindForbidden, "permission denied"), http.StatusForbidden, "forbidden", "permission denied"},
		{"not found", backend.Errorf(backend.KindNotFound, "no such table"), http.StatusNotFound, "not_found", "no such table"},
		{"unauthenticated", backend.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "Authentication failed. Please log in again."},
		{"internal details hidden", fmt.Errorf("disk I/O error at /var/db"), http.StatusInternalServerError, "internal_error", "Internal server error"},
		{"wrapped sentinel", fmt.Errorf("select: %w", backend.ErrValidation), http.StatusBadRequest, "validation", "An unexpected error occurred. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(testConfig(), func(string) backend.Backend {
				return failingBackend{err: tt.err}
			}, testLogger())
			defer srv.rateLimiter.Close()

			req := httptest.NewRequest("GET", "/rest/v1/letters", nil)
			req.Header.Set("Authorization", "Bearer tok-alice")
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			e := decode[ErrorResponse](t, w)
			if e.Error != tt.wantError || e.Message != tt.wantMessage {
				t.Errorf("response = %+v, want error %q message %q", e, tt.wantError, tt.wantMessage)
			}
		})
	}
}
