package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/session"
	"github.com/itsluminous/Letters/internal/testutil"
	"github.com/itsluminous/Letters/internal/testutil/backendmock"
)

var loginTime = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func testOptions(n session.Notifier) session.Options {
	return session.Options{
		Notifier: n,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return loginTime },
	}
}

func TestOpen_Unauthenticated(t *testing.T) {
	mb := backendmock.New("")
	mb.Identity = nil
	_, err := session.Open(context.Background(), mb, testOptions(nil))
	testutil.AssertKind(t, err, backend.KindUnauthenticated)

	mb.IdentityErr = errors.New("dial tcp: connection refused")
	_, err = session.Open(context.Background(), mb, testOptions(nil))
	if err == nil || backend.KindOf(err) != backend.KindTransient {
		t.Errorf("Open with identity failure = %v, want transient error", err)
	}
}

func TestOpen_RecordsLogin(t *testing.T) {
	mb := backendmock.New("alice")
	s, err := session.Open(context.Background(), mb, testOptions(nil))
	testutil.MustNoErr(t, err, "Open")

	if id := s.Identity(); id == nil || id.ID != "alice" {
		t.Fatalf("Identity = %+v", id)
	}
	calls := mb.Calls()
	if len(calls) != 2 || calls[1].Method != "Update" || calls[1].Table != query.TableProfiles {
		t.Fatalf("calls = %+v, want identity lookup then profile update", calls)
	}
	if got := calls[1].Patch[query.ColLastLoginAt]; got != loginTime {
		t.Errorf("last_login_at = %v, want %v", got, loginTime)
	}
}

func TestOpen_CreatesMissingProfile(t *testing.T) {
	mb := backendmock.New("alice")
	mb.UpdateFunc = func(string, query.Predicate, backend.Patch) (backend.Row, error) {
		return nil, backend.Errorf(backend.KindNotFound, "no profile")
	}
	_, err := session.Open(context.Background(), mb, testOptions(nil))
	testutil.MustNoErr(t, err, "Open")

	if mb.Count("Insert") != 1 {
		t.Fatalf("Insert called %d times, want 1", mb.Count("Insert"))
	}
	row := mb.Calls()[2].Row
	if row.String(query.ColUserID) != "alice" || row.String(query.ColLastLoginAt) != query.FormatTime(loginTime) {
		t.Errorf("inserted profile = %v", row)
	}
}

func TestOpen_LoginFailureIsNotFatal(t *testing.T) {
	mb := backendmock.New("alice")
	mb.UpdateFunc = func(string, query.Predicate, backend.Patch) (backend.Row, error) {
		return nil, backend.Errorf(backend.KindForbidden, "rls")
	}
	if _, err := session.Open(context.Background(), mb, testOptions(nil)); err != nil {
		t.Fatalf("Open: %v", err)
	}
}

func TestSession_Close(t *testing.T) {
	var notes []string
	n := session.NotifierFunc(func(level session.Level, msg string) {
		notes = append(notes, level.String()+": "+msg)
	})
	mb := backendmock.New("alice")
	s, err := session.Open(context.Background(), mb, testOptions(n))
	testutil.MustNoErr(t, err, "Open")

	s.Notify(session.LevelSuccess, "Letter sent")
	s.Close()
	s.Notify(session.LevelError, "dropped")

	testutil.AssertStrings(t, notes, "success: Letter sent")
	if s.Identity() != nil {
		t.Error("Identity should be nil after Close")
	}

	before := len(mb.Calls())
	id, err := s.CurrentIdentity(context.Background())
	if id != nil || err != nil {
		t.Errorf("CurrentIdentity after Close = %v, %v", id, err)
	}
	if len(mb.Calls()) != before {
		t.Error("CurrentIdentity after Close should not contact the backend")
	}
}
