package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/store"
	"github.com/itsluminous/Letters/internal/testutil"
)

func TestOpen_RejectsPostgres(t *testing.T) {
	for _, dsn := range []string{"postgres://localhost/letters", "postgresql://u@host/db"} {
		_, err := store.Open(dsn)
		if err == nil || !strings.Contains(err.Error(), "PostgreSQL is not supported") {
			t.Errorf("Open(%q) err = %v", dsn, err)
		}
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "letters.db")
	st, err := store.Open(dbPath)
	testutil.MustNoErr(t, err, "Open")
	defer st.Close()
	testutil.MustNoErr(t, st.InitSchema(), "InitSchema")

	stats, err := st.GetStats(context.Background())
	testutil.MustNoErr(t, err, "GetStats")
	if stats.DatabaseSize == 0 {
		t.Error("DatabaseSize = 0, want size of the created file")
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	testutil.MustCreateUsers(t, st, "alice", "bob")
	testutil.MustSend(t, st, "alice", "bob", "kept")

	testutil.MustNoErr(t, st.InitSchema(), "second InitSchema")

	stats, err := st.GetStats(context.Background())
	testutil.MustNoErr(t, err, "GetStats")
	if stats.UserCount != 2 || stats.LetterCount != 1 {
		t.Errorf("stats after re-init = %+v", stats)
	}
}

func TestGetStats_WithoutSchema(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "empty.db"))
	testutil.MustNoErr(t, err, "Open")
	defer st.Close()

	stats, err := st.GetStats(context.Background())
	testutil.MustNoErr(t, err, "GetStats")
	if stats.UserCount != 0 || stats.LetterCount != 0 || stats.ContactCount != 0 {
		t.Errorf("stats = %+v, want zero counts", stats)
	}
}

func TestCreateUser(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctx := context.Background()

	p, err := st.CreateUser(ctx, "  alice ", " alice@example.com ")
	testutil.MustNoErr(t, err, "CreateUser")
	want := &query.Profile{UserID: "alice", Email: "alice@example.com"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}

	generated, err := st.CreateUser(ctx, "", "")
	testutil.MustNoErr(t, err, "CreateUser without id")
	if _, err := uuid.Parse(generated.UserID); err != nil {
		t.Errorf("generated id %q is not a UUID: %v", generated.UserID, err)
	}

	_, err = st.CreateUser(ctx, "alice", "other@example.com")
	testutil.AssertKind(t, err, backend.KindValidation)
	if code := backend.Code(err); code != backend.CodeUnique {
		t.Errorf("duplicate user code = %q, want %q", code, backend.CodeUnique)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	st, _ := testutil.NewTestStore(t)

	_, err := st.GetUser(context.Background(), "ghost")
	testutil.AssertKind(t, err, backend.KindNotFound)
	testutil.AssertErrorIs(t, err, backend.ErrNotFound)
	testutil.AssertContainsAll(t, err.Error(), []string{"user", "ghost"})
}

func TestListUsers_OrderedByID(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	testutil.MustCreateUsers(t, st, "carol", "alice", "bob")

	users, err := st.ListUsers(context.Background())
	testutil.MustNoErr(t, err, "ListUsers")
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.UserID
		if u.LastLoginAt != nil {
			t.Errorf("%s: LastLoginAt = %v, want nil for a new user", u.UserID, u.LastLoginAt)
		}
	}
	testutil.AssertStrings(t, ids, "alice", "bob", "carol")
}
