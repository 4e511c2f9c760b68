package compose_test

import (
	"context"
	"testing"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/compose"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/session"
	"github.com/itsluminous/Letters/internal/store"
	"github.com/itsluminous/Letters/internal/testutil"
	"github.com/itsluminous/Letters/internal/testutil/backendmock"
)

func setup(t *testing.T) (*store.Store, *compose.Service, *testutil.Notices) {
	t.Helper()
	st, _ := testutil.NewTestStore(t)
	testutil.MustCreateUsers(t, st, "alice", "bob")
	sess, notices := testutil.MustOpenSession(t, st.As("alice"))
	return st, compose.New(sess), notices
}

func assertMessage(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestSend(t *testing.T) {
	_, svc, notices := setup(t)

	l, err := svc.Send(context.Background(), "bob", "  Dear Bob,\nhello.  ")
	testutil.MustNoErr(t, err, "Send")
	if l.ID == "" || l.AuthorID != "alice" || l.RecipientID != "bob" {
		t.Errorf("sent letter = %+v", l)
	}
	if l.Content != "Dear Bob,\nhello." {
		t.Errorf("content = %q, want trimmed", l.Content)
	}
	if l.IsRead || l.ReadAt != nil {
		t.Error("new letter is read")
	}
	got := notices.All()
	if len(got) != 1 || got[0] != (testutil.Notice{Level: session.LevelSuccess, Message: "Letter sent successfully!"}) {
		t.Errorf("notices = %+v", got)
	}
}

func TestSend_Validation(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "bob", "   ")
	testutil.AssertKind(t, err, backend.KindValidation)
	assertMessage(t, err, compose.MsgContentRequired)

	_, err = svc.Send(ctx, "", "hi")
	testutil.AssertKind(t, err, backend.KindValidation)
	assertMessage(t, err, compose.MsgRecipientRequired)

	_, err = svc.Send(ctx, "nobody", "hi")
	testutil.AssertKind(t, err, backend.KindValidation)
	if backend.Code(err) != backend.CodeForeignKey {
		t.Errorf("code = %q, want %q", backend.Code(err), backend.CodeForeignKey)
	}
}

func TestEdit(t *testing.T) {
	st, svc, _ := setup(t)
	ctx := context.Background()
	l := testutil.MustSend(t, st, "alice", "bob", "draft")

	edited, err := svc.Edit(ctx, l.ID, "final")
	testutil.MustNoErr(t, err, "Edit")
	if edited.Content != "final" {
		t.Errorf("content = %q", edited.Content)
	}
	if !edited.UpdatedAt.After(l.UpdatedAt) {
		t.Errorf("updated_at not advanced: %v -> %v", l.UpdatedAt, edited.UpdatedAt)
	}

	loaded, err := svc.Load(ctx, l.ID)
	testutil.MustNoErr(t, err, "Load")
	if loaded.Content != "final" {
		t.Errorf("loaded content = %q", loaded.Content)
	}

	testutil.MustMarkRead(t, st, "bob", l.ID)
	_, err = svc.Edit(ctx, l.ID, "too late")
	assertMessage(t, err, compose.MsgUpdateFailed)
	_, err = svc.Load(ctx, l.ID)
	assertMessage(t, err, compose.MsgAlreadySeen)
}

func TestEdit_OthersLetter(t *testing.T) {
	st, svc, _ := setup(t)
	l := testutil.MustSend(t, st, "bob", "alice", "from bob")

	_, err := svc.Edit(context.Background(), l.ID, "tampered")
	testutil.AssertKind(t, err, backend.KindNotFound)
	assertMessage(t, err, compose.MsgUpdateFailed)

	_, err = svc.Load(context.Background(), l.ID)
	testutil.AssertKind(t, err, backend.KindNotFound)
}

func TestDelete(t *testing.T) {
	st, svc, notices := setup(t)
	ctx := context.Background()
	keep := testutil.MustSend(t, st, "alice", "bob", "keep")
	drop := testutil.MustSend(t, st, "alice", "bob", "drop")
	testutil.MustMarkRead(t, st, "bob", keep.ID)

	testutil.MustNoErr(t, svc.Delete(ctx, drop.ID), "Delete unread")
	assertMessage(t, svc.Delete(ctx, drop.ID), compose.MsgDeleteFailed)
	assertMessage(t, svc.Delete(ctx, keep.ID), compose.MsgDeleteFailed)

	rows, err := st.As("alice").Select(ctx, query.SentLetters("alice", query.FilterSpec{}))
	testutil.MustNoErr(t, err, "select sent")
	if len(rows) != 1 || rows[0].String(query.ColID) != keep.ID {
		t.Errorf("remaining letters = %v, want only %s", rows, keep.ID)
	}
	if len(notices.All()) != 1 {
		t.Errorf("notices = %+v, want one", notices.All())
	}
}

func TestWrites_ScopedToAuthorAndUnread(t *testing.T) {
	mb := backendmock.New("alice")
	sess, _ := testutil.MustOpenSession(t, mb)
	svc := compose.New(sess)
	ctx := context.Background()

	_ = svc.Delete(ctx, "l1")
	_, _ = svc.Edit(ctx, "l1", "text")

	var wheres []query.Predicate
	for _, c := range mb.Calls() {
		if c.Table == query.TableLetters && (c.Method == "Delete" || c.Method == "Update") {
			wheres = append(wheres, c.Where)
		}
	}
	if len(wheres) != 2 {
		t.Fatalf("letter writes = %d, want 2", len(wheres))
	}
	for _, w := range wheres {
		seen := map[string]any{}
		for _, p := range query.Conjuncts(w) {
			if eq, ok := p.(query.Eq); ok {
				seen[eq.Column] = eq.Value
			}
		}
		if seen[query.ColID] != "l1" || seen[query.ColAuthorID] != "alice" || seen[query.ColIsRead] != false {
			t.Errorf("where = %#v, want id, author and unread", w)
		}
	}
}
