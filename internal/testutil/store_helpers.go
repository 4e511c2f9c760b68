package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/store"
)

// NewTestStore creates a temporary database for testing, stamped by a
// StepClock. The database is closed when the test completes.
func NewTestStore(t *testing.T) (*store.Store, *StepClock) {
	t.Helper()

	clock := NewStepClock()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, store.WithNow(clock.Now))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})

	if err := st.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st, clock
}

// MustCreateUsers registers each id as a user.
func MustCreateUsers(t *testing.T, st *store.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := st.CreateUser(context.Background(), id, id+"@example.com")
		MustNoErr(t, err, "create user "+id)
	}
}

// MustSend inserts a letter from one user to another and returns it.
func MustSend(t *testing.T, st *store.Store, from, to, content string) query.Letter {
	t.Helper()
	row, err := st.As(from).Insert(context.Background(), query.TableLetters, map[string]any{
		query.ColRecipientID: to,
		query.ColContent:     content,
	})
	MustNoErr(t, err, "send letter")
	return mustLetter(t, row)
}

// MustMarkRead marks a letter read on behalf of its recipient.
func MustMarkRead(t *testing.T, st *store.Store, recipient, letterID string) query.Letter {
	t.Helper()
	row, err := st.As(recipient).Update(context.Background(), query.TableLetters,
		query.LetterByID(letterID), map[string]any{query.ColIsRead: true})
	MustNoErr(t, err, "mark read")
	return mustLetter(t, row)
}

// MustAddContact adds a contact for owner.
func MustAddContact(t *testing.T, st *store.Store, owner, contactID, name string) {
	t.Helper()
	_, err := st.As(owner).Insert(context.Background(), query.TableContacts, map[string]any{
		query.ColContactUserID: contactID,
		query.ColDisplayName:   name,
	})
	MustNoErr(t, err, "add contact")
}
