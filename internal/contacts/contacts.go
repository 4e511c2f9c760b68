// Package contacts manages a user's address book: the people they can write
// to and the display names letters are labelled with.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/retry"
	"github.com/itsluminous/Letters/internal/session"
)

// User-facing messages for rejected additions.
const (
	MsgUnknownUser      = "User ID does not exist. Please check and try again."
	MsgDuplicateContact = "This contact already exists."
)

// Service caches the session user's contacts.
type Service struct {
	sess  *session.Session
	retry retry.Policy
	log   *slog.Logger

	mu       sync.Mutex
	contacts []query.Contact
	loaded   bool
	err      error
}

// New returns a contacts service for the session.
func New(sess *session.Session, policy retry.Policy) *Service {
	s := &Service{
		sess:  sess,
		retry: policy,
		log:   sess.Logger().With("component", "contacts"),
	}
	if s.retry.Logger == nil {
		s.retry.Logger = s.log
	}
	return s
}

// Contacts returns the cached list, ordered by display name.
func (s *Service) Contacts() []query.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.contacts)
}

// Err returns the last list failure, or nil.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// List fetches the contacts owned by the session user, ordered by display
// name, and replaces the cache. On failure the cache is kept.
func (s *Service) List(ctx context.Context) ([]query.Contact, error) {
	list, err := retry.Value(ctx, s.retry, "contacts.list", s.fetch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = s.failure("contacts.list", err, "")
		return nil, s.err
	}
	s.contacts = list
	s.loaded = true
	s.err = nil
	return slices.Clone(list), nil
}

func (s *Service) fetch(ctx context.Context) ([]query.Contact, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.sess.Backend().Select(ctx, query.ContactsOf(id.ID))
	if err != nil {
		return nil, fmt.Errorf("select contacts: %w", err)
	}
	out := make([]query.Contact, 0, len(rows))
	for _, r := range rows {
		c, err := backend.ContactFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) identity(ctx context.Context) (*query.Identity, error) {
	id, err := s.sess.CurrentIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if id == nil {
		return nil, backend.Errorf(backend.KindUnauthenticated, "user not authenticated")
	}
	return id, nil
}

// Add creates a contact for contactUserID under displayName and refreshes
// the cached list. A user id with no account and a duplicate contact are
// reported with dedicated messages. Failure of the follow-up refresh is
// logged only.
func (s *Service) Add(ctx context.Context, contactUserID, displayName string) (query.Contact, error) {
	contactUserID = strings.TrimSpace(contactUserID)
	displayName = strings.TrimSpace(displayName)
	switch {
	case contactUserID == "":
		return query.Contact{}, backend.Errorf(backend.KindValidation, "User ID is required.")
	case displayName == "":
		return query.Contact{}, backend.Errorf(backend.KindValidation, "Display name is required.")
	}

	id, err := s.identity(ctx)
	if err != nil {
		return query.Contact{}, s.failure("contacts.add", err, contactUserID)
	}
	row, err := s.sess.Backend().Insert(ctx, query.TableContacts, backend.Row{
		query.ColUserID:        id.ID,
		query.ColContactUserID: contactUserID,
		query.ColDisplayName:   displayName,
	})
	if err != nil {
		return query.Contact{}, s.failure("contacts.add", err, contactUserID)
	}
	c, err := backend.ContactFromRow(row)
	if err != nil {
		return query.Contact{}, s.failure("contacts.add", err, contactUserID)
	}

	if _, err := s.List(ctx); err != nil {
		s.log.Debug("refresh after add failed", "error", err)
	}
	s.sess.Notify(session.LevelSuccess, displayName+" has been added to your contacts!")
	return c, nil
}

// Labels maps the given user ids to contact display names. Ids without a
// contact are absent from the result. The cache is loaded on first use.
func (s *Service) Labels(ctx context.Context, userIDs []string) (map[string]string, error) {
	list, err := s.cached(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	out := make(map[string]string)
	for _, c := range list {
		if want[c.ContactUserID] {
			out[c.ContactUserID] = c.DisplayName
		}
	}
	return out, nil
}

// Label returns the display name for one user id.
func (s *Service) Label(ctx context.Context, userID string) (string, bool) {
	labels, err := s.Labels(ctx, []string{userID})
	if err != nil {
		return "", false
	}
	name, ok := labels[userID]
	return name, ok
}

// Resolve maps each name to a contact user id. Names match display names
// case-insensitively, or a contact's user id exactly.
func (s *Service) Resolve(ctx context.Context, names []string) ([]string, error) {
	list, err := s.cached(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		idx := slices.IndexFunc(list, func(c query.Contact) bool {
			return c.ContactUserID == name || strings.EqualFold(c.DisplayName, name)
		})
		if idx < 0 {
			return nil, backend.Errorf(backend.KindValidation, "unknown contact %q", name)
		}
		ids = append(ids, list[idx].ContactUserID)
	}
	return ids, nil
}

func (s *Service) cached(ctx context.Context) ([]query.Contact, error) {
	s.mu.Lock()
	if s.loaded {
		list := slices.Clone(s.contacts)
		s.mu.Unlock()
		return list, nil
	}
	s.mu.Unlock()
	return s.List(ctx)
}

// failure logs err and returns its user-presentable form.
func (s *Service) failure(op string, err error, contactUserID string) *backend.Error {
	kind := backend.KindOf(err)
	msg := backend.UserMessage(err)
	switch backend.Code(err) {
	case backend.CodeForeignKey:
		msg = MsgUnknownUser
	case backend.CodeUnique:
		msg = MsgDuplicateContact
	}
	attrs := []any{"context", op, "kind", kind.String(), "error", err}
	if contactUserID != "" {
		attrs = append(attrs, "contact_user_id", contactUserID)
	}
	s.log.Error("contacts operation failed", attrs...)
	return &backend.Error{Kind: kind, Code: backend.Code(err), Message: msg}
}
