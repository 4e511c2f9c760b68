// Package compose writes letters: sending new ones and editing or deleting
// an author's letters that the recipient has not read yet.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/session"
)

// User-facing messages.
const (
	MsgContentRequired   = "Letter content is required"
	MsgRecipientRequired = "Please select a recipient"
	MsgUpdateFailed      = "Failed to update letter. It may have already been read."
	MsgDeleteFailed      = "Failed to delete letter. It may have already been read."
	MsgAlreadySeen       = "Cannot edit a letter that has already been seen"
)

// Service performs letter writes for the session user. Writes are not
// retried; the caller decides whether to try again.
type Service struct {
	sess *session.Session
	log  *slog.Logger
}

// New returns a compose service for the session.
func New(sess *session.Session) *Service {
	return &Service{sess: sess, log: sess.Logger().With("component", "compose")}
}

// Send creates a letter to recipientID. Content is trimmed and must not be
// empty. Timestamps and the id are assigned by the backend.
func (s *Service) Send(ctx context.Context, recipientID, content string) (query.Letter, error) {
	content = strings.TrimSpace(content)
	recipientID = strings.TrimSpace(recipientID)
	if content == "" {
		return query.Letter{}, backend.Errorf(backend.KindValidation, MsgContentRequired)
	}
	if recipientID == "" {
		return query.Letter{}, backend.Errorf(backend.KindValidation, MsgRecipientRequired)
	}

	id, err := s.identity(ctx)
	if err != nil {
		return query.Letter{}, s.failure("compose.send", err, "", "recipient_id", recipientID)
	}
	row, err := s.sess.Backend().Insert(ctx, query.TableLetters, backend.Row{
		query.ColAuthorID:    id.ID,
		query.ColRecipientID: recipientID,
		query.ColContent:     content,
		query.ColIsRead:      false,
	})
	if err != nil {
		return query.Letter{}, s.failure("compose.send", err, "", "recipient_id", recipientID)
	}
	l, err := backend.LetterFromRow(row)
	if err != nil {
		return query.Letter{}, s.failure("compose.send", err, "", "recipient_id", recipientID)
	}
	s.sess.Notify(session.LevelSuccess, "Letter sent successfully!")
	return l, nil
}

// Load fetches one of the user's own letters for editing. A letter that has
// been read cannot be edited.
func (s *Service) Load(ctx context.Context, letterID string) (query.Letter, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return query.Letter{}, s.failure("compose.load", err, "", "letter_id", letterID)
	}
	rows, err := s.sess.Backend().Select(ctx, query.Select{
		Table: query.TableLetters,
		Where: query.And{Predicates: []query.Predicate{
			query.LetterByID(letterID),
			query.Eq{Column: query.ColAuthorID, Value: id.ID},
		}},
	})
	if err != nil {
		return query.Letter{}, s.failure("compose.load", err, "", "letter_id", letterID)
	}
	if len(rows) == 0 {
		return query.Letter{}, s.failure("compose.load",
			backend.Errorf(backend.KindNotFound, "letter %s not found", letterID), "Letter not found", "letter_id", letterID)
	}
	l, err := backend.LetterFromRow(rows[0])
	if err != nil {
		return query.Letter{}, s.failure("compose.load", err, "", "letter_id", letterID)
	}
	if l.IsRead {
		return query.Letter{}, backend.Errorf(backend.KindValidation, MsgAlreadySeen)
	}
	return l, nil
}

// Edit replaces the content of an unread letter the user wrote.
func (s *Service) Edit(ctx context.Context, letterID, content string) (query.Letter, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return query.Letter{}, backend.Errorf(backend.KindValidation, MsgContentRequired)
	}
	id, err := s.identity(ctx)
	if err != nil {
		return query.Letter{}, s.failure("compose.edit", err, "", "letter_id", letterID)
	}
	row, err := s.sess.Backend().Update(ctx, query.TableLetters, ownUnread(letterID, id.ID),
		backend.Patch{query.ColContent: content})
	if err != nil {
		return query.Letter{}, s.failure("compose.edit", err, MsgUpdateFailed, "letter_id", letterID)
	}
	l, err := backend.LetterFromRow(row)
	if err != nil {
		return query.Letter{}, s.failure("compose.edit", err, "", "letter_id", letterID)
	}
	s.sess.Notify(session.LevelSuccess, "Letter updated successfully!")
	return l, nil
}

// Delete removes an unread letter the user wrote.
func (s *Service) Delete(ctx context.Context, letterID string) error {
	id, err := s.identity(ctx)
	if err != nil {
		return s.failure("compose.delete", err, "", "letter_id", letterID)
	}
	n, err := s.sess.Backend().Delete(ctx, query.TableLetters, ownUnread(letterID, id.ID))
	if err == nil && n == 0 {
		err = backend.Errorf(backend.KindNotFound, "no unread letter %s by %s", letterID, id.ID)
	}
	if err != nil {
		return s.failure("compose.delete", err, MsgDeleteFailed, "letter_id", letterID)
	}
	s.sess.Notify(session.LevelSuccess, "Letter deleted successfully")
	return nil
}

// ownUnread matches letterID only while it is authored by userID and unread.
func ownUnread(letterID, userID string) query.Predicate {
	return query.And{Predicates: []query.Predicate{
		query.LetterByID(letterID),
		query.Eq{Column: query.ColAuthorID, Value: userID},
		query.Eq{Column: query.ColIsRead, Value: false},
	}}
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

// failure logs err and returns a classified error carrying msg, or the
// generic user message for err when msg is empty. Authentication failures
// always use the generic message.
func (s *Service) failure(op string, err error, msg string, attrs ...any) *backend.Error {
	kind := backend.KindOf(err)
	if msg == "" || kind == backend.KindUnauthenticated {
		msg = backend.UserMessage(err)
	}
	s.log.Error("compose operation failed",
		append([]any{"context", op, "kind", kind.String(), "error", err}, attrs...)...)
	return &backend.Error{Kind: kind, Code: backend.Code(err), Message: msg}
}
