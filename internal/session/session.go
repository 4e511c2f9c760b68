// Package session holds the per-login context handed to the letter services:
// the backend, the authenticated identity, the logger and the notifier used
// for transient user-facing messages.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// Options configures a Session.
type Options struct {
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Session is created on login and torn down on logout. After Close the
// session reports no identity and drops notifications.
type Session struct {
	backend  backend.Backend
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	identity *query.Identity
}

// Open resolves the authenticated identity from b and records the login
// time on the user's profile. It fails with an unauthenticated error when b
// has no identity. Failing to record the login is logged, not returned.
func Open(ctx context.Context, b backend.Backend, opts Options) (*Session, error) {
	id, err := b.CurrentIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if id == nil {
		return nil, backend.Errorf(backend.KindUnauthenticated, "not authenticated")
	}

	s := &Session{
		backend:  b,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
		identity: id,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("user_id", id.ID)

	if err := s.recordLogin(ctx); err != nil {
		s.logger.Warn("failed to record login", "error", err)
	}
	return s, nil
}

// recordLogin stamps last_login_at, creating the profile if it is missing.
func (s *Session) recordLogin(ctx context.Context) error {
	now := s.now()
	_, err := s.backend.Update(ctx, query.TableProfiles,
		query.Eq{Column: query.ColUserID, Value: s.identity.ID},
		backend.Patch{query.ColLastLoginAt: now})
	if err == nil || backend.KindOf(err) != backend.KindNotFound {
		return err
	}
	_, err = s.backend.Insert(ctx, query.TableProfiles, backend.Row{
		query.ColUserID:      s.identity.ID,
		query.ColEmail:       s.identity.Email,
		query.ColLastLoginAt: query.FormatTime(now),
	})
	return err
}

// Backend returns the backend the session talks to.
func (s *Session) Backend() backend.Backend { return s.backend }

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Identity returns the authenticated identity, or nil after Close.
func (s *Session) Identity() *query.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// CurrentIdentity re-resolves the identity against the backend. It returns
// nil without contacting the backend once the session is closed.
func (s *Session) CurrentIdentity(ctx context.Context) (*query.Identity, error) {
	if s.Identity() == nil {
		return nil, nil
	}
	return s.backend.CurrentIdentity(ctx)
}

// Notify forwards a message to the notifier, if any.
func (s *Session) Notify(level Level, message string) {
	if s.Identity() == nil || s.notifier == nil {
		return
	}
	s.notifier.Notify(level, message)
}

// Close ends the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
}
