// Package feed produces the ordered letter sequences shown for a user's
// inbox and sent letters, and performs the one mutation the reader may make:
// marking an inbox letter as read, optimistically and with rollback.
package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/retry"
	"github.com/itsluminous/Letters/internal/session"
)

// Directory resolves display labels for user ids. Missing ids are simply
// absent from the result.
type Directory interface {
	Labels(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Options configures a Service.
type Options struct {
	Retry     retry.Policy
	Directory Directory
	Now       func() time.Time
}

// State is a point-in-time view of a feed.
type State struct {
	Kind       query.FeedKind
	Letters    []query.Letter
	Filter     query.FilterSpec
	Loading    bool
	Err        *Error // last fetch failure, cleared by the next successful fetch
	RetryCount int    // failed fetches so far
}

// Service owns the in-memory letter sequence of one feed. Inbox and sent
// feeds are independent instances.
//
// Every fetch takes a sequence number and the current filter generation.
// A response is applied only if its generation is still current and no
// newer response has been applied; anything else is discarded with
// ErrSuperseded. Callers still re-invoke Refresh after SetFilter.
type Service struct {
	kind  query.FeedKind
	sess  *session.Session
	retry retry.Policy
	dir   Directory
	now   func() time.Time
	log   *slog.Logger

	mu         sync.Mutex
	letters    []query.Letter
	filter     query.FilterSpec
	generation uint64
	issued     uint64
	applied    uint64
	inFlight   int
	err        *Error
	retryCount int
	pending    map[string]pendingMark
}

// New returns a feed of the given kind for the session.
func New(kind query.FeedKind, sess *session.Session, opts Options) *Service {
	s := &Service{
		kind:  kind,
		sess:  sess,
		retry: opts.Retry,
		dir:   opts.Directory,
		now:   opts.Now,
		log:   sess.Logger().With("feed", kind.String()),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.retry.Logger == nil {
		s.retry.Logger = s.log
	}
	return s
}

// NewInbox returns the feed of letters addressed to the session's user.
func NewInbox(sess *session.Session, opts Options) *Service {
	return New(query.Inbox, sess, opts)
}

// NewSent returns the feed of letters authored by the session's user.
func NewSent(sess *session.Session, opts Options) *Service {
	return New(query.Sent, sess, opts)
}

// Kind reports which feed this is.
func (s *Service) Kind() query.FeedKind { return s.kind }

// Snapshot returns the current state. The returned slice is not shared with
// the service.
func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Kind:       s.kind,
		Letters:    slices.Clone(s.letters),
		Filter:     s.filter.Clone(),
		Loading:    s.inFlight > 0,
		Err:        s.err,
		RetryCount: s.retryCount,
	}
}

// Letters returns the current sequence.
func (s *Service) Letters() []query.Letter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.letters)
}

// Filter returns the active filter.
func (s *Service) Filter() query.FilterSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.Clone()
}

// SetFilter replaces the active filter. Responses to fetches issued under
// the previous filter are discarded when they arrive. The visible sequence
// is kept until the next Refresh.
func (s *Service) SetFilter(f query.FilterSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f.Clone()
	s.generation++
}

// Refresh re-runs retrieval under the active filter and, if the response is
// still current, replaces the visible sequence with it. On failure the
// previous sequence stays visible and the error is recorded in State.
func (s *Service) Refresh(ctx context.Context) ([]query.Letter, error) {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	gen := s.generation
	filter := s.filter.Clone()
	s.inFlight++
	s.mu.Unlock()

	letters, err := retry.Value(ctx, s.retry, "feed.fetch", func(ctx context.Context) ([]query.Letter, error) {
		return s.fetch(ctx, filter)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if gen != s.generation || seq < s.applied {
		s.log.Debug("discarding superseded response", "seq", seq, "generation", gen)
		return nil, ErrSuperseded
	}
	if err != nil {
		s.retryCount++
		s.err = s.failure("feed.fetch", err, "filter", filter)
		return nil, s.err
	}
	s.applied = seq
	s.err = nil
	s.letters = letters
	return slices.Clone(letters), nil
}

// MarkAsRead marks an unread letter in the current sequence as read.
//
// The change is applied to the in-memory sequence immediately, then sent to
// the backend under the retry policy. On success the feed is re-fetched so
// the sequence re-sorts; a failure of that re-fetch is recorded in State and
// does not undo the mutation. On failure the optimistic copy of the letter
// is replaced by the letter as it was before this call, wherever it still
// sits in the sequence, and a classified error is returned.
//
// A letter absent from the sequence fails with a not-found error without
// contacting the backend; a letter already read is a no-op.
func (s *Service) MarkAsRead(ctx context.Context, letterID string) error {
	p, ok, err := s.applyMark(letterID)
	if err != nil || !ok {
		return err
	}
	return s.commitMark(ctx, p)
}

// BeginMarkAsRead applies the optimistic half of MarkAsRead and returns the
// letter as it now appears. CommitMarkAsRead sends the change. Readers that
// render before the backend answers use the pair instead of MarkAsRead.
func (s *Service) BeginMarkAsRead(letterID string) (query.Letter, error) {
	p, ok, err := s.applyMark(letterID)
	if err != nil {
		return query.Letter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		idx := slices.IndexFunc(s.letters, func(l query.Letter) bool { return l.ID == letterID })
		if idx < 0 {
			return query.Letter{}, s.failure("feed.markAsRead",
				backend.Errorf(backend.KindNotFound, "letter %s not found in %s feed", letterID, s.kind),
				"letter_id", letterID)
		}
		return s.letters[idx], nil
	}
	if s.pending == nil {
		s.pending = make(map[string]pendingMark)
	}
	s.pending[letterID] = p
	return p.marked(), nil
}

// CommitMarkAsRead sends a mark begun with BeginMarkAsRead, with the same
// retry, rollback and re-fetch behavior as MarkAsRead. Without a pending
// mark for letterID it does nothing.
func (s *Service) CommitMarkAsRead(ctx context.Context, letterID string) error {
	s.mu.Lock()
	p, ok := s.pending[letterID]
	delete(s.pending, letterID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.commitMark(ctx, p)
}

// pendingMark is an optimistic mark-as-read not yet confirmed.
type pendingMark struct {
	original query.Letter
	readAt   *time.Time // shared by the optimistic copy only
}

func (p pendingMark) marked() query.Letter {
	l := p.original
	l.IsRead = true
	l.ReadAt = p.readAt
	return l
}

// applyMark swaps the optimistic copy into the sequence. ok is false when
// the letter is already read.
func (s *Service) applyMark(letterID string) (p pendingMark, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.letters, func(l query.Letter) bool { return l.ID == letterID })
	if idx < 0 {
		return p, false, s.failure("feed.markAsRead",
			backend.Errorf(backend.KindNotFound, "letter %s not found in %s feed", letterID, s.kind),
			"letter_id", letterID)
	}
	if s.letters[idx].IsRead {
		return p, false, nil
	}

	now := s.now().UTC()
	p = pendingMark{original: s.letters[idx], readAt: &now}
	optimistic := slices.Clone(s.letters)
	optimistic[idx] = p.marked()
	s.letters = optimistic
	return p, true, nil
}

func (s *Service) commitMark(ctx context.Context, p pendingMark) error {
	letterID := p.original.ID
	err := s.retry.Do(ctx, "feed.markAsRead", func(ctx context.Context) error {
		_, err := s.sess.Backend().Update(ctx, query.TableLetters, query.LetterByID(letterID), backend.Patch{
			query.ColIsRead: true,
			query.ColReadAt: *p.readAt,
		})
		return err
	})
	if err != nil {
		s.mu.Lock()
		s.letters = revertMark(s.letters, p)
		s.mu.Unlock()
		return s.failure("feed.markAsRead", err, "letter_id", letterID)
	}

	if _, err := s.Refresh(ctx); err != nil {
		s.log.Debug("re-fetch after mark as read did not apply", "letter_id", letterID, "error", err)
	}
	return nil
}

// revertMark puts p's original letter back in place of its optimistic copy.
// A sequence that no longer holds the copy, because a fetch replaced it, is
// returned unchanged.
func revertMark(letters []query.Letter, p pendingMark) []query.Letter {
	idx := slices.IndexFunc(letters, func(l query.Letter) bool {
		return l.ID == p.original.ID && l.ReadAt == p.readAt
	})
	if idx < 0 {
		return letters
	}
	out := slices.Clone(letters)
	out[idx] = p.original
	return out
}

// failure logs the raw error and converts it to a user-presentable Error.
func (s *Service) failure(op string, err error, attrs ...any) *Error {
	fe := &Error{Op: op, Kind: backend.KindOf(err), Message: backend.UserMessage(err)}
	s.log.Error("feed operation failed",
		append([]any{"context", op, "kind", fe.Kind.String(), "error", err}, attrs...)...)
	return fe
}
