package feed

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

// fetch runs one complete retrieval attempt. Any failure aborts the whole
// attempt so the retry policy restarts it from identity resolution.
func (s *Service) fetch(ctx context.Context, f query.FilterSpec) ([]query.Letter, error) {
	id, err := s.sess.CurrentIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if id == nil {
		return nil, backend.Errorf(backend.KindUnauthenticated, "user not authenticated")
	}

	if s.kind == query.Sent {
		return s.fetchSent(ctx, id.ID, f)
	}
	return s.fetchInbox(ctx, id.ID, f)
}

// fetchInbox returns unread letters oldest first; only when there are none
// does it query read letters, newest first.
func (s *Service) fetchInbox(ctx context.Context, userID string, f query.FilterSpec) ([]query.Letter, error) {
	letters, err := s.selectLetters(ctx, query.UnreadInbox(userID, f))
	if err != nil {
		return nil, fmt.Errorf("fetch unread letters: %w", err)
	}
	if len(letters) == 0 {
		letters, err = s.selectLetters(ctx, query.ReadInbox(userID, f))
		if err != nil {
			return nil, fmt.Errorf("fetch read letters: %w", err)
		}
	}

	labels := s.labels(ctx, authorIDs(letters))
	for i := range letters {
		letters[i].Author = &query.UserSummary{
			ID:    letters[i].AuthorID,
			Label: labelFor(labels, letters[i].AuthorID),
		}
	}
	return letters, nil
}

// fetchSent returns every authored letter newest first, decorated with the
// recipient's label and last login. Decoration failures are logged only.
func (s *Service) fetchSent(ctx context.Context, userID string, f query.FilterSpec) ([]query.Letter, error) {
	letters, err := s.selectLetters(ctx, query.SentLetters(userID, f))
	if err != nil {
		return nil, fmt.Errorf("fetch sent letters: %w", err)
	}
	if len(letters) == 0 {
		return letters, nil
	}

	recipients := recipientIDs(letters)
	var (
		labels   map[string]string
		profiles map[string]query.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		labels = s.labels(gctx, recipients)
		return gctx.Err()
	})
	g.Go(func() error {
		profiles = s.profiles(gctx, recipients)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range letters {
		rid := letters[i].RecipientID
		summary := &query.UserSummary{ID: rid, Label: labelFor(labels, rid)}
		if p, ok := profiles[rid]; ok {
			summary.LastLoginAt = p.LastLoginAt
		}
		letters[i].Recipient = summary
	}
	return letters, nil
}

func (s *Service) selectLetters(ctx context.Context, q query.Select) ([]query.Letter, error) {
	rows, err := s.sess.Backend().Select(ctx, q)
	if err != nil {
		return nil, err
	}
	letters := make([]query.Letter, 0, len(rows))
	for _, r := range rows {
		l, err := backend.LetterFromRow(r)
		if err != nil {
			return nil, err
		}
		letters = append(letters, l)
	}
	return letters, nil
}

func (s *Service) labels(ctx context.Context, userIDs []string) map[string]string {
	if s.dir == nil || len(userIDs) == 0 {
		return nil
	}
	labels, err := s.dir.Labels(ctx, userIDs)
	if err != nil {
		s.log.Warn("failed to resolve contact labels", "error", err)
		return nil
	}
	return labels
}

func (s *Service) profiles(ctx context.Context, userIDs []string) map[string]query.Profile {
	rows, err := s.sess.Backend().Select(ctx, query.ProfilesOf(userIDs))
	if err != nil {
		s.log.Warn("failed to fetch recipient profiles", "error", err)
		return nil
	}
	out := make(map[string]query.Profile, len(rows))
	for _, r := range rows {
		p, err := backend.ProfileFromRow(r)
		if err != nil {
			s.log.Warn("skipping malformed profile", "error", err)
			continue
		}
		out[p.UserID] = p
	}
	return out
}

func labelFor(labels map[string]string, userID string) string {
	if l, ok := labels[userID]; ok && l != "" {
		return l
	}
	return userID
}

func authorIDs(letters []query.Letter) []string {
	ids := make([]string, len(letters))
	for i, l := range letters {
		ids[i] = l.AuthorID
	}
	return ids
}

func recipientIDs(letters []query.Letter) []string {
	ids := make([]string, len(letters))
	for i, l := range letters {
		ids[i] = l.RecipientID
	}
	return ids
}
