package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/retry"
	"github.com/itsluminous/Letters/internal/session"
)

// InstantClock fires every retry backoff immediately.
type InstantClock struct{}

func (InstantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// QuietLogger discards all output.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FastRetry is the default policy without real waits.
func FastRetry() retry.Policy {
	return retry.Policy{Clock: InstantClock{}, Logger: QuietLogger()}
}

// Notice is one recorded notification.
type Notice struct {
	Level   session.Level
	Message string
}

// Notices records notifications delivered to a session.
type Notices struct {
	mu   sync.Mutex
	list []Notice
}

func (n *Notices) Notify(level session.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, Notice{Level: level, Message: message})
}

// All returns the notifications so far.
func (n *Notices) All() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.list...)
}

// MustOpenSession opens a session on b with a quiet logger and returns the
// notification recorder attached to it.
func MustOpenSession(t *testing.T, b backend.Backend) (*session.Session, *Notices) {
	t.Helper()
	notices := &Notices{}
	s, err := session.Open(context.Background(), b, session.Options{
		Logger:   QuietLogger(),
		Notifier: notices,
	})
	MustNoErr(t, err, "open session")
	return s, notices
}
