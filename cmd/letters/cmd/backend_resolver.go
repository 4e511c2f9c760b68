package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/remote"
	"github.com/itsluminous/Letters/internal/session"
	"github.com/itsluminous/Letters/internal/store"
)

// IsRemoteMode returns true if commands should use remote server.
// Resolution order:
//  1. --local flag → always local
//  2. [remote].url set in config → use remote
//  3. Default → use local DB
func IsRemoteMode() bool {
	if useLocal {
		return false
	}
	return cfg != nil && cfg.IsRemote()
}

// OpenBackend returns a backend for the configured user: the local SQLite
// database acting as [identity] user_id, or the remote server authenticated
// by [remote] token. The returned closer releases it.
func OpenBackend() (backend.Backend, io.Closer, error) {
	if IsRemoteMode() {
		rs, err := openRemoteStore()
		if err != nil {
			return nil, nil, err
		}
		return rs, rs, nil
	}

	if cfg.Identity.UserID == "" {
		return nil, nil, fmt.Errorf("no user configured\n\n" +
			"Set the user to act as in ~/.letters/config.toml:\n" +
			"  [identity]\n" +
			"  user_id = \"alice\"\n" +
			"or pass --as <user-id>")
	}
	s, err := openLocalStore()
	if err != nil {
		return nil, nil, err
	}
	return s.As(cfg.Identity.UserID), s, nil
}

// openLocalStore opens the local SQLite database with its schema applied.
func openLocalStore() (*store.Store, error) {
	dbPath := cfg.DatabaseDSN()
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.InitSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// openRemoteStore creates a remote store client.
func openRemoteStore() (*remote.Store, error) {
	return remote.New(remote.Config{
		URL:           cfg.Remote.URL,
		Token:         cfg.Remote.Token,
		AllowInsecure: cfg.Remote.AllowInsecure,
		Timeout:       cfg.Remote.Timeout(),
	})
}

// MustBeLocal returns an error if remote mode is active.
// Use this for commands that only work with local database.
func MustBeLocal(cmdName string) error {
	if IsRemoteMode() {
		return fmt.Errorf("%s requires local database\n\n"+
			"This command cannot run against a remote server.\n"+
			"Use --local flag to force local database.", cmdName)
	}
	return nil
}

// openSession opens the backend and a session on it. Notices go to stderr.
// The returned cleanup closes both.
func openSession(ctx context.Context) (*session.Session, func(), error) {
	b, closer, err := OpenBackend()
	if err != nil {
		return nil, nil, err
	}
	sess, err := session.Open(ctx, b, session.Options{
		Logger:   logger,
		Notifier: stderrNotifier(),
	})
	if err != nil {
		closer.Close()
		if backend.KindOf(err) == backend.KindUnauthenticated {
			return nil, nil, fmt.Errorf("not signed in: %s is not a known user (see 'letters users add')", identityLabel())
		}
		return nil, nil, err
	}
	return sess, func() {
		sess.Close()
		closer.Close()
	}, nil
}

func identityLabel() string {
	if IsRemoteMode() {
		return "the [remote] token"
	}
	return fmt.Sprintf("%q", cfg.Identity.UserID)
}

func stderrNotifier() session.Notifier {
	return session.NotifierFunc(func(level session.Level, message string) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", level, message)
	})
}
