package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

// CreateUser registers a user profile. An empty userID is replaced by a new
// UUID. This is an administrative operation outside any actor's policy.
func (s *Store) CreateUser(ctx context.Context, userID, email string) (*query.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, email, created_at) VALUES (?, ?, ?)`,
		userID, strings.TrimSpace(email), s.timestamp())
	if err != nil {
		return nil, classifyConstraint(err, "create user")
	}
	return s.GetUser(ctx, userID)
}

// GetUser returns the profile of userID, or an error wrapping
// backend.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, userID string) (*query.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, email, last_login_at, created_at FROM user_profiles WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	defer rows.Close()
	found, err := profilesTable.scanRows(rows, profilesTable.columns)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, backend.Errorf(backend.KindNotFound, "user %q not found", userID)
	}
	p, err := backend.ProfileFromRow(found[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListUsers returns every registered profile ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]query.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, email, last_login_at, created_at FROM user_profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	found, err := profilesTable.scanRows(rows, profilesTable.columns)
	if err != nil {
		return nil, err
	}
	out := make([]query.Profile, 0, len(found))
	for _, r := range found {
		p, err := backend.ProfileFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// userExists reports whether userID has a profile.
func (s *Store) userExists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM user_profiles WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return true, nil
}
