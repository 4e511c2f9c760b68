// Package backend defines the generic relational interface the letter
// engine reads and writes through, and the error taxonomy shared by every
// implementation of it.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/itsluminous/Letters/internal/query"
)

// Row is a single backend row keyed by column name. Text columns and
// timestamps are strings (timestamps in ISO-8601), booleans are bool and
// NULL is nil.
type Row map[string]any

// Patch is a partial row update keyed by column name.
type Patch map[string]any

// Backend is the relational interface consumed by the engine. Every call is
// made on behalf of the identity the backend was opened for.
type Backend interface {
	// CurrentIdentity returns the authenticated actor, or nil when there is none.
	CurrentIdentity(ctx context.Context) (*query.Identity, error)

	Select(ctx context.Context, q query.Select) ([]Row, error)

	// Update applies patch to the rows matching where and returns the first
	// affected row. It returns ErrNotFound when nothing matched.
	Update(ctx context.Context, table string, where query.Predicate, patch Patch) (Row, error)

	Insert(ctx context.Context, table string, row Row) (Row, error)

	// Delete removes the rows matching where and returns how many were removed.
	Delete(ctx context.Context, table string, where query.Predicate) (int64, error)
}

// String returns the text value of col, or "" when absent or NULL.
func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

// Bool returns the boolean value of col. Integer 0/1 values are accepted.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// Time parses the timestamp in col.
func (r Row) Time(col string) (time.Time, error) {
	s, ok := r[col].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("column %s: expected timestamp, got %T", col, r[col])
	}
	return query.ParseTime(s)
}

// OptTime parses a nullable timestamp in col.
func (r Row) OptTime(col string) (*time.Time, error) {
	if r[col] == nil {
		return nil, nil
	}
	t, err := r.Time(col)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LetterFromRow converts a letters row into a Letter.
func LetterFromRow(r Row) (query.Letter, error) {
	l := query.Letter{
		ID:          r.String(query.ColID),
		AuthorID:    r.String(query.ColAuthorID),
		RecipientID: r.String(query.ColRecipientID),
		Content:     r.String(query.ColContent),
		IsRead:      r.Bool(query.ColIsRead),
	}
	if l.ID == "" {
		return query.Letter{}, fmt.Errorf("letter row without id")
	}
	var err error
	if l.CreatedAt, err = r.Time(query.ColCreatedAt); err != nil {
		return query.Letter{}, fmt.Errorf("letter %s: %w", l.ID, err)
	}
	if l.UpdatedAt, err = r.Time(query.ColUpdatedAt); err != nil {
		return query.Letter{}, fmt.Errorf("letter %s: %w", l.ID, err)
	}
	if l.ReadAt, err = r.OptTime(query.ColReadAt); err != nil {
		return query.Letter{}, fmt.Errorf("letter %s: %w", l.ID, err)
	}
	return l, nil
}

// ContactFromRow converts a contacts row into a Contact.
func ContactFromRow(r Row) (query.Contact, error) {
	c := query.Contact{
		ID:            r.String(query.ColID),
		UserID:        r.String(query.ColUserID),
		ContactUserID: r.String(query.ColContactUserID),
		DisplayName:   r.String(query.ColDisplayName),
	}
	created, err := r.Time(query.ColCreatedAt)
	if err != nil {
		return query.Contact{}, fmt.Errorf("contact %s: %w", c.ID, err)
	}
	c.CreatedAt = created
	return c, nil
}

// ProfileFromRow converts a user_profiles row into a Profile.
func ProfileFromRow(r Row) (query.Profile, error) {
	p := query.Profile{
		UserID: r.String(query.ColUserID),
		Email:  r.String(query.ColEmail),
	}
	last, err := r.OptTime(query.ColLastLoginAt)
	if err != nil {
		return query.Profile{}, fmt.Errorf("profile %s: %w", p.UserID, err)
	}
	p.LastLoginAt = last
	return p, nil
}
