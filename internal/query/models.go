// Package query defines the letter domain models and the structural query
// language used to read and write them through a relational backend.
package query

import (
	"fmt"
	"log/slog"
	"time"
)

// Tables exposed by the relational backend.
const (
	TableLetters  = "letters"
	TableContacts = "contacts"
	TableProfiles = "user_profiles"
)

// Columns of the letters table.
const (
	ColID          = "id"
	ColAuthorID    = "author_id"
	ColRecipientID = "recipient_id"
	ColContent     = "content"
	ColCreatedAt   = "created_at"
	ColUpdatedAt   = "updated_at"
	ColIsRead      = "is_read"
	ColReadAt      = "read_at"
)

// Columns of the contacts table (id and created_at are shared with letters).
const (
	ColUserID        = "user_id"
	ColContactUserID = "contact_user_id"
	ColDisplayName   = "display_name"
)

// Columns of the user_profiles table.
const (
	ColEmail       = "email"
	ColLastLoginAt = "last_login_at"
)

// Identity is the authenticated actor of a session.
type Identity struct {
	ID    string
	Email string
}

// UserSummary is a denormalized presentation label for a letter's author or
// recipient. It is never authoritative.
type UserSummary struct {
	ID          string
	Label       string
	LastLoginAt *time.Time
}

// Letter is a single timestamped message between two users.
type Letter struct {
	ID          string
	AuthorID    string
	RecipientID string
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsRead      bool
	ReadAt      *time.Time

	Author    *UserSummary
	Recipient *UserSummary
}

// Contact maps a local display name to a remote user id.
type Contact struct {
	ID            string
	UserID        string
	ContactUserID string
	DisplayName   string
	CreatedAt     time.Time
}

// Profile holds per-user activity metadata.
type Profile struct {
	UserID      string
	Email       string
	LastLoginAt *time.Time
}

// FilterSpec restricts a feed by correspondent and creation time.
// The zero value imposes no restriction.
type FilterSpec struct {
	ContactIDs []string   // empty = any correspondent; OR across ids
	Before     *time.Time // exclusive upper bound on created_at
	After      *time.Time // exclusive lower bound on created_at
}

// IsEmpty reports whether the filter imposes no restriction.
func (f FilterSpec) IsEmpty() bool {
	return len(f.ContactIDs) == 0 && f.Before == nil && f.After == nil
}

// LogValue renders the filter for structured logs.
func (f FilterSpec) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Any("contact_ids", f.ContactIDs)}
	if f.Before != nil {
		attrs = append(attrs, slog.Time("before", *f.Before))
	}
	if f.After != nil {
		attrs = append(attrs, slog.Time("after", *f.After))
	}
	return slog.GroupValue(attrs...)
}

// Clone returns a copy of f that shares no memory with it.
func (f FilterSpec) Clone() FilterSpec {
	out := FilterSpec{ContactIDs: append([]string(nil), f.ContactIDs...)}
	if f.Before != nil {
		b := *f.Before
		out.Before = &b
	}
	if f.After != nil {
		a := *f.After
		out.After = &a
	}
	return out
}

// FeedKind selects which side of the correspondence a feed shows.
type FeedKind int

const (
	Inbox FeedKind = iota
	Sent
)

func (k FeedKind) String() string {
	switch k {
	case Inbox:
		return "inbox"
	case Sent:
		return "sent"
	default:
		return fmt.Sprintf("FeedKind(%d)", int(k))
	}
}

// OwnerColumn is the letters column that must equal the current identity.
func (k FeedKind) OwnerColumn() string {
	if k == Sent {
		return ColAuthorID
	}
	return ColRecipientID
}

// CorrelatedColumn is the letters column a contact filter restricts: the
// author for an inbox, the recipient for a sent feed.
func (k FeedKind) CorrelatedColumn() string {
	if k == Sent {
		return ColRecipientID
	}
	return ColAuthorID
}

// TimeLayout is the fixed-width UTC layout used for stored timestamps, so
// lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses an ISO-8601 timestamp as produced by the backend.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
