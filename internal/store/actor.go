package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

// Actor is a backend.Backend bound to a single user. Every statement it runs
// is restricted to the rows that user may read or change:
//   - letters are visible to their author and recipient;
//   - only the recipient may mark a letter read, and read state is one-way;
//   - only the author may edit or delete a letter, and only while unread;
//   - contacts are visible to and editable by their owner only;
//   - profiles are readable by everyone, writable by their owner.
//
// Timestamps are assigned by the store; client-supplied values are ignored.
type Actor struct {
	s      *Store
	userID string
}

var _ backend.Backend = (*Actor)(nil)

// As returns a backend acting on behalf of userID.
func (s *Store) As(userID string) *Actor {
	return &Actor{s: s, userID: userID}
}

// CurrentIdentity returns the actor's identity, or nil when the actor has no
// registered profile.
func (a *Actor) CurrentIdentity(ctx context.Context) (*query.Identity, error) {
	if a.userID == "" {
		return nil, nil
	}
	p, err := a.s.GetUser(ctx, a.userID)
	if err != nil {
		if backend.KindOf(err) == backend.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &query.Identity{ID: p.UserID, Email: p.Email}, nil
}

func (a *Actor) requireIdentity(ctx context.Context) error {
	if a.userID == "" {
		return backend.Errorf(backend.KindUnauthenticated, "not authenticated")
	}
	ok, err := a.s.userExists(ctx, a.userID)
	if err != nil {
		return err
	}
	if !ok {
		return backend.Errorf(backend.KindUnauthenticated, "not authenticated: unknown user %q", a.userID)
	}
	return nil
}

func (a *Actor) readScope(t *tableSchema) scope {
	switch t {
	case lettersTable:
		return scope{sql: "author_id = ? OR recipient_id = ?", args: []any{a.userID, a.userID}}
	case contactsTable:
		return scope{sql: "user_id = ?", args: []any{a.userID}}
	default:
		return scope{}
	}
}

// Select runs q within the actor's read scope.
func (a *Actor) Select(ctx context.Context, q query.Select) ([]backend.Row, error) {
	if err := a.requireIdentity(ctx); err != nil {
		return nil, err
	}
	t, err := lookupTable(q.Table)
	if err != nil {
		return nil, err
	}
	return a.selectRows(ctx, a.s.db, t, q)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (a *Actor) selectRows(ctx context.Context, db queryer, t *tableSchema, q query.Select) ([]backend.Row, error) {
	stmt, args, cols, err := compileSelect(t, q, a.readScope(t))
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.name, err)
	}
	defer rows.Close()
	return t.scanRows(rows, cols)
}

func (a *Actor) rowByKey(ctx context.Context, db queryer, t *tableSchema, key string) (backend.Row, error) {
	rows, err := a.selectRows(ctx, db, t, query.Select{Table: t.name, Where: query.Eq{Column: t.key, Value: key}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, backend.Errorf(backend.KindNotFound, "%s %q not found", t.name, key)
	}
	return rows[0], nil
}

// Update applies patch to every visible row matching where and returns the
// first affected row as stored after the update.
func (a *Actor) Update(ctx context.Context, table string, where query.Predicate, patch backend.Patch) (backend.Row, error) {
	if err := a.requireIdentity(ctx); err != nil {
		return nil, err
	}
	t, err := lookupTable(table)
	if err != nil {
		return nil, err
	}

	var out backend.Row
	err = a.s.withTx(ctx, func(tx *sql.Tx) error {
		matched, err := a.selectRows(ctx, tx, t, query.Select{Table: t.name, Where: where})
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			return backend.Errorf(backend.KindNotFound, "no matching %s", t.name)
		}

		now := a.s.timestamp()
		for _, row := range matched {
			set, args, err := a.planUpdate(t, row, patch, now)
			if err != nil {
				return err
			}
			if len(set) == 0 {
				continue
			}
			stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.name, strings.Join(set, ", "), t.key)
			if _, err := tx.ExecContext(ctx, stmt, append(args, row[t.key])...); err != nil {
				return classifyConstraint(fmt.Errorf("update %s: %w", t.name, err), "update "+t.name)
			}
		}

		out, err = a.rowByKey(ctx, tx, t, matched[0].String(t.key))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(p map[string]any) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *Actor) planUpdate(t *tableSchema, row backend.Row, patch backend.Patch, now string) ([]string, []any, error) {
	switch t {
	case lettersTable:
		return a.planLetterUpdate(row, patch, now)
	case contactsTable:
		return planColumnUpdate(t, patch, query.ColDisplayName)
	case profilesTable:
		if row.String(query.ColUserID) != a.userID {
			return nil, nil, backend.Errorf(backend.KindForbidden, "permission denied: profile belongs to another user")
		}
		return planColumnUpdate(t, patch, query.ColEmail, query.ColLastLoginAt)
	default:
		return nil, nil, backend.Errorf(backend.KindForbidden, "permission denied for table %s", t.name)
	}
}

func (a *Actor) planLetterUpdate(row backend.Row, patch backend.Patch, now string) ([]string, []any, error) {
	var (
		set     []string
		args    []any
		changed bool
	)
	isRead := row.Bool(query.ColIsRead)

	for _, col := range sortedKeys(patch) {
		v := patch[col]
		switch col {
		case query.ColIsRead:
			want, err := lettersTable.coerce(col, v)
			if err != nil {
				return nil, nil, err
			}
			if want == 1 {
				if row.String(query.ColRecipientID) != a.userID {
					return nil, nil, backend.Errorf(backend.KindForbidden, "permission denied: only the recipient may mark a letter as read")
				}
				if !isRead {
					set = append(set, "is_read = 1", "read_at = ?")
					args = append(args, now)
					changed = true
				}
			} else if isRead {
				return nil, nil, backend.Errorf(backend.KindValidation, "invalid update: a read letter cannot be marked unread")
			}
		case query.ColContent:
			if row.String(query.ColAuthorID) != a.userID {
				return nil, nil, backend.Errorf(backend.KindForbidden, "permission denied: only the author may edit a letter")
			}
			if isRead {
				return nil, nil, backend.Errorf(backend.KindValidation, "invalid update: letter has already been read")
			}
			content, ok := v.(string)
			if !ok || strings.TrimSpace(content) == "" {
				return nil, nil, backend.Errorf(backend.KindValidation, "invalid content: must not be empty")
			}
			set = append(set, "content = ?")
			args = append(args, content)
			changed = true
		case query.ColReadAt, query.ColUpdatedAt, query.ColCreatedAt:
			// server-assigned
		default:
			return nil, nil, backend.Errorf(backend.KindValidation, "invalid update: column %s is read-only", col)
		}
	}
	if changed {
		set = append(set, "updated_at = ?")
		args = append(args, now)
	}
	return set, args, nil
}

// planColumnUpdate builds SET terms for a patch restricted to writable columns.
func planColumnUpdate(t *tableSchema, patch backend.Patch, writable ...string) ([]string, []any, error) {
	allowed := make(map[string]bool, len(writable))
	for _, c := range writable {
		allowed[c] = true
	}
	var (
		set  []string
		args []any
	)
	for _, col := range sortedKeys(patch) {
		if !allowed[col] {
			return nil, nil, backend.Errorf(backend.KindValidation, "invalid update: column %s is read-only", col)
		}
		v, err := t.coerce(col, patch[col])
		if err != nil {
			return nil, nil, err
		}
		if col == query.ColDisplayName {
			if s, _ := v.(string); strings.TrimSpace(s) == "" {
				return nil, nil, backend.Errorf(backend.KindValidation, "invalid %s: must not be empty", col)
			}
		}
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	return set, args, nil
}

// Insert creates a row owned by the actor and returns it as stored.
func (a *Actor) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	t, err := lookupTable(table)
	if err != nil {
		return nil, err
	}
	if t == profilesTable {
		return a.insertProfile(ctx, row)
	}
	if err := a.requireIdentity(ctx); err != nil {
		return nil, err
	}

	if owner, ok := row[ownerColumn(t)]; ok && owner != a.userID {
		return nil, backend.Errorf(backend.KindForbidden, "permission denied: cannot create %s for another user", t.name)
	}

	id := uuid.NewString()
	now := a.s.timestamp()
	var (
		stmt string
		args []any
	)
	switch t {
	case lettersTable:
		recipient := strings.TrimSpace(row.String(query.ColRecipientID))
		if recipient == "" {
			return nil, backend.Errorf(backend.KindValidation, "invalid letter: recipient_id is required")
		}
		content := row.String(query.ColContent)
		if strings.TrimSpace(content) == "" {
			return nil, backend.Errorf(backend.KindValidation, "invalid letter: content must not be empty")
		}
		stmt = `INSERT INTO letters (id, author_id, recipient_id, content, created_at, updated_at, is_read, read_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, NULL)`
		args = []any{id, a.userID, recipient, content, now, now}
	case contactsTable:
		contactUser := strings.TrimSpace(row.String(query.ColContactUserID))
		name := strings.TrimSpace(row.String(query.ColDisplayName))
		if contactUser == "" || name == "" {
			return nil, backend.Errorf(backend.KindValidation, "invalid contact: contact_user_id and display_name are required")
		}
		stmt = `INSERT INTO contacts (id, user_id, contact_user_id, display_name, created_at) VALUES (?, ?, ?, ?, ?)`
		args = []any{id, a.userID, contactUser, name, now}
	}

	if _, err := a.s.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, classifyConstraint(fmt.Errorf("insert %s: %w", t.name, err), "insert "+t.name)
	}
	return a.rowByKey(ctx, a.s.db, t, id)
}

func ownerColumn(t *tableSchema) string {
	switch t {
	case lettersTable:
		return query.ColAuthorID
	default:
		return query.ColUserID
	}
}

// insertProfile lets an actor without a profile register its own.
func (a *Actor) insertProfile(ctx context.Context, row backend.Row) (backend.Row, error) {
	if a.userID == "" {
		return nil, backend.Errorf(backend.KindUnauthenticated, "not authenticated")
	}
	if owner, ok := row[query.ColUserID]; ok && owner != a.userID {
		return nil, backend.Errorf(backend.KindForbidden, "permission denied: cannot create a profile for another user")
	}
	var lastLogin any
	if v, ok := row[query.ColLastLoginAt]; ok {
		c, err := profilesTable.coerce(query.ColLastLoginAt, v)
		if err != nil {
			return nil, err
		}
		lastLogin = c
	}
	_, err := a.s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, email, last_login_at, created_at) VALUES (?, ?, ?, ?)`,
		a.userID, row.String(query.ColEmail), lastLogin, a.s.timestamp())
	if err != nil {
		return nil, classifyConstraint(fmt.Errorf("insert profile: %w", err), "insert user_profiles")
	}
	return a.rowByKey(ctx, a.s.db, profilesTable, a.userID)
}

// Delete removes the visible rows matching where. Letters may only be
// deleted by their author while unread.
func (a *Actor) Delete(ctx context.Context, table string, where query.Predicate) (int64, error) {
	if err := a.requireIdentity(ctx); err != nil {
		return 0, err
	}
	t, err := lookupTable(table)
	if err != nil {
		return 0, err
	}
	if t == profilesTable {
		return 0, backend.Errorf(backend.KindForbidden, "permission denied: profiles cannot be deleted")
	}

	var deleted int64
	err = a.s.withTx(ctx, func(tx *sql.Tx) error {
		matched, err := a.selectRows(ctx, tx, t, query.Select{Table: t.name, Where: where})
		if err != nil {
			return err
		}
		for _, row := range matched {
			if t == lettersTable {
				if row.String(query.ColAuthorID) != a.userID {
					return backend.Errorf(backend.KindForbidden, "permission denied: only the author may delete a letter")
				}
				if row.Bool(query.ColIsRead) {
					return backend.Errorf(backend.KindValidation, "invalid delete: letter has already been read")
				}
			}
			res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, t.key), row[t.key])
			if err != nil {
				return fmt.Errorf("delete %s: %w", t.name, err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
