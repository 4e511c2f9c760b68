// Package backendmock provides a scriptable backend.Backend that records
// every call, for asserting which queries an engine component issues.
package backendmock

import (
	"context"
	"sync"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

// Call records one backend invocation.
type Call struct {
	Method string
	Table  string
	Select query.Select
	Where  query.Predicate
	Patch  backend.Patch
	Row    backend.Row
}

// Backend is a mock backend. Unset hooks return empty results.
type Backend struct {
	Identity    *query.Identity
	IdentityErr error

	SelectFunc func(q query.Select) ([]backend.Row, error)
	UpdateFunc func(table string, where query.Predicate, patch backend.Patch) (backend.Row, error)
	InsertFunc func(table string, row backend.Row) (backend.Row, error)
	DeleteFunc func(table string, where query.Predicate) (int64, error)

	mu    sync.Mutex
	calls []Call
}

var _ backend.Backend = (*Backend)(nil)

// New returns a mock authenticated as userID.
func New(userID string) *Backend {
	return &Backend{Identity: &query.Identity{ID: userID}}
}

func (b *Backend) record(c Call) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c)
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Count returns how many times method was called.
func (b *Backend) Count(method string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// CountTable returns how many times method was called against table.
func (b *Backend) CountTable(method, table string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method && c.Table == table {
			n++
		}
	}
	return n
}

// Selects returns the recorded Select queries in order.
func (b *Backend) Selects() []query.Select {
	var out []query.Select
	for _, c := range b.Calls() {
		if c.Method == "Select" {
			out = append(out, c.Select)
		}
	}
	return out
}

func (b *Backend) CurrentIdentity(ctx context.Context) (*query.Identity, error) {
	b.record(Call{Method: "CurrentIdentity"})
	if b.IdentityErr != nil {
		return nil, b.IdentityErr
	}
	return b.Identity, nil
}

func (b *Backend) Select(ctx context.Context, q query.Select) ([]backend.Row, error) {
	b.record(Call{Method: "Select", Table: q.Table, Select: q, Where: q.Where})
	if b.SelectFunc == nil {
		return nil, nil
	}
	return b.SelectFunc(q)
}

func (b *Backend) Update(ctx context.Context, table string, where query.Predicate, patch backend.Patch) (backend.Row, error) {
	b.record(Call{Method: "Update", Table: table, Where: where, Patch: patch})
	if b.UpdateFunc == nil {
		return backend.Row{}, nil
	}
	return b.UpdateFunc(table, where, patch)
}

func (b *Backend) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	b.record(Call{Method: "Insert", Table: table, Row: row})
	if b.InsertFunc == nil {
		return row, nil
	}
	return b.InsertFunc(table, row)
}

func (b *Backend) Delete(ctx context.Context, table string, where query.Predicate) (int64, error) {
	b.record(Call{Method: "Delete", Table: table, Where: where})
	if b.DeleteFunc == nil {
		return 0, nil
	}
	return b.DeleteFunc(table, where)
}

// ReadState reports the is_read equality a letters query filters on, if any.
func ReadState(q query.Select) (isRead bool, ok bool) {
	for _, p := range query.Conjuncts(q.Where) {
		if eq, isEq := p.(query.Eq); isEq && eq.Column == query.ColIsRead {
			v, _ := eq.Value.(bool)
			return v, true
		}
	}
	return false, false
}

// LetterRow builds a letters row in backend form.
func LetterRow(l query.Letter) backend.Row {
	row := backend.Row{
		query.ColID:          l.ID,
		query.ColAuthorID:    l.AuthorID,
		query.ColRecipientID: l.RecipientID,
		query.ColContent:     l.Content,
		query.ColCreatedAt:   query.FormatTime(l.CreatedAt),
		query.ColUpdatedAt:   query.FormatTime(l.UpdatedAt),
		query.ColIsRead:      l.IsRead,
		query.ColReadAt:      nil,
	}
	if l.ReadAt != nil {
		row[query.ColReadAt] = query.FormatTime(*l.ReadAt)
	}
	return row
}
