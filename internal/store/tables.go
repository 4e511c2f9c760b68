package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

type colType int

const (
	colText colType = iota
	colBool
	colTime
)

// tableSchema whitelists the columns of a table that queries may reference.
type tableSchema struct {
	name    string
	key     string
	columns []string
	types   map[string]colType
}

func newTableSchema(name, key string, cols ...any) *tableSchema {
	t := &tableSchema{name: name, key: key, types: make(map[string]colType)}
	for i := 0; i < len(cols); i += 2 {
		col := cols[i].(string)
		t.columns = append(t.columns, col)
		t.types[col] = cols[i+1].(colType)
	}
	return t
}

var (
	lettersTable = newTableSchema(query.TableLetters, query.ColID,
		query.ColID, colText,
		query.ColAuthorID, colText,
		query.ColRecipientID, colText,
		query.ColContent, colText,
		query.ColCreatedAt, colTime,
		query.ColUpdatedAt, colTime,
		query.ColIsRead, colBool,
		query.ColReadAt, colTime,
	)
	contactsTable = newTableSchema(query.TableContacts, query.ColID,
		query.ColID, colText,
		query.ColUserID, colText,
		query.ColContactUserID, colText,
		query.ColDisplayName, colText,
		query.ColCreatedAt, colTime,
	)
	profilesTable = newTableSchema(query.TableProfiles, query.ColUserID,
		query.ColUserID, colText,
		query.ColEmail, colText,
		query.ColLastLoginAt, colTime,
		query.ColCreatedAt, colTime,
	)

	tables = map[string]*tableSchema{
		lettersTable.name:  lettersTable,
		contactsTable.name: contactsTable,
		profilesTable.name: profilesTable,
	}
)

func lookupTable(name string) (*tableSchema, error) {
	t, ok := tables[name]
	if !ok {
		return nil, backend.Errorf(backend.KindNotFound, "unknown table %q", name)
	}
	return t, nil
}

func (t *tableSchema) has(col string) bool {
	_, ok := t.types[col]
	return ok
}

func (t *tableSchema) checkColumn(col string) error {
	if !t.has(col) {
		return backend.Errorf(backend.KindValidation, "invalid column %q for table %s", col, t.name)
	}
	return nil
}

// coerce converts a predicate or patch value into the column's storage form.
// Values arriving over HTTP are strings, so text forms of booleans and
// timestamps are accepted.
func (t *tableSchema) coerce(col string, v any) (any, error) {
	if err := t.checkColumn(col); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	switch t.types[col] {
	case colBool:
		switch x := v.(type) {
		case bool:
			return boolToInt(x), nil
		case string:
			switch strings.ToLower(x) {
			case "true", "1":
				return 1, nil
			case "false", "0":
				return 0, nil
			}
		case float64:
			return boolToInt(x != 0), nil
		}
		return nil, backend.Errorf(backend.KindValidation, "invalid boolean for %s: %v", col, v)
	case colTime:
		switch x := v.(type) {
		case time.Time:
			return query.FormatTime(x), nil
		case *time.Time:
			if x == nil {
				return nil, nil
			}
			return query.FormatTime(*x), nil
		case string:
			parsed, err := query.ParseTime(x)
			if err != nil {
				return nil, backend.Errorf(backend.KindValidation, "invalid timestamp for %s: %q", col, x)
			}
			return query.FormatTime(parsed), nil
		}
		return nil, backend.Errorf(backend.KindValidation, "invalid timestamp for %s: %v", col, v)
	default:
		s, ok := v.(string)
		if !ok {
			return nil, backend.Errorf(backend.KindValidation, "invalid text for %s: %v", col, v)
		}
		return s, nil
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanRows reads rows selected with cols into backend rows.
func (t *tableSchema) scanRows(rows rowScanner, cols []string) ([]backend.Row, error) {
	var out []backend.Row
	for rows.Next() {
		dest := make([]any, len(cols))
		for i, col := range cols {
			if t.types[col] == colBool {
				dest[i] = new(bool)
			} else {
				dest[i] = new(*string)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		row := make(backend.Row, len(cols))
		for i, col := range cols {
			switch v := dest[i].(type) {
			case *bool:
				row[col] = *v
			case **string:
				if *v == nil {
					row[col] = nil
				} else {
					row[col] = **v
				}
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return out, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}
