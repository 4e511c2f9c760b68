package store

import (
	"fmt"
	"strings"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

// scope is an access restriction ANDed onto every compiled statement.
type scope struct {
	sql  string
	args []any
}

// compileSelect compiles q to parameterized SQL. Values are never
// interpolated. The table key is always appended as a final ORDER BY term
// so results are deterministic.
func compileSelect(t *tableSchema, q query.Select, sc scope) (string, []any, []string, error) {
	cols := q.Columns
	if len(cols) == 0 {
		cols = t.columns
	}
	for _, c := range cols {
		if err := t.checkColumn(c); err != nil {
			return "", nil, nil, err
		}
	}

	where, args, err := compileWhere(t, q.Where, sc)
	if err != nil {
		return "", nil, nil, err
	}

	var order []string
	keyed := false
	for _, o := range q.OrderBy {
		if err := t.checkColumn(o.Column); err != nil {
			return "", nil, nil, err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		order = append(order, o.Column+" "+dir)
		keyed = keyed || o.Column == t.key
	}
	if !keyed {
		order = append(order, t.key+" ASC")
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(cols, ", "), t.name, where, strings.Join(order, ", "))
	return sql, args, cols, nil
}

// compileWhere compiles p and the access scope into a WHERE clause body.
func compileWhere(t *tableSchema, p query.Predicate, sc scope) (string, []any, error) {
	sql, args, err := compilePredicate(t, p)
	if err != nil {
		return "", nil, err
	}
	if sc.sql != "" {
		sql = "(" + sql + ") AND (" + sc.sql + ")"
		args = append(args, sc.args...)
	}
	return sql, args, nil
}

func compilePredicate(t *tableSchema, p query.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case query.Eq:
		return compileComparison(t, pred.Column, "=", pred.Value)
	case query.Lt:
		return compileComparison(t, pred.Column, "<", pred.Value)
	case query.Gt:
		return compileComparison(t, pred.Column, ">", pred.Value)
	case query.In:
		if err := t.checkColumn(pred.Column); err != nil {
			return "", nil, err
		}
		if len(pred.Values) == 0 {
			return "0 = 1", nil, nil
		}
		placeholders := make([]string, len(pred.Values))
		args := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			c, err := t.coerce(pred.Column, v)
			if err != nil {
				return "", nil, err
			}
			placeholders[i] = "?"
			args[i] = c
		}
		return fmt.Sprintf("%s IN (%s)", pred.Column, strings.Join(placeholders, ", ")), args, nil
	case query.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var args []any
		for _, sub := range pred.Predicates {
			sql, subArgs, err := compilePredicate(t, sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			args = append(args, subArgs...)
		}
		return strings.Join(parts, " AND "), args, nil
	default:
		return "", nil, backend.Errorf(backend.KindValidation, "unsupported predicate type: %T", p)
	}
}

func compileComparison(t *tableSchema, col, op string, v any) (string, []any, error) {
	c, err := t.coerce(col, v)
	if err != nil {
		return "", nil, err
	}
	if c == nil {
		if op != "=" {
			return "", nil, backend.Errorf(backend.KindValidation, "cannot compare %s with null", col)
		}
		return col + " IS NULL", nil, nil
	}
	return fmt.Sprintf("%s %s ?", col, op), []any{c}, nil
}
