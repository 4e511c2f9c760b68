package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Reserved URL parameters of the REST filter syntax. Every other parameter
// is a column filter of the form col=op.value.
const (
	ParamSelect = "select"
	ParamOrder  = "order"
)

// Filter operators of the REST syntax.
const (
	opEq = "eq"
	opIn = "in"
	opLt = "lt"
	opGt = "gt"
)

// EncodeValue renders a predicate or patch value as text.
func EncodeValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case time.Time:
		return FormatTime(x), nil
	case *time.Time:
		if x == nil {
			return "null", nil
		}
		return FormatTime(*x), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// EncodeSelect renders q as URL parameters. The table is carried by the
// request path, not the parameters.
func EncodeSelect(q Select) (url.Values, error) {
	v := url.Values{}
	if err := EncodeFilter(v, q.Where); err != nil {
		return nil, err
	}
	if len(q.Columns) > 0 {
		v.Set(ParamSelect, strings.Join(q.Columns, ","))
	}
	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			terms[i] = o.Column + "." + dir
		}
		v.Set(ParamOrder, strings.Join(terms, ","))
	}
	return v, nil
}

// EncodeFilter adds the conjuncts of p to v. The REST syntax can only express
// a conjunction of column comparisons, which is all Predicate allows.
func EncodeFilter(v url.Values, p Predicate) error {
	for _, c := range Conjuncts(p) {
		switch pred := c.(type) {
		case Eq:
			s, err := EncodeValue(pred.Value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", pred.Column, err)
			}
			v.Add(pred.Column, opEq+"."+s)
		case Lt:
			s, err := EncodeValue(pred.Value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", pred.Column, err)
			}
			v.Add(pred.Column, opLt+"."+s)
		case Gt:
			s, err := EncodeValue(pred.Value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", pred.Column, err)
			}
			v.Add(pred.Column, opGt+"."+s)
		case In:
			items := make([]string, len(pred.Values))
			for i, val := range pred.Values {
				s, err := EncodeValue(val)
				if err != nil {
					return fmt.Errorf("encode %s: %w", pred.Column, err)
				}
				items[i] = quoteListItem(s)
			}
			v.Add(pred.Column, opIn+".("+strings.Join(items, ",")+")")
		default:
			return fmt.Errorf("unsupported predicate type: %T", c)
		}
	}
	return nil
}

// DecodeSelect parses parameters produced by EncodeSelect. Decoded values
// are strings; the backend coerces them to column types.
func DecodeSelect(table string, v url.Values) (Select, error) {
	where, err := DecodeFilter(v)
	if err != nil {
		return Select{}, err
	}
	q := Select{Table: table, Where: where}
	if cols := v.Get(ParamSelect); cols != "" {
		q.Columns = strings.Split(cols, ",")
	}
	if order := v.Get(ParamOrder); order != "" {
		for _, term := range strings.Split(order, ",") {
			col, dir, ok := strings.Cut(term, ".")
			if !ok {
				dir = "asc"
			}
			switch dir {
			case "asc", "desc":
			default:
				return Select{}, fmt.Errorf("invalid order direction %q", dir)
			}
			q.OrderBy = append(q.OrderBy, Order{Column: col, Desc: dir == "desc"})
		}
	}
	return q, nil
}

// DecodeFilter parses the column filters in v, ignoring reserved parameters.
// Filters are returned in column order so equal inputs decode identically.
func DecodeFilter(v url.Values) (Predicate, error) {
	cols := make([]string, 0, len(v))
	for col := range v {
		if col == ParamSelect || col == ParamOrder {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var preds []Predicate
	for _, col := range cols {
		for _, raw := range v[col] {
			p, err := decodeComparison(col, raw)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
	}
	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return And{Predicates: preds}, nil
	}
}

func decodeComparison(col, raw string) (Predicate, error) {
	op, val, ok := strings.Cut(raw, ".")
	if !ok {
		return nil, fmt.Errorf("filter %s=%q: missing operator", col, raw)
	}
	switch op {
	case opEq:
		return Eq{Column: col, Value: val}, nil
	case opLt:
		return Lt{Column: col, Value: val}, nil
	case opGt:
		return Gt{Column: col, Value: val}, nil
	case opIn:
		items, err := parseList(val)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", col, err)
		}
		values := make([]any, len(items))
		for i, s := range items {
			values[i] = s
		}
		return In{Column: col, Values: values}, nil
	default:
		return nil, fmt.Errorf("filter %s: unsupported operator %q", col, op)
	}
}

// quoteListItem double-quotes list items that contain list syntax.
func quoteListItem(s string) string {
	if s != "" && !strings.ContainsAny(s, `,()"\ `) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// parseList parses "(a,"b,c",d)" into its items.
func parseList(s string) ([]string, error) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("malformed list %q", s)
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []string{}, nil
	}

	var (
		items   []string
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			items = append(items, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if quoted || escaped {
		return nil, fmt.Errorf("unterminated quote in list %q", s)
	}
	return append(items, cur.String()), nil
}
