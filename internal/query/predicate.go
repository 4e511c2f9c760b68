package query

// Predicate is a filter condition over a single table.
//
// This is a sealed interface: only the types in this package implement it,
// so backends can compile predicates with an exhaustive type switch.
type Predicate interface {
	predicateNode()
}

// Eq matches rows where Column equals Value.
type Eq struct {
	Column string
	Value  any
}

// In matches rows where Column is any of Values. An empty set matches nothing.
type In struct {
	Column string
	Values []any
}

// Lt matches rows where Column is strictly less than Value.
type Lt struct {
	Column string
	Value  any
}

// Gt matches rows where Column is strictly greater than Value.
type Gt struct {
	Column string
	Value  any
}

// And matches rows that satisfy every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (Eq) predicateNode()  {}
func (In) predicateNode()  {}
func (Lt) predicateNode()  {}
func (Gt) predicateNode()  {}
func (And) predicateNode() {}

// Order is a single ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Select is a read against one table.
type Select struct {
	Table   string
	Columns []string // nil = all columns
	Where   Predicate
	OrderBy []Order
}

// Conjuncts flattens nested And predicates into a list of leaf predicates.
// A nil predicate has no conjuncts.
func Conjuncts(p Predicate) []Predicate {
	switch v := p.(type) {
	case nil:
		return nil
	case And:
		var out []Predicate
		for _, c := range v.Predicates {
			out = append(out, Conjuncts(c)...)
		}
		return out
	case *And:
		return Conjuncts(*v)
	default:
		return []Predicate{p}
	}
}
