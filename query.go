package nedb

// QueryField pairs a dotted field path with either a primitive value (an
// equality test) or an operator value (In, Range, Not, Exists). Query is a
// slice, not a map, so that "first by enumeration order of the query's top
// level keys" (§4.2) is a well-defined, deterministic property in Go,
// where map iteration order is intentionally randomized.
type QueryField struct {
	Field string
	Value any
}

// Query is an ordered set of field constraints, ANDed together.
type Query []QueryField

// Q builds a Query from alternating field/value arguments, e.g.
// Q("status", "active", "age", Gte(18)).
func Q(pairs ...any) Query {
	if len(pairs)%2 != 0 {
		panic("nedb.Q: odd number of arguments")
	}
	q := make(Query, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		q = append(q, QueryField{Field: pairs[i].(string), Value: pairs[i+1]})
	}
	return q
}

// In matches documents whose field value equals one of values.
type In struct {
	Values []any
}

// Range matches documents whose field value falls within the configured
// bounds. At least one bound should be set; an empty Range matches
// everything for that field.
type Range struct {
	HasGt, HasGte, HasLt, HasLte bool
	Gt, Gte, Lt, Lte             any
}

func Gt(v any) Range  { return Range{HasGt: true, Gt: v} }
func Gte(v any) Range { return Range{HasGte: true, Gte: v} }
func Lt(v any) Range  { return Range{HasLt: true, Lt: v} }
func Lte(v any) Range { return Range{HasLte: true, Lte: v} }

func (r Range) hasBound() bool {
	return r.HasGt || r.HasGte || r.HasLt || r.HasLte
}

func (r Range) satisfies(v any) bool {
	if r.HasGt && compareValues(v, r.Gt) <= 0 {
		return false
	}
	if r.HasGte && compareValues(v, r.Gte) < 0 {
		return false
	}
	if r.HasLt && compareValues(v, r.Lt) >= 0 {
		return false
	}
	if r.HasLte && compareValues(v, r.Lte) > 0 {
		return false
	}
	return true
}

// Not matches documents whose field value is not equal to Value.
type Not struct {
	Value any
}

// Exists matches documents based on the presence of a field.
type Exists struct {
	Exists bool
}

// isPrimitive reports whether v is a plain equality value rather than one
// of the operator wrapper types above.
func isPrimitive(v any) bool {
	switch v.(type) {
	case In, Range, Not, Exists:
		return false
	default:
		return true
	}
}

// matches reports whether doc satisfies every clause of q (§4.2's matcher
// is a pure function over documents; the planner only ever narrows the
// candidate set the matcher operates on).
func matches(doc Doc, q Query) bool {
	for _, clause := range q {
		if !matchesClause(doc, clause) {
			return false
		}
	}
	return true
}

func matchesClause(doc Doc, clause QueryField) bool {
	val, found := dottedLookup(doc, clause.Field)
	switch v := clause.Value.(type) {
	case In:
		if !found {
			return false
		}
		for _, want := range v.Values {
			if valuesEqual(val, want) {
				return true
			}
		}
		return false
	case Range:
		if !found {
			return false
		}
		return v.satisfies(val)
	case Not:
		return !found || !valuesEqual(val, v.Value)
	case Exists:
		return found == v.Exists
	default:
		return found && valuesEqual(val, v)
	}
}
