package nedb

import "sort"

// SortClause orders documents by the value at Path; Dir must be +1
// (ascending) or -1 (descending).
type SortClause struct {
	Path string
	Dir  int
}

func Asc(path string) SortClause  { return SortClause{Path: path, Dir: 1} }
func Desc(path string) SortClause { return SortClause{Path: path, Dir: -1} }

// AggregateSpec is the input to Collection.Aggregate: an optional sort
// order, an optional skip, and an optional limit (§4.3).
type AggregateSpec struct {
	Sort []SortClause

	HasSkip bool
	Skip    int

	HasLimit bool
	Limit    int
}

// aggregationState is the per-collection, transient state §3 describes:
// configured by Aggregate, consumed by later Find/Update calls. The
// source mutates this state on the collection itself, making it
// effectively shared across every caller of that collection; we preserve
// this observable (if surprising) behavior rather than attach the state
// to individual calls. See DESIGN.md.
type aggregationState struct {
	sort     []SortClause
	hasSkip  bool
	skip     int
	hasLimit bool
	limit    int
}

func validateAggregateSpec(spec AggregateSpec) error {
	if spec.HasSkip && spec.Skip < 0 {
		return ErrInvalidParameter("$skip must be non-negative, got %d", spec.Skip)
	}
	if spec.HasLimit && spec.Limit < 0 {
		return ErrInvalidParameter("$limit must be non-negative, got %d", spec.Limit)
	}
	for _, c := range spec.Sort {
		if c.Dir != 1 && c.Dir != -1 {
			return ErrInvalidParameter("$sort direction must be +1 or -1, got %d for %q", c.Dir, c.Path)
		}
	}
	return nil
}

func newAggregationState(spec AggregateSpec) aggregationState {
	return aggregationState{
		sort:     spec.Sort,
		hasSkip:  spec.HasSkip,
		skip:     spec.Skip,
		hasLimit: spec.HasLimit,
		limit:    spec.Limit,
	}
}

// compareDocs implements the sort comparator of §4.3: iterate configured
// clauses; the first clause that distinguishes the pair decides the
// order, per-clause direction and the "exactly one side defined" rule.
func compareDocs(a, b Doc, clauses []SortClause) int {
	for _, c := range clauses {
		av, aok := dottedLookup(a, c.Path)
		bv, bok := dottedLookup(b, c.Path)
		var sign int
		switch {
		case aok && bok:
			cmp := compareValues(av, bv)
			if cmp == 0 {
				continue
			}
			sign = cmp
		case aok && !bok:
			sign = 1
		case !aok && bok:
			sign = -1
		default:
			continue
		}
		if sign > 0 {
			return c.Dir
		}
		return -c.Dir
	}
	return 0
}

// aggregate applies sort, then optionally skip/limit, to candidates
// (§4.3). Find passes applyLimitSkip=true; Update and Remove pass their
// Multi option; FindOne passes false.
func aggregate(candidates []Doc, state aggregationState, applyLimitSkip bool) []Doc {
	out := candidates
	if len(state.sort) > 0 {
		out = append([]Doc(nil), out...)
		sort.SliceStable(out, func(i, j int) bool {
			return compareDocs(out[i], out[j], state.sort) < 0
		})
	}
	if !applyLimitSkip {
		return out
	}
	skip := 0
	if state.hasSkip {
		skip = state.skip
	}
	if skip > len(out) {
		skip = len(out)
	}
	if state.hasLimit {
		end := skip + state.limit
		if end > len(out) {
			end = len(out)
		}
		if end < skip {
			end = skip
		}
		return out[skip:end]
	}
	if state.hasSkip {
		return out[skip:]
	}
	return out
}
