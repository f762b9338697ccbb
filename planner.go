package nedb

// candidates implements the candidate planner (§4.2): the first applicable
// rule wins, "first" meaning first by enumeration order of the query's
// top-level clauses. The planner never combines indexes and always
// produces a superset of the true matches — correctness is the matcher's
// job (query.go), not the planner's.
func candidates(idxSet *IndexSet, q Query) []Doc {
	if idx, ids := selectEquality(idxSet, q); idx != nil {
		return resolve(idxSet, ids)
	}
	if idx, ids := selectMembership(idxSet, q); idx != nil {
		return resolve(idxSet, ids)
	}
	if idx, ids := selectRange(idxSet, q); idx != nil {
		return resolve(idxSet, ids)
	}
	return idxSet.allDocs()
}

func selectEquality(idxSet *IndexSet, q Query) (*Index, []string) {
	for _, clause := range q {
		if !isPrimitive(clause.Value) {
			continue
		}
		if idx, ok := idxSet.get(clause.Field); ok {
			return idx, idx.getMatching(clause.Value)
		}
	}
	return nil, nil
}

func selectMembership(idxSet *IndexSet, q Query) (*Index, []string) {
	for _, clause := range q {
		in, ok := clause.Value.(In)
		if !ok {
			continue
		}
		if idx, ok := idxSet.get(clause.Field); ok {
			return idx, idx.getMatching(in.Values...)
		}
	}
	return nil, nil
}

func selectRange(idxSet *IndexSet, q Query) (*Index, []string) {
	for _, clause := range q {
		r, ok := clause.Value.(Range)
		if !ok || !r.hasBound() {
			continue
		}
		if idx, ok := idxSet.get(clause.Field); ok {
			return idx, idx.getBetweenBounds(r)
		}
	}
	return nil, nil
}

func resolve(idxSet *IndexSet, ids []string) []Doc {
	out := make([]Doc, 0, len(ids))
	for _, id := range ids {
		if d, ok := idxSet.docByID(id); ok {
			out = append(out, d)
		}
	}
	return out
}
