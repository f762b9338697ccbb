package nedb

import "testing"

func seedPlannerSet(t testing.TB) *IndexSet {
	t.Helper()
	s := newIndexSet()
	s.createIndex("age", false, false)
	docs := []Doc{
		{idFieldName: "a", "age": 10, "status": "active"},
		{idFieldName: "b", "age": 20, "status": "active"},
		{idFieldName: "c", "age": 30, "status": "inactive"},
	}
	if err := s.bulkInsert(docs); err != nil {
		t.Fatalf("bulkInsert: %v", err)
	}
	return s
}

func TestPlannerUsesEqualityIndex(t *testing.T) {
	s := seedPlannerSet(t)
	cands := candidates(s, Q("age", 20))
	if len(cands) != 1 || cands[0][idFieldName] != "b" {
		t.Fatalf("expected the equality index to narrow to doc b, got %v", cands)
	}
}

func TestPlannerFallsBackToFullScanForUnindexedField(t *testing.T) {
	s := seedPlannerSet(t)
	cands := candidates(s, Q("status", "active"))
	if len(cands) != 3 {
		t.Fatalf("expected full scan (status is not indexed), got %d candidates", len(cands))
	}
}

func TestPlannerUsesMembershipIndex(t *testing.T) {
	s := seedPlannerSet(t)
	cands := candidates(s, Q("age", In{Values: []any{10, 30}}))
	ids := map[string]bool{}
	for _, d := range cands {
		ids[d[idFieldName].(string)] = true
	}
	if len(ids) != 2 || !ids["a"] || !ids["c"] {
		t.Fatalf("expected $in index lookup to return a and c, got %v", cands)
	}
}

func TestPlannerUsesRangeIndex(t *testing.T) {
	s := seedPlannerSet(t)
	cands := candidates(s, Q("age", Gte(15)))
	ids := map[string]bool{}
	for _, d := range cands {
		ids[d[idFieldName].(string)] = true
	}
	if len(ids) != 2 || !ids["b"] || !ids["c"] {
		t.Fatalf("expected range index lookup to return b and c, got %v", cands)
	}
}

func TestPlannerEqualityBeatsRangeRule(t *testing.T) {
	s := seedPlannerSet(t)
	// Equality is tried before range regardless of clause order: a query
	// mixing an equality clause and a range clause on other fields still
	// picks the equality index (§4.2 rule ordering).
	cands := candidates(s, Q(idFieldName, Gte("a"), "age", 10))
	if len(cands) != 1 || cands[0][idFieldName] != "a" {
		t.Fatalf("expected equality rule to win, got %v", cands)
	}
}
