package nedb

import "testing"

func TestMatchesEquality(t *testing.T) {
	doc := Doc{"status": "active", "age": 30}
	if !matches(doc, Q("status", "active")) {
		t.Fatalf("expected equality match")
	}
	if matches(doc, Q("status", "inactive")) {
		t.Fatalf("expected equality mismatch")
	}
}

func TestMatchesEmptyQueryMatchesEverything(t *testing.T) {
	if !matches(Doc{"a": 1}, Query{}) {
		t.Fatalf("empty query should match everything (§8 boundary behavior)")
	}
}

func TestMatchesIn(t *testing.T) {
	doc := Doc{"status": "pending"}
	if !matches(doc, Q("status", In{Values: []any{"active", "pending"}})) {
		t.Fatalf("expected $in match")
	}
	if matches(doc, Q("status", In{Values: []any{"active", "closed"}})) {
		t.Fatalf("expected $in mismatch")
	}
}

func TestMatchesRange(t *testing.T) {
	doc := Doc{"age": 30}
	if !matches(doc, Q("age", Gte(18))) {
		t.Fatalf("expected $gte match")
	}
	if matches(doc, Q("age", Lt(18))) {
		t.Fatalf("expected $lt mismatch")
	}
	if !matches(doc, Q("age", Range{HasGte: true, Gte: 20, HasLt: true, Lt: 40})) {
		t.Fatalf("expected combined range match")
	}
}

func TestMatchesNotAndExists(t *testing.T) {
	doc := Doc{"role": "admin"}
	if !matches(doc, Q("role", Not{Value: "guest"})) {
		t.Fatalf("expected $ne match")
	}
	if !matches(doc, Q("role", Exists{Exists: true})) {
		t.Fatalf("expected $exists true to match present field")
	}
	if matches(doc, Q("nickname", Exists{Exists: true})) {
		t.Fatalf("expected $exists true to reject missing field")
	}
	if !matches(doc, Q("nickname", Exists{Exists: false})) {
		t.Fatalf("expected $exists false to accept missing field")
	}
}

func TestRangeSatisfiesEmptyMatchesEverything(t *testing.T) {
	if (Range{}).hasBound() {
		t.Fatalf("empty range should report no bound")
	}
	if !(Range{}).satisfies(42) {
		t.Fatalf("empty range should accept any value")
	}
}
