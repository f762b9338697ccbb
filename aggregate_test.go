package nedb

import "testing"

func TestAggregateSortAscending(t *testing.T) {
	docs := []Doc{
		{idFieldName: "a", "age": 30},
		{idFieldName: "b", "age": 10},
		{idFieldName: "c", "age": 20},
	}
	state := newAggregationState(AggregateSpec{Sort: []SortClause{Asc("age")}})
	out := aggregate(docs, state, true)
	deepEqual(t, []string{out[0][idFieldName].(string), out[1][idFieldName].(string), out[2][idFieldName].(string)},
		[]string{"b", "c", "a"})
}

func TestAggregateSortUndefinedFieldOrdering(t *testing.T) {
	docs := []Doc{
		{idFieldName: "a", "age": 10},
		{idFieldName: "b"}, // no age
	}
	asc := aggregate(docs, newAggregationState(AggregateSpec{Sort: []SortClause{Asc("age")}}), true)
	if asc[0][idFieldName] != "b" || asc[1][idFieldName] != "a" {
		t.Fatalf("ascending sort should place the undefined field first, got %v", asc)
	}

	desc := aggregate(docs, newAggregationState(AggregateSpec{Sort: []SortClause{Desc("age")}}), true)
	if desc[0][idFieldName] != "a" || desc[1][idFieldName] != "b" {
		t.Fatalf("descending sort should place the defined field first, got %v", desc)
	}
}

func TestAggregateSkipLimit(t *testing.T) {
	docs := []Doc{
		{idFieldName: "a"}, {idFieldName: "b"}, {idFieldName: "c"}, {idFieldName: "d"},
	}
	out := aggregate(docs, newAggregationState(AggregateSpec{HasSkip: true, Skip: 1, HasLimit: true, Limit: 2}), true)
	if len(out) != 2 || out[0][idFieldName] != "b" || out[1][idFieldName] != "c" {
		t.Fatalf("expected docs b,c from skip=1 limit=2, got %v", out)
	}
}

func TestAggregateSkipBeyondLengthYieldsEmpty(t *testing.T) {
	docs := []Doc{{idFieldName: "a"}}
	out := aggregate(docs, newAggregationState(AggregateSpec{HasSkip: true, Skip: 5}), true)
	if len(out) != 0 {
		t.Fatalf("expected empty result for skip beyond length, got %v", out)
	}
}

func TestAggregateLimitZeroYieldsEmpty(t *testing.T) {
	docs := []Doc{{idFieldName: "a"}, {idFieldName: "b"}}
	out := aggregate(docs, newAggregationState(AggregateSpec{HasLimit: true, Limit: 0}), true)
	if len(out) != 0 {
		t.Fatalf("expected empty result for limit=0, got %v", out)
	}
}

func TestValidateAggregateSpecRejectsNegatives(t *testing.T) {
	if err := validateAggregateSpec(AggregateSpec{HasSkip: true, Skip: -1}); err == nil {
		t.Fatalf("expected error for negative skip")
	}
	if err := validateAggregateSpec(AggregateSpec{HasLimit: true, Limit: -1}); err == nil {
		t.Fatalf("expected error for negative limit")
	}
	if err := validateAggregateSpec(AggregateSpec{Sort: []SortClause{{Path: "x", Dir: 2}}}); err == nil {
		t.Fatalf("expected error for invalid sort direction")
	}
}

func TestAggregateFindOneSkipsLimitSkip(t *testing.T) {
	docs := []Doc{{idFieldName: "a"}, {idFieldName: "b"}}
	out := aggregate(docs, newAggregationState(AggregateSpec{HasLimit: true, Limit: 1}), false)
	if len(out) != 2 {
		t.Fatalf("applyLimitSkip=false must ignore configured limit, got %v", out)
	}
}
