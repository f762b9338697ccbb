package nedb

import (
	"reflect"
	"testing"
)

func deepEqual(t testing.TB, got, want any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("** got %#v, wanted %#v", got, want)
	}
}

func TestPrepareInsertDocAssignsID(t *testing.T) {
	doc, err := prepareInsertDoc(Doc{"name": "alice"})
	if err != nil {
		t.Fatalf("prepareInsertDoc: %v", err)
	}
	id, _ := doc[idFieldName].(string)
	if id == "" {
		t.Fatalf("expected a generated _id, got %#v", doc[idFieldName])
	}
}

func TestPrepareInsertDocHonorsCallerID(t *testing.T) {
	doc, err := prepareInsertDoc(Doc{"_id": "custom1", "name": "alice"})
	if err != nil {
		t.Fatalf("prepareInsertDoc: %v", err)
	}
	if doc[idFieldName] != "custom1" {
		t.Fatalf("expected caller-supplied _id to be preserved, got %#v", doc[idFieldName])
	}
}

func TestPrepareInsertDocRejectsNonStringID(t *testing.T) {
	if _, err := prepareInsertDoc(Doc{"_id": 42}); err == nil {
		t.Fatalf("expected error for non-string _id")
	}
}

func TestPrepareInsertDocRejectsReservedKeys(t *testing.T) {
	if _, err := prepareInsertDoc(Doc{"$set": 1}); err == nil {
		t.Fatalf("expected error for field name starting with $")
	}
	if _, err := prepareInsertDoc(Doc{"a.b": 1}); err == nil {
		t.Fatalf("expected error for field name containing a dot")
	}
}

func TestDeepCloneIsIndependent(t *testing.T) {
	orig := Doc{"tags": []any{"a", "b"}, "meta": Doc{"n": 1}}
	clone := cloneDoc(orig)
	clone["tags"].([]any)[0] = "z"
	clone["meta"].(Doc)["n"] = 2
	if orig["tags"].([]any)[0] != "a" {
		t.Fatalf("mutating clone's array leaked into original")
	}
	if orig["meta"].(Doc)["n"] != 1 {
		t.Fatalf("mutating clone's nested doc leaked into original")
	}
}

func TestDottedLookupSetUnset(t *testing.T) {
	doc := Doc{}
	dottedSet(doc, "a.b.c", 7)
	v, ok := dottedLookup(doc, "a.b.c")
	if !ok || v != 7 {
		t.Fatalf("dottedLookup after dottedSet = %v, %v", v, ok)
	}
	dottedUnset(doc, "a.b.c")
	if _, ok := dottedLookup(doc, "a.b.c"); ok {
		t.Fatalf("expected a.b.c to be gone after dottedUnset")
	}
	if _, ok := dottedLookup(doc, "a.b"); !ok {
		t.Fatalf("dottedUnset should only remove the leaf, not its parent")
	}
}

func TestDottedLookupArrayIndex(t *testing.T) {
	doc := Doc{"items": []any{Doc{"n": "first"}, Doc{"n": "second"}}}
	v, ok := dottedLookup(doc, "items.1.n")
	if !ok || v != "second" {
		t.Fatalf("dottedLookup into array = %v, %v", v, ok)
	}
	if _, ok := dottedLookup(doc, "items.5.n"); ok {
		t.Fatalf("expected out-of-range array index to miss")
	}
}

func TestStructEqualNumericCrossType(t *testing.T) {
	if !structEqual(1, 1.0) {
		t.Fatalf("expected int 1 and float64 1.0 to compare equal")
	}
	if structEqual(Doc{"a": 1}, Doc{"a": 1, "b": 2}) {
		t.Fatalf("docs of different length should not be equal")
	}
}
