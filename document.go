package nedb

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Doc is a document: a tree of named fields whose leaves are strings,
// numbers, booleans, time.Time, nil, []any, or nested Doc values.
type Doc = map[string]any

// idFieldName is the reserved field carrying a document's opaque
// identifier.
const idFieldName = "_id"

// newDocID mints a fresh 16-character opaque identifier. Random ID
// generation is an external collaborator per §1; we lean on a real UUID
// library rather than hand-rolling one, following the rest of the corpus
// (hupe1980-vecgo, nasdf-capy, ValentinKolb-dKV all pull in google/uuid).
func newDocID() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")[:16]
}

// deepClone recursively copies a document value so that no two documents
// returned from, or committed into, the engine ever alias mutable state
// (invariant I5).
func deepClone(v any) any {
	switch t := v.(type) {
	case Doc:
		out := make(Doc, len(t))
		for k, sub := range t {
			out[k] = deepClone(sub)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, sub := range t {
			out[i] = deepClone(sub)
		}
		return out
	default:
		// strings, numbers, bools, time.Time and nil are all copied by
		// value already.
		return v
	}
}

func cloneDoc(d Doc) Doc {
	return deepClone(d).(Doc)
}

// structEqual reports whether two document values are structurally equal.
func structEqual(a, b any) bool {
	switch av := a.(type) {
	case Doc:
		bv, ok := b.(Doc)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bv2, ok := bv[k]
			if !ok || !structEqual(v, bv2) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, v := range av {
			if !structEqual(v, bv[i]) {
				return false
			}
		}
		return true
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		na, aOK := asFloat(a)
		nb, bOK := asFloat(b)
		if aOK && bOK {
			return na == nb
		}
		return a == b
	}
}

// asFloat normalizes the numeric kinds a caller might plausibly hand us
// (int, int64, float64, ...) onto a common float64 so 1 and 1.0 compare
// equal, matching a JSON-style document model where numbers have no
// distinct integer/float identity.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// dottedLookup resolves a dotted field path against a document, walking
// through nested Doc values and, per Mongo-like convention, array indices
// given as numeric path segments.
func dottedLookup(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}
	head, rest, hasMore := splitByte(path, '.')
	switch v := doc.(type) {
	case Doc:
		next, ok := v[head]
		if !ok {
			return nil, false
		}
		if !hasMore {
			return next, true
		}
		return dottedLookup(next, rest)
	case []any:
		i, err := strconv.Atoi(head)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		next := v[i]
		if !hasMore {
			return next, true
		}
		return dottedLookup(next, rest)
	default:
		return nil, false
	}
}

// dottedSet writes a value at a dotted path, creating intermediate Doc
// levels as needed. Used by modifiers ($set) and upsert document
// preparation.
func dottedSet(doc Doc, path string, value any) {
	head, rest, hasMore := splitByte(path, '.')
	if !hasMore {
		doc[head] = value
		return
	}
	sub, ok := doc[head].(Doc)
	if !ok {
		sub = make(Doc)
		doc[head] = sub
	}
	dottedSet(sub, rest, value)
}

// dottedUnset removes the value at a dotted path, if present.
func dottedUnset(doc Doc, path string) {
	head, rest, hasMore := splitByte(path, '.')
	if !hasMore {
		delete(doc, head)
		return
	}
	sub, ok := doc[head].(Doc)
	if !ok {
		return
	}
	dottedUnset(sub, rest)
}

// validateDoc rejects documents with reserved top-level keys, mirroring
// the InvalidDocument error kind in §7. A key starting with "$" (other
// than the identifier field itself, which never starts with "$") or
// containing a "." cannot be stored, since both are reserved for the
// query/modifier language.
func validateDoc(doc Doc) error {
	for k := range doc {
		if strings.HasPrefix(k, "$") {
			return ErrInvalidDocument("field names cannot start with '$': %q", k)
		}
		if strings.Contains(k, ".") {
			return ErrInvalidDocument("field names cannot contain '.': %q", k)
		}
	}
	return nil
}

// prepareInsertDoc clones doc and assigns a fresh _id when the caller did
// not supply one. §9's Open Question flags that the original source
// unconditionally overwrites _id; we resolve it the other way, since §8's
// own seed scenario 1 (inserting the same caller-chosen _id twice must
// collide as a UniqueViolation) only makes sense if a caller-supplied _id
// is honored. See DESIGN.md.
func prepareInsertDoc(doc Doc) (Doc, error) {
	clone := cloneDoc(doc)
	if _, ok := clone[idFieldName]; !ok {
		clone[idFieldName] = newDocID()
	}
	if err := validateDoc(clone); err != nil {
		return nil, err
	}
	if _, ok := clone[idFieldName].(string); !ok {
		return nil, ErrInvalidDocument("_id must be a string")
	}
	return clone, nil
}
