package nedb

import "strings"

// UpdateSpec is the update-query half of an Update call: either a plain
// replacement document, or a document of modifier operators ($set,
// $unset, $inc, $push, $addToSet, $pull, $pop) keyed by dotted path.
type UpdateSpec = Doc

// hasModifiers reports whether update is a modifier document (any
// top-level key starts with "$") as opposed to a full replacement.
func hasModifiers(update UpdateSpec) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// modify computes the new document that results from applying update to
// oldDoc, per §4.4 step 3. It never mutates oldDoc.
func modify(oldDoc Doc, update UpdateSpec) (Doc, error) {
	if !hasModifiers(update) {
		newDoc := cloneDoc(update)
		newDoc[idFieldName] = oldDoc[idFieldName]
		if err := validateDoc(newDoc); err != nil {
			return nil, err
		}
		return newDoc, nil
	}

	newDoc := cloneDoc(oldDoc)
	for op, arg := range update {
		fields, ok := arg.(Doc)
		if !ok {
			return nil, ErrInvalidDocument("modifier %q expects a document of field paths, got %T", op, arg)
		}
		var err error
		switch op {
		case "$set":
			applySet(newDoc, fields)
		case "$unset":
			applyUnset(newDoc, fields)
		case "$inc":
			err = applyInc(newDoc, fields)
		case "$push":
			err = applyPush(newDoc, fields)
		case "$addToSet":
			err = applyAddToSet(newDoc, fields)
		case "$pull":
			err = applyPull(newDoc, fields)
		case "$pop":
			err = applyPop(newDoc, fields)
		default:
			err = ErrInvalidDocument("unknown modifier %q", op)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := validateDoc(newDoc); err != nil {
		return nil, err
	}
	return newDoc, nil
}

func applySet(doc Doc, fields Doc) {
	for path, v := range fields {
		dottedSet(doc, path, deepClone(v))
	}
}

func applyUnset(doc Doc, fields Doc) {
	for path := range fields {
		dottedUnset(doc, path)
	}
}

func applyInc(doc Doc, fields Doc) error {
	for path, v := range fields {
		delta, ok := asFloat(v)
		if !ok {
			return ErrInvalidDocument("$inc requires a numeric amount at %q", path)
		}
		cur, found := dottedLookup(doc, path)
		base := 0.0
		if found {
			b, ok := asFloat(cur)
			if !ok {
				return ErrInvalidDocument("$inc target %q is not numeric", path)
			}
			base = b
		}
		dottedSet(doc, path, base+delta)
	}
	return nil
}

func applyPush(doc Doc, fields Doc) error {
	for path, v := range fields {
		arr, err := arrayAt(doc, path)
		if err != nil {
			return err
		}
		dottedSet(doc, path, append(arr, deepClone(v)))
	}
	return nil
}

func applyAddToSet(doc Doc, fields Doc) error {
	for path, v := range fields {
		arr, err := arrayAt(doc, path)
		if err != nil {
			return err
		}
		found := false
		for _, existing := range arr {
			if structEqual(existing, v) {
				found = true
				break
			}
		}
		if !found {
			arr = append(arr, deepClone(v))
		}
		dottedSet(doc, path, arr)
	}
	return nil
}

func applyPull(doc Doc, fields Doc) error {
	for path, v := range fields {
		arr, err := arrayAt(doc, path)
		if err != nil {
			return err
		}
		out := make([]any, 0, len(arr))
		for _, existing := range arr {
			if !structEqual(existing, v) {
				out = append(out, existing)
			}
		}
		dottedSet(doc, path, out)
	}
	return nil
}

func applyPop(doc Doc, fields Doc) error {
	for path, v := range fields {
		dir, ok := asFloat(v)
		if !ok {
			return ErrInvalidDocument("$pop requires 1 or -1 at %q", path)
		}
		arr, err := arrayAt(doc, path)
		if err != nil {
			return err
		}
		if len(arr) == 0 {
			continue
		}
		if dir < 0 {
			dottedSet(doc, path, arr[1:])
		} else {
			dottedSet(doc, path, arr[:len(arr)-1])
		}
	}
	return nil
}

func arrayAt(doc Doc, path string) ([]any, error) {
	v, found := dottedLookup(doc, path)
	if !found {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, ErrInvalidDocument("expected an array at %q", path)
	}
	return arr, nil
}

// templateFromQuery builds the seed document for an upsert: the query
// document's own equality clauses become field values, then update is
// applied on top (§4.4 step 1: "apply the modifier to the query document,
// treating the query as a template").
func templateFromQuery(q Query, update UpdateSpec) (Doc, error) {
	base := make(Doc)
	for _, clause := range q {
		if isPrimitive(clause.Value) {
			dottedSet(base, clause.Field, clause.Value)
		}
	}
	return modify(base, update)
}
