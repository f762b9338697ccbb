package nedb

import (
	"github.com/google/btree"
)

// indexEntry is one (key, docID) pair stored in an Index's backing btree.
// Indexes never hold the document itself — only a handle (the docID) that
// borrows from the IndexSet's canonical document map — per the "document
// identity across indexes" design note in §9.
type indexEntry struct {
	key   any
	docID string
}

func lessEntry(a, b indexEntry) bool {
	if c := compareValues(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.docID < b.docID
}

// Index is an ordered container over one dotted field path. It is the
// "external contract" of §1/§2 item 2, backed here by a real B-tree
// (github.com/google/btree) rather than a hand-rolled one.
type Index struct {
	FieldName string
	Unique    bool
	Sparse    bool
	Ordinal   uint64

	tree *btree.BTreeG[indexEntry]
}

func newIndex(fieldName string, unique, sparse bool, ordinal uint64) *Index {
	return &Index{
		FieldName: fieldName,
		Unique:    unique,
		Sparse:    sparse,
		Ordinal:   ordinal,
		tree:      btree.NewG(32, lessEntry),
	}
}

func (idx *Index) len() int {
	return idx.tree.Len()
}

// findByKey returns the docID of an arbitrary entry whose key equals key,
// if any. Used for uniqueness checks, where the specific docID sorted
// alongside the key is irrelevant.
func (idx *Index) findByKey(key any) (string, bool) {
	var id string
	found := false
	idx.tree.AscendGreaterOrEqual(indexEntry{key: key}, func(e indexEntry) bool {
		if compareValues(e.key, key) == 0 {
			id, found = e.docID, true
		}
		return false
	})
	return id, found
}

// keyFor extracts the field's key for doc, returning skip=true when the
// index is sparse and the field is undefined.
func (idx *Index) keyFor(doc Doc) (key any, skip bool) {
	v, found := dottedLookup(doc, idx.FieldName)
	if !found {
		if idx.Sparse {
			return nil, true
		}
		return nil, false
	}
	return v, false
}

// insert adds doc to the index, returning ErrUniqueViolation if doing so
// would violate a unique constraint. It is the caller's (IndexSet's)
// responsibility to roll back other indexes on failure.
func (idx *Index) insert(doc Doc) error {
	key, skip := idx.keyFor(doc)
	if skip {
		return nil
	}
	id, _ := doc[idFieldName].(string)
	if idx.Unique {
		if _, found := idx.findByKey(key); found {
			return ErrUniqueViolation(idx.FieldName, key)
		}
	}
	idx.tree.ReplaceOrInsert(indexEntry{key: key, docID: id})
	return nil
}

// remove deletes doc's entry, if present. Removes are assumed infallible
// once the document is present (§4.1).
func (idx *Index) remove(doc Doc) {
	key, skip := idx.keyFor(doc)
	if skip {
		return
	}
	id, _ := doc[idFieldName].(string)
	idx.tree.Delete(indexEntry{key: key, docID: id})
}

// Modification is {oldDoc, newDoc}; for insert the record carries only
// NewDoc, for remove only OldDoc (§3).
type Modification struct {
	OldDoc Doc
	NewDoc Doc
}

// update applies a modification batch atomically with respect to this
// single index: either every modification's new key is admissible, or
// none of the batch's changes are left in place. revertUpdate is the
// total inverse used by the IndexSet if a *different* index fails after
// this one already committed the whole batch.
func (idx *Index) update(mods []Modification) error {
	applied := 0
	for _, m := range mods {
		oldKey, oldSkip := idx.keyFor(m.OldDoc)
		newKey, newSkip := idx.keyFor(m.NewDoc)
		if idx.Unique && !newSkip {
			if existingID, found := idx.findByKey(newKey); found && existingID != idOf(m.OldDoc) {
				idx.undoUpdate(mods[:applied])
				return ErrUniqueViolation(idx.FieldName, newKey)
			}
		}
		if !oldSkip {
			idx.tree.Delete(indexEntry{key: oldKey, docID: idOf(m.OldDoc)})
		}
		if !newSkip {
			idx.tree.ReplaceOrInsert(indexEntry{key: newKey, docID: idOf(m.NewDoc)})
		}
		applied++
	}
	return nil
}

// undoUpdate reverts the first n modifications of a batch that this index
// partially applied before hitting a unique violation.
func (idx *Index) undoUpdate(applied []Modification) {
	idx.revertUpdate(applied)
}

// revertUpdate is the total inverse of update: it restores the old key and
// removes the new key for every modification in the batch. It must
// tolerate being called on a batch this index never saw the "new" half of
// (i.e. a fully-applied batch from a sibling index rollback).
func (idx *Index) revertUpdate(mods []Modification) {
	for _, m := range mods {
		newKey, newSkip := idx.keyFor(m.NewDoc)
		oldKey, oldSkip := idx.keyFor(m.OldDoc)
		if !newSkip {
			idx.tree.Delete(indexEntry{key: newKey, docID: idOf(m.NewDoc)})
		}
		if !oldSkip {
			idx.tree.ReplaceOrInsert(indexEntry{key: oldKey, docID: idOf(m.OldDoc)})
		}
	}
}

func idOf(doc Doc) string {
	id, _ := doc[idFieldName].(string)
	return id
}

// getMatching returns the docIDs whose key equals one of values.
func (idx *Index) getMatching(values ...any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		idx.tree.AscendGreaterOrEqual(indexEntry{key: v}, func(e indexEntry) bool {
			if compareValues(e.key, v) != 0 {
				return false
			}
			if !seen[e.docID] {
				seen[e.docID] = true
				out = append(out, e.docID)
			}
			return true
		})
	}
	return out
}

// getBetweenBounds returns the docIDs whose key satisfies r.
func (idx *Index) getBetweenBounds(r Range) []string {
	var out []string
	visit := func(e indexEntry) bool {
		if r.HasLt && compareValues(e.key, r.Lt) >= 0 {
			return false
		}
		if r.HasLte && compareValues(e.key, r.Lte) > 0 {
			return false
		}
		if r.satisfies(e.key) {
			out = append(out, e.docID)
		}
		return true
	}
	switch {
	case r.HasGte:
		idx.tree.AscendGreaterOrEqual(indexEntry{key: r.Gte}, visit)
	case r.HasGt:
		idx.tree.AscendGreaterOrEqual(indexEntry{key: r.Gt}, visit)
	default:
		idx.tree.Ascend(visit)
	}
	return out
}

// getAll returns every docID in the index, in key order.
func (idx *Index) getAll() []string {
	var out []string
	idx.tree.Ascend(func(e indexEntry) bool {
		out = append(out, e.docID)
		return true
	})
	return out
}

// reset discards the index's contents and rebuilds them from docs,
// preserving the index's field name and flags. Used only during replay
// (§4.1).
func (idx *Index) reset(docs []Doc) {
	idx.tree = btree.NewG(32, lessEntry)
	for _, d := range docs {
		key, skip := idx.keyFor(d)
		if skip {
			continue
		}
		idx.tree.ReplaceOrInsert(indexEntry{key: key, docID: idOf(d)})
	}
}
