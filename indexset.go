package nedb

// IndexSet owns every Index by field name and implements the cross-index
// atomic mutation protocols of §4.1. The _id index is always present,
// always unique, and is the authoritative enumeration of the live document
// set (§3).
type IndexSet struct {
	id      *Index
	byField map[string]*Index
	order   []string // creation order, _id first; insert/update iterate in this order
	docs    map[string]Doc
	nextOrd uint64
}

func newIndexSet() *IndexSet {
	idIdx := newIndex(idFieldName, true, false, 0)
	return &IndexSet{
		id:      idIdx,
		byField: map[string]*Index{idFieldName: idIdx},
		order:   []string{idFieldName},
		docs:    make(map[string]Doc),
		nextOrd: 1,
	}
}

func (s *IndexSet) get(field string) (*Index, bool) {
	idx, ok := s.byField[field]
	return idx, ok
}

// createIndex declares a new secondary index, assigning it the next
// ordinal (see "Index ordinal" in doc.go).
func (s *IndexSet) createIndex(field string, unique, sparse bool) *Index {
	idx := newIndex(field, unique, sparse, s.nextOrd)
	s.nextOrd++
	s.byField[field] = idx
	s.order = append(s.order, field)
	return idx
}

// createIndexWithOrdinal is used by persistence replay, where the ordinal
// is already known from the durable index-declaration side-table.
func (s *IndexSet) createIndexWithOrdinal(field string, unique, sparse bool, ordinal uint64) *Index {
	idx := newIndex(field, unique, sparse, ordinal)
	s.byField[field] = idx
	s.order = append(s.order, field)
	if ordinal >= s.nextOrd {
		s.nextOrd = ordinal + 1
	}
	return idx
}

func (s *IndexSet) dropIndex(field string) {
	if field == idFieldName {
		return
	}
	delete(s.byField, field)
	for i, f := range s.order {
		if f == field {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// addToIndexes implements the insert protocol (§4.1): indexes are
// attempted in creation order; a failure at index k rolls back indexes
// 0..k-1 and leaves the set byte-identical to its pre-call state.
func (s *IndexSet) addToIndexes(doc Doc) error {
	for i, field := range s.order {
		idx := s.byField[field]
		if err := idx.insert(doc); err != nil {
			for j := 0; j < i; j++ {
				s.byField[s.order[j]].remove(doc)
			}
			return err
		}
	}
	s.docs[idOf(doc)] = doc
	return nil
}

// removeFromIndexes implements the remove protocol (§4.1): removes are
// assumed infallible once the document is present.
func (s *IndexSet) removeFromIndexes(doc Doc) {
	for _, field := range s.order {
		s.byField[field].remove(doc)
	}
	delete(s.docs, idOf(doc))
}

// bulkInsert implements the bulk insert protocol (§4.1): documents are
// inserted one at a time through addToIndexes; a failure at document j
// removes documents 0..j-1 from every index.
func (s *IndexSet) bulkInsert(docs []Doc) error {
	applied := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if err := s.addToIndexes(d); err != nil {
			for _, ad := range applied {
				s.removeFromIndexes(ad)
			}
			return err
		}
		applied = append(applied, d)
	}
	return nil
}

// updateIndexes implements the update protocol (§4.1): each index applies
// the whole batch atomically with itself via Index.update; a failure at
// index k reverts indexes 0..k-1 via Index.revertUpdate.
func (s *IndexSet) updateIndexes(mods []Modification) error {
	for i, field := range s.order {
		idx := s.byField[field]
		if err := idx.update(mods); err != nil {
			for j := 0; j < i; j++ {
				s.byField[s.order[j]].revertUpdate(mods)
			}
			return err
		}
	}
	for _, m := range mods {
		s.docs[idOf(m.NewDoc)] = m.NewDoc
	}
	return nil
}

// resetIndexes recreates every index's contents from docs, preserving
// field names and flags. Used only during replay (§4.1, §4.6).
func (s *IndexSet) resetIndexes(docs []Doc) {
	for _, field := range s.order {
		s.byField[field].reset(docs)
	}
	newDocs := make(map[string]Doc, len(docs))
	for _, d := range docs {
		newDocs[idOf(d)] = d
	}
	s.docs = newDocs
}

// allDocs returns the live document set via the _id index, the
// authoritative enumeration (§3).
func (s *IndexSet) allDocs() []Doc {
	ids := s.id.getAll()
	out := make([]Doc, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (s *IndexSet) docByID(id string) (Doc, bool) {
	d, ok := s.docs[id]
	return d, ok
}
