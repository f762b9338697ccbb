package nedb

import (
	"encoding/json"
)

// CollectionStats reports point-in-time size information about a
// collection's index set, mirroring the teacher's per-table TableStats but
// scoped to what a dynamic-document engine can cheaply report: document and
// index-entry counts rather than on-disk page sizes.
type CollectionStats struct {
	DocCount    int
	IndexCount  int
	IndexRows   map[string]int
	Ready       bool
	QueueLength int
}

func (s *IndexSet) stats() CollectionStats {
	rows := make(map[string]int, len(s.byField))
	for field, idx := range s.byField {
		rows[field] = idx.len()
	}
	return CollectionStats{
		DocCount:   s.id.len(),
		IndexCount: len(s.byField) - 1, // exclude _id itself
		IndexRows:  rows,
	}
}

// loggableDoc renders a document for structured logging without ever
// panicking on unsupported types, matching the teacher's loggableRowVal
// fallback-to-string behavior.
func loggableDoc(doc Doc) string {
	if doc == nil {
		return "<nil>"
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "<unmarshalable>"
	}
	return string(b)
}
