/*
Package nedb implements an embedded, single-process document database.

We implement:

1. Collections, an ordered set of arbitrary JSON-like documents keyed by an
opaque `_id` field.

2. Indices, allowing quick lookup of documents by the value at a dotted
field path.

3. A candidate planner that picks a single index to narrow a query before
handing candidates to the matcher.

4. A serialized executor that linearizes every read and write against a
collection, so the index set never observes two operations in flight.

# Technical Details

**Documents.** A document is `map[string]any`; nested documents are
`map[string]any` and arrays are `[]any`. Every document handed to a caller,
and every document committed into an index, is a deep copy — callers can
never observe or corrupt the engine's internal document instances.

**Index ordinal.** Every declared secondary index is assigned an ordinal
higher than any other assigned since the collection was loaded, recorded
in a small durable side-table alongside the main append log (see
persistence.go). The ordinal of an index removed before a reload can be
assigned again after it.

**Persistence.** A persistent collection is backed by a single
append-only log file of checksummed, msgpack-encoded records (see
persistence.go for the wire format) plus a bbolt side-table recording index
declarations. The log is the source of truth for document state; the
side-table only tells LoadDatabase which indexes to rebuild.
*/
package nedb
