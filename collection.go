package nedb

import (
	"context"
	"log/slog"
)

// IndexOptions is the argument to EnsureIndex.
type IndexOptions struct {
	FieldName string
	Unique    bool
	Sparse    bool
}

// UpdateOptions controls Update's fan-out and upsert behavior.
type UpdateOptions struct {
	Multi  bool
	Upsert bool
}

// RemoveOptions controls Remove's fan-out.
type RemoveOptions struct {
	Multi bool
}

// CollectionOptions configures NewCollection (§6 "Constructor options").
type CollectionOptions struct {
	// Path is the append-log file backing this collection. Empty means
	// in-memory only.
	Path string
	// InMemoryOnly forces in-memory operation even when Path is set,
	// for tests that want a realistic Collection without touching disk.
	InMemoryOnly bool
	// Autoload, when true and the collection is persistent, calls
	// LoadDatabase before NewCollection returns.
	Autoload bool
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Collection is the public facade over the document engine (§4.4/§6).
// Every operation that touches the index set or the persistence log is
// submitted through exec, the collection's sole mutual-exclusion
// mechanism (§4.5/§5) — Collection itself holds no lock.
type Collection struct {
	idx       *IndexSet
	exec      *Executor
	persister Persister
	agg       aggregationState
	logger    *slog.Logger
	path      string
}

// NewCollection constructs a Collection per opts. A persistent
// collection's executor starts paused; call LoadDatabase (directly, or
// via Autoload) before issuing other operations, matching §3's lifecycle
// note.
func NewCollection(opts CollectionOptions) (*Collection, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collection{
		idx:    newIndexSet(),
		logger: logger,
		path:   opts.Path,
	}

	persistent := opts.Path != "" && !opts.InMemoryOnly
	if persistent {
		p, err := newFilePersister(opts.Path, logger)
		if err != nil {
			return nil, err
		}
		c.persister = p
		c.exec = newExecutor(false)
		if opts.Autoload {
			if err := c.LoadDatabase(); err != nil {
				return nil, err
			}
		}
	} else {
		c.exec = newExecutor(true)
	}
	return c, nil
}

// Close stops the executor's worker goroutine and, for a persistent
// collection, closes the underlying log and side-table files.
func (c *Collection) Close() error {
	c.exec.close()
	if c.persister != nil {
		return c.persister.Close()
	}
	return nil
}

// LoadDatabase replays the persistence log and index-declaration
// side-table into the index set, then marks the executor ready (§4.6).
// It is a no-op for in-memory collections.
func (c *Collection) LoadDatabase() error {
	if c.persister == nil {
		return nil
	}
	var loadErr error
	c.exec.submit(context.Background(), true, func() {
		docs, decls, err := c.persister.LoadDatabase()
		if err != nil {
			loadErr = ErrPersistence(err, "load database")
			return
		}
		for _, d := range decls {
			c.idx.createIndexWithOrdinal(d.FieldName, d.Unique, d.Sparse, d.Ordinal)
		}
		c.idx.resetIndexes(docs)
		c.logger.Info("nedb: database loaded", "path", c.path, "docs", len(docs), "indexes", len(decls))
	})
	return loadErr
}

// EnsureIndex declares a secondary index, backfilling it from the live
// document set (§4.4).
func (c *Collection) EnsureIndex(opts IndexOptions) error {
	var err error
	c.exec.submit(context.Background(), false, func() {
		err = c.ensureIndex(opts)
	})
	return err
}

func (c *Collection) ensureIndex(opts IndexOptions) error {
	if opts.FieldName == "" {
		return ErrMissingField()
	}
	if _, ok := c.idx.get(opts.FieldName); ok {
		return nil
	}
	idx := c.idx.createIndex(opts.FieldName, opts.Unique, opts.Sparse)
	docs := c.idx.allDocs()
	for i, d := range docs {
		if err := idx.insert(d); err != nil {
			for j := 0; j < i; j++ {
				idx.remove(docs[j])
			}
			c.idx.dropIndex(opts.FieldName)
			return err
		}
	}
	if c.persister != nil {
		entry := newIndexCreatedEntry(opts.FieldName, opts.Unique, opts.Sparse, idx.Ordinal)
		if err := c.persister.PersistNewState([]logEntry{entry}); err != nil {
			return ErrPersistence(err, "ensureIndex %q", opts.FieldName)
		}
	}
	c.logger.Debug("nedb: index created", "field", opts.FieldName, "unique", opts.Unique, "sparse", opts.Sparse)
	return nil
}

// RemoveIndex drops a secondary index unconditionally (§4.4). Removing a
// non-existent index, or the _id index, is a no-op.
func (c *Collection) RemoveIndex(fieldName string) error {
	var err error
	c.exec.submit(context.Background(), false, func() {
		err = c.removeIndex(fieldName)
	})
	return err
}

func (c *Collection) removeIndex(fieldName string) error {
	c.idx.dropIndex(fieldName)
	if c.persister != nil {
		if err := c.persister.PersistNewState([]logEntry{newIndexRemovedEntry(fieldName)}); err != nil {
			return ErrPersistence(err, "removeIndex %q", fieldName)
		}
	}
	return nil
}

// Insert commits a single document, assigning a fresh _id when doc has
// none (§4.4).
func (c *Collection) Insert(doc Doc) (Doc, error) {
	var result Doc
	var err error
	c.exec.submit(context.Background(), false, func() {
		result, err = c.insert(doc)
	})
	return result, err
}

func (c *Collection) insert(doc Doc) (Doc, error) {
	prepared, err := prepareInsertDoc(doc)
	if err != nil {
		return nil, err
	}
	if err := c.idx.addToIndexes(prepared); err != nil {
		return nil, err
	}
	if c.persister != nil {
		if err := c.persister.PersistNewState([]logEntry{newDocEntry(prepared)}); err != nil {
			// The in-memory insert already committed; §9's open question
			// preserves this rather than attempting an in-memory rollback.
			return cloneDoc(prepared), ErrPersistence(err, "insert %v", loggableDoc(prepared))
		}
	}
	return cloneDoc(prepared), nil
}

// InsertMany commits a batch of documents atomically with respect to the
// index set: either all succeed, or none are committed (§4.1 bulk insert
// protocol).
func (c *Collection) InsertMany(docs []Doc) ([]Doc, error) {
	var result []Doc
	var err error
	c.exec.submit(context.Background(), false, func() {
		result, err = c.insertMany(docs)
	})
	return result, err
}

func (c *Collection) insertMany(docs []Doc) ([]Doc, error) {
	prepared := make([]Doc, len(docs))
	for i, d := range docs {
		p, err := prepareInsertDoc(d)
		if err != nil {
			return nil, err
		}
		prepared[i] = p
	}
	if err := c.idx.bulkInsert(prepared); err != nil {
		return nil, err
	}
	if c.persister != nil {
		entries := make([]logEntry, len(prepared))
		for i, d := range prepared {
			entries[i] = newDocEntry(d)
		}
		if err := c.persister.PersistNewState(entries); err != nil {
			return cloneDocs(prepared), ErrPersistence(err, "insertMany (%d docs)", len(prepared))
		}
	}
	return cloneDocs(prepared), nil
}

// Count returns the number of live documents matching query (§4.4).
func (c *Collection) Count(q Query) (int, error) {
	var n int
	c.exec.submit(context.Background(), false, func() {
		n = c.count(q)
	})
	return n, nil
}

func (c *Collection) count(q Query) int {
	n := 0
	for _, d := range candidates(c.idx, q) {
		if matches(d, q) {
			n++
		}
	}
	return n
}

// Find returns every live document matching query, sorted/sliced by the
// most recent Aggregate call (§4.4, §4.3).
func (c *Collection) Find(q Query) ([]Doc, error) {
	var result []Doc
	c.exec.submit(context.Background(), false, func() {
		result = c.find(q)
	})
	return result, nil
}

func (c *Collection) find(q Query) []Doc {
	cands := candidates(c.idx, q)
	matched := make([]Doc, 0, len(cands))
	for _, d := range cands {
		if matches(d, q) {
			matched = append(matched, cloneDoc(d))
		}
	}
	return aggregate(matched, c.agg, true)
}

// FindOne returns the last matching document encountered while walking
// the sorted candidate domain, or nil (§4.4's preserved quirk: sort
// applies before matching, and neither skip nor limit is honored).
func (c *Collection) FindOne(q Query) (Doc, error) {
	var result Doc
	c.exec.submit(context.Background(), false, func() {
		result = c.findOne(q)
	})
	return result, nil
}

func (c *Collection) findOne(q Query) Doc {
	ordered := aggregate(candidates(c.idx, q), c.agg, false)
	var found Doc
	for _, d := range ordered {
		if matches(d, q) {
			found = d
		}
	}
	if found == nil {
		return nil
	}
	return cloneDoc(found)
}

// Update applies updateQuery to documents matching q (§4.4). It returns
// the number of documents replaced and whether an upsert occurred.
func (c *Collection) Update(q Query, update UpdateSpec, opts UpdateOptions) (int, bool, error) {
	var n int
	var upserted bool
	var err error
	c.exec.submit(context.Background(), false, func() {
		n, upserted, err = c.update(q, update, opts)
	})
	return n, upserted, err
}

func (c *Collection) update(q Query, update UpdateSpec, opts UpdateOptions) (int, bool, error) {
	if opts.Upsert && c.findOne(q) == nil {
		template, err := templateFromQuery(q, update)
		if err != nil {
			return 0, false, err
		}
		if _, err := c.insert(template); err != nil {
			return 0, false, err
		}
		return 1, true, nil
	}

	cands := candidates(c.idx, q)
	matched := make([]Doc, 0, len(cands))
	for _, d := range cands {
		if matches(d, q) {
			matched = append(matched, d)
		}
	}
	toUpdate := aggregate(matched, c.agg, opts.Multi)
	if !opts.Multi && len(toUpdate) > 1 {
		toUpdate = toUpdate[:1]
	}

	mods := make([]Modification, 0, len(toUpdate))
	for _, old := range toUpdate {
		newDoc, err := modify(old, update)
		if err != nil {
			return 0, false, err
		}
		mods = append(mods, Modification{OldDoc: old, NewDoc: newDoc})
	}
	if err := c.idx.updateIndexes(mods); err != nil {
		return 0, false, err
	}
	if c.persister != nil {
		entries := make([]logEntry, len(mods))
		for i, m := range mods {
			entries[i] = newDocEntry(m.NewDoc)
		}
		if err := c.persister.PersistNewState(entries); err != nil {
			return len(mods), false, ErrPersistence(err, "update (%d docs)", len(mods))
		}
	}
	return len(mods), false, nil
}

// Remove deletes documents matching q (§4.4), returning the number
// removed.
func (c *Collection) Remove(q Query, opts RemoveOptions) (int, error) {
	var n int
	var err error
	c.exec.submit(context.Background(), false, func() {
		n, err = c.remove(q, opts)
	})
	return n, err
}

func (c *Collection) remove(q Query, opts RemoveOptions) (int, error) {
	cands := candidates(c.idx, q)
	matched := make([]Doc, 0, len(cands))
	for _, d := range cands {
		if matches(d, q) {
			matched = append(matched, d)
		}
	}
	toRemove := aggregate(matched, c.agg, opts.Multi)
	if !opts.Multi && len(toRemove) > 1 {
		toRemove = toRemove[:1]
	}

	for _, d := range toRemove {
		c.idx.removeFromIndexes(d)
	}
	if c.persister != nil {
		entries := make([]logEntry, len(toRemove))
		for i, d := range toRemove {
			entries[i] = newTombstoneEntry(idOf(d))
		}
		if err := c.persister.PersistNewState(entries); err != nil {
			return len(toRemove), ErrPersistence(err, "remove (%d docs)", len(toRemove))
		}
	}
	return len(toRemove), nil
}

// Aggregate configures the collection's sort/skip/limit state, consumed
// by subsequent Find/Update calls (§3, §4.3). This state lives on the
// collection itself and is shared across every caller — a preserved,
// flagged design quirk (see DESIGN.md).
func (c *Collection) Aggregate(spec AggregateSpec) error {
	if err := validateAggregateSpec(spec); err != nil {
		return err
	}
	c.exec.submit(context.Background(), false, func() {
		c.agg = newAggregationState(spec)
	})
	return nil
}

// GetAllData returns a snapshot of every live document, enumerated via
// the _id index (§6).
func (c *Collection) GetAllData() []Doc {
	var out []Doc
	c.exec.submit(context.Background(), false, func() {
		out = cloneDocs(c.idx.allDocs())
	})
	return out
}

// Stats reports point-in-time size information, submitted through the
// executor like any other read so it never observes a torn mutation.
func (c *Collection) Stats() CollectionStats {
	var s CollectionStats
	c.exec.submit(context.Background(), false, func() {
		s = c.idx.stats()
	})
	s.Ready = c.exec.isReady()
	s.QueueLength = c.exec.queueLen()
	return s
}

func cloneDocs(docs []Doc) []Doc {
	out := make([]Doc, len(docs))
	for i, d := range docs {
		out[i] = cloneDoc(d)
	}
	return out
}
