package nedb

import (
	"bufio"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

// logEntryKind distinguishes the four shapes a persistence log record can
// take (§3's "Persistence log entry").
type logEntryKind uint8

const (
	logDoc logEntryKind = iota
	logTombstone
	logIndexCreated
	logIndexRemoved
)

// logEntry is the msgpack payload of one append-log record. Only the
// fields relevant to Kind are populated; msgpack's omitempty keeps
// records compact.
type logEntry struct {
	Kind    logEntryKind `msgpack:"k"`
	Doc     Doc          `msgpack:"d,omitempty"`
	ID      string       `msgpack:"id,omitempty"`
	Field   string       `msgpack:"f,omitempty"`
	Unique  bool         `msgpack:"u,omitempty"`
	Sparse  bool         `msgpack:"s,omitempty"`
	Ordinal uint64       `msgpack:"o,omitempty"`
}

func newDocEntry(d Doc) logEntry { return logEntry{Kind: logDoc, Doc: d} }
func newTombstoneEntry(id string) logEntry {
	return logEntry{Kind: logTombstone, ID: id}
}
func newIndexCreatedEntry(field string, unique, sparse bool, ordinal uint64) logEntry {
	return logEntry{Kind: logIndexCreated, Field: field, Unique: unique, Sparse: sparse, Ordinal: ordinal}
}
func newIndexRemovedEntry(field string) logEntry {
	return logEntry{Kind: logIndexRemoved, Field: field}
}

// indexDecl is a durable record of one declared secondary index, held
// both inline in the append log and in the bbolt side-table (§6).
type indexDecl struct {
	FieldName string `msgpack:"f"`
	Unique    bool   `msgpack:"u"`
	Sparse    bool   `msgpack:"s"`
	Ordinal   uint64 `msgpack:"o"`
}

// Persister is the persistence collaborator boundary of §4.6: replay the
// log into a document set and index-declaration set, and append new
// state changes durably.
type Persister interface {
	LoadDatabase() (docs []Doc, decls []indexDecl, err error)
	PersistNewState(entries []logEntry) error
	Close() error
}

var indexBucketName = []byte("indexes")

// filePersister implements Persister as a single append-only log file
// (checksummed msgpack records) plus a small go.etcd.io/bbolt side-table
// at <path>.idx holding index declarations, mirroring the teacher's
// per-table tableState pattern (schemastate.go) but scoped to index
// metadata rather than a full typed schema.
type filePersister struct {
	logPath string
	logFile *os.File
	db      *bbolt.DB
	logger  *slog.Logger

	mu sync.Mutex
}

func newFilePersister(path string, logger *slog.Logger) (*filePersister, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, ErrPersistence(err, "open log file %q", path)
	}
	db, err := bbolt.Open(path+".idx", 0o644, nil)
	if err != nil {
		f.Close()
		return nil, ErrPersistence(err, "open index side-table %q", path+".idx")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucketName)
		return err
	})
	if err != nil {
		f.Close()
		db.Close()
		return nil, ErrPersistence(err, "initialize index side-table %q", path+".idx")
	}
	return &filePersister{logPath: path, logFile: f, db: db, logger: logger}, nil
}

func (p *filePersister) Close() error {
	logErr := p.logFile.Close()
	dbErr := p.db.Close()
	if logErr != nil {
		return logErr
	}
	return dbErr
}

// LoadDatabase implements §4.6: read the side-table for a starting set of
// index declarations, then replay the append log top-to-bottom, folding
// document/tombstone/index-marker records into a final document set and
// declaration set (log entries win over stale side-table state, since the
// log is append-only and strictly ordered).
func (p *filePersister) LoadDatabase() ([]Doc, []indexDecl, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	decls := make(map[string]indexDecl)
	err := p.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(indexBucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var d indexDecl
			if err := msgpack.Unmarshal(v, &d); err != nil {
				return err
			}
			decls[string(k)] = d
			return nil
		})
	})
	if err != nil {
		return nil, nil, ErrPersistence(err, "read index side-table")
	}

	if _, err := p.logFile.Seek(0, io.SeekStart); err != nil {
		return nil, nil, ErrPersistence(err, "seek log file")
	}
	docs := make(map[string]Doc)
	r := bufio.NewReader(p.logFile)
	dropped := 0
	for {
		entry, ok, torn := readLogEntry(r)
		if !ok {
			if torn {
				if _, err := r.Peek(1); err == nil {
					return nil, nil, ErrPersistence(nil, "corrupted record before the end of log file %q", p.logPath)
				}
				dropped++
			}
			break
		}
		switch entry.Kind {
		case logDoc:
			docs[idOf(entry.Doc)] = entry.Doc
		case logTombstone:
			delete(docs, entry.ID)
		case logIndexCreated:
			decls[entry.Field] = indexDecl{FieldName: entry.Field, Unique: entry.Unique, Sparse: entry.Sparse, Ordinal: entry.Ordinal}
		case logIndexRemoved:
			delete(decls, entry.Field)
		}
	}
	if dropped > 0 {
		p.logger.Warn("nedb: dropped torn trailing record on load", "path", p.logPath)
	}
	if _, err := p.logFile.Seek(0, io.SeekEnd); err != nil {
		return nil, nil, ErrPersistence(err, "seek log file")
	}

	docList := make([]Doc, 0, len(docs))
	for _, d := range docs {
		docList = append(docList, d)
	}
	declList := make([]indexDecl, 0, len(decls))
	for _, d := range decls {
		declList = append(declList, d)
	}
	sort.Slice(declList, func(i, j int) bool { return declList[i].Ordinal < declList[j].Ordinal })
	return docList, declList, nil
}

// readLogEntry reads one record. ok=false with torn=true means a
// truncated or checksum-mismatching record was found; LoadDatabase drops
// it when nothing follows it (§6's torn-write tolerance) and fails
// otherwise. ok=false with torn=false means a clean end of file.
func readLogEntry(r *bufio.Reader) (entry logEntry, ok bool, torn bool) {
	length, err := binary.ReadUvarint(r)
	if err == io.EOF {
		return logEntry{}, false, false
	}
	if err != nil {
		return logEntry{}, false, true
	}
	var sumBuf [8]byte
	if _, err := io.ReadFull(r, sumBuf[:]); err != nil {
		return logEntry{}, false, true
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return logEntry{}, false, true
	}
	if xxhash.Sum64(payload) != binary.LittleEndian.Uint64(sumBuf[:]) {
		return logEntry{}, false, true
	}
	if err := msgpack.Unmarshal(payload, &entry); err != nil {
		return logEntry{}, false, true
	}
	return entry, true, false
}

// PersistNewState appends entries to the log as a batch of framed,
// checksummed records (§6's wire format), then mirrors any index
// declaration changes into the bbolt side-table.
func (p *filePersister) PersistNewState(entries []logEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := getRecordBuf()
	defer putRecordBuf(buf)
	buf = buf[:0]
	for _, e := range entries {
		payload, err := msgpack.Marshal(&e)
		if err != nil {
			return ErrPersistence(err, "encode log entry")
		}
		buf = binary.AppendUvarint(buf, uint64(len(payload)))
		var sumBuf [8]byte
		binary.LittleEndian.PutUint64(sumBuf[:], xxhash.Sum64(payload))
		buf = append(buf, sumBuf[:]...)
		buf = append(buf, payload...)
	}
	// One Write call and one Sync for the whole batch (e.g. from InsertMany or
	// a multi Update/Remove). A write cut short by a crash or a short write
	// can leave the batch's leading records complete on disk; replay keeps
	// complete records and drops the torn trailing one, so such a batch is
	// replayed in part.
	if _, err := p.logFile.Write(buf); err != nil {
		return ErrPersistence(err, "write log record")
	}
	if err := p.logFile.Sync(); err != nil {
		return ErrPersistence(err, "sync log file")
	}
	return p.syncIndexDecls(entries)
}

func (p *filePersister) syncIndexDecls(entries []logEntry) error {
	var creates, removes []logEntry
	for _, e := range entries {
		switch e.Kind {
		case logIndexCreated:
			creates = append(creates, e)
		case logIndexRemoved:
			removes = append(removes, e)
		}
	}
	if len(creates) == 0 && len(removes) == 0 {
		return nil
	}
	err := p.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(indexBucketName)
		for _, e := range creates {
			d := indexDecl{FieldName: e.Field, Unique: e.Unique, Sparse: e.Sparse, Ordinal: e.Ordinal}
			raw, err := msgpack.Marshal(&d)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(e.Field), raw); err != nil {
				return err
			}
		}
		for _, e := range removes {
			if err := b.Delete([]byte(e.Field)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ErrPersistence(err, "update index side-table")
	}
	return nil
}
