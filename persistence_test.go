package nedb

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newTestPersister(t testing.TB) *filePersister {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.log")
	p, err := newFilePersister(path, slog.Default())
	if err != nil {
		t.Fatalf("newFilePersister: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPersisterRoundTripsDocuments(t *testing.T) {
	p := newTestPersister(t)
	err := p.PersistNewState([]logEntry{
		newDocEntry(Doc{idFieldName: "a", "x": 1}),
		newDocEntry(Doc{idFieldName: "b", "x": 2}),
	})
	if err != nil {
		t.Fatalf("PersistNewState: %v", err)
	}
	docs, _, err := p.LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

func TestPersisterFoldsTombstones(t *testing.T) {
	p := newTestPersister(t)
	err := p.PersistNewState([]logEntry{
		newDocEntry(Doc{idFieldName: "a", "x": 1}),
		newDocEntry(Doc{idFieldName: "b", "x": 2}),
		newTombstoneEntry("a"),
	})
	if err != nil {
		t.Fatalf("PersistNewState: %v", err)
	}
	docs, _, err := p.LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	if len(docs) != 1 || docs[0][idFieldName] != "b" {
		t.Fatalf("expected only doc b to survive the tombstone, got %v", docs)
	}
}

func TestPersisterNewerDocSupersedesOlder(t *testing.T) {
	p := newTestPersister(t)
	err := p.PersistNewState([]logEntry{
		newDocEntry(Doc{idFieldName: "a", "x": 1}),
		newDocEntry(Doc{idFieldName: "a", "x": 2}),
	})
	if err != nil {
		t.Fatalf("PersistNewState: %v", err)
	}
	docs, _, err := p.LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	if len(docs) != 1 || !structEqual(docs[0]["x"], 2) {
		t.Fatalf("expected the later record to win, got %v", docs)
	}
}

func TestPersisterIndexDeclarationSideTable(t *testing.T) {
	p := newTestPersister(t)
	err := p.PersistNewState([]logEntry{newIndexCreatedEntry("tag", true, false, 1)})
	if err != nil {
		t.Fatalf("PersistNewState: %v", err)
	}
	_, decls, err := p.LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	if len(decls) != 1 || decls[0].FieldName != "tag" || !decls[0].Unique {
		t.Fatalf("expected one declared unique index on tag, got %v", decls)
	}

	if err := p.PersistNewState([]logEntry{newIndexRemovedEntry("tag")}); err != nil {
		t.Fatalf("PersistNewState: %v", err)
	}
	_, decls, err = p.LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	if len(decls) != 0 {
		t.Fatalf("expected the index declaration to be gone after removal, got %v", decls)
	}
}

func TestPersisterDropsTornTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")
	p, err := newFilePersister(path, slog.Default())
	if err != nil {
		t.Fatalf("newFilePersister: %v", err)
	}
	if err := p.PersistNewState([]logEntry{newDocEntry(Doc{idFieldName: "a", "x": 1})}); err != nil {
		t.Fatalf("PersistNewState: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Simulate a crash mid-write: append a few garbage bytes that look like
	// the start of a record header but are truncated.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	if _, err := f.Write([]byte{0x10, 0x01, 0x02}); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	p2, err := newFilePersister(path, slog.Default())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { p2.Close() })
	docs, _, err := p2.LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase should tolerate a torn trailing record, got error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected the one clean record to survive, got %d docs", len(docs))
	}
}
