package journal

import (
	"context"
	"fmt"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/specialistvlad/blockgrid/internal/protocol"
)

const blocksTable = "blocks"

// record is one completed block in the in-memory journal.
type record struct {
	ID          string
	TaskID      string
	Coord       string
	Fingerprint uint64
}

func recordID(key protocol.BlockKey, fingerprint uint64) string {
	return fmt.Sprintf("%s|%s|%016x", key.TaskID, key.Coord, fingerprint)
}

// Memory is a Journal backed by go-memdb. It lives as long as the process
// and is mainly useful for tests and for several runs inside one binary.
type Memory struct {
	db *memdb.MemDB
}

// NewMemory creates an empty in-memory journal.
func NewMemory() (*Memory, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			blocksTable: {
				Name: blocksTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory journal: %w", err)
	}
	return &Memory{db: db}, nil
}

func (m *Memory) IsDone(_ context.Context, key protocol.BlockKey, fingerprint uint64) (bool, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(blocksTable, "id", recordID(key, fingerprint))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

func (m *Memory) MarkDone(_ context.Context, key protocol.BlockKey, fingerprint uint64) error {
	txn := m.db.Txn(true)
	rec := &record{ID: recordID(key, fingerprint), TaskID: key.TaskID, Coord: key.Coord, Fingerprint: fingerprint}
	if err := txn.Insert(blocksTable, rec); err != nil {
		txn.Abort()
		return fmt.Errorf("failed to record %s: %w", key, err)
	}
	txn.Commit()
	return nil
}

func (m *Memory) Close() error { return nil }
