package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	ethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// Both backends expose a trie database sharing the same underlying store so
// ledger state and node metadata live side by side.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	TrieDB() *triedb.Database
	Close()
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	kv     *memorydb.Database
	db     ethdb.Database
	trieDB *triedb.Database
}

func NewMemDB() *MemDB {
	kv := memorydb.New()
	db := rawdb.NewDatabase(kv)
	return &MemDB{
		kv:     kv,
		db:     db,
		trieDB: triedb.NewDatabase(db, triedb.HashDefaults),
	}
}

func (m *MemDB) Put(key []byte, value []byte) error {
	return m.kv.Put(key, value)
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	ok, err := m.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return m.kv.Get(key)
}

func (m *MemDB) Delete(key []byte) error {
	return m.kv.Delete(key)
}

// TrieDB exposes the trie database layered over the in-memory store.
func (m *MemDB) TrieDB() *triedb.Database {
	return m.trieDB
}

// Close satisfies the Database interface for MemDB.
func (m *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB ---

const (
	levelDBCacheMB = 64
	levelDBHandles = 256
)

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	kv     *ethleveldb.Database
	db     ethdb.Database
	trieDB *triedb.Database
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := ethleveldb.New(path, levelDBCacheMB, levelDBHandles, "cowdfund/db/", false)
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb %s: %w", path, err)
	}
	db := rawdb.NewDatabase(kv)
	return &LevelDB{
		kv:     kv,
		db:     db,
		trieDB: triedb.NewDatabase(db, triedb.HashDefaults),
	}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.kv.Put(key, value)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.kv.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Delete removes the key if present.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.kv.Delete(key)
}

// TrieDB exposes the trie database persisted in the same LevelDB instance.
func (ldb *LevelDB) TrieDB() *triedb.Database {
	return ldb.trieDB
}

// Close flushes the trie database and closes the database connection.
func (ldb *LevelDB) Close() {
	_ = ldb.trieDB.Close()
	_ = ldb.db.Close()
}
