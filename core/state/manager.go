package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/AndreyBrytkov/cowdfunding/storage/trie"
)

// Manager provides typed reads and writes over the ledger trie. It is not safe
// for concurrent use; the ledger serialises access to it.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// Ledger-wide values live beside the accounts under their own hashed
// namespace so no address can collide with them.
var metaPrefix = []byte("cowdfund/meta/")

func metaKey(name string) []byte {
	return ethcrypto.Keccak256(append(append([]byte(nil), metaPrefix...), name...))
}

// PutMeta RLP-encodes value under the ledger-wide entry name.
func (m *Manager) PutMeta(name string, value interface{}) error {
	if name == "" {
		return fmt.Errorf("state: meta name must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode meta %q: %w", name, err)
	}
	return m.trie.Update(metaKey(name), encoded)
}

// GetMeta decodes the entry name into out and reports whether it existed.
func (m *Manager) GetMeta(name string, out interface{}) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("state: meta name must not be empty")
	}
	data, err := m.trie.Get(metaKey(name))
	if err != nil || len(data) == 0 {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode meta %q: %w", name, err)
	}
	return true, nil
}

// SchemaVersion identifies the account and campaign record layout written by
// this binary. Bump it whenever either encoding changes.
const SchemaVersion uint32 = 1

const schemaEntry = "schema"

// ErrSchemaMismatch reports state written with a different record layout.
var ErrSchemaMismatch = errors.New("state: schema version mismatch")

// StampSchema records SchemaVersion in state.
func (m *Manager) StampSchema() error {
	return m.PutMeta(schemaEntry, uint64(SchemaVersion))
}

// CheckSchema fails unless state carries exactly SchemaVersion.
func (m *Manager) CheckSchema() error {
	var stored uint64
	ok, err := m.GetMeta(schemaEntry, &stored)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: state carries no schema stamp, want %d", ErrSchemaMismatch, SchemaVersion)
	}
	if stored != uint64(SchemaVersion) {
		return fmt.Errorf("%w: state has %d, want %d", ErrSchemaMismatch, stored, SchemaVersion)
	}
	return nil
}
