package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"github.com/AndreyBrytkov/cowdfunding/storage"
)

// Trie is the authenticated map holding ledger state. Callers hash their keys
// (keccak256) before use.
//
// Mutations stay in memory until Commit writes the dirty nodes to the trie
// database and reopens the trie at the new root, so one instance serves the
// ledger for its whole lifetime. Trie is not safe for concurrent use.
type Trie struct {
	db        *triedb.Database
	trie      *gethtrie.Trie
	committed common.Hash
}

// NewTrie opens the trie at root on store. A nil or empty root opens the empty
// trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	t := &Trie{db: store.TrieDB()}
	committed := gethtypes.EmptyRootHash
	if len(root) > 0 {
		committed = common.BytesToHash(root)
	}
	if err := t.reopen(committed); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) reopen(root common.Hash) error {
	underlying, err := gethtrie.New(gethtrie.TrieID(root), t.db)
	if err != nil {
		return fmt.Errorf("trie: open at %s: %w", root.Hex(), err)
	}
	t.trie = underlying
	t.committed = root
	return nil
}

// Get returns the value under key, or nil when the key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.trie.Get(key)
}

func (t *Trie) Update(key, value []byte) error {
	return t.trie.Update(key, value)
}

// Delete removes key. Deleting an absent key is a no-op.
func (t *Trie) Delete(key []byte) error {
	return t.trie.Delete(key)
}

// Hash returns the root including uncommitted mutations.
func (t *Trie) Hash() common.Hash {
	return t.trie.Hash()
}

// Root returns the root of the last commit.
func (t *Trie) Root() common.Hash {
	return t.committed
}

// Copy returns an independent trie over the same database. The ledger stages
// each request's changes on a copy and keeps the original if any write fails.
func (t *Trie) Copy() *Trie {
	return &Trie{db: t.db, trie: t.trie.Copy(), committed: t.committed}
}

// Commit flushes dirty nodes to disk as the state at height, layered on the
// previous commit, and returns the new root.
func (t *Trie) Commit(height uint64) (common.Hash, error) {
	root, nodes := t.trie.Commit(false)
	if nodes != nil {
		set := trienode.NewMergedNodeSet()
		if err := set.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.db.Update(root, t.committed, height, set, nil); err != nil {
			return common.Hash{}, fmt.Errorf("trie: stage nodes: %w", err)
		}
		if err := t.db.Commit(root, false); err != nil {
			return common.Hash{}, fmt.Errorf("trie: flush nodes: %w", err)
		}
	}
	if err := t.reopen(root); err != nil {
		return common.Hash{}, err
	}
	return root, nil
}
