package core

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// accountLocks hands out per-address write locks. Requests lock every account
// they may write, always in address order, so two requests sharing an account
// run one after the other while disjoint requests never wait on each other.
type accountLocks struct {
	mu      sync.Mutex
	entries map[common.Address]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{entries: make(map[common.Address]*lockEntry)}
}

// acquire blocks until every address is held and returns the release func.
func (l *accountLocks) acquire(addrs []common.Address) func() {
	ordered := sortedUnique(addrs)
	held := make([]*lockEntry, 0, len(ordered))
	for _, addr := range ordered {
		entry := l.ref(addr)
		entry.mu.Lock()
		held = append(held, entry)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		l.unref(ordered)
	}
}

func (l *accountLocks) ref(addr common.Address) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[addr]
	if !ok {
		entry = &lockEntry{}
		l.entries[addr] = entry
	}
	entry.refs++
	return entry
}

func (l *accountLocks) unref(addrs []common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, addr := range addrs {
		entry, ok := l.entries[addr]
		if !ok {
			continue
		}
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, addr)
		}
	}
}

func sortedUnique(addrs []common.Address) []common.Address {
	out := make([]common.Address, 0, len(addrs))
	seen := make(map[common.Address]struct{}, len(addrs))
	for _, addr := range addrs {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}
