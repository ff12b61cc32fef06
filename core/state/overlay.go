package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
)

// AccountReader is the read side of the ledger state.
type AccountReader interface {
	GetAccount(addr common.Address) (*types.Account, error)
}

// Change is a single staged account mutation. A nil Account deletes the
// address.
type Change struct {
	Address common.Address
	Account *types.Account
}

type overlayEntry struct {
	account *types.Account
	deleted bool
}

// Overlay stages the account mutations of one request on top of a read-only
// base. Nothing reaches the base until the ledger applies Changes in one step,
// so a failed request leaves no trace.
type Overlay struct {
	base    AccountReader
	entries map[common.Address]*overlayEntry
	order   []common.Address
}

// NewOverlay returns an empty overlay reading through to base.
func NewOverlay(base AccountReader) *Overlay {
	return &Overlay{
		base:    base,
		entries: make(map[common.Address]*overlayEntry),
	}
}

// GetAccount returns a copy of the staged account, falling back to the base.
func (o *Overlay) GetAccount(addr common.Address) (*types.Account, error) {
	if entry, ok := o.entries[addr]; ok {
		if entry.deleted {
			return nil, nil
		}
		return entry.account.Copy(), nil
	}
	acc, err := o.base.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Copy(), nil
}

// PutAccount stages a write.
func (o *Overlay) PutAccount(addr common.Address, acc *types.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil account for %s", addr.Hex())
	}
	entry := o.entry(addr)
	entry.account = acc.Copy()
	entry.deleted = false
	return nil
}

// DeleteAccount stages a deletion.
func (o *Overlay) DeleteAccount(addr common.Address) error {
	entry := o.entry(addr)
	entry.account = nil
	entry.deleted = true
	return nil
}

func (o *Overlay) entry(addr common.Address) *overlayEntry {
	entry, ok := o.entries[addr]
	if !ok {
		entry = &overlayEntry{}
		o.entries[addr] = entry
		o.order = append(o.order, addr)
	}
	return entry
}

// Changes lists the staged mutations in first-touch order.
func (o *Overlay) Changes() []Change {
	out := make([]Change, 0, len(o.order))
	for _, addr := range o.order {
		entry := o.entries[addr]
		change := Change{Address: addr}
		if !entry.deleted {
			change.Account = entry.account.Copy()
		}
		out = append(out, change)
	}
	return out
}

// Apply writes a batch of staged changes to the trie.
func (m *Manager) Apply(changes []Change) error {
	for _, change := range changes {
		if change.Account == nil {
			if err := m.DeleteAccount(change.Address); err != nil {
				return err
			}
			continue
		}
		if err := m.PutAccount(change.Address, change.Account); err != nil {
			return err
		}
	}
	return nil
}
