package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account is the substrate representation of every ledger address. Plain
// balance holders are owned by the bank program and carry no data; program
// records are owned by their program and keep their encoded state in Data.
type Account struct {
	Nonce   uint64         `json:"nonce"`
	Balance *uint256.Int   `json:"balance"`
	Owner   common.Address `json:"owner"`
	Data    []byte         `json:"data,omitempty"`
}

// Copy returns a deep copy so callers can mutate the result freely.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{
		Nonce: a.Nonce,
		Owner: a.Owner,
		Data:  common.CopyBytes(a.Data),
	}
	if a.Balance != nil {
		clone.Balance = new(uint256.Int).Set(a.Balance)
	} else {
		clone.Balance = new(uint256.Int)
	}
	return clone
}

// BalanceOrZero never returns nil.
func (a *Account) BalanceOrZero() *uint256.Int {
	if a == nil || a.Balance == nil {
		return new(uint256.Int)
	}
	return a.Balance
}
