package bank

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
)

// ProgramID identifies the bank as the owner of plain balance accounts.
var ProgramID = common.BytesToAddress(ethcrypto.Keccak256([]byte("cowdfunding/bank"))[12:])

var (
	ErrAccountExists     = errors.New("bank: account already in use")
	ErrAccountNotFound   = errors.New("bank: account not found")
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrNotSystemAccount  = errors.New("bank: source is not a plain balance account")
	ErrMissingAuthority  = errors.New("bank: missing authority")
	ErrBalanceOverflow   = errors.New("bank: balance overflow")
	ErrNilState          = errors.New("bank: state not configured")
)

// State is the account store the bank operates on.
type State interface {
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, acc *types.Account) error
	DeleteAccount(addr common.Address) error
}

// Rent determines the reserve a new account is funded with. The reserve is
// charged once at creation; later debits are bounded only by the balance.
type Rent struct {
	Base    uint64
	PerByte uint64
}

// DefaultRent mirrors the reserve charged for a zero-length account plus a
// per-byte surcharge for program data.
func DefaultRent() Rent {
	return Rent{Base: 890, PerByte: 7}
}

// MinimumBalance returns the existence reserve for an account with space bytes
// of data.
func (r Rent) MinimumBalance(space int) uint64 {
	if space < 0 {
		space = 0
	}
	return r.Base + r.PerByte*uint64(space)
}

// Bank moves raw value between accounts and manages account lifetimes.
type Bank struct {
	state State
	rent  Rent
}

// New returns a bank operating on state.
func New(state State, rent Rent) *Bank {
	return &Bank{state: state, rent: rent}
}

// IsSystemAccount reports whether acc is a plain balance holder.
func IsSystemAccount(acc *types.Account) bool {
	return acc != nil && acc.Owner == ProgramID && len(acc.Data) == 0
}

// Balance returns the balance of addr, or ErrAccountNotFound.
func (b *Bank) Balance(addr common.Address) (*uint256.Int, error) {
	acc, err := b.load(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr.Hex())
	}
	return new(uint256.Int).Set(acc.BalanceOrZero()), nil
}

// Exists reports whether addr holds an account.
func (b *Bank) Exists(addr common.Address) (bool, error) {
	acc, err := b.load(addr)
	if err != nil {
		return false, err
	}
	return acc != nil, nil
}

// CreateAccount allocates addr with space bytes of zeroed data owned by owner,
// funding it with the rent reserve debited from payer. auth must cover both
// the payer and the new address.
func (b *Bank) CreateAccount(payer, addr common.Address, space int, owner common.Address, auth Authority) error {
	if b == nil || b.state == nil {
		return ErrNilState
	}
	if !Authorizes(auth, payer) {
		return fmt.Errorf("%w: payer %s", ErrMissingAuthority, payer.Hex())
	}
	if !Authorizes(auth, addr) {
		return fmt.Errorf("%w: new account %s", ErrMissingAuthority, addr.Hex())
	}
	existing, err := b.load(addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr.Hex())
	}
	reserve := b.rent.MinimumBalance(space)
	if err := b.debit(payer, reserve); err != nil {
		return err
	}
	return b.state.PutAccount(addr, &types.Account{
		Balance: uint256.NewInt(reserve),
		Owner:   owner,
		Data:    make([]byte, space),
	})
}

// Transfer moves amount from a plain balance account to any address. A missing
// destination is created as a plain account.
func (b *Bank) Transfer(from, to common.Address, amount uint64, auth Authority) error {
	if b == nil || b.state == nil {
		return ErrNilState
	}
	if !Authorizes(auth, from) {
		return fmt.Errorf("%w: %s", ErrMissingAuthority, from.Hex())
	}
	if amount == 0 {
		return nil
	}
	if err := b.debit(from, amount); err != nil {
		return err
	}
	return b.credit(to, amount)
}

// Close sweeps the full remaining balance of a plain account to recipient and
// deletes it. The swept amount is returned.
func (b *Bank) Close(addr, recipient common.Address, auth Authority) (uint64, error) {
	if b == nil || b.state == nil {
		return 0, ErrNilState
	}
	if !Authorizes(auth, addr) {
		return 0, fmt.Errorf("%w: %s", ErrMissingAuthority, addr.Hex())
	}
	acc, err := b.load(addr)
	if err != nil {
		return 0, err
	}
	if acc == nil {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, addr.Hex())
	}
	if !IsSystemAccount(acc) {
		return 0, fmt.Errorf("%w: %s", ErrNotSystemAccount, addr.Hex())
	}
	if !acc.BalanceOrZero().IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrBalanceOverflow, addr.Hex())
	}
	swept := acc.BalanceOrZero().Uint64()
	if err := b.state.DeleteAccount(addr); err != nil {
		return 0, err
	}
	if swept > 0 {
		if err := b.credit(recipient, swept); err != nil {
			return 0, err
		}
	}
	return swept, nil
}

// Credit adds amount to addr without a source. Only genesis allocation uses
// it.
func (b *Bank) Credit(addr common.Address, amount *uint256.Int) error {
	if b == nil || b.state == nil {
		return ErrNilState
	}
	acc, err := b.load(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = &types.Account{Balance: new(uint256.Int), Owner: ProgramID}
	}
	sum, overflow := new(uint256.Int).AddOverflow(acc.BalanceOrZero(), amount)
	if overflow {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr.Hex())
	}
	acc.Balance = sum
	return b.state.PutAccount(addr, acc)
}

func (b *Bank) load(addr common.Address) (*types.Account, error) {
	if b == nil || b.state == nil {
		return nil, ErrNilState
	}
	return b.state.GetAccount(addr)
}

func (b *Bank) debit(addr common.Address, amount uint64) error {
	acc, err := b.load(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr.Hex())
	}
	if !IsSystemAccount(acc) {
		return fmt.Errorf("%w: %s", ErrNotSystemAccount, addr.Hex())
	}
	amt := uint256.NewInt(amount)
	if acc.BalanceOrZero().Lt(amt) {
		return fmt.Errorf("%w: %s has %s, needs %d", ErrInsufficientFunds, addr.Hex(), acc.BalanceOrZero().Dec(), amount)
	}
	acc.Balance = new(uint256.Int).Sub(acc.BalanceOrZero(), amt)
	return b.state.PutAccount(addr, acc)
}

func (b *Bank) credit(addr common.Address, amount uint64) error {
	acc, err := b.load(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = &types.Account{Balance: new(uint256.Int), Owner: ProgramID}
	}
	sum, overflow := new(uint256.Int).AddOverflow(acc.BalanceOrZero(), uint256.NewInt(amount))
	if overflow {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr.Hex())
	}
	acc.Balance = sum
	return b.state.PutAccount(addr, acc)
}
