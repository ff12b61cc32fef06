package bank

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/crypto"
)

type memState struct {
	accounts map[common.Address]*types.Account
}

func newMemState() *memState {
	return &memState{accounts: make(map[common.Address]*types.Account)}
}

func (m *memState) GetAccount(addr common.Address) (*types.Account, error) {
	return m.accounts[addr].Copy(), nil
}

func (m *memState) PutAccount(addr common.Address, acc *types.Account) error {
	m.accounts[addr] = acc.Copy()
	return nil
}

func (m *memState) DeleteAccount(addr common.Address) error {
	delete(m.accounts, addr)
	return nil
}

func newTestAddress(fill byte) common.Address {
	return common.BytesToAddress(bytes.Repeat([]byte{fill}, 20))
}

func fund(t *testing.T, b *Bank, addr common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, b.Credit(addr, uint256.NewInt(amount)))
}

func balanceOf(t *testing.T, b *Bank, addr common.Address) uint64 {
	t.Helper()
	bal, err := b.Balance(addr)
	require.NoError(t, err)
	return bal.Uint64()
}

func TestTransferMovesValue(t *testing.T) {
	b := New(newMemState(), DefaultRent())
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, b, alice, 1_000)

	require.NoError(t, b.Transfer(alice, bob, 400, Signers(alice)))
	require.Equal(t, uint64(600), balanceOf(t, b, alice))
	require.Equal(t, uint64(400), balanceOf(t, b, bob))
}

func TestPlainAccountHasNoReserveFloor(t *testing.T) {
	rent := DefaultRent()
	b := New(newMemState(), rent)
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, b, alice, rent.MinimumBalance(0)+10)

	require.NoError(t, b.Transfer(alice, bob, rent.MinimumBalance(0), Signers(alice)))
	require.Equal(t, uint64(10), balanceOf(t, b, alice))
	require.Equal(t, rent.MinimumBalance(0), balanceOf(t, b, bob))
}

func TestTransferRequiresAuthority(t *testing.T) {
	b := New(newMemState(), DefaultRent())
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, b, alice, 1_000)

	require.ErrorIs(t, b.Transfer(alice, bob, 1, Signers(bob)), ErrMissingAuthority)
	require.ErrorIs(t, b.Transfer(alice, bob, 1, nil), ErrMissingAuthority)
	require.Equal(t, uint64(1_000), balanceOf(t, b, alice))
}

func TestTransferInsufficientFunds(t *testing.T) {
	b := New(newMemState(), DefaultRent())
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, b, alice, 10)

	require.ErrorIs(t, b.Transfer(alice, bob, 11, Signers(alice)), ErrInsufficientFunds)
	require.ErrorIs(t, b.Transfer(bob, alice, 1, Signers(bob)), ErrAccountNotFound)
}

func TestCreateAccountChargesReserve(t *testing.T) {
	state := newMemState()
	rent := Rent{Base: 100, PerByte: 2}
	b := New(state, rent)
	payer := newTestAddress(0x01)
	owner := newTestAddress(0x0F)
	fund(t, b, payer, 1_000)

	program := newTestAddress(0xEE)
	seeds := [][]byte{[]byte("record")}
	addr, bump, err := crypto.FindProgramAddress(program, seeds)
	require.NoError(t, err)
	signer, err := ProgramSigner(program, seeds, bump)
	require.NoError(t, err)

	require.NoError(t, b.CreateAccount(payer, addr, 10, owner, Combine(Signers(payer), signer)))
	require.Equal(t, uint64(1_000-120), balanceOf(t, b, payer))

	created := state.accounts[addr]
	require.Equal(t, owner, created.Owner)
	require.Len(t, created.Data, 10)
	require.Equal(t, uint64(120), created.Balance.Uint64())

	err = b.CreateAccount(payer, addr, 0, owner, Combine(Signers(payer), signer))
	require.ErrorIs(t, err, ErrAccountExists)
}

func TestCreateAccountNeedsNewAddressAuthority(t *testing.T) {
	b := New(newMemState(), DefaultRent())
	payer := newTestAddress(0x01)
	fund(t, b, payer, 10_000)

	err := b.CreateAccount(payer, newTestAddress(0x09), 0, ProgramID, Signers(payer))
	require.ErrorIs(t, err, ErrMissingAuthority)
}

func TestProgramSignerCoversOnlyDerivedAddress(t *testing.T) {
	program := newTestAddress(0xEE)
	seeds := [][]byte{[]byte("vault"), newTestAddress(0x05).Bytes()}
	addr, bump, err := crypto.FindProgramAddress(program, seeds)
	require.NoError(t, err)

	signer, err := ProgramSigner(program, seeds, bump)
	require.NoError(t, err)
	require.True(t, Authorizes(signer, addr))
	require.False(t, Authorizes(signer, newTestAddress(0x05)))
}

func TestCloseSweepsAndDeletes(t *testing.T) {
	state := newMemState()
	b := New(state, DefaultRent())
	holder, recipient := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, b, holder, 777)

	swept, err := b.Close(holder, recipient, Signers(holder))
	require.NoError(t, err)
	require.Equal(t, uint64(777), swept)
	require.Equal(t, uint64(777), balanceOf(t, b, recipient))

	exists, err := b.Exists(holder)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestDataAccountsCannotBeDebited(t *testing.T) {
	state := newMemState()
	b := New(state, DefaultRent())
	record := newTestAddress(0x03)
	require.NoError(t, state.PutAccount(record, &types.Account{
		Balance: uint256.NewInt(500),
		Owner:   newTestAddress(0x0F),
		Data:    []byte{1},
	}))

	err := b.Transfer(record, newTestAddress(0x04), 1, Signers(record))
	require.ErrorIs(t, err, ErrNotSystemAccount)
	_, err = b.Close(record, newTestAddress(0x04), Signers(record))
	require.ErrorIs(t, err, ErrNotSystemAccount)
}

func TestRentMinimumBalance(t *testing.T) {
	rent := DefaultRent()
	require.Equal(t, rent.Base, rent.MinimumBalance(0))
	require.Equal(t, rent.Base+rent.PerByte*73, rent.MinimumBalance(73))
	require.Equal(t, rent.Base, rent.MinimumBalance(-1))
}
