package types

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestTransactionSignRecover(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	want := ethcrypto.PubkeyToAddress(key.PublicKey)

	tx := &Transaction{
		ChainID: 7,
		Nonce:   3,
		Program: common.HexToAddress("0x01"),
		Accounts: []AccountMeta{
			{Address: want, Signer: true, Writable: true},
			{Address: common.HexToAddress("0x02"), Writable: true},
		},
		Data: []byte{0x01, 0x02},
	}
	require.NoError(t, tx.Sign(key))

	got, err := tx.From()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTransactionTamperChangesSigner(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := ethcrypto.PubkeyToAddress(key.PublicKey)

	tx := &Transaction{ChainID: 1, Program: common.HexToAddress("0x01"), Data: []byte{0xAA}}
	require.NoError(t, tx.Sign(key))

	tampered := &Transaction{
		ChainID: tx.ChainID,
		Program: tx.Program,
		Data:    []byte{0xAB},
		R:       tx.R,
		S:       tx.S,
		V:       tx.V,
	}
	got, err := tampered.From()
	if err == nil {
		require.NotEqual(t, signer, got)
	}
}

func TestTransactionRejectsWideRecoveryID(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	tx := &Transaction{ChainID: 1, Program: common.HexToAddress("0x01"), Data: []byte{0xAA}}
	require.NoError(t, tx.Sign(key))

	// 2^64 + v truncates to v when read as a uint64.
	wide := new(big.Int).Lsh(big.NewInt(1), 64)
	wide.Add(wide, tx.V)
	forged := &Transaction{
		ChainID: tx.ChainID,
		Program: tx.Program,
		Data:    tx.Data,
		R:       tx.R,
		S:       tx.S,
		V:       wide,
	}
	_, err = forged.From()
	require.ErrorContains(t, err, "recovery id")
}

func TestTransactionUnsigned(t *testing.T) {
	tx := &Transaction{}
	_, err := tx.From()
	require.True(t, errors.Is(err, ErrMissingSignature))
}

func TestAccountCopyIsDeep(t *testing.T) {
	acc := &Account{Nonce: 1, Balance: uint256.NewInt(10), Data: []byte{1, 2}}
	clone := acc.Copy()
	clone.Balance.AddUint64(clone.Balance, 5)
	clone.Data[0] = 9

	require.Equal(t, uint64(10), acc.Balance.Uint64())
	require.Equal(t, byte(1), acc.Data[0])
	require.Equal(t, uint64(0), (*Account)(nil).BalanceOrZero().Uint64())
}
