package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/storage"
	"github.com/AndreyBrytkov/cowdfunding/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	return NewManager(tr)
}

func TestManagerAccountRoundTrip(t *testing.T) {
	m := newTestManager(t)
	addr := common.HexToAddress("0x0101")
	owner := common.HexToAddress("0x0202")

	missing, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, m.PutAccount(addr, &types.Account{
		Nonce:   4,
		Balance: uint256.NewInt(1_000),
		Owner:   owner,
		Data:    []byte{0xDE, 0xAD},
	}))

	got, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, uint64(4), got.Nonce)
	require.Equal(t, uint64(1_000), got.Balance.Uint64())
	require.Equal(t, owner, got.Owner)
	require.Equal(t, []byte{0xDE, 0xAD}, got.Data)

	require.NoError(t, m.DeleteAccount(addr))
	gone, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestManagerMeta(t *testing.T) {
	m := newTestManager(t)

	var out uint64
	ok, err := m.GetMeta("height", &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.PutMeta("height", uint64(42)))
	ok, err = m.GetMeta("height", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), out)

	_, err = m.GetMeta("", &out)
	require.Error(t, err)
}

func TestSchemaStamp(t *testing.T) {
	m := newTestManager(t)
	require.ErrorIs(t, m.CheckSchema(), ErrSchemaMismatch)

	require.NoError(t, m.StampSchema())
	require.NoError(t, m.CheckSchema())

	require.NoError(t, m.PutMeta(schemaEntry, uint64(SchemaVersion+1)))
	require.ErrorIs(t, m.CheckSchema(), ErrSchemaMismatch)
}

func TestOverlayStagesWithoutTouchingBase(t *testing.T) {
	m := newTestManager(t)
	a := common.HexToAddress("0xaa")
	b := common.HexToAddress("0xbb")
	require.NoError(t, m.PutAccount(a, &types.Account{Balance: uint256.NewInt(10)}))
	rootBefore := m.trie.Hash()

	overlay := NewOverlay(m)
	acc, err := overlay.GetAccount(a)
	require.NoError(t, err)
	acc.Balance = uint256.NewInt(3)
	require.NoError(t, overlay.PutAccount(a, acc))
	require.NoError(t, overlay.PutAccount(b, &types.Account{Balance: uint256.NewInt(7)}))
	require.NoError(t, overlay.DeleteAccount(b))

	staged, err := overlay.GetAccount(a)
	require.NoError(t, err)
	require.Equal(t, uint64(3), staged.Balance.Uint64())
	deleted, err := overlay.GetAccount(b)
	require.NoError(t, err)
	require.Nil(t, deleted)

	require.Equal(t, rootBefore, m.trie.Hash())
	base, err := m.GetAccount(a)
	require.NoError(t, err)
	require.Equal(t, uint64(10), base.Balance.Uint64())

	changes := overlay.Changes()
	require.Len(t, changes, 2)
	require.Equal(t, a, changes[0].Address)
	require.Nil(t, changes[1].Account)

	require.NoError(t, m.Apply(changes))
	applied, err := m.GetAccount(a)
	require.NoError(t, err)
	require.Equal(t, uint64(3), applied.Balance.Uint64())
	missing, err := m.GetAccount(b)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestOverlayRejectsNilAccount(t *testing.T) {
	overlay := NewOverlay(newTestManager(t))
	require.Error(t, overlay.PutAccount(common.HexToAddress("0x01"), nil))
}
