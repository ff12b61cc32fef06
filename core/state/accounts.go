package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
)

var accountMetadataPrefix = []byte("account-meta:")

// accountMetadata carries the non-balance part of an account: the owning
// program and the program's encoded record.
type accountMetadata struct {
	Owner common.Address
	Data  []byte
}

func accountStateKey(addr common.Address) []byte {
	return ethcrypto.Keccak256(addr.Bytes())
}

func accountMetadataKey(addr common.Address) []byte {
	buf := make([]byte, len(accountMetadataPrefix)+common.AddressLength)
	copy(buf, accountMetadataPrefix)
	copy(buf[len(accountMetadataPrefix):], addr.Bytes())
	return ethcrypto.Keccak256(buf)
}

// GetAccount reconstructs the account stored under the provided address. A nil
// account and nil error are returned when the address does not exist.
func (m *Manager) GetAccount(addr common.Address) (*types.Account, error) {
	stateAcc, err := m.loadStateAccount(addr)
	if err != nil {
		return nil, err
	}
	if stateAcc == nil {
		return nil, nil
	}
	meta, err := m.loadAccountMetadata(addr)
	if err != nil {
		return nil, err
	}
	account := &types.Account{
		Nonce:   stateAcc.Nonce,
		Balance: new(uint256.Int),
		Owner:   meta.Owner,
		Data:    common.CopyBytes(meta.Data),
	}
	if stateAcc.Balance != nil {
		account.Balance.Set(stateAcc.Balance)
	}
	return account, nil
}

// PutAccount persists the provided account under the supplied address.
func (m *Manager) PutAccount(addr common.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account for %s", addr.Hex())
	}
	stateAcc := &gethtypes.StateAccount{
		Nonce:    account.Nonce,
		Balance:  new(uint256.Int).Set(account.BalanceOrZero()),
		Root:     gethtypes.EmptyRootHash,
		CodeHash: gethtypes.EmptyCodeHash.Bytes(),
	}
	if err := m.writeStateAccount(addr, stateAcc); err != nil {
		return err
	}
	return m.writeAccountMetadata(addr, &accountMetadata{
		Owner: account.Owner,
		Data:  common.CopyBytes(account.Data),
	})
}

// DeleteAccount removes the account and its metadata. Deleting a missing
// account is a no-op.
func (m *Manager) DeleteAccount(addr common.Address) error {
	if err := m.trie.Delete(accountStateKey(addr)); err != nil {
		return err
	}
	return m.trie.Delete(accountMetadataKey(addr))
}

func (m *Manager) loadStateAccount(addr common.Address) (*gethtypes.StateAccount, error) {
	data, err := m.trie.Get(accountStateKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	stateAcc := new(gethtypes.StateAccount)
	if err := rlp.DecodeBytes(data, stateAcc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr.Hex(), err)
	}
	return stateAcc, nil
}

func (m *Manager) writeStateAccount(addr common.Address, stateAcc *gethtypes.StateAccount) error {
	encoded, err := rlp.EncodeToBytes(stateAcc)
	if err != nil {
		return err
	}
	return m.trie.Update(accountStateKey(addr), encoded)
}

func (m *Manager) loadAccountMetadata(addr common.Address) (*accountMetadata, error) {
	data, err := m.trie.Get(accountMetadataKey(addr))
	if err != nil {
		return nil, err
	}
	meta := &accountMetadata{}
	if len(data) == 0 {
		return meta, nil
	}
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, fmt.Errorf("state: decode account metadata %s: %w", addr.Hex(), err)
	}
	return meta, nil
}

func (m *Manager) writeAccountMetadata(addr common.Address, meta *accountMetadata) error {
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return m.trie.Update(accountMetadataKey(addr), encoded)
}
