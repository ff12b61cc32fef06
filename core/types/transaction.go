package types

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var ErrMissingSignature = errors.New("types: transaction is not signed")

// AccountMeta references an account touched by an instruction together with
// the privileges the caller requests for it.
type AccountMeta struct {
	Address  common.Address `json:"address"`
	Signer   bool           `json:"signer"`
	Writable bool           `json:"writable"`
}

// Transaction is a signed request to a native program. Accounts are positional
// and interpreted by the program's instruction layout.
type Transaction struct {
	ChainID  uint64         `json:"chainId"`
	Nonce    uint64         `json:"nonce"`
	Program  common.Address `json:"program"`
	Accounts []AccountMeta  `json:"accounts"`
	Data     []byte         `json:"data"`

	// Signature
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *common.Address
}

type unsignedTx struct {
	ChainID  uint64
	Nonce    uint64
	Program  common.Address
	Accounts []AccountMeta
	Data     []byte
}

// Hash returns keccak256 over the RLP encoding of the unsigned fields.
func (tx *Transaction) Hash() (common.Hash, error) {
	encoded, err := rlp.EncodeToBytes(&unsignedTx{
		ChainID:  tx.ChainID,
		Nonce:    tx.Nonce,
		Program:  tx.Program,
		Accounts: tx.Accounts,
		Data:     tx.Data,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer address. The result is cached after the first
// successful recovery.
func (tx *Transaction) From() (common.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return common.Address{}, ErrMissingSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return common.Address{}, err
	}
	if tx.V.Sign() < 0 || !tx.V.IsUint64() {
		return common.Address{}, errors.New("types: invalid signature recovery id")
	}
	v := tx.V.Uint64()
	if v != 27 && v != 28 {
		return common.Address{}, errors.New("types: invalid signature recovery id")
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 {
		return common.Address{}, errors.New("types: invalid signature length")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(v - 27)
	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	from := crypto.PubkeyToAddress(*pubKey)
	tx.from = &from
	return from, nil
}
