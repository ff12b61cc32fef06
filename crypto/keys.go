package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of a bech32 address.
type AddressPrefix string

// FundPrefix marks ledger accounts.
const FundPrefix AddressPrefix = "fund"

// ErrInvalidAddress is returned for text that is not a 20-byte bech32 address.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// Address is a ledger address together with the prefix it is rendered with.
type Address struct {
	prefix AddressPrefix
	raw    common.Address
}

// NewAddress panics unless b is exactly 20 bytes.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != common.AddressLength {
		panic(fmt.Sprintf("crypto: address must be %d bytes, got %d", common.AddressLength, len(b)))
	}
	return Address{prefix: prefix, raw: common.BytesToAddress(b)}
}

// FromCommon renders a raw ledger address with FundPrefix.
func FromCommon(addr common.Address) Address {
	return Address{prefix: FundPrefix, raw: addr}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.raw.Bytes(), 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte { return a.raw.Bytes() }

// Common returns the raw form used by ledger state.
func (a Address) Common() common.Address { return a.raw }

func (a Address) Prefix() AddressPrefix { return a.prefix }

// DecodeAddress parses a bech32 address under any prefix.
func DecodeAddress(s string) (Address, error) {
	prefix, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(decoded) != common.AddressLength {
		return Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(decoded))
	}
	return NewAddress(AddressPrefix(prefix), decoded), nil
}

// ParseAddress parses a fund-prefixed address into its raw form.
func ParseAddress(s string) (common.Address, error) {
	addr, err := DecodeAddress(s)
	if err != nil {
		return common.Address{}, err
	}
	if addr.prefix != FundPrefix {
		return common.Address{}, fmt.Errorf("%w: prefix %q, want %q", ErrInvalidAddress, addr.prefix, FundPrefix)
	}
	return addr.raw, nil
}

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromBytes loads a raw 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address is the ledger account controlled by the key.
func (k *PublicKey) Address() Address {
	return FromCommon(crypto.PubkeyToAddress(*k.PublicKey))
}
