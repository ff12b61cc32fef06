package crypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seed components of a derived address.
	MaxSeeds = 16
	// MaxSeedLength bounds the length of a single seed component.
	MaxSeedLength = 32

	derivedAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds       = errors.New("crypto: too many derivation seeds")
	ErrSeedTooLong        = errors.New("crypto: derivation seed exceeds 32 bytes")
	ErrOnCurve            = errors.New("crypto: derived address lies on the secp256k1 curve")
	ErrNoViableBump       = errors.New("crypto: unable to find a viable bump seed")
	ErrDerivationMismatch = errors.New("crypto: address does not match derivation")
)

// CreateProgramAddress derives the address owned by program for the supplied
// seeds and bump. The digest keccak256(seeds || bump || program || marker) is
// rejected when it is a valid secp256k1 x-coordinate, which keeps derived
// digests disjoint from compressed public keys. That the 20-byte address is not
// controlled by any key rests on keccak preimage resistance, as it does for
// every account address. The address is the last 20 bytes of the digest.
func CreateProgramAddress(program common.Address, seeds [][]byte, bump uint8) (common.Address, error) {
	if err := validateSeeds(seeds); err != nil {
		return common.Address{}, err
	}
	parts := make([][]byte, 0, len(seeds)+3)
	parts = append(parts, seeds...)
	parts = append(parts, []byte{bump}, program.Bytes(), []byte(derivedAddressMarker))
	digest := crypto.Keccak256(parts...)
	if onCurve(digest) {
		return common.Address{}, ErrOnCurve
	}
	return common.BytesToAddress(digest[12:]), nil
}

// FindProgramAddress searches bump seeds from 255 downwards and returns the
// first address that is off the curve together with its bump.
func FindProgramAddress(program common.Address, seeds [][]byte) (common.Address, uint8, error) {
	if err := validateSeeds(seeds); err != nil {
		return common.Address{}, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateProgramAddress(program, seeds, uint8(bump))
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return common.Address{}, 0, err
		}
	}
	return common.Address{}, 0, ErrNoViableBump
}

// VerifyProgramAddress re-derives the address from seeds and bump and reports
// whether it equals want.
func VerifyProgramAddress(want common.Address, program common.Address, seeds [][]byte, bump uint8) error {
	got, err := CreateProgramAddress(program, seeds, bump)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrDerivationMismatch, got.Hex(), want.Hex())
	}
	return nil
}

func validateSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return ErrTooManySeeds
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return ErrSeedTooLong
		}
	}
	return nil
}

func onCurve(x []byte) bool {
	compressed := make([]byte, 0, 33)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, x...)
	_, err := crypto.DecompressPubkey(compressed)
	return err == nil
}
