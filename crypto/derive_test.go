package crypto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var testProgram = common.BytesToAddress(ethcrypto.Keccak256([]byte("test-program"))[12:])

func le64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func TestFindProgramAddressDeterministic(t *testing.T) {
	owner := bytes.Repeat([]byte{0x11}, 20)
	seeds := [][]byte{[]byte("campaign"), owner, le64(7)}

	first, bump1, err := FindProgramAddress(testProgram, seeds)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, bump2, err := FindProgramAddress(testProgram, seeds)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if first != second || bump1 != bump2 {
		t.Fatalf("derivation not deterministic: %s/%d vs %s/%d", first.Hex(), bump1, second.Hex(), bump2)
	}
	if err := VerifyProgramAddress(first, testProgram, seeds, bump1); err != nil {
		t.Fatalf("verify derived address: %v", err)
	}
}

func TestFindProgramAddressDistinctSeeds(t *testing.T) {
	owner := bytes.Repeat([]byte{0x22}, 20)
	seen := make(map[common.Address]uint64)
	for i := uint64(0); i < 32; i++ {
		addr, _, err := FindProgramAddress(testProgram, [][]byte{[]byte("campaign"), owner, le64(i)})
		if err != nil {
			t.Fatalf("derive %d: %v", i, err)
		}
		if prev, ok := seen[addr]; ok {
			t.Fatalf("collision between discriminators %d and %d", prev, i)
		}
		seen[addr] = i
	}
}

func TestFindProgramAddressDependsOnProgram(t *testing.T) {
	seeds := [][]byte{[]byte("vault"), bytes.Repeat([]byte{0x33}, 20)}
	other := common.BytesToAddress(ethcrypto.Keccak256([]byte("other-program"))[12:])

	a, _, err := FindProgramAddress(testProgram, seeds)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, _, err := FindProgramAddress(other, seeds)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a == b {
		t.Fatalf("expected program id to separate namespaces")
	}
}

func TestDerivedAddressIsOffCurve(t *testing.T) {
	seeds := [][]byte{[]byte("vault"), bytes.Repeat([]byte{0x44}, 20)}
	_, bump, err := FindProgramAddress(testProgram, seeds)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	// Every bump above the selected one must have been rejected as on-curve.
	for b := 255; b > int(bump); b-- {
		if _, err := CreateProgramAddress(testProgram, seeds, uint8(b)); !errors.Is(err, ErrOnCurve) {
			t.Fatalf("bump %d: expected ErrOnCurve, got %v", b, err)
		}
	}
}

func TestVerifyProgramAddressMismatch(t *testing.T) {
	seeds := [][]byte{[]byte("vault"), bytes.Repeat([]byte{0x55}, 20)}
	addr, bump, err := FindProgramAddress(testProgram, seeds)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	wrong := addr
	wrong[0] ^= 0xFF
	if err := VerifyProgramAddress(wrong, testProgram, seeds, bump); !errors.Is(err, ErrDerivationMismatch) {
		t.Fatalf("expected ErrDerivationMismatch, got %v", err)
	}
}

func TestSeedValidation(t *testing.T) {
	if _, _, err := FindProgramAddress(testProgram, [][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}); !errors.Is(err, ErrSeedTooLong) {
		t.Fatalf("expected ErrSeedTooLong, got %v", err)
	}
	seeds := make([][]byte, MaxSeeds+1)
	if _, _, err := FindProgramAddress(testProgram, seeds); !errors.Is(err, ErrTooManySeeds) {
		t.Fatalf("expected ErrTooManySeeds, got %v", err)
	}
}
