package genesis

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AndreyBrytkov/cowdfunding/crypto"
)

func TestLoadGenesisSpec(t *testing.T) {
	addr1 := crypto.NewAddress(crypto.FundPrefix, bytes.Repeat([]byte{0x01}, 20))
	addr2 := crypto.NewAddress(crypto.FundPrefix, bytes.Repeat([]byte{0x02}, 20))
	chainID := uint64(42)

	raw, err := json.Marshal(GenesisSpec{
		ChainID: &chainID,
		Alloc: map[string]string{
			addr2.String(): "2000",
			addr1.String(): "1000",
		},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)

	id, ok := spec.ChainIDValue()
	require.True(t, ok)
	require.Equal(t, chainID, id)

	allocs := spec.Allocations()
	require.Len(t, allocs, 2)
	require.Equal(t, addr1.Common(), allocs[0].Address)
	require.Equal(t, uint64(1000), allocs[0].Amount.Uint64())
	require.Equal(t, addr2.Common(), allocs[1].Address)
}

func TestParseGenesisSpecRejectsInvalidInput(t *testing.T) {
	addr := crypto.NewAddress(crypto.FundPrefix, bytes.Repeat([]byte{0x01}, 20)).String()
	cases := map[string]string{
		"unknown field": `{"alloc":{},"validators":[]}`,
		"bad address":   `{"alloc":{"fund1notanaddress":"1"}}`,
		"bad amount":    `{"alloc":{"` + addr + `":"-5"}}`,
		"foreign hrp":   `{"alloc":{"` + crypto.NewAddress("cosmos", bytes.Repeat([]byte{0x01}, 20)).String() + `":"1"}}`,
	}
	for name, raw := range cases {
		if _, err := ParseGenesisSpec([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestZeroAllocationsAreSkipped(t *testing.T) {
	addr := crypto.NewAddress(crypto.FundPrefix, bytes.Repeat([]byte{0x03}, 20)).String()
	spec, err := ParseGenesisSpec([]byte(`{"alloc":{"` + addr + `":"0"}}`))
	require.NoError(t, err)
	require.Empty(t, spec.Allocations())
	_, ok := spec.ChainIDValue()
	require.False(t, ok)
}
