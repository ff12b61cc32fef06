package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/AndreyBrytkov/cowdfunding/crypto"
)

// GenesisSpec seeds the ledger with its initial balances.
type GenesisSpec struct {
	ChainID *uint64           `json:"chainId,omitempty"`
	Alloc   map[string]string `json:"alloc"` // bech32 addr -> amount

	allocations []Allocation
}

// Allocation is a validated initial balance.
type Allocation struct {
	Address common.Address
	Amount  *uint256.Int
}

// LoadGenesisSpec reads and validates the JSON genesis file at path.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a JSON genesis document. Unknown
// fields are rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// ChainIDValue returns the declared chain id, if any.
func (s *GenesisSpec) ChainIDValue() (uint64, bool) {
	if s == nil || s.ChainID == nil {
		return 0, false
	}
	return *s.ChainID, true
}

// Allocations returns the initial balances ordered by address so applying
// them always yields the same state root.
func (s *GenesisSpec) Allocations() []Allocation {
	if s == nil {
		return nil
	}
	out := make([]Allocation, len(s.allocations))
	for i, alloc := range s.allocations {
		out[i] = Allocation{Address: alloc.Address, Amount: new(uint256.Int).Set(alloc.Amount)}
	}
	return out
}

func (s *GenesisSpec) validate() error {
	seen := make(map[common.Address]string, len(s.Alloc))
	allocations := make([]Allocation, 0, len(s.Alloc))
	for addrStr, amountStr := range s.Alloc {
		addr, err := crypto.ParseAddress(strings.TrimSpace(addrStr))
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		if prev, ok := seen[addr]; ok {
			return fmt.Errorf("alloc %q: duplicates %q", addrStr, prev)
		}
		seen[addr] = addrStr
		amount, err := parseAmountString(amountStr)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		if amount.IsZero() {
			continue
		}
		allocations = append(allocations, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(allocations, func(i, j int) bool {
		return bytes.Compare(allocations[i].Address.Bytes(), allocations[j].Address.Bytes()) < 0
	})
	s.allocations = allocations
	return nil
}

func parseAmountString(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}
