package crowdfund

import (
	"bytes"
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/native/bank"
)

// InstructionKind enumerates the campaign transitions.
type InstructionKind uint8

const (
	InstructionOpen InstructionKind = iota + 1
	InstructionContribute
	InstructionSettle
)

const selectorLength = 8

var (
	selectorOpen       = selector("open")
	selectorContribute = selector("contribute")
	selectorSettle     = selector("settle")
)

func selector(name string) []byte {
	return ethcrypto.Keccak256([]byte("instruction:" + name))[:selectorLength]
}

// String returns the instruction name used in selectors, logs and metrics.
func (k InstructionKind) String() string {
	switch k {
	case InstructionOpen:
		return "open"
	case InstructionContribute:
		return "contribute"
	case InstructionSettle:
		return "settle"
	default:
		return "unknown"
	}
}

// Instruction is a decoded request payload.
type Instruction struct {
	Kind          InstructionKind
	Discriminator uint64
	Target        uint64
	Amount        uint64
}

// EncodeOpen returns the payload of an Open request.
func EncodeOpen(discriminator, target uint64) []byte {
	buf := make([]byte, selectorLength+16)
	copy(buf, selectorOpen)
	binary.LittleEndian.PutUint64(buf[selectorLength:], discriminator)
	binary.LittleEndian.PutUint64(buf[selectorLength+8:], target)
	return buf
}

// EncodeContribute returns the payload of a Contribute request.
func EncodeContribute(amount uint64) []byte {
	buf := make([]byte, selectorLength+8)
	copy(buf, selectorContribute)
	binary.LittleEndian.PutUint64(buf[selectorLength:], amount)
	return buf
}

// EncodeSettle returns the payload of a Settle request.
func EncodeSettle() []byte {
	return append([]byte(nil), selectorSettle...)
}

// DecodeInstruction parses a request payload. Arguments are fixed width, so
// any missing or trailing byte is rejected.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) < selectorLength {
		return nil, fmt.Errorf("%w: payload shorter than selector", ErrInvalidInstruction)
	}
	sel, args := data[:selectorLength], data[selectorLength:]
	switch {
	case bytes.Equal(sel, selectorOpen):
		if len(args) != 16 {
			return nil, fmt.Errorf("%w: open expects 16 argument bytes, got %d", ErrInvalidInstruction, len(args))
		}
		return &Instruction{
			Kind:          InstructionOpen,
			Discriminator: binary.LittleEndian.Uint64(args),
			Target:        binary.LittleEndian.Uint64(args[8:]),
		}, nil
	case bytes.Equal(sel, selectorContribute):
		if len(args) != 8 {
			return nil, fmt.Errorf("%w: contribute expects 8 argument bytes, got %d", ErrInvalidInstruction, len(args))
		}
		return &Instruction{Kind: InstructionContribute, Amount: binary.LittleEndian.Uint64(args)}, nil
	case bytes.Equal(sel, selectorSettle):
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: settle takes no arguments, got %d bytes", ErrInvalidInstruction, len(args))
		}
		return &Instruction{Kind: InstructionSettle}, nil
	default:
		return nil, fmt.Errorf("%w: unknown selector %x", ErrInvalidInstruction, sel)
	}
}

// AccountSpec describes one positional account of an instruction.
type AccountSpec struct {
	Name     string
	Signer   bool
	Writable bool
}

var layouts = map[InstructionKind][]AccountSpec{
	InstructionOpen: {
		{Name: "opener", Signer: true, Writable: true},
		{Name: "beneficiary"},
		{Name: "campaign", Writable: true},
		{Name: "vault", Writable: true},
		{Name: "bankProgram"},
	},
	InstructionContribute: {
		{Name: "contributor", Signer: true, Writable: true},
		{Name: "campaign", Writable: true},
		{Name: "vault", Writable: true},
		{Name: "bankProgram"},
	},
	InstructionSettle: {
		{Name: "beneficiary", Signer: true, Writable: true},
		{Name: "rentRecipient", Writable: true},
		{Name: "campaign", Writable: true},
		{Name: "vault", Writable: true},
		{Name: "bankProgram"},
	},
}

// CheckLayout verifies count, privileges and the bank program reference of
// the supplied accounts. Required signer and writable flags must be present;
// writable flags on accounts the instruction only reads are rejected too.
func CheckLayout(kind InstructionKind, metas []types.AccountMeta) error {
	layout, ok := layouts[kind]
	if !ok {
		return fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstruction, kind)
	}
	if len(metas) != len(layout) {
		return fmt.Errorf("%w: %s expects %d accounts, got %d", ErrAccountLayout, kind, len(layout), len(metas))
	}
	for i, spec := range layout {
		meta := metas[i]
		if spec.Signer && !meta.Signer {
			return fmt.Errorf("%w: %s account %s must sign", ErrAccountLayout, kind, spec.Name)
		}
		if spec.Writable != meta.Writable {
			return fmt.Errorf("%w: %s account %s writable=%t, want %t", ErrAccountLayout, kind, spec.Name, meta.Writable, spec.Writable)
		}
	}
	if program := metas[len(metas)-1].Address; program != bank.ProgramID {
		return fmt.Errorf("%w: %s is not the bank program", ErrAccountLayout, program.Hex())
	}
	return nil
}

// Outcome is the result of an executed instruction. Exactly one of the result
// fields is set, matching Instruction.
type Outcome struct {
	Instruction string            `json:"instruction"`
	Open        *OpenResult       `json:"open,omitempty"`
	Contribute  *ContributeResult `json:"contribute,omitempty"`
	Settle      *SettleResult     `json:"settle,omitempty"`
}

// ValueMoved returns the value the instruction moved toward its purpose: the
// counted contribution or the settlement payout.
func (o *Outcome) ValueMoved() uint64 {
	switch {
	case o == nil:
		return 0
	case o.Contribute != nil:
		return o.Contribute.Counted
	case o.Settle != nil:
		return o.Settle.Paid
	default:
		return 0
	}
}

// Execute decodes data, checks the account layout and runs the instruction.
// signers must already reflect verified signatures.
func (e *Engine) Execute(data []byte, metas []types.AccountMeta, signers bank.Authority) (*Outcome, error) {
	inst, err := DecodeInstruction(data)
	if err != nil {
		return nil, err
	}
	if err := CheckLayout(inst.Kind, metas); err != nil {
		return nil, err
	}
	out := &Outcome{Instruction: inst.Kind.String()}
	switch inst.Kind {
	case InstructionOpen:
		out.Open, err = e.Open(OpenParams{
			Opener:        metas[0].Address,
			Beneficiary:   metas[1].Address,
			Campaign:      metas[2].Address,
			Vault:         metas[3].Address,
			Discriminator: inst.Discriminator,
			Target:        inst.Target,
		}, signers)
	case InstructionContribute:
		out.Contribute, err = e.Contribute(ContributeParams{
			Contributor: metas[0].Address,
			Campaign:    metas[1].Address,
			Vault:       metas[2].Address,
			Amount:      inst.Amount,
		}, signers)
	case InstructionSettle:
		out.Settle, err = e.Settle(SettleParams{
			Beneficiary:   metas[0].Address,
			RentRecipient: metas[1].Address,
			Campaign:      metas[2].Address,
			Vault:         metas[3].Address,
		}, signers)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Kind returns the instruction kind encoded in data without validating its
// arguments.
func Kind(data []byte) InstructionKind {
	if len(data) < selectorLength {
		return 0
	}
	switch sel := data[:selectorLength]; {
	case bytes.Equal(sel, selectorOpen):
		return InstructionOpen
	case bytes.Equal(sel, selectorContribute):
		return InstructionContribute
	case bytes.Equal(sel, selectorSettle):
		return InstructionSettle
	}
	return 0
}
