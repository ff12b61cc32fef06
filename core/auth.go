package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "github.com/AndreyBrytkov/cowdfunding/core/errors"
	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/native/crowdfund"
)

// authorize recovers the transaction signer and checks the envelope: chain id,
// target program and that every account flagged as a signer is the recovered
// signer. Instruction-specific account rules are checked by the program.
func (l *Ledger) authorize(tx *types.Transaction) (common.Address, error) {
	if tx == nil {
		return common.Address{}, fmt.Errorf("%w: nil transaction", coreerrors.ErrInvalidSignature)
	}
	from, err := tx.From()
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", coreerrors.ErrInvalidSignature, err)
	}
	if tx.ChainID != l.chainID {
		return common.Address{}, fmt.Errorf("%w: got %d, want %d", coreerrors.ErrChainIDMismatch, tx.ChainID, l.chainID)
	}
	if tx.Program != crowdfund.ProgramID {
		return common.Address{}, fmt.Errorf("%w: %s", coreerrors.ErrUnknownProgram, tx.Program.Hex())
	}
	for i, meta := range tx.Accounts {
		if meta.Signer && meta.Address != from {
			return common.Address{}, fmt.Errorf("%w: account %d (%s)", coreerrors.ErrMissingSignature, i, meta.Address.Hex())
		}
	}
	return from, nil
}

// writeSet lists the accounts a request may modify: its writable accounts and
// the signer, whose nonce advances.
func writeSet(tx *types.Transaction, from common.Address) []common.Address {
	out := make([]common.Address, 0, len(tx.Accounts)+1)
	out = append(out, from)
	for _, meta := range tx.Accounts {
		if meta.Writable {
			out = append(out, meta.Address)
		}
	}
	return out
}
