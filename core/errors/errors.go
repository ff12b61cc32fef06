package errors

import (
	stderrors "errors"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/native/bank"
	"github.com/AndreyBrytkov/cowdfunding/native/crowdfund"
)

var (
	ErrInvalidSignature = stderrors.New("ledger: invalid transaction signature")
	ErrMissingSignature = stderrors.New("ledger: account flagged as signer did not sign")
	ErrChainIDMismatch  = stderrors.New("ledger: chain id mismatch")
	ErrNonceMismatch    = stderrors.New("ledger: nonce mismatch")
	ErrUnknownProgram   = stderrors.New("ledger: unknown program")
	ErrCommitFailed     = stderrors.New("ledger: failed to apply staged changes")
)

// CodeOK is reported for requests that were applied.
const CodeOK = "ok"

var codes = []struct {
	err  error
	code string
}{
	// Wrapped errors may match several sentinels; the first match wins, so
	// the more specific owner error precedes address_mismatch.
	{crowdfund.ErrInvalidAccountOwner, "invalid_account_owner"},
	{crowdfund.ErrInvalidTarget, "invalid_target"},
	{crowdfund.ErrInvalidAmount, "invalid_amount"},
	{crowdfund.ErrCampaignFinalized, "campaign_finalized"},
	{crowdfund.ErrTargetReached, "target_reached"},
	{crowdfund.ErrNoFundsToSettle, "no_funds_to_settle"},
	{crowdfund.ErrUnauthorized, "unauthorized"},
	{crowdfund.ErrAddressMismatch, "address_mismatch"},
	{crowdfund.ErrAddressCollision, "address_collision"},
	{crowdfund.ErrMathOverflow, "math_overflow"},
	{crowdfund.ErrCampaignNotFound, "campaign_not_found"},
	{crowdfund.ErrVaultUnderfunded, "vault_underfunded"},
	{crowdfund.ErrInvalidRecord, "invalid_record"},
	{crowdfund.ErrInvalidInstruction, "invalid_instruction"},
	{crowdfund.ErrAccountLayout, "account_layout"},
	{bank.ErrInsufficientFunds, "insufficient_funds"},
	{bank.ErrAccountNotFound, "account_not_found"},
	{bank.ErrNotSystemAccount, "not_system_account"},
	{bank.ErrMissingAuthority, "missing_authority"},
	{bank.ErrBalanceOverflow, "math_overflow"},
	{ErrInvalidSignature, "invalid_signature"},
	{types.ErrMissingSignature, "invalid_signature"},
	{ErrMissingSignature, "missing_signature"},
	{ErrChainIDMismatch, "chain_id_mismatch"},
	{ErrNonceMismatch, "nonce_mismatch"},
	{ErrUnknownProgram, "unknown_program"},
}

// Code maps err to a stable machine-readable code. Unrecognised errors map to
// "internal".
func Code(err error) string {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if stderrors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// IsDomain reports whether err rejected the request on its merits, as opposed
// to a malformed or unauthenticated submission or an internal failure.
func IsDomain(err error) bool {
	switch Code(err) {
	case CodeOK, "internal", "invalid_signature", "missing_signature", "invalid_instruction", "account_layout", "unknown_program", "chain_id_mismatch":
		return false
	default:
		return true
	}
}
