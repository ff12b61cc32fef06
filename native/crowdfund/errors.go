package crowdfund

import "errors"

var (
	ErrInvalidTarget       = errors.New("crowdfund: target must be greater than zero")
	ErrInvalidAmount       = errors.New("crowdfund: amount must be greater than zero")
	ErrCampaignFinalized   = errors.New("crowdfund: campaign already finalized")
	ErrTargetReached       = errors.New("crowdfund: campaign target already reached")
	ErrNoFundsToSettle     = errors.New("crowdfund: no committed funds to settle")
	ErrUnauthorized        = errors.New("crowdfund: unauthorized")
	ErrAddressMismatch     = errors.New("crowdfund: account address does not match derivation")
	ErrAddressCollision    = errors.New("crowdfund: derived address already in use")
	ErrMathOverflow        = errors.New("crowdfund: math overflow")
	ErrCampaignNotFound    = errors.New("crowdfund: campaign not found")
	ErrVaultUnderfunded    = errors.New("crowdfund: vault balance below committed funds")
	ErrInvalidRecord       = errors.New("crowdfund: invalid campaign record")
	ErrInvalidAccountOwner = errors.New("crowdfund: account not owned by the crowdfund program")
	ErrInvalidInstruction  = errors.New("crowdfund: invalid instruction data")
	ErrAccountLayout       = errors.New("crowdfund: account list does not match instruction layout")

	errNilState = errors.New("crowdfund engine: state not configured")
)
