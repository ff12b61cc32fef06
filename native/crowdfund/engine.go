package crowdfund

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/AndreyBrytkov/cowdfunding/core/events"
	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/native/bank"
)

// OpenParams names the accounts and arguments of an Open request.
type OpenParams struct {
	Opener        common.Address
	Beneficiary   common.Address
	Campaign      common.Address
	Vault         common.Address
	Discriminator uint64
	Target        uint64
}

// ContributeParams names the accounts and arguments of a Contribute request.
type ContributeParams struct {
	Contributor common.Address
	Campaign    common.Address
	Vault       common.Address
	Amount      uint64
}

// SettleParams names the accounts of a Settle request.
type SettleParams struct {
	Beneficiary   common.Address
	RentRecipient common.Address
	Campaign      common.Address
	Vault         common.Address
}

// Engine executes campaign transitions against a state backend. Every check
// runs before the first write, and callers hand the engine a per-request
// journal so a failure part way through discards all staged writes.
type Engine struct {
	state   bank.State
	bank    *bank.Bank
	rent    bank.Rent
	emitter events.Emitter
}

// NewEngine creates an engine charging rent with the supplied schedule.
func NewEngine(rent bank.Rent) *Engine {
	return &Engine{rent: rent, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state bank.State) {
	e.state = state
	e.bank = bank.New(state, e.rent)
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(crowdfundEvent{evt: event})
}

// Open creates the campaign record and its empty vault. The opener must sign
// and pays the existence reserve of both accounts.
func (e *Engine) Open(p OpenParams, signers bank.Authority) (*OpenResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if p.Target == 0 {
		return nil, ErrInvalidTarget
	}
	if !bank.Authorizes(signers, p.Opener) {
		return nil, fmt.Errorf("%w: opener %s did not sign", ErrUnauthorized, p.Opener.Hex())
	}
	campaign, campaignBump := CampaignAddress(p.Opener, p.Discriminator)
	if campaign != p.Campaign {
		return nil, fmt.Errorf("%w: campaign %s", ErrAddressMismatch, p.Campaign.Hex())
	}
	vault, vaultBump := VaultAddress(campaign)
	if vault != p.Vault {
		return nil, fmt.Errorf("%w: vault %s", ErrAddressMismatch, p.Vault.Hex())
	}
	for _, addr := range []common.Address{campaign, vault} {
		exists, err := e.bank.Exists(addr)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrAddressCollision, addr.Hex())
		}
	}

	campaignSigner, err := bank.ProgramSigner(ProgramID, campaignSeeds(p.Opener, p.Discriminator), campaignBump)
	if err != nil {
		return nil, err
	}
	vaultSigner, err := bank.ProgramSigner(ProgramID, vaultSeeds(campaign), vaultBump)
	if err != nil {
		return nil, err
	}

	rec := &Campaign{
		Opener:        p.Opener,
		Beneficiary:   p.Beneficiary,
		Target:        p.Target,
		Discriminator: p.Discriminator,
	}
	if err := e.createAccount(p.Opener, campaign, CampaignSize, ProgramID, bank.Combine(signers, campaignSigner)); err != nil {
		return nil, err
	}
	if err := e.storeCampaign(campaign, rec); err != nil {
		return nil, err
	}
	if err := e.createAccount(p.Opener, vault, 0, bank.ProgramID, bank.Combine(signers, vaultSigner)); err != nil {
		return nil, err
	}

	e.emit(NewOpenedEvent(campaign, vault, rec))
	return &OpenResult{
		Campaign: campaign,
		Vault:    vault,
		Record:   rec.Clone(),
		Reserve:  e.rent.MinimumBalance(CampaignSize) + e.rent.MinimumBalance(0),
	}, nil
}

// Contribute moves up to the campaign's remaining capacity from the
// contributor into the vault. An offer larger than the remainder is truncated;
// an offer against a full campaign is rejected.
func (e *Engine) Contribute(p ContributeParams, signers bank.Authority) (*ContributeResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if p.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if !bank.Authorizes(signers, p.Contributor) {
		return nil, fmt.Errorf("%w: contributor %s did not sign", ErrUnauthorized, p.Contributor.Hex())
	}
	rec, err := e.loadVerifiedCampaign(p.Campaign)
	if err != nil {
		return nil, err
	}
	vault, _ := VaultAddress(p.Campaign)
	if vault != p.Vault {
		return nil, fmt.Errorf("%w: vault %s", ErrAddressMismatch, p.Vault.Hex())
	}
	if rec.Finalized {
		return nil, ErrCampaignFinalized
	}
	if err := e.requireVault(vault); err != nil {
		return nil, err
	}
	if rec.Committed > rec.Target {
		return nil, fmt.Errorf("%w: committed %d exceeds target %d", ErrMathOverflow, rec.Committed, rec.Target)
	}
	remaining := rec.Target - rec.Committed
	if remaining == 0 {
		return nil, ErrTargetReached
	}
	counted := min(p.Amount, remaining)
	committed := rec.Committed + counted
	if committed < rec.Committed {
		return nil, ErrMathOverflow
	}

	if err := e.bank.Transfer(p.Contributor, vault, counted, signers); err != nil {
		return nil, err
	}
	rec.Committed = committed
	if err := e.storeCampaign(p.Campaign, rec); err != nil {
		return nil, err
	}

	res := &ContributeResult{
		Requested: p.Amount,
		Counted:   counted,
		Committed: committed,
		Remaining: rec.Remaining(),
	}
	e.emit(NewContributedEvent(p.Campaign, p.Contributor, res))
	return res, nil
}

// Settle pays exactly the committed value to the beneficiary, sweeps the rest
// of the vault to the rent recipient, closes the vault and finalizes the
// record. Both transfers are computed from one balance snapshot taken before
// either moves value.
func (e *Engine) Settle(p SettleParams, signers bank.Authority) (*SettleResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rec, err := e.loadVerifiedCampaign(p.Campaign)
	if err != nil {
		return nil, err
	}
	payout, err := e.mintPayout(p.Campaign, p.Vault)
	if err != nil {
		return nil, err
	}
	if rec.Finalized {
		return nil, ErrCampaignFinalized
	}
	if p.Beneficiary != rec.Beneficiary {
		return nil, fmt.Errorf("%w: %s is not the campaign beneficiary", ErrUnauthorized, p.Beneficiary.Hex())
	}
	if !bank.Authorizes(signers, p.Beneficiary) {
		return nil, fmt.Errorf("%w: beneficiary %s did not sign", ErrUnauthorized, p.Beneficiary.Hex())
	}
	if p.RentRecipient != rec.Opener {
		return nil, fmt.Errorf("%w: rent recipient %s is not the campaign opener", ErrUnauthorized, p.RentRecipient.Hex())
	}
	if rec.Committed == 0 {
		return nil, ErrNoFundsToSettle
	}

	snapshot, err := e.vaultBalance(payout.Vault())
	if err != nil {
		return nil, err
	}
	if snapshot < rec.Committed {
		return nil, fmt.Errorf("%w: vault holds %d, committed %d", ErrVaultUnderfunded, snapshot, rec.Committed)
	}
	paid := rec.Committed
	swept := snapshot - paid

	if err := payout.pay(p.Beneficiary, paid); err != nil {
		return nil, err
	}
	if err := payout.sweep(p.RentRecipient, swept); err != nil {
		return nil, err
	}
	rec.Committed = 0
	rec.Finalized = true
	if err := e.storeCampaign(p.Campaign, rec); err != nil {
		return nil, err
	}

	res := &SettleResult{Paid: paid, Swept: swept}
	if reserve := e.rent.MinimumBalance(0); swept > reserve {
		res.Unaccounted = swept - reserve
	}
	e.emit(NewSettledEvent(p.Campaign, p.Beneficiary, p.RentRecipient, res))
	return res, nil
}

// Campaign returns the decoded record stored at addr.
func (e *Engine) Campaign(addr common.Address) (*Campaign, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	_, rec, err := e.loadCampaign(addr)
	return rec, err
}

// VaultBalance returns the balance of the campaign's vault, zero once the
// vault has been closed.
func (e *Engine) VaultBalance(campaign common.Address) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vault, _ := VaultAddress(campaign)
	bal, err := e.bank.Balance(vault)
	if errors.Is(err, bank.ErrAccountNotFound) {
		return new(uint256.Int), nil
	}
	return bal, err
}

func (e *Engine) createAccount(payer, addr common.Address, space int, owner common.Address, auth bank.Authority) error {
	err := e.bank.CreateAccount(payer, addr, space, owner, auth)
	if errors.Is(err, bank.ErrAccountExists) {
		return fmt.Errorf("%w: %s", ErrAddressCollision, addr.Hex())
	}
	return err
}

func (e *Engine) loadCampaign(addr common.Address) (*types.Account, *Campaign, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, nil, err
	}
	if acc == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, addr.Hex())
	}
	if acc.Owner != ProgramID {
		return nil, nil, fmt.Errorf("%w: %w: %s", ErrAddressMismatch, ErrInvalidAccountOwner, addr.Hex())
	}
	rec := new(Campaign)
	if err := rec.UnmarshalBinary(acc.Data); err != nil {
		return nil, nil, err
	}
	return acc, rec, nil
}

// loadVerifiedCampaign loads the record and re-derives its address from the
// stored opener and discriminator.
func (e *Engine) loadVerifiedCampaign(addr common.Address) (*Campaign, error) {
	_, rec, err := e.loadCampaign(addr)
	if err != nil {
		return nil, err
	}
	derived, _ := CampaignAddress(rec.Opener, rec.Discriminator)
	if derived != addr {
		return nil, fmt.Errorf("%w: campaign %s", ErrAddressMismatch, addr.Hex())
	}
	return rec, nil
}

func (e *Engine) storeCampaign(addr common.Address, rec *Campaign) error {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("%w: %s", ErrCampaignNotFound, addr.Hex())
	}
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	acc.Data = data
	return e.state.PutAccount(addr, acc)
}

func (e *Engine) requireVault(vault common.Address) error {
	acc, err := e.state.GetAccount(vault)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("%w: vault %s does not exist", ErrAddressMismatch, vault.Hex())
	}
	if !bank.IsSystemAccount(acc) {
		return fmt.Errorf("%w: vault %s is not a plain balance account", ErrAddressMismatch, vault.Hex())
	}
	return nil
}

func (e *Engine) vaultBalance(vault common.Address) (uint64, error) {
	if err := e.requireVault(vault); err != nil {
		return 0, err
	}
	bal, err := e.bank.Balance(vault)
	if err != nil {
		return 0, err
	}
	if !bal.IsUint64() {
		return 0, fmt.Errorf("%w: vault balance %s", ErrMathOverflow, bal.Dec())
	}
	return bal.Uint64(), nil
}
