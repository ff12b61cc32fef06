package crowdfund

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AndreyBrytkov/cowdfunding/crypto"
	"github.com/AndreyBrytkov/cowdfunding/native/bank"
)

// EscrowPayout is the vault's authority to release escrowed value. The engine
// mints it only from a vault address it re-derived itself, and the capability
// can do nothing but pay the beneficiary and sweep the vault shut.
type EscrowPayout struct {
	bank  *bank.Bank
	vault common.Address
	auth  bank.Authority
}

func (e *Engine) mintPayout(campaign, vault common.Address) (*EscrowPayout, error) {
	_, bump := VaultAddress(campaign)
	if err := crypto.VerifyProgramAddress(vault, ProgramID, vaultSeeds(campaign), bump); err != nil {
		return nil, fmt.Errorf("%w: vault: %w", ErrAddressMismatch, err)
	}
	auth, err := bank.ProgramSigner(ProgramID, vaultSeeds(campaign), bump)
	if err != nil {
		return nil, err
	}
	return &EscrowPayout{bank: e.bank, vault: vault, auth: auth}, nil
}

// Vault returns the account the payout draws from.
func (p *EscrowPayout) Vault() common.Address {
	if p == nil {
		return common.Address{}
	}
	return p.vault
}

func (p *EscrowPayout) pay(beneficiary common.Address, amount uint64) error {
	return p.bank.Transfer(p.vault, beneficiary, amount, p.auth)
}

// sweep moves the expected remainder to recipient and closes the vault. The
// close must find the vault empty; anything else means the balance moved
// after the settlement snapshot.
func (p *EscrowPayout) sweep(recipient common.Address, expected uint64) error {
	if err := p.bank.Transfer(p.vault, recipient, expected, p.auth); err != nil {
		return err
	}
	leftover, err := p.bank.Close(p.vault, recipient, p.auth)
	if err != nil {
		return err
	}
	if leftover != 0 {
		return fmt.Errorf("crowdfund: vault %s held %d beyond the settlement snapshot", p.vault.Hex(), leftover)
	}
	return nil
}
