package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/AndreyBrytkov/cowdfunding/core"
	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/crypto"
	"github.com/AndreyBrytkov/cowdfunding/native/crowdfund"
)

// AccountMetaJSON is the wire form of an account reference.
type AccountMetaJSON struct {
	Address  string `json:"address"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

// TransactionJSON is the wire form of a signed request. Addresses are bech32
// encoded; binary fields are 0x-prefixed hex.
type TransactionJSON struct {
	ChainID  uint64            `json:"chainId"`
	Nonce    uint64            `json:"nonce"`
	Program  string            `json:"program"`
	Accounts []AccountMetaJSON `json:"accounts"`
	Data     hexutil.Bytes     `json:"data"`
	R        *hexutil.Big      `json:"r"`
	S        *hexutil.Big      `json:"s"`
	V        *hexutil.Big      `json:"v"`
}

// EncodeTransaction renders tx in wire form.
func EncodeTransaction(tx *types.Transaction) TransactionJSON {
	out := TransactionJSON{
		ChainID:  tx.ChainID,
		Nonce:    tx.Nonce,
		Program:  bech32(tx.Program),
		Accounts: make([]AccountMetaJSON, len(tx.Accounts)),
		Data:     hexutil.Bytes(tx.Data),
		R:        (*hexutil.Big)(tx.R),
		S:        (*hexutil.Big)(tx.S),
		V:        (*hexutil.Big)(tx.V),
	}
	for i, meta := range tx.Accounts {
		out.Accounts[i] = AccountMetaJSON{Address: bech32(meta.Address), Signer: meta.Signer, Writable: meta.Writable}
	}
	return out
}

// Decode converts the wire form into a ledger transaction.
func (t TransactionJSON) Decode() (*types.Transaction, error) {
	program, err := parseAddress(t.Program)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	if t.R == nil || t.S == nil || t.V == nil {
		return nil, fmt.Errorf("signature fields r, s and v are required")
	}
	tx := &types.Transaction{
		ChainID:  t.ChainID,
		Nonce:    t.Nonce,
		Program:  program,
		Accounts: make([]types.AccountMeta, len(t.Accounts)),
		Data:     common.CopyBytes(t.Data),
		R:        new(big.Int).Set(t.R.ToInt()),
		S:        new(big.Int).Set(t.S.ToInt()),
		V:        new(big.Int).Set(t.V.ToInt()),
	}
	for i, meta := range t.Accounts {
		addr, err := parseAddress(meta.Address)
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		tx.Accounts[i] = types.AccountMeta{Address: addr, Signer: meta.Signer, Writable: meta.Writable}
	}
	return tx, nil
}

type receiptJSON struct {
	Code    string             `json:"code"`
	TxHash  common.Hash        `json:"txHash"`
	Signer  string             `json:"signer"`
	Nonce   uint64             `json:"nonce"`
	Outcome *crowdfund.Outcome `json:"outcome"`
	Events  []types.Event      `json:"events"`
}

func encodeReceipt(code string, r *core.Receipt) receiptJSON {
	out := receiptJSON{
		Code:    code,
		TxHash:  r.TxHash,
		Signer:  bech32(r.Signer),
		Nonce:   r.Nonce,
		Outcome: r.Outcome,
		Events:  r.Events,
	}
	if out.Events == nil {
		out.Events = []types.Event{}
	}
	return out
}

type accountJSON struct {
	Address string        `json:"address"`
	Balance string        `json:"balance"`
	Owner   string        `json:"owner"`
	Nonce   uint64        `json:"nonce"`
	Data    hexutil.Bytes `json:"data,omitempty"`
}

func encodeAccount(addr common.Address, acc *types.Account) accountJSON {
	return accountJSON{
		Address: bech32(addr),
		Balance: acc.BalanceOrZero().Dec(),
		Owner:   bech32(acc.Owner),
		Nonce:   acc.Nonce,
		Data:    hexutil.Bytes(acc.Data),
	}
}

type campaignJSON struct {
	Address       string `json:"address"`
	Opener        string `json:"opener"`
	Beneficiary   string `json:"beneficiary"`
	Target        uint64 `json:"target"`
	Committed     uint64 `json:"committed"`
	Remaining     uint64 `json:"remaining"`
	Discriminator uint64 `json:"discriminator"`
	Finalized     bool   `json:"finalized"`
	Vault         string `json:"vault"`
	VaultBalance  string `json:"vaultBalance"`
}

func encodeCampaign(addr common.Address, rec *crowdfund.Campaign, vault common.Address, balance *uint256.Int) campaignJSON {
	if balance == nil {
		balance = new(uint256.Int)
	}
	return campaignJSON{
		Address:       bech32(addr),
		Opener:        bech32(rec.Opener),
		Beneficiary:   bech32(rec.Beneficiary),
		Target:        rec.Target,
		Committed:     rec.Committed,
		Remaining:     rec.Remaining(),
		Discriminator: rec.Discriminator,
		Finalized:     rec.Finalized,
		Vault:         bech32(vault),
		VaultBalance:  balance.Dec(),
	}
}

func bech32(addr common.Address) string {
	return crypto.FromCommon(addr).String()
}

func parseAddress(s string) (common.Address, error) {
	return crypto.ParseAddress(strings.TrimSpace(s))
}
