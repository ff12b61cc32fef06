package crowdfund

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/native/bank"
)

func TestInstructionDecoding(t *testing.T) {
	inst, err := DecodeInstruction(EncodeOpen(7, 500))
	require.NoError(t, err)
	require.Equal(t, &Instruction{Kind: InstructionOpen, Discriminator: 7, Target: 500}, inst)

	inst, err = DecodeInstruction(EncodeContribute(42))
	require.NoError(t, err)
	require.Equal(t, &Instruction{Kind: InstructionContribute, Amount: 42}, inst)

	inst, err = DecodeInstruction(EncodeSettle())
	require.NoError(t, err)
	require.Equal(t, InstructionSettle, inst.Kind)
	require.Equal(t, InstructionSettle, Kind(EncodeSettle()))
}

func TestInstructionDecodingRejectsBadPayloads(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":            nil,
		"unknown selector": make([]byte, 8),
		"open short":       EncodeOpen(1, 2)[:20],
		"contribute long":  append(EncodeContribute(1), 0),
		"settle args":      append(EncodeSettle(), 1),
	} {
		_, err := DecodeInstruction(data)
		require.ErrorIs(t, err, ErrInvalidInstruction, name)
	}
}

func contributeMetas(campaign, vault common.Address) []types.AccountMeta {
	return []types.AccountMeta{
		{Address: donor, Signer: true, Writable: true},
		{Address: campaign, Writable: true},
		{Address: vault, Writable: true},
		{Address: bank.ProgramID},
	}
}

func TestCheckLayout(t *testing.T) {
	campaign, _ := CampaignAddress(opener, 1)
	vault, _ := VaultAddress(campaign)
	metas := contributeMetas(campaign, vault)
	require.NoError(t, CheckLayout(InstructionContribute, metas))

	unsigned := contributeMetas(campaign, vault)
	unsigned[0].Signer = false
	require.ErrorIs(t, CheckLayout(InstructionContribute, unsigned), ErrAccountLayout)

	readonly := contributeMetas(campaign, vault)
	readonly[2].Writable = false
	require.ErrorIs(t, CheckLayout(InstructionContribute, readonly), ErrAccountLayout)

	wrongProgram := contributeMetas(campaign, vault)
	wrongProgram[3].Address = ProgramID
	require.ErrorIs(t, CheckLayout(InstructionContribute, wrongProgram), ErrAccountLayout)

	require.ErrorIs(t, CheckLayout(InstructionContribute, metas[:3]), ErrAccountLayout)
}

func TestExecuteRunsScenario(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	campaign, _ := CampaignAddress(opener, 5)
	vault, _ := VaultAddress(campaign)

	out, err := engine.Execute(EncodeOpen(5, 500), []types.AccountMeta{
		{Address: opener, Signer: true, Writable: true},
		{Address: beneficiary},
		{Address: campaign, Writable: true},
		{Address: vault, Writable: true},
		{Address: bank.ProgramID},
	}, bank.Signers(opener))
	require.NoError(t, err)
	require.Equal(t, "open", out.Instruction)
	require.NotNil(t, out.Open)

	out, err = engine.Execute(EncodeContribute(100), contributeMetas(campaign, vault), bank.Signers(donor))
	require.NoError(t, err)
	require.Equal(t, uint64(100), out.ValueMoved())

	out, err = engine.Execute(EncodeContribute(450), contributeMetas(campaign, vault), bank.Signers(donor))
	require.NoError(t, err)
	require.Equal(t, uint64(400), out.Contribute.Counted)
	require.Equal(t, uint64(500), out.Contribute.Committed)
	require.Equal(t, bank.DefaultRent().MinimumBalance(0)+500, st.balance(vault))

	_, err = engine.Execute(EncodeContribute(0), contributeMetas(campaign, vault), bank.Signers(donor))
	require.ErrorIs(t, err, ErrInvalidAmount)

	settleMetas := []types.AccountMeta{
		{Address: beneficiary, Signer: true, Writable: true},
		{Address: opener, Writable: true},
		{Address: campaign, Writable: true},
		{Address: vault, Writable: true},
		{Address: bank.ProgramID},
	}
	out, err = engine.Execute(EncodeSettle(), settleMetas, bank.Signers(beneficiary))
	require.NoError(t, err)
	require.Equal(t, uint64(500), out.ValueMoved())

	_, err = engine.Execute(EncodeSettle(), settleMetas, bank.Signers(beneficiary))
	require.ErrorIs(t, err, ErrCampaignFinalized)
}
