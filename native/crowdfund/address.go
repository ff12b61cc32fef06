package crowdfund

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/AndreyBrytkov/cowdfunding/crypto"
)

// ProgramID owns every campaign record.
var ProgramID = common.BytesToAddress(ethcrypto.Keccak256([]byte("cowdfunding/crowdfund"))[12:])

const (
	campaignNamespace = "campaign"
	vaultNamespace    = "vault"
)

func campaignSeeds(opener common.Address, discriminator uint64) [][]byte {
	disc := make([]byte, 8)
	binary.LittleEndian.PutUint64(disc, discriminator)
	return [][]byte{[]byte(campaignNamespace), opener.Bytes(), disc}
}

func vaultSeeds(campaign common.Address) [][]byte {
	return [][]byte{[]byte(vaultNamespace), campaign.Bytes()}
}

// CampaignAddress derives the record address for the opener's campaign with
// the given discriminator.
func CampaignAddress(opener common.Address, discriminator uint64) (common.Address, uint8) {
	return mustFind(campaignSeeds(opener, discriminator))
}

// VaultAddress derives the value account that escrows contributions for the
// campaign.
func VaultAddress(campaign common.Address) (common.Address, uint8) {
	return mustFind(vaultSeeds(campaign))
}

// mustFind panics when no bump yields an off-curve address. The seeds used
// here are fixed width so the only failure left is exhausting all 256 bumps,
// which means the program id itself is unusable.
func mustFind(seeds [][]byte) (common.Address, uint8) {
	addr, bump, err := crypto.FindProgramAddress(ProgramID, seeds)
	if err != nil {
		panic(fmt.Sprintf("crowdfund: derive address: %v", err))
	}
	return addr, bump
}
