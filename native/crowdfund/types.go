package crowdfund

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// CampaignSize is the encoded length of a campaign record: account tag,
// opener, beneficiary, target, committed, discriminator and finalized flag.
const CampaignSize = 8 + common.AddressLength*2 + 8*3 + 1

var campaignTag = ethcrypto.Keccak256([]byte("account:Campaign"))[:8]

// Campaign is the persisted state of one funding campaign.
type Campaign struct {
	Opener        common.Address `json:"opener"`
	Beneficiary   common.Address `json:"beneficiary"`
	Target        uint64         `json:"target"`
	Committed     uint64         `json:"committed"`
	Discriminator uint64         `json:"discriminator"`
	Finalized     bool           `json:"finalized"`
}

// Remaining returns how much value the campaign still accepts.
func (c *Campaign) Remaining() uint64 {
	if c == nil || c.Committed >= c.Target {
		return 0
	}
	return c.Target - c.Committed
}

// Clone returns a copy of the record.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// MarshalBinary encodes the record into its fixed-width layout.
func (c *Campaign) MarshalBinary() ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil campaign", ErrInvalidRecord)
	}
	buf := make([]byte, CampaignSize)
	off := copy(buf, campaignTag)
	off += copy(buf[off:], c.Opener.Bytes())
	off += copy(buf[off:], c.Beneficiary.Bytes())
	binary.LittleEndian.PutUint64(buf[off:], c.Target)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], c.Committed)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], c.Discriminator)
	off += 8
	if c.Finalized {
		buf[off] = 1
	}
	return buf, nil
}

// UnmarshalBinary decodes a record, rejecting foreign tags and wrong lengths.
func (c *Campaign) UnmarshalBinary(data []byte) error {
	if len(data) != CampaignSize {
		return fmt.Errorf("%w: length %d", ErrInvalidRecord, len(data))
	}
	if !bytes.Equal(data[:8], campaignTag) {
		return fmt.Errorf("%w: unexpected account tag %x", ErrInvalidRecord, data[:8])
	}
	off := 8
	opener := common.BytesToAddress(data[off : off+common.AddressLength])
	off += common.AddressLength
	beneficiary := common.BytesToAddress(data[off : off+common.AddressLength])
	off += common.AddressLength
	target := binary.LittleEndian.Uint64(data[off:])
	off += 8
	committed := binary.LittleEndian.Uint64(data[off:])
	off += 8
	discriminator := binary.LittleEndian.Uint64(data[off:])
	off += 8
	var finalized bool
	switch data[off] {
	case 0:
	case 1:
		finalized = true
	default:
		return fmt.Errorf("%w: finalized flag %d", ErrInvalidRecord, data[off])
	}
	*c = Campaign{
		Opener:        opener,
		Beneficiary:   beneficiary,
		Target:        target,
		Committed:     committed,
		Discriminator: discriminator,
		Finalized:     finalized,
	}
	return nil
}

// OpenResult describes a newly opened campaign.
type OpenResult struct {
	Campaign common.Address `json:"campaign"`
	Vault    common.Address `json:"vault"`
	Record   *Campaign      `json:"record"`
	// Reserve is the total existence reserve paid by the opener.
	Reserve uint64 `json:"reserve"`
}

// ContributeResult reports how much of a contribution was counted.
type ContributeResult struct {
	Requested uint64 `json:"requested"`
	Counted   uint64 `json:"counted"`
	Committed uint64 `json:"committed"`
	Remaining uint64 `json:"remaining"`
}

// Truncated reports whether the contribution was reduced to fit the target.
func (r *ContributeResult) Truncated() bool {
	return r != nil && r.Counted < r.Requested
}

// SettleResult reports the value moved by a settlement. Swept covers the vault
// reserve and any value that reached the vault outside Contribute; Unaccounted
// is the latter part alone.
type SettleResult struct {
	Paid        uint64 `json:"paid"`
	Swept       uint64 `json:"swept"`
	Unaccounted uint64 `json:"unaccounted"`
}
