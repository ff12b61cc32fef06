package crowdfund

import (
	"encoding/hex"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
)

const (
	EventTypeCampaignOpened      = "crowdfund.opened"
	EventTypeCampaignContributed = "crowdfund.contributed"
	EventTypeCampaignSettled     = "crowdfund.settled"
)

type crowdfundEvent struct {
	evt *types.Event
}

func (e crowdfundEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event exposes the canonical payload.
func (e crowdfundEvent) Event() *types.Event { return e.evt }

// NewOpenedEvent returns the payload emitted when a campaign is opened.
func NewOpenedEvent(campaign, vault common.Address, rec *Campaign) *types.Event {
	attrs := campaignAttributes(campaign, rec)
	attrs["vault"] = hex.EncodeToString(vault.Bytes())
	return &types.Event{Type: EventTypeCampaignOpened, Attributes: attrs}
}

// NewContributedEvent returns the payload emitted for an accepted
// contribution. A truncated contribution carries the amount originally
// offered in requested.
func NewContributedEvent(campaign, contributor common.Address, res *ContributeResult) *types.Event {
	attrs := map[string]string{
		"campaign":    hex.EncodeToString(campaign.Bytes()),
		"contributor": hex.EncodeToString(contributor.Bytes()),
	}
	if res != nil {
		attrs["requested"] = strconv.FormatUint(res.Requested, 10)
		attrs["counted"] = strconv.FormatUint(res.Counted, 10)
		attrs["committed"] = strconv.FormatUint(res.Committed, 10)
		attrs["remaining"] = strconv.FormatUint(res.Remaining, 10)
		attrs["truncated"] = strconv.FormatBool(res.Truncated())
	}
	return &types.Event{Type: EventTypeCampaignContributed, Attributes: attrs}
}

// NewSettledEvent returns the payload emitted when a campaign is settled.
func NewSettledEvent(campaign, beneficiary, rentRecipient common.Address, res *SettleResult) *types.Event {
	attrs := map[string]string{
		"campaign":      hex.EncodeToString(campaign.Bytes()),
		"beneficiary":   hex.EncodeToString(beneficiary.Bytes()),
		"rentRecipient": hex.EncodeToString(rentRecipient.Bytes()),
	}
	if res != nil {
		attrs["paid"] = strconv.FormatUint(res.Paid, 10)
		attrs["swept"] = strconv.FormatUint(res.Swept, 10)
		attrs["unaccounted"] = strconv.FormatUint(res.Unaccounted, 10)
	}
	return &types.Event{Type: EventTypeCampaignSettled, Attributes: attrs}
}

func campaignAttributes(campaign common.Address, rec *Campaign) map[string]string {
	attrs := map[string]string{"campaign": hex.EncodeToString(campaign.Bytes())}
	if rec == nil {
		return attrs
	}
	attrs["opener"] = hex.EncodeToString(rec.Opener.Bytes())
	attrs["beneficiary"] = hex.EncodeToString(rec.Beneficiary.Bytes())
	attrs["target"] = strconv.FormatUint(rec.Target, 10)
	attrs["committed"] = strconv.FormatUint(rec.Committed, 10)
	attrs["discriminator"] = strconv.FormatUint(rec.Discriminator, 10)
	attrs["finalized"] = strconv.FormatBool(rec.Finalized)
	return attrs
}
