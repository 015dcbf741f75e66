package events

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/types"
)

const (
	TypeNftMint   = "nftpool.mint"
	TypeNftRedeem = "nftpool.redeem"
)

// NftMint is emitted when an NFT enters pool custody and a claim token is
// minted to the depositor.
type NftMint struct {
	Market  common.Address
	Minter  common.Address
	TokenID uint64
}

func (NftMint) EventType() string { return TypeNftMint }

func (e NftMint) Event() *types.Event {
	return &types.Event{
		Type: TypeNftMint,
		Attributes: map[string]string{
			"market":  formatAddress(e.Market),
			"minter":  formatAddress(e.Minter),
			"tokenId": formatTokenID(e.TokenID),
		},
	}
}

// NftRedeem is emitted when a claim token is burned and the underlying NFT
// leaves custody, either back to the depositor or to an auction winner.
type NftRedeem struct {
	Market   common.Address
	Redeemer common.Address
	TokenID  uint64
}

func (NftRedeem) EventType() string { return TypeNftRedeem }

func (e NftRedeem) Event() *types.Event {
	return &types.Event{
		Type: TypeNftRedeem,
		Attributes: map[string]string{
			"market":   formatAddress(e.Market),
			"redeemer": formatAddress(e.Redeemer),
			"tokenId":  formatTokenID(e.TokenID),
		},
	}
}
