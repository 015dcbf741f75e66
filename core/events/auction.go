package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/types"
)

const (
	TypeAuctionStart   = "auction.started"
	TypeAuctionBid     = "auction.bid"
	TypeAuctionClaimed = "auction.claimed"
)

// AuctionStart is emitted when an NFT liquidation opens a bidding window.
type AuctionStart struct {
	Collateral common.Address
	TokenID    uint64
	Bidder     common.Address
	Amount     *big.Int
	EndTime    int64
}

func (AuctionStart) EventType() string { return TypeAuctionStart }

func (e AuctionStart) Event() *types.Event {
	return &types.Event{
		Type: TypeAuctionStart,
		Attributes: map[string]string{
			"collateral": formatAddress(e.Collateral),
			"tokenId":    formatTokenID(e.TokenID),
			"bidder":     formatAddress(e.Bidder),
			"amount":     formatAmount(e.Amount),
			"endTime":    strconv.FormatInt(e.EndTime, 10),
		},
	}
}

// AuctionBid is emitted when a higher bid replaces the current one.
type AuctionBid struct {
	Collateral common.Address
	TokenID    uint64
	Bidder     common.Address
	Amount     *big.Int
}

func (AuctionBid) EventType() string { return TypeAuctionBid }

func (e AuctionBid) Event() *types.Event {
	return &types.Event{
		Type: TypeAuctionBid,
		Attributes: map[string]string{
			"collateral": formatAddress(e.Collateral),
			"tokenId":    formatTokenID(e.TokenID),
			"bidder":     formatAddress(e.Bidder),
			"amount":     formatAmount(e.Amount),
		},
	}
}

// AuctionClaimed is emitted when an expired auction settles and the record is
// deleted.
type AuctionClaimed struct {
	Collateral common.Address
	TokenID    uint64
	Winner     common.Address
	Amount     *big.Int
}

func (AuctionClaimed) EventType() string { return TypeAuctionClaimed }

func (e AuctionClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeAuctionClaimed,
		Attributes: map[string]string{
			"collateral": formatAddress(e.Collateral),
			"tokenId":    formatTokenID(e.TokenID),
			"winner":     formatAddress(e.Winner),
			"amount":     formatAmount(e.Amount),
		},
	}
}
