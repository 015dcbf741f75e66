package events

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/types"
)

const (
	TypeMarketListed  = "comptroller.market_listed"
	TypeMarketEntered = "comptroller.market_entered"
	TypeMarketExited  = "comptroller.market_exited"
)

// MarketListed is emitted when the owner lists a new market.
type MarketListed struct {
	Market common.Address
	Kind   string
}

func (MarketListed) EventType() string { return TypeMarketListed }

func (e MarketListed) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketListed,
		Attributes: map[string]string{
			"market": formatAddress(e.Market),
			"kind":   e.Kind,
		},
	}
}

// MarketEntered is emitted once per market newly added to an account's
// entered set.
type MarketEntered struct {
	Market  common.Address
	Account common.Address
}

func (MarketEntered) EventType() string { return TypeMarketEntered }

func (e MarketEntered) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketEntered,
		Attributes: map[string]string{
			"market":  formatAddress(e.Market),
			"account": formatAddress(e.Account),
		},
	}
}

// MarketExited is emitted when an account removes a market from its entered
// set.
type MarketExited struct {
	Market  common.Address
	Account common.Address
}

func (MarketExited) EventType() string { return TypeMarketExited }

func (e MarketExited) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketExited,
		Attributes: map[string]string{
			"market":  formatAddress(e.Market),
			"account": formatAddress(e.Account),
		},
	}
}
