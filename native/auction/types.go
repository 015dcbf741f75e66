package auction

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Auction is the live record for one NFT under competitive-bid settlement.
// Amount is denominated in ETH pool shares and is escrowed in the auction
// vault for whichever bidder currently leads.
type Auction struct {
	Collection common.Address `json:"collection"`
	TokenID    uint64         `json:"tokenId"`
	Borrower   common.Address `json:"borrower"`
	Bidder     common.Address `json:"bidder"`
	Amount     *big.Int       `json:"amount"`
	StartTime  int64          `json:"startTime"`
	EndTime    int64          `json:"endTime"`
}

// Clone returns a deep copy of the auction record.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Amount != nil {
		clone.Amount = new(big.Int).Set(a.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
