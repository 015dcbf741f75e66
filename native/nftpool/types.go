package nftpool

import "github.com/ethereum/go-ethereum/common"

// Claim records one deposited NFT: who can redeem it and whether it is
// locked in a liquidation auction.
type Claim struct {
	TokenID  uint64         `json:"tokenId"`
	Owner    common.Address `json:"owner"`
	Escrowed bool           `json:"escrowed"`
}

// Clone returns a copy of the claim.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
