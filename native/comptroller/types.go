package comptroller

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MarketKind distinguishes the two collateral representations the registry
// understands.
type MarketKind uint8

const (
	// MarketFungible denotes a pooled-share market (the ETH pool).
	MarketFungible MarketKind = iota + 1
	// MarketNonFungible denotes an NFT collateral market.
	MarketNonFungible
)

// String returns the canonical lowercase name for the market kind.
func (k MarketKind) String() string {
	switch k {
	case MarketFungible:
		return "fungible"
	case MarketNonFungible:
		return "nonfungible"
	default:
		return "unknown"
	}
}

// Valid reports whether the kind is within the supported range.
func (k MarketKind) Valid() bool {
	return k == MarketFungible || k == MarketNonFungible
}

// Market is the persistent registry record for a listed market.
type Market struct {
	Address             common.Address `json:"address"`
	Kind                MarketKind     `json:"kind"`
	Listed              bool           `json:"listed"`
	CollateralFactorBps uint64         `json:"collateralFactorBps"`
}

// Clone returns a deep copy of the market record.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// MarketView is the capability interface the registry uses to value an
// account's position in a market. The concrete variants form a closed set:
// the ETH pool engine and the NFT pool engine.
type MarketView interface {
	MarketAddress() common.Address
	// AccountSnapshot returns the account's collateral balance (pool shares
	// for fungible markets, token count for NFT markets), its outstanding
	// debt in underlying wei, and the current exchange rate mantissa.
	AccountSnapshot(account common.Address) (balance, debt, exchangeRate *big.Int, err error)
}

// PriceSource supplies oracle valuations. Prices are 1e18 mantissa values:
// per wei of underlying for fungible markets, per token for NFT markets. The
// registry treats the source as untrusted and rejects zero or missing prices
// rather than valuing positions with them.
type PriceSource interface {
	GetUnderlyingPrice(market common.Address) (*big.Int, error)
	GetNftPrice(market common.Address) (*big.Int, error)
}

// Liquidity is the result of an account liquidity calculation. At most one of
// the two fields is non-zero.
type Liquidity struct {
	Liquidity *big.Int
	Shortfall *big.Int
}
