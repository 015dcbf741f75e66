// Package oracle provides the settable price source used by deployments and
// tests. Prices are 1e18 mantissa values set by an administrator; the core
// treats them as untrusted data and re-reads them on every valuation.
package oracle

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrPriceNotSet is returned when no price has been published for a market.
var ErrPriceNotSet = errors.New("oracle: price not set")

// Simple is an in-memory price oracle with per-market underlying and NFT
// floor prices. Safe for concurrent use.
type Simple struct {
	mu         sync.RWMutex
	underlying map[common.Address]*big.Int
	nft        map[common.Address]*big.Int
}

// NewSimple constructs an empty oracle.
func NewSimple() *Simple {
	return &Simple{
		underlying: make(map[common.Address]*big.Int),
		nft:        make(map[common.Address]*big.Int),
	}
}

// SetUnderlyingPrice publishes the price for a fungible market's underlying.
func (o *Simple) SetUnderlyingPrice(market common.Address, price *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.underlying[market] = clone(price)
}

// SetNftPrice publishes the floor price for an NFT market.
func (o *Simple) SetNftPrice(market common.Address, price *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nft[market] = clone(price)
}

// GetUnderlyingPrice implements the registry PriceSource interface.
func (o *Simple) GetUnderlyingPrice(market common.Address) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.underlying[market]
	if !ok {
		return nil, ErrPriceNotSet
	}
	return clone(price), nil
}

// GetNftPrice implements the registry PriceSource interface.
func (o *Simple) GetNftPrice(market common.Address) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.nft[market]
	if !ok {
		return nil, ErrPriceNotSet
	}
	return clone(price), nil
}

func clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
