package comptroller

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/events"
)

var (
	basisPoints = big.NewInt(10_000)
	expScale    = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

type registryState interface {
	GetMarket(addr common.Address) (*Market, error)
	PutMarket(market *Market) error
	ListMarkets() ([]common.Address, error)
	GetEnteredMarkets(account common.Address) ([]common.Address, error)
	PutEnteredMarkets(account common.Address, markets []common.Address) error
}

// Comptroller owns the market registry and the account liquidity
// calculation. It is injected by reference into the pool engines; every
// borrow, redeem and liquidation authorization flows through it.
type Comptroller struct {
	state                   registryState
	owner                   common.Address
	oracle                  PriceSource
	views                   map[common.Address]MarketView
	emitter                 events.Emitter
	closeFactorBps          uint64
	liquidationIncentiveBps uint64
}

// New constructs a comptroller owned by the supplied address. The oracle is
// consulted on every liquidity calculation and never cached.
func New(owner common.Address, oracle PriceSource) *Comptroller {
	return &Comptroller{
		owner:          owner,
		oracle:         oracle,
		views:          make(map[common.Address]MarketView),
		emitter:        events.NoopEmitter{},
		closeFactorBps: 5000,
	}
}

// SetState wires the registry to the external persistence layer.
func (c *Comptroller) SetState(state registryState) { c.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (c *Comptroller) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

func (c *Comptroller) emit(evt events.Event) {
	if c == nil || c.emitter == nil {
		return
	}
	c.emitter.Emit(evt)
}

// Owner returns the registry owner address.
func (c *Comptroller) Owner() common.Address { return c.owner }

// CloseFactorBps returns the maximum fraction of a borrower's debt repayable
// in a single liquidation, in basis points.
func (c *Comptroller) CloseFactorBps() uint64 { return c.closeFactorBps }

// LiquidationIncentiveBps returns the seize bonus applied to fungible
// collateral liquidations, in basis points.
func (c *Comptroller) LiquidationIncentiveBps() uint64 { return c.liquidationIncentiveBps }

// SetCloseFactor sets the close factor. Owner only.
func (c *Comptroller) SetCloseFactor(caller common.Address, bps uint64) error {
	if caller != c.owner {
		return ErrUnauthorized
	}
	if bps == 0 || bps > 10_000 {
		return ErrInvalidCloseFactor
	}
	c.closeFactorBps = bps
	return nil
}

// SetLiquidationIncentive sets the fungible-collateral seize bonus. Owner
// only.
func (c *Comptroller) SetLiquidationIncentive(caller common.Address, bps uint64) error {
	if caller != c.owner {
		return ErrUnauthorized
	}
	c.liquidationIncentiveBps = bps
	return nil
}

// SupportMarket lists a fungible market. Owner only; listing a market twice
// is rejected rather than treated as a no-op so misconfigured deployments
// surface loudly.
func (c *Comptroller) SupportMarket(caller common.Address, view MarketView) error {
	return c.listMarket(caller, view, MarketFungible)
}

// SupportNftMarket lists an NFT collateral market. Owner only.
func (c *Comptroller) SupportNftMarket(caller common.Address, view MarketView) error {
	return c.listMarket(caller, view, MarketNonFungible)
}

func (c *Comptroller) listMarket(caller common.Address, view MarketView, kind MarketKind) error {
	if c == nil || c.state == nil {
		return ErrNilState
	}
	if caller != c.owner {
		return ErrUnauthorized
	}
	if view == nil {
		return ErrMarketViewMissing
	}
	if !kind.Valid() {
		return ErrInvalidMarketKind
	}
	addr := view.MarketAddress()
	existing, err := c.state.GetMarket(addr)
	if err != nil {
		return err
	}
	if existing != nil && existing.Listed {
		return ErrMarketAlreadyListed
	}
	market := &Market{Address: addr, Kind: kind, Listed: true}
	if existing != nil {
		market.CollateralFactorBps = existing.CollateralFactorBps
	}
	if err := c.state.PutMarket(market); err != nil {
		return err
	}
	c.views[addr] = view
	c.emit(events.MarketListed{Market: addr, Kind: kind.String()})
	return nil
}

// AttachMarket re-binds a live engine to an already listed market, used when
// rebuilding the registry from persisted state at boot.
func (c *Comptroller) AttachMarket(view MarketView) error {
	if c == nil || c.state == nil {
		return ErrNilState
	}
	if view == nil {
		return ErrMarketViewMissing
	}
	addr := view.MarketAddress()
	market, err := c.state.GetMarket(addr)
	if err != nil {
		return err
	}
	if market == nil || !market.Listed {
		return ErrMarketNotListed
	}
	c.views[addr] = view
	return nil
}

// SetCollateralFactor updates a listed market's collateral factor. Owner
// only; the factor must stay strictly below one.
func (c *Comptroller) SetCollateralFactor(caller common.Address, market common.Address, bps uint64) error {
	if c == nil || c.state == nil {
		return ErrNilState
	}
	if caller != c.owner {
		return ErrUnauthorized
	}
	if bps >= 10_000 {
		return ErrInvalidCollateralFactor
	}
	record, err := c.state.GetMarket(market)
	if err != nil {
		return err
	}
	if record == nil || !record.Listed {
		return ErrMarketNotListed
	}
	record.CollateralFactorBps = bps
	return c.state.PutMarket(record)
}

// IsListed reports whether the market address is currently listed.
func (c *Comptroller) IsListed(market common.Address) bool {
	if c == nil || c.state == nil {
		return false
	}
	record, err := c.state.GetMarket(market)
	if err != nil {
		return false
	}
	return record != nil && record.Listed
}

// MarketRecord returns the registry record and live view for a listed
// market.
func (c *Comptroller) MarketRecord(market common.Address) (*Market, MarketView, error) {
	if c == nil || c.state == nil {
		return nil, nil, ErrNilState
	}
	record, err := c.state.GetMarket(market)
	if err != nil {
		return nil, nil, err
	}
	if record == nil || !record.Listed {
		return nil, nil, ErrMarketNotListed
	}
	view, ok := c.views[market]
	if !ok {
		return nil, nil, ErrMarketViewMissing
	}
	return record.Clone(), view, nil
}

// Markets returns a copy of every listed market record.
func (c *Comptroller) Markets() ([]*Market, error) {
	if c == nil || c.state == nil {
		return nil, ErrNilState
	}
	addrs, err := c.state.ListMarkets()
	if err != nil {
		return nil, err
	}
	out := make([]*Market, 0, len(addrs))
	for _, addr := range addrs {
		record, err := c.state.GetMarket(addr)
		if err != nil {
			return nil, err
		}
		if record == nil || !record.Listed {
			continue
		}
		out = append(out, record.Clone())
	}
	return out, nil
}

// Oracle returns the configured price source.
func (c *Comptroller) Oracle() PriceSource { return c.oracle }

// EnterMarkets adds the supplied markets to the account's entered set. An
// event fires once per newly entered market; already entered markets are
// skipped silently. Unlisted markets reject the whole call.
func (c *Comptroller) EnterMarkets(account common.Address, markets []common.Address) error {
	if c == nil || c.state == nil {
		return ErrNilState
	}
	entered, err := c.state.GetEnteredMarkets(account)
	if err != nil {
		return err
	}
	set := make(map[common.Address]bool, len(entered))
	for _, addr := range entered {
		set[addr] = true
	}
	var added []common.Address
	for _, addr := range markets {
		if set[addr] {
			continue
		}
		record, err := c.state.GetMarket(addr)
		if err != nil {
			return err
		}
		if record == nil || !record.Listed {
			return ErrMarketNotListed
		}
		set[addr] = true
		entered = append(entered, addr)
		added = append(added, addr)
	}
	if len(added) == 0 {
		return nil
	}
	if err := c.state.PutEnteredMarkets(account, entered); err != nil {
		return err
	}
	for _, addr := range added {
		c.emit(events.MarketEntered{Market: addr, Account: account})
	}
	return nil
}

// ExitMarket removes a market from the account's entered set. The exit is
// rejected while the account owes debt in the market or while removing the
// market's collateral weight would leave the account in shortfall.
func (c *Comptroller) ExitMarket(account common.Address, market common.Address) error {
	if c == nil || c.state == nil {
		return ErrNilState
	}
	entered, err := c.state.GetEnteredMarkets(account)
	if err != nil {
		return err
	}
	idx := -1
	for i, addr := range entered {
		if addr == market {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	view, ok := c.views[market]
	if !ok {
		return ErrMarketViewMissing
	}
	balance, debt, _, err := view.AccountSnapshot(account)
	if err != nil {
		return err
	}
	if debt != nil && debt.Sign() > 0 {
		return ErrOutstandingDebt
	}
	result, err := c.HypotheticalAccountLiquidity(account, market, balance, big.NewInt(0))
	if err != nil {
		return err
	}
	if result.Shortfall.Sign() > 0 {
		return ErrExitShortfall
	}
	entered = append(entered[:idx], entered[idx+1:]...)
	if err := c.state.PutEnteredMarkets(account, entered); err != nil {
		return err
	}
	c.emit(events.MarketExited{Market: market, Account: account})
	return nil
}

// EnteredMarkets returns the account's entered-market set.
func (c *Comptroller) EnteredMarkets(account common.Address) ([]common.Address, error) {
	if c == nil || c.state == nil {
		return nil, ErrNilState
	}
	return c.state.GetEnteredMarkets(account)
}

// AccountLiquidity computes the account's spare borrowing power or
// shortfall across all markets at current oracle prices.
func (c *Comptroller) AccountLiquidity(account common.Address) (Liquidity, error) {
	return c.HypotheticalAccountLiquidity(account, common.Address{}, big.NewInt(0), big.NewInt(0))
}

// HypotheticalAccountLiquidity recomputes account liquidity as if the
// account redeemed redeemTokens of collateral from modify and borrowed
// borrowAmount of its underlying. Collateral counts only for entered
// markets weighted by collateral factor; debt counts across every listed
// market. The result carries at most one non-zero side.
func (c *Comptroller) HypotheticalAccountLiquidity(account common.Address, modify common.Address, redeemTokens, borrowAmount *big.Int) (Liquidity, error) {
	if c == nil || c.state == nil {
		return Liquidity{}, ErrNilState
	}
	if redeemTokens == nil {
		redeemTokens = big.NewInt(0)
	}
	if borrowAmount == nil {
		borrowAmount = big.NewInt(0)
	}

	sumCollateral := big.NewInt(0)
	sumBorrowPlusEffects := big.NewInt(0)

	entered, err := c.state.GetEnteredMarkets(account)
	if err != nil {
		return Liquidity{}, err
	}
	enteredSet := make(map[common.Address]bool, len(entered))
	for _, addr := range entered {
		enteredSet[addr] = true
	}

	listed, err := c.state.ListMarkets()
	if err != nil {
		return Liquidity{}, err
	}
	for _, addr := range listed {
		record, err := c.state.GetMarket(addr)
		if err != nil {
			return Liquidity{}, err
		}
		if record == nil || !record.Listed {
			continue
		}
		view, ok := c.views[addr]
		if !ok {
			return Liquidity{}, ErrMarketViewMissing
		}
		balance, debt, exchangeRate, err := view.AccountSnapshot(account)
		if err != nil {
			return Liquidity{}, err
		}

		// A price is required only for markets that contribute to either
		// sum; an unpriced market the account has no stake in must not
		// block the calculation.
		hasDebt := debt != nil && debt.Sign() > 0
		hasCollateral := enteredSet[addr] && balance != nil && balance.Sign() > 0
		hasRedeemEffect := enteredSet[addr] && addr == modify && redeemTokens.Sign() > 0
		if !hasDebt && !hasCollateral && !hasRedeemEffect {
			continue
		}
		price, err := c.priceFor(record)
		if err != nil {
			return Liquidity{}, err
		}

		if debt != nil && debt.Sign() > 0 {
			sumBorrowPlusEffects.Add(sumBorrowPlusEffects, mulExp(debt, price))
		}
		if enteredSet[addr] {
			value := collateralValue(record.Kind, balance, exchangeRate, price)
			sumCollateral.Add(sumCollateral, applyBps(value, record.CollateralFactorBps))
			if addr == modify && redeemTokens.Sign() > 0 {
				redeemed := collateralValue(record.Kind, redeemTokens, exchangeRate, price)
				sumBorrowPlusEffects.Add(sumBorrowPlusEffects, applyBps(redeemed, record.CollateralFactorBps))
			}
		}
	}

	if borrowAmount.Sign() > 0 {
		record, err := c.state.GetMarket(modify)
		if err != nil {
			return Liquidity{}, err
		}
		if record == nil || !record.Listed {
			return Liquidity{}, ErrMarketNotListed
		}
		price, err := c.priceFor(record)
		if err != nil {
			return Liquidity{}, err
		}
		sumBorrowPlusEffects.Add(sumBorrowPlusEffects, mulExp(borrowAmount, price))
	}

	result := Liquidity{Liquidity: big.NewInt(0), Shortfall: big.NewInt(0)}
	diff := new(big.Int).Sub(sumCollateral, sumBorrowPlusEffects)
	if diff.Sign() >= 0 {
		result.Liquidity = diff
	} else {
		result.Shortfall = diff.Neg(diff)
	}
	return result, nil
}

func (c *Comptroller) priceFor(record *Market) (*big.Int, error) {
	if c.oracle == nil {
		return nil, ErrPriceUnavailable
	}
	var price *big.Int
	var err error
	switch record.Kind {
	case MarketNonFungible:
		price, err = c.oracle.GetNftPrice(record.Address)
	default:
		price, err = c.oracle.GetUnderlyingPrice(record.Address)
	}
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrPriceUnavailable
	}
	return price, nil
}

// collateralValue converts a market balance to oracle value. Fungible
// balances are pool shares scaled through the exchange rate; NFT balances
// are token counts priced per token.
func collateralValue(kind MarketKind, balance, exchangeRate, price *big.Int) *big.Int {
	if balance == nil || balance.Sign() <= 0 {
		return big.NewInt(0)
	}
	if kind == MarketNonFungible {
		return new(big.Int).Mul(balance, price)
	}
	underlying := mulExp(balance, exchangeRate)
	return mulExp(underlying, price)
}

func mulExp(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, expScale)
}

func applyBps(v *big.Int, bps uint64) *big.Int {
	if v == nil || v.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(v, new(big.Int).SetUint64(bps))
	return out.Quo(out, basisPoints)
}
