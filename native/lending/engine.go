package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/events"
	"github.com/phoebe87124/appworks-final-project/core/types"
	"github.com/phoebe87124/appworks-final-project/native/auction"
	nativecommon "github.com/phoebe87124/appworks-final-project/native/common"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
)

// Flow names used with the pause guard.
const (
	FlowMint      = "mint"
	FlowRedeem    = "redeem"
	FlowBorrow    = "borrow"
	FlowRepay     = "repay"
	FlowLiquidate = "liquidate"
	FlowBid       = "bid"
	FlowClaim     = "claim"
)

type engineState interface {
	GetMarket() (*Market, error)
	PutMarket(market *Market) error
	GetPosition(addr common.Address) (*Position, error)
	PutPosition(position *Position) error
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

// ShareSeizer moves collateral shares from a borrower to a liquidator during
// a fungible-collateral liquidation. The ETH pool engine implements it for
// the case where its own shares back the debt.
type ShareSeizer interface {
	Seize(liquidator, borrower common.Address, shares *big.Int) error
}

// NFTCollateral is the custody surface an NFT market exposes to the
// liquidation and auction paths.
type NFTCollateral interface {
	EscrowForAuction(tokenID uint64, borrower common.Address) error
	SettleToWinner(tokenID uint64, winner common.Address) error
}

// Engine is the pooled-asset accounting engine for the ETH market. Every
// mutating entry point accrues interest first, consults the registry for
// authorization and valuation, finishes all ledger bookkeeping, and only
// then emits events. A failed call leaves no partial state behind: every
// precondition is validated before the first write.
type Engine struct {
	state               engineState
	comptroller         *comptroller.Comptroller
	interestModel       InterestModel
	auctions            *auction.Engine
	emitter             events.Emitter
	pauses              nativecommon.PauseView
	marketAddress       common.Address
	reserveFactorBps    uint64
	initialExchangeRate *big.Int
	blockHeight         uint64
}

// NewEngine constructs the pool engine. The market address doubles as the
// vault account holding pool cash.
func NewEngine(marketAddress common.Address, registry *comptroller.Comptroller) *Engine {
	return &Engine{
		comptroller:         registry,
		emitter:             events.NoopEmitter{},
		marketAddress:       marketAddress,
		initialExchangeRate: new(big.Int).Set(expScale),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetInterestModel configures the interest rate model used during accrual.
func (e *Engine) SetInterestModel(model InterestModel) {
	if e == nil {
		return
	}
	e.interestModel = model
}

// SetReserveFactor sets the share of accrued interest routed to reserves, in
// basis points.
func (e *Engine) SetReserveFactor(bps uint64) {
	if e == nil {
		return
	}
	if bps > 10_000 {
		bps = 10_000
	}
	e.reserveFactorBps = bps
}

// SetBlockHeight records the block height used for accrual deltas.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// SetInitialExchangeRate overrides the mantissa used while total supply is
// zero.
func (e *Engine) SetInitialExchangeRate(mantissa *big.Int) {
	if e == nil || mantissa == nil || mantissa.Sign() <= 0 {
		return
	}
	e.initialExchangeRate = new(big.Int).Set(mantissa)
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the per-flow pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetAuctionEngine wires the NFT liquidation auction engine and registers
// this engine as its share ledger and settler.
func (e *Engine) SetAuctionEngine(engine *auction.Engine) {
	if e == nil {
		return
	}
	e.auctions = engine
	if engine != nil {
		engine.SetShareLedger(e)
		engine.SetSettler(e)
	}
}

// MarketAddress implements the registry MarketView interface.
func (e *Engine) MarketAddress() common.Address { return e.marketAddress }

// AccountSnapshot implements the registry MarketView interface. It reports
// the account's share balance, current debt, and the exchange rate mantissa.
func (e *Engine) AccountSnapshot(account common.Address) (*big.Int, *big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, nil, ErrNilState
	}
	market, err := e.ensureMarket()
	if err != nil {
		return nil, nil, nil, err
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, nil, nil, err
	}
	debt := borrowBalance(position, market)
	return new(big.Int).Set(position.Shares), debt, e.exchangeRate(market), nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Mint deposits underlying into the pool and mints shares at the current
// exchange rate.
func (e *Engine) Mint(minter common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowMint); err != nil {
		return nil, err
	}
	if !e.listed() {
		return nil, comptroller.ErrMarketNotListed
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := e.accrueInterest(market); err != nil {
		return nil, err
	}

	minterAcc, err := e.loadAccount(minter)
	if err != nil {
		return nil, err
	}
	if minterAcc.BalanceWei.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	vaultAcc, err := e.loadAccount(e.marketAddress)
	if err != nil {
		return nil, err
	}

	shares := divExp(amount, e.exchangeRate(market))
	if shares.Sign() == 0 {
		return nil, ErrInvalidAmount
	}

	position, err := e.ensurePosition(minter)
	if err != nil {
		return nil, err
	}

	minterAcc.BalanceWei = new(big.Int).Sub(minterAcc.BalanceWei, amount)
	vaultAcc.BalanceWei = new(big.Int).Add(vaultAcc.BalanceWei, amount)
	position.Shares = new(big.Int).Add(position.Shares, shares)
	market.TotalCash = new(big.Int).Add(market.TotalCash, amount)
	market.TotalSupply = new(big.Int).Add(market.TotalSupply, shares)

	if err := e.state.PutAccount(minter, minterAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.marketAddress, vaultAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return nil, err
	}

	e.emit(events.Mint{Market: e.marketAddress, Minter: minter, Amount: new(big.Int).Set(amount), Shares: shares})
	return shares, nil
}

// Redeem burns an exact share amount for underlying.
func (e *Engine) Redeem(redeemer common.Address, shares *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowRedeem); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := e.accrueInterest(market); err != nil {
		return nil, err
	}
	amount := mulExp(shares, e.exchangeRate(market))
	return amount, e.redeemInternal(redeemer, market, shares, amount)
}

// RedeemUnderlying burns however many shares are needed to release an exact
// underlying amount.
func (e *Engine) RedeemUnderlying(redeemer common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowRedeem); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := e.accrueInterest(market); err != nil {
		return nil, err
	}
	shares := divExp(amount, e.exchangeRate(market))
	if shares.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	return shares, e.redeemInternal(redeemer, market, shares, amount)
}

func (e *Engine) redeemInternal(redeemer common.Address, market *Market, shares, amount *big.Int) error {
	position, err := e.ensurePosition(redeemer)
	if err != nil {
		return err
	}
	if position.Shares.Cmp(shares) < 0 {
		return ErrInsufficientBalance
	}
	if market.TotalCash.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	if e.comptroller == nil {
		return ErrNilComptroller
	}
	result, err := e.comptroller.HypotheticalAccountLiquidity(redeemer, e.marketAddress, shares, big.NewInt(0))
	if err != nil {
		return err
	}
	if result.Shortfall.Sign() > 0 {
		return ErrWouldCauseShortfall
	}

	vaultAcc, err := e.loadAccount(e.marketAddress)
	if err != nil {
		return err
	}
	if vaultAcc.BalanceWei.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	redeemerAcc, err := e.loadAccount(redeemer)
	if err != nil {
		return err
	}

	vaultAcc.BalanceWei = new(big.Int).Sub(vaultAcc.BalanceWei, amount)
	redeemerAcc.BalanceWei = new(big.Int).Add(redeemerAcc.BalanceWei, amount)
	position.Shares = new(big.Int).Sub(position.Shares, shares)
	market.TotalCash = new(big.Int).Sub(market.TotalCash, amount)
	market.TotalSupply = new(big.Int).Sub(market.TotalSupply, shares)

	if err := e.state.PutAccount(e.marketAddress, vaultAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(redeemer, redeemerAcc); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}

	e.emit(events.Redeem{Market: e.marketAddress, Redeemer: redeemer, Amount: new(big.Int).Set(amount), Shares: new(big.Int).Set(shares)})
	return nil
}

// Borrow lends pool cash to the borrower against their entered collateral.
func (e *Engine) Borrow(borrower common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowBorrow); err != nil {
		return err
	}
	if !e.listed() {
		return comptroller.ErrMarketNotListed
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	market, err := e.ensureMarket()
	if err != nil {
		return err
	}
	if err := e.accrueInterest(market); err != nil {
		return err
	}
	if market.TotalCash.Cmp(amount) < 0 {
		return ErrInsufficientCash
	}
	if e.comptroller == nil {
		return ErrNilComptroller
	}
	result, err := e.comptroller.HypotheticalAccountLiquidity(borrower, e.marketAddress, big.NewInt(0), amount)
	if err != nil {
		return err
	}
	if result.Shortfall.Sign() > 0 {
		return ErrInsufficientCollateral
	}

	position, err := e.ensurePosition(borrower)
	if err != nil {
		return err
	}
	owed := borrowBalance(position, market)
	newPrincipal := new(big.Int).Add(owed, amount)

	vaultAcc, err := e.loadAccount(e.marketAddress)
	if err != nil {
		return err
	}
	if vaultAcc.BalanceWei.Cmp(amount) < 0 {
		return ErrInsufficientCash
	}
	borrowerAcc, err := e.loadAccount(borrower)
	if err != nil {
		return err
	}

	vaultAcc.BalanceWei = new(big.Int).Sub(vaultAcc.BalanceWei, amount)
	borrowerAcc.BalanceWei = new(big.Int).Add(borrowerAcc.BalanceWei, amount)
	position.BorrowPrincipal = newPrincipal
	position.InterestIndex = new(big.Int).Set(market.BorrowIndex)
	market.TotalBorrows = new(big.Int).Add(market.TotalBorrows, amount)
	market.TotalCash = new(big.Int).Sub(market.TotalCash, amount)

	if err := e.state.PutAccount(e.marketAddress, vaultAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(borrower, borrowerAcc); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}

	e.emit(events.Borrow{
		Market:          e.marketAddress,
		Borrower:        borrower,
		Amount:          new(big.Int).Set(amount),
		NewPrincipal:    new(big.Int).Set(newPrincipal),
		NewTotalBorrows: new(big.Int).Set(market.TotalBorrows),
	})
	return nil
}

// RepayBorrow repays the caller's own debt. Amounts above the owed balance
// are capped: only the outstanding debt is taken from the payer.
func (e *Engine) RepayBorrow(payer common.Address, amount *big.Int) (*big.Int, error) {
	return e.repayInternal(payer, payer, amount)
}

// RepayBorrowBehalf repays another account's debt from the payer's balance.
func (e *Engine) RepayBorrowBehalf(payer, borrower common.Address, amount *big.Int) (*big.Int, error) {
	return e.repayInternal(payer, borrower, amount)
}

func (e *Engine) repayInternal(payer, borrower common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowRepay); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := e.accrueInterest(market); err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(borrower)
	if err != nil {
		return nil, err
	}
	owed := borrowBalance(position, market)
	if owed.Sign() == 0 {
		return nil, ErrNoDebtToRepay
	}
	actual := minBig(amount, owed)

	payerAcc, err := e.loadAccount(payer)
	if err != nil {
		return nil, err
	}
	if payerAcc.BalanceWei.Cmp(actual) < 0 {
		return nil, ErrInsufficientBalance
	}
	vaultAcc, err := e.loadAccount(e.marketAddress)
	if err != nil {
		return nil, err
	}

	payerAcc.BalanceWei = new(big.Int).Sub(payerAcc.BalanceWei, actual)
	vaultAcc.BalanceWei = new(big.Int).Add(vaultAcc.BalanceWei, actual)
	newPrincipal := new(big.Int).Sub(owed, actual)
	position.BorrowPrincipal = newPrincipal
	position.InterestIndex = new(big.Int).Set(market.BorrowIndex)
	market.TotalBorrows = subFloor(market.TotalBorrows, actual)
	market.TotalCash = new(big.Int).Add(market.TotalCash, actual)

	if err := e.state.PutAccount(payer, payerAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.marketAddress, vaultAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return nil, err
	}

	e.emit(events.RepayBorrow{
		Market:          e.marketAddress,
		Payer:           payer,
		Borrower:        borrower,
		Amount:          new(big.Int).Set(actual),
		NewPrincipal:    newPrincipal,
		NewTotalBorrows: new(big.Int).Set(market.TotalBorrows),
	})
	return actual, nil
}

// LiquidateBorrow settles part of an undercollateralized borrower's debt.
// With fungible collateral, repayAmount is underlying wei and collateral
// shares are seized immediately at the liquidation incentive. With NFT
// collateral, repayAmount is pool shares escrowed as the opening bid of an
// auction; the debt is only reduced when the auction is claimed.
func (e *Engine) LiquidateBorrow(liquidator, borrower common.Address, repayAmount *big.Int, collateralMarket common.Address, tokenID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowLiquidate); err != nil {
		return err
	}
	if !e.listed() {
		return comptroller.ErrMarketNotListed
	}
	if repayAmount == nil || repayAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if liquidator == borrower {
		return ErrSelfLiquidation
	}
	if e.comptroller == nil {
		return ErrNilComptroller
	}
	market, err := e.ensureMarket()
	if err != nil {
		return err
	}
	if err := e.accrueInterest(market); err != nil {
		return err
	}

	result, err := e.comptroller.AccountLiquidity(borrower)
	if err != nil {
		return err
	}
	if result.Shortfall.Sign() == 0 {
		return ErrBorrowerHealthy
	}

	position, err := e.ensurePosition(borrower)
	if err != nil {
		return err
	}
	owed := borrowBalance(position, market)
	if owed.Sign() == 0 {
		return ErrNoDebtToRepay
	}
	maxRepay := mulBps(owed, e.comptroller.CloseFactorBps())

	record, view, err := e.comptroller.MarketRecord(collateralMarket)
	if err != nil {
		return err
	}

	if record.Kind == comptroller.MarketNonFungible {
		return e.liquidateNft(market, liquidator, borrower, repayAmount, maxRepay, collateralMarket, view, tokenID)
	}
	return e.liquidateFungible(market, position, liquidator, borrower, repayAmount, owed, maxRepay, collateralMarket, view)
}

func (e *Engine) liquidateNft(market *Market, liquidator, borrower common.Address, bidShares, maxRepay *big.Int, collateralMarket common.Address, view comptroller.MarketView, tokenID uint64) error {
	if e.auctions == nil {
		return ErrNilAuctionEngine
	}
	custody, ok := view.(NFTCollateral)
	if !ok {
		return ErrBadCollateralMarket
	}
	bidValue := mulExp(bidShares, e.exchangeRate(market))
	if bidValue.Cmp(maxRepay) > 0 {
		return ErrRepayExceedsCloseFactor
	}
	liquidatorPos, err := e.ensurePosition(liquidator)
	if err != nil {
		return err
	}
	if liquidatorPos.Shares.Cmp(bidShares) < 0 {
		return ErrInsufficientBalance
	}
	// Custody moves before the auction opens so the borrower cannot redeem
	// the token mid-flight; the auction start escrows the opening bid.
	if err := custody.EscrowForAuction(tokenID, borrower); err != nil {
		return err
	}
	if err := e.auctions.Start(liquidator, borrower, collateralMarket, tokenID, bidShares); err != nil {
		return err
	}
	e.emit(events.LiquidateBorrow{
		Market:           e.marketAddress,
		Liquidator:       liquidator,
		Borrower:         borrower,
		RepayAmount:      new(big.Int).Set(bidShares),
		CollateralMarket: collateralMarket,
	})
	return nil
}

func (e *Engine) liquidateFungible(market *Market, position *Position, liquidator, borrower common.Address, repayAmount, owed, maxRepay *big.Int, collateralMarket common.Address, view comptroller.MarketView) error {
	if repayAmount.Cmp(maxRepay) > 0 {
		return ErrRepayExceedsCloseFactor
	}
	seizer, ok := view.(ShareSeizer)
	if !ok {
		return ErrBadCollateralMarket
	}
	oraclePrices := e.comptroller.Oracle()
	if oraclePrices == nil {
		return comptroller.ErrPriceUnavailable
	}
	priceBorrow, err := oraclePrices.GetUnderlyingPrice(e.marketAddress)
	if err != nil {
		return err
	}
	priceCollateral, err := oraclePrices.GetUnderlyingPrice(collateralMarket)
	if err != nil {
		return err
	}
	if priceBorrow == nil || priceBorrow.Sign() <= 0 || priceCollateral == nil || priceCollateral.Sign() <= 0 {
		return comptroller.ErrPriceUnavailable
	}
	collateralShares, _, collateralRate, err := view.AccountSnapshot(borrower)
	if err != nil {
		return err
	}

	// seizeShares = repay * (1 + incentive) * priceBorrow / priceCollateral
	// converted to shares through the collateral exchange rate.
	incentiveBps := 10_000 + e.comptroller.LiquidationIncentiveBps()
	seizeValue := mulBps(repayAmount, incentiveBps)
	seizeValue.Mul(seizeValue, priceBorrow)
	seizeValue.Quo(seizeValue, priceCollateral)
	seizeShares := divExp(seizeValue, collateralRate)
	if seizeShares.Sign() == 0 {
		return ErrInvalidAmount
	}
	// The borrower must hold the full seize amount before the first ledger
	// write; every check precedes every mutation.
	if collateralShares == nil || collateralShares.Cmp(seizeShares) < 0 {
		return ErrSeizeTooMuch
	}

	liquidatorAcc, err := e.loadAccount(liquidator)
	if err != nil {
		return err
	}
	if liquidatorAcc.BalanceWei.Cmp(repayAmount) < 0 {
		return ErrInsufficientBalance
	}
	vaultAcc, err := e.loadAccount(e.marketAddress)
	if err != nil {
		return err
	}

	liquidatorAcc.BalanceWei = new(big.Int).Sub(liquidatorAcc.BalanceWei, repayAmount)
	vaultAcc.BalanceWei = new(big.Int).Add(vaultAcc.BalanceWei, repayAmount)
	newPrincipal := new(big.Int).Sub(owed, repayAmount)
	if newPrincipal.Sign() < 0 {
		newPrincipal = big.NewInt(0)
	}
	position.BorrowPrincipal = newPrincipal
	position.InterestIndex = new(big.Int).Set(market.BorrowIndex)
	market.TotalBorrows = subFloor(market.TotalBorrows, repayAmount)
	market.TotalCash = new(big.Int).Add(market.TotalCash, repayAmount)

	if err := e.state.PutAccount(liquidator, liquidatorAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(e.marketAddress, vaultAcc); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	if err := seizer.Seize(liquidator, borrower, seizeShares); err != nil {
		return err
	}

	e.emit(events.LiquidateBorrow{
		Market:           e.marketAddress,
		Liquidator:       liquidator,
		Borrower:         borrower,
		RepayAmount:      new(big.Int).Set(repayAmount),
		CollateralMarket: collateralMarket,
	})
	return nil
}

// BidNftAuction places a bid, denominated in pool shares, on a live
// liquidation auction.
func (e *Engine) BidNftAuction(bidder common.Address, collateralMarket common.Address, tokenID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowBid); err != nil {
		return err
	}
	if e.auctions == nil {
		return ErrNilAuctionEngine
	}
	return e.auctions.Bid(bidder, collateralMarket, tokenID, amount)
}

// ClaimAuction settles an expired auction. Callable by anyone.
func (e *Engine) ClaimAuction(collateralMarket common.Address, tokenID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowClaim); err != nil {
		return err
	}
	if e.auctions == nil {
		return ErrNilAuctionEngine
	}
	_, err := e.auctions.Claim(collateralMarket, tokenID)
	return err
}

// TransferShares implements the auction ShareLedger interface. Shares move
// between positions without touching pool totals.
func (e *Engine) TransferShares(from, to common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromPos, err := e.ensurePosition(from)
	if err != nil {
		return err
	}
	if fromPos.Shares.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toPos, err := e.ensurePosition(to)
	if err != nil {
		return err
	}
	fromPos.Shares = new(big.Int).Sub(fromPos.Shares, amount)
	toPos.Shares = new(big.Int).Add(toPos.Shares, amount)
	if err := e.state.PutPosition(fromPos); err != nil {
		return err
	}
	return e.state.PutPosition(toPos)
}

// Seize implements the ShareSeizer interface for liquidations collateralized
// by this pool's own shares.
func (e *Engine) Seize(liquidator, borrower common.Address, shares *big.Int) error {
	return e.TransferShares(borrower, liquidator, shares)
}

// SettleAuction implements the auction Settler interface. The escrowed
// winning bid is burned; its underlying value repays the borrower's debt and
// any surplus above the owed amount is credited to the borrower in cash. The
// NFT then leaves custody to the winner.
func (e *Engine) SettleAuction(borrower, winner common.Address, collection common.Address, tokenID uint64, bidShares *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if bidShares == nil || bidShares.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.comptroller == nil {
		return ErrNilComptroller
	}
	market, err := e.ensureMarket()
	if err != nil {
		return err
	}
	if err := e.accrueInterest(market); err != nil {
		return err
	}

	_, view, err := e.comptroller.MarketRecord(collection)
	if err != nil {
		return err
	}
	custody, ok := view.(NFTCollateral)
	if !ok {
		return ErrBadCollateralMarket
	}

	vault := e.auctions.Vault()
	vaultPos, err := e.ensurePosition(vault)
	if err != nil {
		return err
	}
	if vaultPos.Shares.Cmp(bidShares) < 0 {
		return ErrInsufficientBalance
	}

	value := mulExp(bidShares, e.exchangeRate(market))
	position, err := e.ensurePosition(borrower)
	if err != nil {
		return err
	}
	owed := borrowBalance(position, market)
	applied := minBig(owed, value)
	surplus := new(big.Int).Sub(value, applied)
	if surplus.Sign() > 0 && market.TotalCash.Cmp(surplus) < 0 {
		return ErrInsufficientLiquidity
	}

	vaultPos.Shares = new(big.Int).Sub(vaultPos.Shares, bidShares)
	market.TotalSupply = subFloor(market.TotalSupply, bidShares)
	newPrincipal := new(big.Int).Sub(owed, applied)
	position.BorrowPrincipal = newPrincipal
	position.InterestIndex = new(big.Int).Set(market.BorrowIndex)
	market.TotalBorrows = subFloor(market.TotalBorrows, applied)

	if err := e.state.PutPosition(vaultPos); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}

	if surplus.Sign() > 0 {
		vaultAcc, err := e.loadAccount(e.marketAddress)
		if err != nil {
			return err
		}
		borrowerAcc, err := e.loadAccount(borrower)
		if err != nil {
			return err
		}
		vaultAcc.BalanceWei = new(big.Int).Sub(vaultAcc.BalanceWei, surplus)
		borrowerAcc.BalanceWei = new(big.Int).Add(borrowerAcc.BalanceWei, surplus)
		market.TotalCash = new(big.Int).Sub(market.TotalCash, surplus)
		if err := e.state.PutAccount(e.marketAddress, vaultAcc); err != nil {
			return err
		}
		if err := e.state.PutAccount(borrower, borrowerAcc); err != nil {
			return err
		}
	}

	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	if err := custody.SettleToWinner(tokenID, winner); err != nil {
		return err
	}

	e.emit(events.RepayBorrow{
		Market:          e.marketAddress,
		Payer:           vault,
		Borrower:        borrower,
		Amount:          applied,
		NewPrincipal:    newPrincipal,
		NewTotalBorrows: new(big.Int).Set(market.TotalBorrows),
	})
	return nil
}

// Market returns a copy of the current pool financial state.
func (e *Engine) Market() (*Market, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	return market.Clone(), nil
}

// PositionOf returns a copy of the account's pool position.
func (e *Engine) PositionOf(account common.Address) (*Position, error) {
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	return position.Clone(), nil
}

// BorrowBalanceOf returns the account's current debt including interest
// accrued up to the last accrual block.
func (e *Engine) BorrowBalanceOf(account common.Address) (*big.Int, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	return borrowBalance(position, market), nil
}

// ExchangeRate returns the current share-to-underlying mantissa.
func (e *Engine) ExchangeRate() (*big.Int, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	return e.exchangeRate(market), nil
}

// AccrueInterest advances the interest indexes to the engine's current block
// height. Accrual is idempotent within a block.
func (e *Engine) AccrueInterest() error {
	market, err := e.ensureMarket()
	if err != nil {
		return err
	}
	return e.accrueInterest(market)
}

// accrueInterest persists the accrued market before returning. Liquidity
// checks later in the same call read market state back through snapshots, so
// the accrual must already be visible.
func (e *Engine) accrueInterest(market *Market) error {
	if market.LastAccrualBlock >= e.blockHeight {
		return nil
	}
	delta := e.blockHeight - market.LastAccrualBlock
	if e.interestModel == nil || market.TotalBorrows.Sign() == 0 {
		market.LastAccrualBlock = e.blockHeight
		return e.state.PutMarket(market)
	}
	rate, err := e.interestModel.GetBorrowRate(market.TotalCash, market.TotalBorrows, market.TotalReserves)
	if err != nil {
		return err
	}
	if rate != nil && rate.Sign() > 0 {
		factor := new(big.Int).Mul(rate, new(big.Int).SetUint64(delta))
		interest := mulExp(market.TotalBorrows, factor)
		market.TotalBorrows = new(big.Int).Add(market.TotalBorrows, interest)
		market.TotalReserves = new(big.Int).Add(market.TotalReserves, mulBps(interest, e.reserveFactorBps))
		market.BorrowIndex = new(big.Int).Add(market.BorrowIndex, mulExp(market.BorrowIndex, factor))
	}
	market.LastAccrualBlock = e.blockHeight
	return e.state.PutMarket(market)
}

func (e *Engine) exchangeRate(market *Market) *big.Int {
	if market.TotalSupply.Sign() == 0 {
		return new(big.Int).Set(e.initialExchangeRate)
	}
	assets := new(big.Int).Add(market.TotalCash, market.TotalBorrows)
	assets.Sub(assets, market.TotalReserves)
	return divExp(assets, market.TotalSupply)
}

func (e *Engine) listed() bool {
	return e.comptroller != nil && e.comptroller.IsListed(e.marketAddress)
}

func (e *Engine) ensureMarket() (*Market, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	market, err := e.state.GetMarket()
	if err != nil {
		return nil, err
	}
	if market == nil {
		market = &Market{}
	}
	if market.TotalCash == nil {
		market.TotalCash = big.NewInt(0)
	}
	if market.TotalBorrows == nil {
		market.TotalBorrows = big.NewInt(0)
	}
	if market.TotalReserves == nil {
		market.TotalReserves = big.NewInt(0)
	}
	if market.TotalSupply == nil {
		market.TotalSupply = big.NewInt(0)
	}
	if market.BorrowIndex == nil || market.BorrowIndex.Sign() == 0 {
		market.BorrowIndex = new(big.Int).Set(expScale)
	}
	return market, nil
}

func (e *Engine) ensurePosition(addr common.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{Address: addr}
	}
	if position.Shares == nil {
		position.Shares = big.NewInt(0)
	}
	if position.BorrowPrincipal == nil {
		position.BorrowPrincipal = big.NewInt(0)
	}
	if position.InterestIndex == nil || position.InterestIndex.Sign() == 0 {
		position.InterestIndex = new(big.Int).Set(expScale)
	}
	return position, nil
}

func (e *Engine) loadAccount(addr common.Address) (*types.Account, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	if acc.BalanceWei == nil {
		acc.BalanceWei = big.NewInt(0)
	}
	return acc, nil
}

// borrowBalance computes the account's current debt from its snapshot:
// principal * currentIndex / snapshotIndex.
func borrowBalance(position *Position, market *Market) *big.Int {
	if position == nil || position.BorrowPrincipal == nil || position.BorrowPrincipal.Sign() == 0 {
		return big.NewInt(0)
	}
	owed := new(big.Int).Mul(position.BorrowPrincipal, market.BorrowIndex)
	owed.Quo(owed, position.InterestIndex)
	return owed
}

func subFloor(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(a, b)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}
