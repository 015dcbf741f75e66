package nftpool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/events"
	nativecommon "github.com/phoebe87124/appworks-final-project/native/common"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
)

// Flow names used with the pause guard.
const (
	FlowMint   = "nft_mint"
	FlowRedeem = "nft_redeem"
)

var expScale = func() *big.Int {
	v, ok := new(big.Int).SetString("1000000000000000000", 10)
	if !ok {
		panic("invalid mantissa constant")
	}
	return v
}()

type engineState interface {
	GetClaim(tokenID uint64) (*Claim, bool, error)
	PutClaim(claim *Claim) error
	DeleteClaim(tokenID uint64) error
	// CountClaims reports how many unescrowed claims the owner holds.
	CountClaims(owner common.Address) (uint64, error)
}

// TokenRegistry is the underlying NFT ownership ledger the pool moves
// tokens through.
type TokenRegistry interface {
	OwnerOf(collection common.Address, tokenID uint64) (common.Address, error)
	Transfer(collection common.Address, tokenID uint64, from, to common.Address) error
}

// Engine custodies NFTs of a single collection as lending collateral. A
// deposited token is held by the pool address and tracked as a claim; the
// claim backs borrowing power in the registry and can be pulled into a
// liquidation auction.
type Engine struct {
	state         engineState
	registry      TokenRegistry
	comptroller   *comptroller.Comptroller
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	marketAddress common.Address
	collection    common.Address
}

// NewEngine constructs the NFT collateral pool. The market address doubles
// as the custody account holding deposited tokens.
func NewEngine(marketAddress, collection common.Address, registry *comptroller.Comptroller) *Engine {
	return &Engine{
		comptroller:   registry,
		emitter:       events.NoopEmitter{},
		marketAddress: marketAddress,
		collection:    collection,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenRegistry wires the underlying NFT ownership ledger.
func (e *Engine) SetTokenRegistry(registry TokenRegistry) { e.registry = registry }

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

// MarketAddress implements the registry MarketView interface.
func (e *Engine) MarketAddress() common.Address { return e.marketAddress }

// Collection returns the NFT collection this pool custodies.
func (e *Engine) Collection() common.Address { return e.collection }

// AccountSnapshot implements the registry MarketView interface. The balance
// is the count of unescrowed claims; the pool never issues debt, and the
// identity exchange rate keeps the snapshot shape uniform across markets.
func (e *Engine) AccountSnapshot(account common.Address) (*big.Int, *big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, nil, ErrNilState
	}
	count, err := e.state.CountClaims(account)
	if err != nil {
		return nil, nil, nil, err
	}
	return new(big.Int).SetUint64(count), big.NewInt(0), new(big.Int).Set(expScale), nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Mint deposits the caller's NFT into pool custody and issues a claim.
func (e *Engine) Mint(minter common.Address, tokenID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowMint); err != nil {
		return err
	}
	if e.registry == nil {
		return ErrNilRegistry
	}
	if e.comptroller == nil {
		return ErrNilComptroller
	}
	if !e.comptroller.IsListed(e.marketAddress) {
		return comptroller.ErrMarketNotListed
	}
	owner, err := e.registry.OwnerOf(e.collection, tokenID)
	if err != nil {
		return err
	}
	if owner != minter {
		return ErrNotTokenOwner
	}
	if err := e.registry.Transfer(e.collection, tokenID, minter, e.marketAddress); err != nil {
		return err
	}
	if err := e.state.PutClaim(&Claim{TokenID: tokenID, Owner: minter}); err != nil {
		return err
	}
	e.emit(events.NftMint{Market: e.marketAddress, Minter: minter, TokenID: tokenID})
	return nil
}

// Redeem burns the caller's claim and returns the NFT, provided the account
// stays solvent without it.
func (e *Engine) Redeem(redeemer common.Address, tokenID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowRedeem); err != nil {
		return err
	}
	if e.registry == nil {
		return ErrNilRegistry
	}
	if e.comptroller == nil {
		return ErrNilComptroller
	}
	claim, ok, err := e.state.GetClaim(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoClaim
	}
	if claim.Owner != redeemer {
		return ErrNotClaimOwner
	}
	if claim.Escrowed {
		return ErrTokenEscrowed
	}
	result, err := e.comptroller.HypotheticalAccountLiquidity(redeemer, e.marketAddress, big.NewInt(1), big.NewInt(0))
	if err != nil {
		return err
	}
	if result.Shortfall.Sign() > 0 {
		return ErrWouldCauseShortfall
	}
	if err := e.registry.Transfer(e.collection, tokenID, e.marketAddress, redeemer); err != nil {
		return err
	}
	if err := e.state.DeleteClaim(tokenID); err != nil {
		return err
	}
	e.emit(events.NftRedeem{Market: e.marketAddress, Redeemer: redeemer, TokenID: tokenID})
	return nil
}

// EscrowForAuction locks the borrower's claim for the duration of a
// liquidation auction. Called by the lending engine when an auction opens.
func (e *Engine) EscrowForAuction(tokenID uint64, borrower common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	claim, ok, err := e.state.GetClaim(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoClaim
	}
	if claim.Owner != borrower {
		return ErrNotClaimOwner
	}
	if claim.Escrowed {
		return ErrTokenEscrowed
	}
	claim.Escrowed = true
	return e.state.PutClaim(claim)
}

// SettleToWinner releases an escrowed token to the auction winner and burns
// the claim. Called by the lending engine at auction settlement.
func (e *Engine) SettleToWinner(tokenID uint64, winner common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.registry == nil {
		return ErrNilRegistry
	}
	claim, ok, err := e.state.GetClaim(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoClaim
	}
	if !claim.Escrowed {
		return ErrTokenNotEscrowed
	}
	if err := e.registry.Transfer(e.collection, tokenID, e.marketAddress, winner); err != nil {
		return err
	}
	if err := e.state.DeleteClaim(tokenID); err != nil {
		return err
	}
	e.emit(events.NftRedeem{Market: e.marketAddress, Redeemer: winner, TokenID: tokenID})
	return nil
}

// ClaimOf returns a copy of the claim for a deposited token.
func (e *Engine) ClaimOf(tokenID uint64) (*Claim, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	claim, ok, err := e.state.GetClaim(tokenID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return claim.Clone(), true, nil
}
