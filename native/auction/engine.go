package auction

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/events"
)

const (
	// DefaultDuration is the bidding window opened by a liquidation.
	DefaultDuration = 24 * 60 * 60
	// DefaultAntiSnipeWindow is the trailing window in which a bid pushes
	// the deadline out to now + window.
	DefaultAntiSnipeWindow = 10 * 60
)

type engineState interface {
	GetAuction(collection common.Address, tokenID uint64) (*Auction, bool, error)
	PutAuction(auction *Auction) error
	DeleteAuction(collection common.Address, tokenID uint64) error
}

// ShareLedger moves ETH pool shares between accounts. Implemented by the
// pool accounting engine; the auction engine escrows every leading bid in
// its vault account through it.
type ShareLedger interface {
	TransferShares(from, to common.Address, amount *big.Int) error
}

// Settler applies a winning bid to the borrower's debt and hands the NFT to
// the winner. Implemented by the pool accounting engine.
type Settler interface {
	SettleAuction(borrower, winner common.Address, collection common.Address, tokenID uint64, bidShares *big.Int) error
}

// Engine owns the liquidation auction state machine: one record per
// (collection, tokenId), None -> Active -> settled (deleted). It never moves
// underlying assets itself; shares move through the ledger and settlement is
// delegated back to the pool engine.
type Engine struct {
	state     engineState
	shares    ShareLedger
	settler   Settler
	vault     common.Address
	emitter   events.Emitter
	duration  int64
	antiSnipe int64
	nowFn     func() int64
}

// NewEngine constructs an auction engine whose escrowed bids live in the
// supplied vault account.
func NewEngine(vault common.Address) *Engine {
	return &Engine{
		vault:     vault,
		emitter:   events.NoopEmitter{},
		duration:  DefaultDuration,
		antiSnipe: DefaultAntiSnipeWindow,
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetShareLedger wires the pool share ledger used for bid escrow.
func (e *Engine) SetShareLedger(ledger ShareLedger) { e.shares = ledger }

// SetSettler wires the settlement callback invoked on claim.
func (e *Engine) SetSettler(settler Settler) { e.settler = settler }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTiming overrides the auction duration and anti-snipe window, both in
// seconds. Non-positive values keep the current setting.
func (e *Engine) SetTiming(duration, antiSnipe int64) {
	if e == nil {
		return
	}
	if duration > 0 {
		e.duration = duration
	}
	if antiSnipe > 0 {
		e.antiSnipe = antiSnipe
	}
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Vault returns the account holding escrowed bids.
func (e *Engine) Vault() common.Address { return e.vault }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Get returns the live auction record for the key, if any.
func (e *Engine) Get(collection common.Address, tokenID uint64) (*Auction, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	record, ok, err := e.state.GetAuction(collection, tokenID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.Clone(), true, nil
}

// Start opens an auction for a liquidated NFT with the liquidator as the
// opening bidder. Invoked only by the pool engine's liquidation path; the
// opening bid is escrowed from the opener before the record is written.
func (e *Engine) Start(opener, borrower common.Address, collection common.Address, tokenID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.shares == nil {
		return ErrNilLedger
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, ok, err := e.state.GetAuction(collection, tokenID); err != nil {
		return err
	} else if ok {
		return ErrAuctionExists
	}
	if err := e.shares.TransferShares(opener, e.vault, amount); err != nil {
		return err
	}
	now := e.now()
	record := &Auction{
		Collection: collection,
		TokenID:    tokenID,
		Borrower:   borrower,
		Bidder:     opener,
		Amount:     new(big.Int).Set(amount),
		StartTime:  now,
		EndTime:    now + e.duration,
	}
	if err := e.state.PutAuction(record); err != nil {
		return err
	}
	e.emit(events.AuctionStart{
		Collateral: collection,
		TokenID:    tokenID,
		Bidder:     opener,
		Amount:     new(big.Int).Set(amount),
		EndTime:    record.EndTime,
	})
	return nil
}

// Bid replaces the current highest bid with a strictly higher one. The new
// bid is escrowed and the previous bidder is refunded their full prior bid
// within the same call. Bids inside the anti-snipe window extend the
// deadline.
func (e *Engine) Bid(bidder common.Address, collection common.Address, tokenID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.shares == nil {
		return ErrNilLedger
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	record, ok, err := e.state.GetAuction(collection, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoActiveAuction
	}
	now := e.now()
	if now >= record.EndTime {
		return ErrAuctionEnded
	}
	if record.Amount != nil && amount.Cmp(record.Amount) <= 0 {
		return ErrBidTooLow
	}
	if err := e.shares.TransferShares(bidder, e.vault, amount); err != nil {
		return err
	}
	if err := e.shares.TransferShares(e.vault, record.Bidder, record.Amount); err != nil {
		return err
	}
	record.Bidder = bidder
	record.Amount = new(big.Int).Set(amount)
	if record.EndTime-now <= e.antiSnipe {
		record.EndTime = now + e.antiSnipe
	}
	if err := e.state.PutAuction(record); err != nil {
		return err
	}
	e.emit(events.AuctionBid{
		Collateral: collection,
		TokenID:    tokenID,
		Bidder:     bidder,
		Amount:     new(big.Int).Set(amount),
	})
	return nil
}

// Claim settles an expired auction: the escrowed winning bid is applied to
// the borrower's debt, the NFT goes to the highest bidder, and the record is
// deleted. Callable by anyone once the deadline has passed. When no
// competing bid arrived the opening liquidator wins by default.
func (e *Engine) Claim(collection common.Address, tokenID uint64) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.settler == nil {
		return nil, ErrNilSettler
	}
	record, ok, err := e.state.GetAuction(collection, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoActiveAuction
	}
	if e.now() < record.EndTime {
		return nil, ErrAuctionStillActive
	}
	// Settlement runs before the record is deleted; deleting a record with
	// an unsettled escrow would strand the winning shares in the vault.
	// Storage writes are serialized by a single writer, so no second claim
	// can interleave between the two.
	if err := e.settler.SettleAuction(record.Borrower, record.Bidder, collection, tokenID, record.Amount); err != nil {
		return nil, err
	}
	if err := e.state.DeleteAuction(collection, tokenID); err != nil {
		return nil, err
	}
	e.emit(events.AuctionClaimed{
		Collateral: collection,
		TokenID:    tokenID,
		Winner:     record.Bidder,
		Amount:     new(big.Int).Set(record.Amount),
	})
	return record.Clone(), nil
}
