package auction

import "errors"

var (
	ErrNilState           = errors.New("auction engine: state not configured")
	ErrNilLedger          = errors.New("auction engine: share ledger not configured")
	ErrNilSettler         = errors.New("auction engine: settler not configured")
	ErrInvalidAmount      = errors.New("auction engine: amount must be positive")
	ErrAuctionExists      = errors.New("auction engine: auction already active for token")
	ErrNoActiveAuction    = errors.New("auction engine: no active auction for token")
	ErrBidTooLow          = errors.New("auction engine: bid must exceed current highest bid")
	ErrAuctionEnded       = errors.New("auction engine: auction has ended")
	ErrAuctionStillActive = errors.New("auction engine: auction still active")
)
