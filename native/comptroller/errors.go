package comptroller

import "errors"

var (
	ErrNilState                = errors.New("comptroller: state not configured")
	ErrUnauthorized            = errors.New("comptroller: caller is not the owner")
	ErrMarketNotListed         = errors.New("comptroller: market not listed")
	ErrMarketAlreadyListed     = errors.New("comptroller: market already listed")
	ErrInvalidMarketKind       = errors.New("comptroller: invalid market kind")
	ErrInvalidCollateralFactor = errors.New("comptroller: collateral factor must be below one")
	ErrInvalidCloseFactor      = errors.New("comptroller: close factor out of range")
	ErrPriceUnavailable        = errors.New("comptroller: oracle price unavailable")
	ErrOutstandingDebt         = errors.New("comptroller: outstanding debt in market")
	ErrExitShortfall           = errors.New("comptroller: exiting market would cause shortfall")
	ErrMarketViewMissing       = errors.New("comptroller: market view not attached")
)
