package lending

import "errors"

var (
	ErrNilState                = errors.New("lending engine: state not configured")
	ErrNilComptroller          = errors.New("lending engine: comptroller not configured")
	ErrNilAuctionEngine        = errors.New("lending engine: auction engine not configured")
	ErrInvalidAmount           = errors.New("lending engine: amount must be positive")
	ErrInsufficientBalance     = errors.New("lending engine: insufficient balance")
	ErrInsufficientLiquidity   = errors.New("lending engine: insufficient pool liquidity")
	ErrInsufficientCash        = errors.New("lending engine: insufficient pool cash")
	ErrInsufficientCollateral  = errors.New("lending engine: insufficient collateral")
	ErrWouldCauseShortfall     = errors.New("lending engine: redemption would cause shortfall")
	ErrNoDebtToRepay           = errors.New("lending engine: no outstanding debt to repay")
	ErrBorrowerHealthy         = errors.New("lending engine: borrower not eligible for liquidation")
	ErrRepayExceedsCloseFactor = errors.New("lending engine: repay amount exceeds close factor")
	ErrSeizeTooMuch            = errors.New("lending engine: seize exceeds borrower collateral")
	ErrSelfLiquidation         = errors.New("lending engine: borrower cannot liquidate themselves")
	ErrBadCollateralMarket     = errors.New("lending engine: collateral market cannot serve this liquidation")
)
