package rpc

import (
	"errors"
	"net/http"

	"github.com/phoebe87124/appworks-final-project/native/auction"
	nativecommon "github.com/phoebe87124/appworks-final-project/native/common"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
	"github.com/phoebe87124/appworks-final-project/native/lending"
	"github.com/phoebe87124/appworks-final-project/native/nftpool"
	"github.com/phoebe87124/appworks-final-project/oracle"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable maps engine sentinel errors to stable response codes. Unmapped
// errors surface as a 500 InternalError without leaking detail.
var errorTable = []errorMapping{
	{nativecommon.ErrModulePaused, http.StatusServiceUnavailable, "ModulePaused"},

	{comptroller.ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
	{comptroller.ErrMarketNotListed, http.StatusBadRequest, "MarketNotListed"},
	{comptroller.ErrMarketAlreadyListed, http.StatusConflict, "MarketAlreadyListed"},
	{comptroller.ErrInvalidCollateralFactor, http.StatusBadRequest, "InvalidCollateralFactor"},
	{comptroller.ErrInvalidCloseFactor, http.StatusBadRequest, "InvalidCloseFactor"},
	{comptroller.ErrPriceUnavailable, http.StatusBadRequest, "PriceUnavailable"},
	{comptroller.ErrOutstandingDebt, http.StatusBadRequest, "OutstandingDebt"},
	{comptroller.ErrExitShortfall, http.StatusBadRequest, "ExitShortfall"},

	{lending.ErrInvalidAmount, http.StatusBadRequest, "ZeroAmount"},
	{lending.ErrInsufficientBalance, http.StatusBadRequest, "InsufficientBalance"},
	{lending.ErrInsufficientLiquidity, http.StatusBadRequest, "InsufficientLiquidity"},
	{lending.ErrInsufficientCash, http.StatusBadRequest, "InsufficientCash"},
	{lending.ErrInsufficientCollateral, http.StatusBadRequest, "InsufficientCollateral"},
	{lending.ErrWouldCauseShortfall, http.StatusBadRequest, "WouldCauseShortfall"},
	{lending.ErrNoDebtToRepay, http.StatusBadRequest, "NoDebtToRepay"},
	{lending.ErrBorrowerHealthy, http.StatusBadRequest, "BorrowerHealthy"},
	{lending.ErrRepayExceedsCloseFactor, http.StatusBadRequest, "RepayExceedsCloseFactor"},
	{lending.ErrSelfLiquidation, http.StatusBadRequest, "SelfLiquidation"},
	{lending.ErrSeizeTooMuch, http.StatusBadRequest, "SeizeTooMuch"},
	{lending.ErrBadCollateralMarket, http.StatusBadRequest, "BadCollateralMarket"},

	{auction.ErrInvalidAmount, http.StatusBadRequest, "ZeroAmount"},
	{auction.ErrAuctionExists, http.StatusConflict, "AuctionExists"},
	{auction.ErrNoActiveAuction, http.StatusNotFound, "NoActiveAuction"},
	{auction.ErrBidTooLow, http.StatusBadRequest, "BidTooLow"},
	{auction.ErrAuctionEnded, http.StatusBadRequest, "AuctionEnded"},
	{auction.ErrAuctionStillActive, http.StatusBadRequest, "AuctionStillActive"},

	{nftpool.ErrNotTokenOwner, http.StatusForbidden, "NotTokenOwner"},
	{nftpool.ErrNoClaim, http.StatusNotFound, "NoClaim"},
	{nftpool.ErrNotClaimOwner, http.StatusForbidden, "NotClaimOwner"},
	{nftpool.ErrTokenEscrowed, http.StatusConflict, "TokenEscrowed"},
	{nftpool.ErrTokenNotEscrowed, http.StatusBadRequest, "TokenNotEscrowed"},
	{nftpool.ErrWouldCauseShortfall, http.StatusBadRequest, "WouldCauseShortfall"},

	{oracle.ErrPriceNotSet, http.StatusBadRequest, "PriceUnavailable"},
}

func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "InternalError"
}
