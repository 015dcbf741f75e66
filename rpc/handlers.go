package rpc

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/native/comptroller"
	"github.com/phoebe87124/appworks-final-project/native/nftpool"
)

type amountRequest struct {
	From   common.Address `json:"from"`
	Amount string         `json:"amount"`
}

type repayBehalfRequest struct {
	From     common.Address `json:"from"`
	Borrower common.Address `json:"borrower"`
	Amount   string         `json:"amount"`
}

type liquidateRequest struct {
	From             common.Address `json:"from"`
	Borrower         common.Address `json:"borrower"`
	RepayAmount      string         `json:"repayAmount"`
	CollateralMarket common.Address `json:"collateralMarket"`
	TokenID          uint64         `json:"tokenId"`
}

type nftRequest struct {
	From    common.Address `json:"from"`
	Market  common.Address `json:"market"`
	TokenID uint64         `json:"tokenId"`
}

type bidRequest struct {
	From             common.Address `json:"from"`
	CollateralMarket common.Address `json:"collateralMarket"`
	TokenID          uint64         `json:"tokenId"`
	Amount           string         `json:"amount"`
}

type claimRequest struct {
	CollateralMarket common.Address `json:"collateralMarket"`
	TokenID          uint64         `json:"tokenId"`
}

type enterMarketsRequest struct {
	From    common.Address   `json:"from"`
	Markets []common.Address `json:"markets"`
}

type exitMarketRequest struct {
	From   common.Address `json:"from"`
	Market common.Address `json:"market"`
}

type priceRequest struct {
	Caller common.Address `json:"caller"`
	Market common.Address `json:"market"`
	Price  string         `json:"price"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	const route = "lending.mint"
	var req amountRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	var shares *big.Int
	err = s.withEngine(route, func() error {
		var innerErr error
		shares, innerErr = s.pool.Mint(req.From, amount)
		return innerErr
	})
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]string{"shares": shares.String()})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	const route = "lending.redeem"
	var req amountRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	shares, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	var amount *big.Int
	err = s.withEngine(route, func() error {
		var innerErr error
		amount, innerErr = s.pool.Redeem(req.From, shares)
		return innerErr
	})
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]string{"amount": amount.String()})
}

func (s *Server) handleRedeemUnderlying(w http.ResponseWriter, r *http.Request) {
	const route = "lending.redeem_underlying"
	var req amountRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	var shares *big.Int
	err = s.withEngine(route, func() error {
		var innerErr error
		shares, innerErr = s.pool.RedeemUnderlying(req.From, amount)
		return innerErr
	})
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]string{"shares": shares.String()})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	const route = "lending.borrow"
	var req amountRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	if err := s.withEngine(route, func() error {
		return s.pool.Borrow(req.From, amount)
	}); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	const route = "lending.repay"
	var req amountRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	var repaid *big.Int
	err = s.withEngine(route, func() error {
		var innerErr error
		repaid, innerErr = s.pool.RepayBorrow(req.From, amount)
		return innerErr
	})
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]string{"repaid": repaid.String()})
}

func (s *Server) handleRepayBehalf(w http.ResponseWriter, r *http.Request) {
	const route = "lending.repay_behalf"
	var req repayBehalfRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	var repaid *big.Int
	err = s.withEngine(route, func() error {
		var innerErr error
		repaid, innerErr = s.pool.RepayBorrowBehalf(req.From, req.Borrower, amount)
		return innerErr
	})
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]string{"repaid": repaid.String()})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	const route = "lending.liquidate"
	var req liquidateRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	amount, err := parseAmount(req.RepayAmount)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	if err := s.withEngine(route, func() error {
		return s.pool.LiquidateBorrow(req.From, req.Borrower, amount, req.CollateralMarket, req.TokenID)
	}); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

type marketResponse struct {
	TotalCash        string `json:"totalCash"`
	TotalBorrows     string `json:"totalBorrows"`
	TotalReserves    string `json:"totalReserves"`
	TotalSupply      string `json:"totalSupply"`
	BorrowIndex      string `json:"borrowIndex"`
	ExchangeRate     string `json:"exchangeRate"`
	LastAccrualBlock uint64 `json:"lastAccrualBlock"`
}

func (s *Server) handleMarket(w http.ResponseWriter, _ *http.Request) {
	const route = "lending.market"
	s.mu.Lock()
	market, err := s.pool.Market()
	var rate *big.Int
	if err == nil {
		rate, err = s.pool.ExchangeRate()
	}
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, marketResponse{
		TotalCash:        market.TotalCash.String(),
		TotalBorrows:     market.TotalBorrows.String(),
		TotalReserves:    market.TotalReserves.String(),
		TotalSupply:      market.TotalSupply.String(),
		BorrowIndex:      market.BorrowIndex.String(),
		ExchangeRate:     rate.String(),
		LastAccrualBlock: market.LastAccrualBlock,
	})
}

type positionResponse struct {
	Address       string `json:"address"`
	Shares        string `json:"shares"`
	BorrowBalance string `json:"borrowBalance"`
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	const route = "lending.position"
	addr, ok := queryAddress(r, "address")
	if !ok {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: "missing or invalid address", Code: "BadRequest"})
		return
	}
	s.mu.Lock()
	position, err := s.pool.PositionOf(addr)
	var owed *big.Int
	if err == nil {
		owed, err = s.pool.BorrowBalanceOf(addr)
	}
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, positionResponse{
		Address:       addr.Hex(),
		Shares:        position.Shares.String(),
		BorrowBalance: owed.String(),
	})
}

func (s *Server) nftPool(market common.Address) (*nftpool.Engine, error) {
	pool, ok := s.nftPools[market]
	if !ok {
		return nil, comptroller.ErrMarketNotListed
	}
	return pool, nil
}

func (s *Server) handleNftMint(w http.ResponseWriter, r *http.Request) {
	const route = "nft.mint"
	var req nftRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	if err := s.withEngine(route, func() error {
		pool, err := s.nftPool(req.Market)
		if err != nil {
			return err
		}
		return pool.Mint(req.From, req.TokenID)
	}); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleNftRedeem(w http.ResponseWriter, r *http.Request) {
	const route = "nft.redeem"
	var req nftRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	if err := s.withEngine(route, func() error {
		pool, err := s.nftPool(req.Market)
		if err != nil {
			return err
		}
		return pool.Redeem(req.From, req.TokenID)
	}); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleNftClaim(w http.ResponseWriter, r *http.Request) {
	const route = "nft.claim"
	market, ok := queryAddress(r, "market")
	tokenID, tokenOK := queryTokenID(r)
	if !ok || !tokenOK {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: "missing market or tokenId", Code: "BadRequest"})
		return
	}
	s.mu.Lock()
	pool, err := s.nftPool(market)
	var claim *nftpool.Claim
	var found bool
	if err == nil {
		claim, found, err = pool.ClaimOf(tokenID)
	}
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	if !found {
		s.writeError(w, route, nftpool.ErrNoClaim)
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]any{
		"tokenId":  claim.TokenID,
		"owner":    claim.Owner.Hex(),
		"escrowed": claim.Escrowed,
	})
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	const route = "auction.bid"
	var req bidRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	if err := s.withEngine(route, func() error {
		return s.pool.BidNftAuction(req.From, req.CollateralMarket, req.TokenID, amount)
	}); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	const route = "auction.claim"
	var req claimRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	if err := s.withEngine(route, func() error {
		return s.pool.ClaimAuction(req.CollateralMarket, req.TokenID)
	}); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleAuctionStatus(w http.ResponseWriter, r *http.Request) {
	const route = "auction.status"
	collection, ok := queryAddress(r, "collection")
	tokenID, tokenOK := queryTokenID(r)
	if !ok || !tokenOK {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: "missing collection or tokenId", Code: "BadRequest"})
		return
	}
	s.mu.Lock()
	record, found, err := s.auctions.Get(collection, tokenID)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	if !found {
		s.writeJSON(w, route, http.StatusOK, map[string]any{"active": false})
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]any{
		"active":    true,
		"borrower":  record.Borrower.Hex(),
		"bidder":    record.Bidder.Hex(),
		"amount":    record.Amount.String(),
		"startTime": record.StartTime,
		"endTime":   record.EndTime,
	})
}

func (s *Server) handleEnterMarkets(w http.ResponseWriter, r *http.Request) {
	const route = "comptroller.enter_markets"
	var req enterMarketsRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	if err := s.withEngine(route, func() error {
		return s.comptroller.EnterMarkets(req.From, req.Markets)
	}); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleExitMarket(w http.ResponseWriter, r *http.Request) {
	const route = "comptroller.exit_market"
	var req exitMarketRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	if err := s.withEngine(route, func() error {
		return s.comptroller.ExitMarket(req.From, req.Market)
	}); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	const route = "comptroller.liquidity"
	addr, ok := queryAddress(r, "address")
	if !ok {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: "missing or invalid address", Code: "BadRequest"})
		return
	}
	s.mu.Lock()
	result, err := s.comptroller.AccountLiquidity(addr)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]string{
		"liquidity": result.Liquidity.String(),
		"shortfall": result.Shortfall.String(),
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, _ *http.Request) {
	const route = "comptroller.markets"
	s.mu.Lock()
	records, err := s.comptroller.Markets()
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"address":             rec.Address.Hex(),
			"kind":                rec.Kind.String(),
			"collateralFactorBps": rec.CollateralFactorBps,
		})
	}
	s.writeJSON(w, route, http.StatusOK, out)
}

func (s *Server) handleSetUnderlyingPrice(w http.ResponseWriter, r *http.Request) {
	s.handleSetPrice(w, r, "oracle.underlying", s.prices.SetUnderlyingPrice)
}

func (s *Server) handleSetNftPrice(w http.ResponseWriter, r *http.Request) {
	s.handleSetPrice(w, r, "oracle.nft", s.prices.SetNftPrice)
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request, route string, set func(common.Address, *big.Int)) {
	var req priceRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, route, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BadRequest"})
		return
	}
	if req.Caller != s.comptroller.Owner() {
		s.writeError(w, route, comptroller.ErrUnauthorized)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	set(req.Market, price)
	s.writeJSON(w, route, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	const route = "events"
	if s.collector == nil {
		s.writeJSON(w, route, http.StatusOK, []any{})
		return
	}
	s.writeJSON(w, route, http.StatusOK, s.collector.Events())
}

func queryAddress(r *http.Request, key string) (common.Address, bool) {
	raw := r.URL.Query().Get(key)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func queryTokenID(r *http.Request) (uint64, bool) {
	raw := r.URL.Query().Get("tokenId")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
