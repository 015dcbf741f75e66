package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/phoebe87124/appworks-final-project/core/events"
	"github.com/phoebe87124/appworks-final-project/core/types"
	"github.com/phoebe87124/appworks-final-project/native/auction"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
	"github.com/phoebe87124/appworks-final-project/native/lending"
	"github.com/phoebe87124/appworks-final-project/native/nftpool"
	"github.com/phoebe87124/appworks-final-project/oracle"
	"github.com/phoebe87124/appworks-final-project/state"
)

var (
	ownerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	poolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	nftAddr    = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	collection = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	userAddr   = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

type testStack struct {
	server  *httptest.Server
	manager *state.Manager
	prices  *oracle.Simple
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	manager, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, manager.Close()) })

	prices := oracle.NewSimple()
	collector := events.NewCollector(64)

	registry := comptroller.New(ownerAddr, prices)
	registry.SetState(manager.Registry())
	registry.SetEmitter(collector)

	pool := lending.NewEngine(poolAddr, registry)
	pool.SetState(manager.LendingFor(poolAddr))
	pool.SetEmitter(collector)

	auctions := auction.NewEngine(poolAddr)
	auctions.SetState(manager.Auctions())
	pool.SetAuctionEngine(auctions)

	np := nftpool.NewEngine(nftAddr, collection, registry)
	np.SetState(manager.NftPoolFor(nftAddr))
	np.SetTokenRegistry(manager.Tokens())

	require.NoError(t, registry.SupportMarket(ownerAddr, pool))
	require.NoError(t, registry.SupportNftMarket(ownerAddr, np))
	require.NoError(t, registry.SetCollateralFactor(ownerAddr, poolAddr, 5000))
	prices.SetUnderlyingPrice(poolAddr, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

	srv := NewServer(registry, pool, map[common.Address]*nftpool.Engine{nftAddr: np}, auctions, prices, collector, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testStack{server: ts, manager: manager, prices: prices}
}

func (s *testStack) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *testStack) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(s.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (s *testStack) fund(t *testing.T, addr common.Address, amount int64) {
	t.Helper()
	require.NoError(t, s.manager.Accounts().PutAccount(addr, &types.Account{BalanceWei: big.NewInt(amount)}))
}

func TestHealthz(t *testing.T) {
	stack := newTestStack(t)
	resp, _ := stack.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMintEndpoint(t *testing.T) {
	stack := newTestStack(t)
	stack.fund(t, userAddr, 1000)

	resp, body := stack.post(t, "/v1/lending/mint", map[string]any{
		"from":   userAddr.Hex(),
		"amount": "1000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1000", body["shares"])
}

func TestMintWithoutFundsMapsToCode(t *testing.T) {
	stack := newTestStack(t)
	resp, body := stack.post(t, "/v1/lending/mint", map[string]any{
		"from":   userAddr.Hex(),
		"amount": "1000",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "InsufficientBalance", body["code"])
}

func TestZeroAmountRejected(t *testing.T) {
	stack := newTestStack(t)
	resp, body := stack.post(t, "/v1/lending/borrow", map[string]any{
		"from":   userAddr.Hex(),
		"amount": "0",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "ZeroAmount", body["code"])
}

func TestMarketEndpointReflectsState(t *testing.T) {
	stack := newTestStack(t)
	stack.fund(t, userAddr, 500)
	resp, _ := stack.post(t, "/v1/lending/mint", map[string]any{
		"from":   userAddr.Hex(),
		"amount": "500",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := stack.get(t, "/v1/lending/market")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var market map[string]any
	require.NoError(t, json.Unmarshal(raw, &market))
	require.Equal(t, "500", market["totalCash"])
	require.Equal(t, "500", market["totalSupply"])
}

func TestEnterMarketsAndLiquidity(t *testing.T) {
	stack := newTestStack(t)
	stack.fund(t, userAddr, 1000)
	resp, _ := stack.post(t, "/v1/lending/mint", map[string]any{
		"from":   userAddr.Hex(),
		"amount": "1000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = stack.post(t, "/v1/comptroller/enter-markets", map[string]any{
		"from":    userAddr.Hex(),
		"markets": []string{poolAddr.Hex()},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := stack.get(t, "/v1/comptroller/liquidity?address="+userAddr.Hex())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var liq map[string]any
	require.NoError(t, json.Unmarshal(raw, &liq))
	require.Equal(t, "500", liq["liquidity"])
	require.Equal(t, "0", liq["shortfall"])
}

func TestOracleUpdateRequiresOwner(t *testing.T) {
	stack := newTestStack(t)
	resp, body := stack.post(t, "/v1/oracle/nft", map[string]any{
		"caller": userAddr.Hex(),
		"market": nftAddr.Hex(),
		"price":  "5000",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "Unauthorized", body["code"])

	resp, _ = stack.post(t, "/v1/oracle/nft", map[string]any{
		"caller": ownerAddr.Hex(),
		"market": nftAddr.Hex(),
		"price":  "5000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuctionStatusInactive(t *testing.T) {
	stack := newTestStack(t)
	resp, raw := stack.get(t, "/v1/auction/status?collection="+nftAddr.Hex()+"&tokenId=7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]any
	require.NoError(t, json.Unmarshal(raw, &status))
	require.Equal(t, false, status["active"])
}

func TestEventsEndpointRecordsActivity(t *testing.T) {
	stack := newTestStack(t)
	stack.fund(t, userAddr, 100)
	resp, _ := stack.post(t, "/v1/lending/mint", map[string]any{
		"from":   userAddr.Hex(),
		"amount": "100",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := stack.get(t, "/v1/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recorded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &recorded))
	require.NotEmpty(t, recorded)
	last := recorded[len(recorded)-1]
	require.Equal(t, "lending.mint", last["type"])
}

func TestMarketsListing(t *testing.T) {
	stack := newTestStack(t)
	resp, raw := stack.get(t, "/v1/comptroller/markets")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var markets []map[string]any
	require.NoError(t, json.Unmarshal(raw, &markets))
	require.Len(t, markets, 2)
}
