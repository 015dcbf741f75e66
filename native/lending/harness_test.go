package lending

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/types"
	"github.com/phoebe87124/appworks-final-project/native/auction"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
)

var (
	ownerAddr      = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	poolAddr       = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	nftMarketAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	nftCollection  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	vaultAddr      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	lenderAddr     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	lenderBAddr    = common.HexToAddress("0x0000000000000000000000000000000000000002")
	borrowerAddr   = common.HexToAddress("0x0000000000000000000000000000000000000003")
	liquidatorAddr = common.HexToAddress("0x0000000000000000000000000000000000000004")
	rivalAddr      = common.HexToAddress("0x0000000000000000000000000000000000000005")
)

type memState struct {
	market    *Market
	positions map[common.Address]*Position
	accounts  map[common.Address]*types.Account
}

func newMemState() *memState {
	return &memState{
		positions: make(map[common.Address]*Position),
		accounts:  make(map[common.Address]*types.Account),
	}
}

func (m *memState) GetMarket() (*Market, error) { return m.market.Clone(), nil }

func (m *memState) PutMarket(market *Market) error {
	m.market = market.Clone()
	return nil
}

func (m *memState) GetPosition(addr common.Address) (*Position, error) {
	return m.positions[addr].Clone(), nil
}

func (m *memState) PutPosition(position *Position) error {
	m.positions[position.Address] = position.Clone()
	return nil
}

func (m *memState) GetAccount(addr common.Address) (*types.Account, error) {
	return m.accounts[addr].Clone(), nil
}

func (m *memState) PutAccount(addr common.Address, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *memState) fund(addr common.Address, amount int64) {
	m.accounts[addr] = &types.Account{BalanceWei: big.NewInt(amount)}
}

func (m *memState) balance(addr common.Address) *big.Int {
	acc := m.accounts[addr]
	if acc == nil || acc.BalanceWei == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.BalanceWei)
}

type memRegistry struct {
	markets map[common.Address]*comptroller.Market
	order   []common.Address
	entered map[common.Address][]common.Address
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		markets: make(map[common.Address]*comptroller.Market),
		entered: make(map[common.Address][]common.Address),
	}
}

func (m *memRegistry) GetMarket(addr common.Address) (*comptroller.Market, error) {
	record, ok := m.markets[addr]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

func (m *memRegistry) PutMarket(market *comptroller.Market) error {
	if _, ok := m.markets[market.Address]; !ok {
		m.order = append(m.order, market.Address)
	}
	m.markets[market.Address] = market.Clone()
	return nil
}

func (m *memRegistry) ListMarkets() ([]common.Address, error) {
	return append([]common.Address(nil), m.order...), nil
}

func (m *memRegistry) GetEnteredMarkets(account common.Address) ([]common.Address, error) {
	return append([]common.Address(nil), m.entered[account]...), nil
}

func (m *memRegistry) PutEnteredMarkets(account common.Address, markets []common.Address) error {
	m.entered[account] = append([]common.Address(nil), markets...)
	return nil
}

type stubOracle struct {
	underlying map[common.Address]*big.Int
	nft        map[common.Address]*big.Int
}

func newStubOracle() *stubOracle {
	return &stubOracle{
		underlying: make(map[common.Address]*big.Int),
		nft:        make(map[common.Address]*big.Int),
	}
}

func (o *stubOracle) GetUnderlyingPrice(market common.Address) (*big.Int, error) {
	price, ok := o.underlying[market]
	if !ok {
		return nil, comptroller.ErrPriceUnavailable
	}
	return price, nil
}

func (o *stubOracle) GetNftPrice(market common.Address) (*big.Int, error) {
	price, ok := o.nft[market]
	if !ok {
		return nil, comptroller.ErrPriceUnavailable
	}
	return price, nil
}

// nftStub stands in for an NFT collateral pool. Balances are per-account
// deposit counts; escrow removes a token's collateral weight.
type nftStub struct {
	addr      common.Address
	counts    map[common.Address]int64
	escrowed  map[uint64]common.Address
	settledTo map[uint64]common.Address
}

func newNftStub(addr common.Address) *nftStub {
	return &nftStub{
		addr:      addr,
		counts:    make(map[common.Address]int64),
		escrowed:  make(map[uint64]common.Address),
		settledTo: make(map[uint64]common.Address),
	}
}

func (n *nftStub) MarketAddress() common.Address { return n.addr }

func (n *nftStub) AccountSnapshot(account common.Address) (*big.Int, *big.Int, *big.Int, error) {
	return big.NewInt(n.counts[account]), big.NewInt(0), new(big.Int).Set(expScale), nil
}

func (n *nftStub) EscrowForAuction(tokenID uint64, borrower common.Address) error {
	n.counts[borrower]--
	n.escrowed[tokenID] = borrower
	return nil
}

func (n *nftStub) SettleToWinner(tokenID uint64, winner common.Address) error {
	delete(n.escrowed, tokenID)
	n.settledTo[tokenID] = winner
	return nil
}

type memAuctionState struct {
	records map[uint64]*auction.Auction
}

func (m *memAuctionState) GetAuction(_ common.Address, tokenID uint64) (*auction.Auction, bool, error) {
	record, ok := m.records[tokenID]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *memAuctionState) PutAuction(record *auction.Auction) error {
	m.records[record.TokenID] = record.Clone()
	return nil
}

func (m *memAuctionState) DeleteAuction(_ common.Address, tokenID uint64) error {
	delete(m.records, tokenID)
	return nil
}

// fixedRateModel returns a constant per-block borrow rate.
type fixedRateModel struct {
	rate *big.Int
}

func (m fixedRateModel) GetBorrowRate(_, _, _ *big.Int) (*big.Int, error) {
	return new(big.Int).Set(m.rate), nil
}

type fixture struct {
	comp     *comptroller.Comptroller
	eng      *Engine
	prices   *stubOracle
	store    *memState
	nft      *nftStub
	auctions *auction.Engine
	now      int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		prices: newStubOracle(),
		store:  newMemState(),
		nft:    newNftStub(nftMarketAddr),
		now:    1_000_000,
	}
	f.comp = comptroller.New(ownerAddr, f.prices)
	f.comp.SetState(newMemRegistry())

	f.eng = NewEngine(poolAddr, f.comp)
	f.eng.SetState(f.store)
	f.eng.SetBlockHeight(1)

	f.auctions = auction.NewEngine(vaultAddr)
	f.auctions.SetState(&memAuctionState{records: make(map[uint64]*auction.Auction)})
	f.auctions.SetNowFunc(func() int64 { return f.now })
	f.eng.SetAuctionEngine(f.auctions)

	if err := f.comp.SupportMarket(ownerAddr, f.eng); err != nil {
		t.Fatalf("support pool: %v", err)
	}
	if err := f.comp.SupportNftMarket(ownerAddr, f.nft); err != nil {
		t.Fatalf("support nft: %v", err)
	}
	if err := f.comp.SetCollateralFactor(ownerAddr, poolAddr, 5000); err != nil {
		t.Fatalf("set pool factor: %v", err)
	}
	if err := f.comp.SetCollateralFactor(ownerAddr, nftMarketAddr, 5000); err != nil {
		t.Fatalf("set nft factor: %v", err)
	}
	f.prices.underlying[poolAddr] = new(big.Int).Set(expScale)
	f.prices.nft[nftMarketAddr] = big.NewInt(10_000)
	return f
}

func (f *fixture) mint(t *testing.T, who common.Address, amount int64) *big.Int {
	t.Helper()
	shares, err := f.eng.Mint(who, big.NewInt(amount))
	if err != nil {
		t.Fatalf("mint %d for %s: %v", amount, who.Hex(), err)
	}
	return shares
}

func (f *fixture) enter(t *testing.T, who common.Address, markets ...common.Address) {
	t.Helper()
	if err := f.comp.EnterMarkets(who, markets); err != nil {
		t.Fatalf("enter markets for %s: %v", who.Hex(), err)
	}
}

func (f *fixture) borrow(t *testing.T, who common.Address, amount int64) {
	t.Helper()
	if err := f.eng.Borrow(who, big.NewInt(amount)); err != nil {
		t.Fatalf("borrow %d for %s: %v", amount, who.Hex(), err)
	}
}
