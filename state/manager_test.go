package state

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/phoebe87124/appworks-final-project/core/types"
	"github.com/phoebe87124/appworks-final-project/native/auction"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
	"github.com/phoebe87124/appworks-final-project/native/lending"
	"github.com/phoebe87124/appworks-final-project/native/nftpool"
)

var (
	poolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	nftAddr    = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	collection = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	userAddr   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	otherAddr  = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m
}

func TestAccountRoundTrip(t *testing.T) {
	m := openTestManager(t)
	store := m.Accounts()

	missing, err := store.GetAccount(userAddr)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, store.PutAccount(userAddr, &types.Account{Nonce: 3, BalanceWei: big.NewInt(1234)}))
	got, err := store.GetAccount(userAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Nonce)
	require.Zero(t, got.BalanceWei.Cmp(big.NewInt(1234)))
}

func TestLendingStoreScopedByMarket(t *testing.T) {
	m := openTestManager(t)
	a := m.LendingFor(poolAddr)
	b := m.LendingFor(nftAddr)

	market := &lending.Market{
		TotalCash:        big.NewInt(100),
		TotalBorrows:     big.NewInt(40),
		TotalReserves:    big.NewInt(1),
		TotalSupply:      big.NewInt(100),
		BorrowIndex:      big.NewInt(1_000_000),
		LastAccrualBlock: 7,
	}
	require.NoError(t, a.PutMarket(market))

	got, err := a.GetMarket()
	require.NoError(t, err)
	require.Zero(t, got.TotalCash.Cmp(market.TotalCash))
	require.Equal(t, uint64(7), got.LastAccrualBlock)

	none, err := b.GetMarket()
	require.NoError(t, err)
	require.Nil(t, none)

	position := &lending.Position{
		Address:         userAddr,
		Shares:          big.NewInt(55),
		BorrowPrincipal: big.NewInt(10),
		InterestIndex:   big.NewInt(1_000_000),
	}
	require.NoError(t, a.PutPosition(position))
	gotPos, err := a.GetPosition(userAddr)
	require.NoError(t, err)
	require.Zero(t, gotPos.Shares.Cmp(big.NewInt(55)))

	otherPos, err := b.GetPosition(userAddr)
	require.NoError(t, err)
	require.Nil(t, otherPos)
}

func TestRegistryStoreListsInKeyOrder(t *testing.T) {
	m := openTestManager(t)
	store := m.Registry()

	require.NoError(t, store.PutMarket(&comptroller.Market{Address: nftAddr, Kind: comptroller.MarketNonFungible, Listed: true}))
	require.NoError(t, store.PutMarket(&comptroller.Market{Address: poolAddr, Kind: comptroller.MarketFungible, Listed: true, CollateralFactorBps: 5000}))

	addrs, err := store.ListMarkets()
	require.NoError(t, err)
	require.Len(t, addrs, 2)

	record, err := store.GetMarket(poolAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), record.CollateralFactorBps)
	require.Equal(t, comptroller.MarketFungible, record.Kind)

	require.NoError(t, store.PutEnteredMarkets(userAddr, []common.Address{poolAddr}))
	entered, err := store.GetEnteredMarkets(userAddr)
	require.NoError(t, err)
	require.Equal(t, []common.Address{poolAddr}, entered)
}

func TestAuctionStoreRoundTrip(t *testing.T) {
	m := openTestManager(t)
	store := m.Auctions()

	_, ok, err := store.GetAuction(collection, 7)
	require.NoError(t, err)
	require.False(t, ok)

	record := &auction.Auction{
		Collection: collection,
		TokenID:    7,
		Borrower:   userAddr,
		Bidder:     otherAddr,
		Amount:     big.NewInt(150),
		StartTime:  100,
		EndTime:    100 + auction.DefaultDuration,
	}
	require.NoError(t, store.PutAuction(record))

	got, ok, err := store.GetAuction(collection, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, otherAddr, got.Bidder)
	require.Zero(t, got.Amount.Cmp(big.NewInt(150)))

	require.NoError(t, store.DeleteAuction(collection, 7))
	_, ok, err = store.GetAuction(collection, 7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNftStoreCountsUnescrowedClaims(t *testing.T) {
	m := openTestManager(t)
	store := m.NftPoolFor(nftAddr)

	require.NoError(t, store.PutClaim(&nftpool.Claim{TokenID: 1, Owner: userAddr}))
	require.NoError(t, store.PutClaim(&nftpool.Claim{TokenID: 2, Owner: userAddr, Escrowed: true}))
	require.NoError(t, store.PutClaim(&nftpool.Claim{TokenID: 3, Owner: otherAddr}))

	count, err := store.CountClaims(userAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	claim, ok, err := store.GetClaim(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, claim.Escrowed)

	require.NoError(t, store.DeleteClaim(1))
	count, err = store.CountClaims(userAddr)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestTokenLedgerEnforcesOwnership(t *testing.T) {
	m := openTestManager(t)
	ledger := m.Tokens()

	_, err := ledger.OwnerOf(collection, 7)
	require.ErrorIs(t, err, ErrUnknownToken)

	require.NoError(t, ledger.MintToken(collection, 7, userAddr))
	owner, err := ledger.OwnerOf(collection, 7)
	require.NoError(t, err)
	require.Equal(t, userAddr, owner)

	require.Error(t, ledger.Transfer(collection, 7, otherAddr, nftAddr))
	require.NoError(t, ledger.Transfer(collection, 7, userAddr, nftAddr))
	owner, err = ledger.OwnerOf(collection, 7)
	require.NoError(t, err)
	require.Equal(t, nftAddr, owner)
}
