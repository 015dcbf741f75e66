package lending

import (
	"math/big"
	"testing"
)

func TestAccrualGrowsDebtReservesAndIndex(t *testing.T) {
	f := newFixture(t)
	f.eng.SetInterestModel(fixedRateModel{rate: big.NewInt(100_000_000_000_000)}) // 1e14 per block
	f.eng.SetReserveFactor(1000)
	f.store.fund(lenderAddr, 1_000_000)
	f.mint(t, lenderAddr, 1_000_000)
	f.enter(t, lenderAddr, poolAddr)
	f.borrow(t, lenderAddr, 400_000)

	f.eng.SetBlockHeight(2)
	if err := f.eng.AccrueInterest(); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	market, _ := f.eng.Market()
	// interest = 400000 * 1e14 / 1e18 = 40, reserves 10% of that.
	if market.TotalBorrows.Cmp(big.NewInt(400_040)) != 0 {
		t.Fatalf("totalBorrows = %s, want 400040", market.TotalBorrows)
	}
	if market.TotalReserves.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("totalReserves = %s, want 4", market.TotalReserves)
	}
	wantIndex := new(big.Int).Add(expScale, big.NewInt(100_000_000_000_000))
	if market.BorrowIndex.Cmp(wantIndex) != 0 {
		t.Fatalf("borrowIndex = %s, want %s", market.BorrowIndex, wantIndex)
	}
	if market.LastAccrualBlock != 2 {
		t.Fatalf("lastAccrualBlock = %d, want 2", market.LastAccrualBlock)
	}

	owed, _ := f.eng.BorrowBalanceOf(lenderAddr)
	if owed.Cmp(big.NewInt(400_040)) != 0 {
		t.Fatalf("owed = %s, want 400040", owed)
	}
}

func TestAccrualIdempotentWithinBlock(t *testing.T) {
	f := newFixture(t)
	f.eng.SetInterestModel(fixedRateModel{rate: big.NewInt(100_000_000_000_000)})
	f.store.fund(lenderAddr, 1_000_000)
	f.mint(t, lenderAddr, 1_000_000)
	f.enter(t, lenderAddr, poolAddr)
	f.borrow(t, lenderAddr, 400_000)

	f.eng.SetBlockHeight(2)
	if err := f.eng.AccrueInterest(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	first, _ := f.eng.Market()
	if err := f.eng.AccrueInterest(); err != nil {
		t.Fatalf("second accrue: %v", err)
	}
	second, _ := f.eng.Market()
	if first.TotalBorrows.Cmp(second.TotalBorrows) != 0 || first.BorrowIndex.Cmp(second.BorrowIndex) != 0 {
		t.Fatalf("accrual not idempotent: %s/%s vs %s/%s",
			first.TotalBorrows, first.BorrowIndex, second.TotalBorrows, second.BorrowIndex)
	}
}

func TestAccrualScalesWithBlockDelta(t *testing.T) {
	f := newFixture(t)
	f.eng.SetInterestModel(fixedRateModel{rate: big.NewInt(100_000_000_000_000)})
	f.store.fund(lenderAddr, 1_000_000)
	f.mint(t, lenderAddr, 1_000_000)
	f.enter(t, lenderAddr, poolAddr)
	f.borrow(t, lenderAddr, 400_000)

	f.eng.SetBlockHeight(101)
	if err := f.eng.AccrueInterest(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	market, _ := f.eng.Market()
	// 100 blocks: interest = 400000 * 1e16 / 1e18 = 4000.
	if market.TotalBorrows.Cmp(big.NewInt(404_000)) != 0 {
		t.Fatalf("totalBorrows = %s, want 404000", market.TotalBorrows)
	}
}

func TestExchangeRateReflectsAccruedInterest(t *testing.T) {
	f := newFixture(t)
	f.eng.SetInterestModel(fixedRateModel{rate: big.NewInt(100_000_000_000_000)})
	f.store.fund(lenderAddr, 1_000_000)
	f.mint(t, lenderAddr, 1_000_000)
	f.enter(t, lenderAddr, poolAddr)
	f.borrow(t, lenderAddr, 400_000)

	f.eng.SetBlockHeight(101)
	if err := f.eng.AccrueInterest(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	rate, err := f.eng.ExchangeRate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	// (cash 600000 + borrows 404000) / supply 1000000 = 1.004.
	want := divExp(big.NewInt(1_004_000), big.NewInt(1_000_000))
	if rate.Cmp(want) != 0 {
		t.Fatalf("rate = %s, want %s", rate, want)
	}
}

func TestEmptyExchangeRateUsesInitial(t *testing.T) {
	f := newFixture(t)
	initial := new(big.Int).Mul(big.NewInt(2), expScale)
	f.eng.SetInitialExchangeRate(initial)
	rate, err := f.eng.ExchangeRate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Cmp(initial) != 0 {
		t.Fatalf("rate = %s, want %s while supply is zero", rate, initial)
	}
}

func TestWhitePaperModelRate(t *testing.T) {
	// 0.031536 yearly is exactly 1e9 per block, 0.31536 is 1e10.
	model := NewWhitePaperModel(0.031536, 0.31536)
	rate, err := model.GetBorrowRate(big.NewInt(500), big.NewInt(500), big.NewInt(0))
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	// utilization 0.5: 1e9 + 0.5 * 1e10 = 6e9.
	if rate.Cmp(big.NewInt(6_000_000_000)) != 0 {
		t.Fatalf("rate = %s, want 6e9", rate)
	}
}

func TestJumpRateModelKink(t *testing.T) {
	model := NewJumpRateModel(0, 0.31536, 3.1536, 8000)
	// Full utilization: 0.8 * 1e10 + 0.2 * 1e11 = 2.8e10.
	rate, err := model.GetBorrowRate(big.NewInt(0), big.NewInt(1000), big.NewInt(0))
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Cmp(big.NewInt(28_000_000_000)) != 0 {
		t.Fatalf("rate = %s, want 2.8e10", rate)
	}
	// Below the kink the jump term stays out.
	rate, err = model.GetBorrowRate(big.NewInt(500), big.NewInt(500), big.NewInt(0))
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Fatalf("rate = %s, want 5e9", rate)
	}
}

func TestUtilizationBounds(t *testing.T) {
	if got := utilization(big.NewInt(100), big.NewInt(0), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("empty utilization = %s, want 0", got)
	}
	if got := utilization(big.NewInt(0), big.NewInt(100), big.NewInt(0)); got.Cmp(expScale) != 0 {
		t.Fatalf("full utilization = %s, want 1e18", got)
	}
}
