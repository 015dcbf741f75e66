package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Market captures the financial state of the ETH pool. Amounts are wei;
// BorrowIndex is a 1e18 mantissa that grows as interest accrues.
type Market struct {
	// TotalCash is the underlying currently held by the pool vault.
	TotalCash *big.Int `json:"totalCash"`
	// TotalBorrows is the outstanding debt across all accounts, including
	// accrued interest.
	TotalBorrows *big.Int `json:"totalBorrows"`
	// TotalReserves is the interest slice routed to protocol reserves.
	TotalReserves *big.Int `json:"totalReserves"`
	// TotalSupply is the number of pool shares in circulation.
	TotalSupply *big.Int `json:"totalSupply"`
	// BorrowIndex is the cumulative interest index applied to borrower debt.
	BorrowIndex *big.Int `json:"borrowIndex"`
	// LastAccrualBlock records the block height of the last interest accrual.
	LastAccrualBlock uint64 `json:"lastAccrualBlock"`
}

// Clone returns a deep copy of the market state.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := &Market{LastAccrualBlock: m.LastAccrualBlock}
	clone.TotalCash = cloneOrZero(m.TotalCash)
	clone.TotalBorrows = cloneOrZero(m.TotalBorrows)
	clone.TotalReserves = cloneOrZero(m.TotalReserves)
	clone.TotalSupply = cloneOrZero(m.TotalSupply)
	clone.BorrowIndex = cloneOrZero(m.BorrowIndex)
	return clone
}

// Position is an account's footprint in the pool: share balance plus the
// borrow snapshot taken at the account's last debt-mutating operation.
type Position struct {
	Address common.Address `json:"address"`
	// Shares is the account's pool share balance.
	Shares *big.Int `json:"shares"`
	// BorrowPrincipal is the debt recorded at the snapshot index.
	BorrowPrincipal *big.Int `json:"borrowPrincipal"`
	// InterestIndex is the market borrow index at snapshot time. Current
	// debt is BorrowPrincipal * BorrowIndex / InterestIndex.
	InterestIndex *big.Int `json:"interestIndex"`
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address}
	clone.Shares = cloneOrZero(p.Shares)
	clone.BorrowPrincipal = cloneOrZero(p.BorrowPrincipal)
	clone.InterestIndex = cloneOrZero(p.InterestIndex)
	return clone
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
