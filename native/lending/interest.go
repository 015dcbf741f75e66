package lending

import "math/big"

// InterestModel derives a per-block borrow rate (1e18 mantissa) from market
// conditions. Implementations are pure functions of their inputs.
type InterestModel interface {
	GetBorrowRate(cash, borrows, reserves *big.Int) (*big.Int, error)
}

// utilization computes borrows / (cash + borrows - reserves) as a 1e18
// mantissa. Zero borrows or a non-positive denominator yield zero.
func utilization(cash, borrows, reserves *big.Int) *big.Int {
	if borrows == nil || borrows.Sign() == 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(orZero(cash), borrows)
	denom.Sub(denom, orZero(reserves))
	if denom.Sign() <= 0 {
		return big.NewInt(0)
	}
	return divExp(borrows, denom)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// WhitePaperModel is the linear rate curve: rate = base + utilization *
// multiplier, all per block.
type WhitePaperModel struct {
	baseRatePerBlock   *big.Int
	multiplierPerBlock *big.Int
}

// NewWhitePaperModel constructs the linear model from yearly decimal rates,
// e.g. a 2% base rate is expressed as 0.02.
func NewWhitePaperModel(baseRatePerYear, multiplierPerYear float64) *WhitePaperModel {
	return &WhitePaperModel{
		baseRatePerBlock:   yearlyToPerBlock(baseRatePerYear),
		multiplierPerBlock: yearlyToPerBlock(multiplierPerYear),
	}
}

// GetBorrowRate implements the InterestModel interface.
func (m *WhitePaperModel) GetBorrowRate(cash, borrows, reserves *big.Int) (*big.Int, error) {
	if m == nil {
		return big.NewInt(0), nil
	}
	util := utilization(cash, borrows, reserves)
	rate := mulExp(util, m.multiplierPerBlock)
	rate.Add(rate, orZero(m.baseRatePerBlock))
	return rate, nil
}

// JumpRateModel is the kinked curve: linear up to the kink utilization,
// then a steeper jump multiplier beyond it to defend pool liquidity.
type JumpRateModel struct {
	baseRatePerBlock   *big.Int
	multiplierPerBlock *big.Int
	jumpPerBlock       *big.Int
	kink               *big.Int
}

// NewJumpRateModel constructs the kinked model from yearly decimal rates and
// a kink utilization in basis points.
func NewJumpRateModel(baseRatePerYear, multiplierPerYear, jumpMultiplierPerYear float64, kinkBps uint64) *JumpRateModel {
	kink := new(big.Int).Mul(new(big.Int).SetUint64(kinkBps), expScale)
	kink.Quo(kink, basisPoints)
	return &JumpRateModel{
		baseRatePerBlock:   yearlyToPerBlock(baseRatePerYear),
		multiplierPerBlock: yearlyToPerBlock(multiplierPerYear),
		jumpPerBlock:       yearlyToPerBlock(jumpMultiplierPerYear),
		kink:               kink,
	}
}

// GetBorrowRate implements the InterestModel interface.
func (m *JumpRateModel) GetBorrowRate(cash, borrows, reserves *big.Int) (*big.Int, error) {
	if m == nil {
		return big.NewInt(0), nil
	}
	util := utilization(cash, borrows, reserves)
	if m.kink.Sign() == 0 || util.Cmp(m.kink) <= 0 {
		rate := mulExp(util, m.multiplierPerBlock)
		rate.Add(rate, orZero(m.baseRatePerBlock))
		return rate, nil
	}
	rate := mulExp(m.kink, m.multiplierPerBlock)
	rate.Add(rate, orZero(m.baseRatePerBlock))
	excess := new(big.Int).Sub(util, m.kink)
	rate.Add(rate, mulExp(excess, m.jumpPerBlock))
	return rate, nil
}

// yearlyToPerBlock converts a yearly decimal rate to a per-block 1e18
// mantissa via rational arithmetic, rounding to nearest.
func yearlyToPerBlock(yearly float64) *big.Int {
	rate := new(big.Rat)
	if yearly > 0 {
		rate.SetFloat64(yearly)
	}
	rate.Quo(rate, new(big.Rat).SetUint64(blocksPerYear))
	scaled := new(big.Rat).Mul(rate, new(big.Rat).SetInt(expScale))
	num := new(big.Int).Lsh(scaled.Num(), 1)
	num.Add(num, scaled.Denom())
	out := num.Quo(num, new(big.Int).Lsh(scaled.Denom(), 1))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}
