package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	expScale    = mustBigInt("1000000000000000000") // 1e18 mantissa
	halfExp     = new(big.Int).Rsh(expScale, 1)
)

const blocksPerYear = 31_536_000

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulExp multiplies a value by a 1e18 mantissa with half-up rounding.
func mulExp(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfExp)
	product.Quo(product, expScale)
	return product
}

// divExp divides a value by a 1e18 mantissa with half-up rounding.
func divExp(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, expScale)
	numerator.Add(numerator, halfUp(b))
	numerator.Quo(numerator, b)
	return numerator
}

func mulBps(v *big.Int, bps uint64) *big.Int {
	if v == nil || v.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(v, new(big.Int).SetUint64(bps))
	out.Quo(out, basisPoints)
	return out
}

func halfUp(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		return big.NewInt(0)
	}
	half := new(big.Int).Add(x, big.NewInt(1))
	half.Rsh(half, 1)
	return half
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
