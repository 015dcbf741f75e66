package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/core/types"
)

const (
	TypeMint            = "lending.mint"
	TypeRedeem          = "lending.redeem"
	TypeBorrow          = "lending.borrow"
	TypeRepayBorrow     = "lending.repay_borrow"
	TypeLiquidateBorrow = "lending.liquidate_borrow"
)

// Mint is emitted when a supplier deposits underlying and receives pool
// shares in return.
type Mint struct {
	Market common.Address
	Minter common.Address
	Amount *big.Int
	Shares *big.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{
		Type: TypeMint,
		Attributes: map[string]string{
			"market": formatAddress(e.Market),
			"minter": formatAddress(e.Minter),
			"amount": formatAmount(e.Amount),
			"shares": formatAmount(e.Shares),
		},
	}
}

// Redeem is emitted when pool shares are burned for underlying.
type Redeem struct {
	Market   common.Address
	Redeemer common.Address
	Amount   *big.Int
	Shares   *big.Int
}

func (Redeem) EventType() string { return TypeRedeem }

func (e Redeem) Event() *types.Event {
	return &types.Event{
		Type: TypeRedeem,
		Attributes: map[string]string{
			"market":   formatAddress(e.Market),
			"redeemer": formatAddress(e.Redeemer),
			"amount":   formatAmount(e.Amount),
			"shares":   formatAmount(e.Shares),
		},
	}
}

// Borrow is emitted when underlying leaves the pool as a loan.
type Borrow struct {
	Market          common.Address
	Borrower        common.Address
	Amount          *big.Int
	NewPrincipal    *big.Int
	NewTotalBorrows *big.Int
}

func (Borrow) EventType() string { return TypeBorrow }

func (e Borrow) Event() *types.Event {
	return &types.Event{
		Type: TypeBorrow,
		Attributes: map[string]string{
			"market":          formatAddress(e.Market),
			"borrower":        formatAddress(e.Borrower),
			"amount":          formatAmount(e.Amount),
			"newPrincipal":    formatAmount(e.NewPrincipal),
			"newTotalBorrows": formatAmount(e.NewTotalBorrows),
		},
	}
}

// RepayBorrow is emitted when outstanding debt is reduced, whether by the
// borrower, a third party, or an auction settlement.
type RepayBorrow struct {
	Market          common.Address
	Payer           common.Address
	Borrower        common.Address
	Amount          *big.Int
	NewPrincipal    *big.Int
	NewTotalBorrows *big.Int
}

func (RepayBorrow) EventType() string { return TypeRepayBorrow }

func (e RepayBorrow) Event() *types.Event {
	return &types.Event{
		Type: TypeRepayBorrow,
		Attributes: map[string]string{
			"market":          formatAddress(e.Market),
			"payer":           formatAddress(e.Payer),
			"borrower":        formatAddress(e.Borrower),
			"amount":          formatAmount(e.Amount),
			"newPrincipal":    formatAmount(e.NewPrincipal),
			"newTotalBorrows": formatAmount(e.NewTotalBorrows),
		},
	}
}

// LiquidateBorrow is emitted when an undercollateralized position is
// liquidated against fungible or non-fungible collateral.
type LiquidateBorrow struct {
	Market           common.Address
	Liquidator       common.Address
	Borrower         common.Address
	RepayAmount      *big.Int
	CollateralMarket common.Address
}

func (LiquidateBorrow) EventType() string { return TypeLiquidateBorrow }

func (e LiquidateBorrow) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidateBorrow,
		Attributes: map[string]string{
			"market":           formatAddress(e.Market),
			"liquidator":       formatAddress(e.Liquidator),
			"borrower":         formatAddress(e.Borrower),
			"repayAmount":      formatAmount(e.RepayAmount),
			"collateralMarket": formatAddress(e.CollateralMarket),
		},
	}
}
