package types

import "math/big"

// Account is a single ledger entry. Balances are denominated in wei and
// expressed as big integers so arithmetic matches on-chain precision.
type Account struct {
	Nonce      uint64   `json:"nonce"`
	BalanceWei *big.Int `json:"balanceWei"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, BalanceWei: big.NewInt(0)}
	if a.BalanceWei != nil {
		clone.BalanceWei = new(big.Int).Set(a.BalanceWei)
	}
	return clone
}
