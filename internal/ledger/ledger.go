// Package ledger implements the deterministic financial-state engines of the
// yield ledger: balance snapshots, pro-rata allocation, the dual push/pull
// distribution ledger, the yield reserve and the time-accrued stake ledger.
//
// The engines hold pure in-process state and perform no locking of their
// own; the owning service serializes every mutating call. External value
// movement goes through the FungibleLedger interface and is never assumed
// to succeed.
package ledger

import "github.com/ethereum/go-ethereum/common"

// FungibleLedger is the opaque token interface the engines read balances
// from and pay value into. Implementations are bound to the account that
// holds the engine's funds: Transfer debits that account.
type FungibleLedger interface {
	// Transfer moves amount from the bound account to the recipient.
	Transfer(to common.Address, amount uint64) error
	// TransferFrom moves amount between two arbitrary accounts, subject to
	// the implementation's authorization rules.
	TransferFrom(from, to common.Address, amount uint64) error
	// BalanceOf reports the current balance of a holder.
	BalanceOf(holder common.Address) uint64
	// TotalSupply reports the current total token supply.
	TotalSupply() uint64
}
