// Package token provides an in-memory fungible token ledger used as the
// value-transfer collaborator of the yield ledger engines.
package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is an in-memory account->balance map with a fixed total supply.
// It is safe for concurrent reads and writes.
type Ledger struct {
	mu          sync.Mutex
	balances    map[common.Address]uint64
	totalSupply uint64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]uint64)}
}

// Mint credits an account and grows the total supply.
func (l *Ledger) Mint(to common.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] += amount
	l.totalSupply += amount
}

// BalanceOf reports an account's balance.
func (l *Ledger) BalanceOf(holder common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[holder]
}

// TotalSupply reports the total minted supply.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSupply
}

// transfer moves amount between accounts, failing on insufficient balance.
func (l *Ledger) transfer(from, to common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("insufficient balance: %s has %d, needs %d", from.Hex(), l.balances[from], amount)
	}

	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Account binds the ledger to one owning account, producing the
// FungibleLedger view the engines consume: Transfer debits the owner.
func (l *Ledger) Account(owner common.Address) *BoundAccount {
	return &BoundAccount{ledger: l, owner: owner}
}

// BoundAccount is the ledger as seen by a single owning account.
type BoundAccount struct {
	ledger *Ledger
	owner  common.Address
}

// Transfer moves amount from the bound account to the recipient.
func (a *BoundAccount) Transfer(to common.Address, amount uint64) error {
	return a.ledger.transfer(a.owner, to, amount)
}

// TransferFrom moves amount between two arbitrary accounts.
func (a *BoundAccount) TransferFrom(from, to common.Address, amount uint64) error {
	return a.ledger.transfer(from, to, amount)
}

// BalanceOf reports a holder's balance.
func (a *BoundAccount) BalanceOf(holder common.Address) uint64 {
	return a.ledger.BalanceOf(holder)
}

// TotalSupply reports the total minted supply.
func (a *BoundAccount) TotalSupply() uint64 {
	return a.ledger.TotalSupply()
}
