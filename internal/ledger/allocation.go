package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Share is one holder's computed allocation, in snapshot insertion order.
type Share struct {
	Holder common.Address
	Amount uint64
}

// AllocationEngine computes proportional shares of a deposited amount
// across a validated snapshot's holders.
type AllocationEngine struct{}

// NewAllocationEngine creates an allocation engine.
func NewAllocationEngine() *AllocationEngine {
	return &AllocationEngine{}
}

// Calculate splits totalAmount across the snapshot's holders in proportion
// to their recorded balances. Each share is floor(balance * totalAmount /
// totalSupply) computed in big.Int so the product cannot wrap; the
// floor-division remainder is assigned entirely to the first holder in
// insertion order with a nonzero balance. The returned shares always sum
// exactly to totalAmount.
func (e *AllocationEngine) Calculate(snap *SnapshotStore, totalAmount uint64) ([]Share, error) {
	if snap == nil {
		return nil, errNoSnapshotData()
	}
	// A mid-capture snapshot is not yet validated; report it as active
	// rather than as missing data.
	if snap.Active() {
		return nil, errSnapshotActive()
	}
	if !snap.Validated() || snap.HolderCount() == 0 {
		return nil, errNoSnapshotData()
	}
	if totalAmount == 0 {
		return nil, errZeroAmount()
	}

	supply := snap.TotalSupply()
	if supply == 0 {
		// Explicit division-by-zero guard; a zero-supply snapshot has
		// nothing to allocate against.
		return nil, errNoSnapshotData()
	}

	holders := snap.Holders()
	shares := make([]Share, len(holders))
	bigAmount := new(big.Int).SetUint64(totalAmount)
	bigSupply := new(big.Int).SetUint64(supply)

	distributed := uint64(0)
	firstNonzero := -1
	for i, holder := range holders {
		balance := snap.BalanceOf(holder)
		if balance > 0 && firstNonzero < 0 {
			firstNonzero = i
		}

		frac := new(big.Int).SetUint64(balance)
		frac.Mul(frac, bigAmount)
		frac.Div(frac, bigSupply)

		share := frac.Uint64()
		shares[i] = Share{Holder: holder, Amount: share}
		distributed += share
	}

	if distributed > totalAmount {
		// Floor division cannot allocate more than the total; reaching
		// here means the arithmetic above is broken.
		panic("ledger: allocated more than the distribution total")
	}

	// Dust goes to the first nonzero holder in insertion order, not spread.
	// Deterministic tie-break kept for compatibility with prior allocations.
	if dust := totalAmount - distributed; dust > 0 {
		if firstNonzero < 0 {
			return nil, errNoSnapshotData()
		}
		shares[firstNonzero].Amount += dust
	}

	return shares, nil
}
