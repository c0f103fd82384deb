package ledger

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Conservation property: for any holder set and any amount, the computed
// shares sum exactly to the amount, including amounts that do not divide
// evenly by the snapshot supply.
func TestCalculateConservationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("shares sum exactly to the distributed amount", prop.ForAll(
		func(balances []uint64, amountSeed uint64) bool {
			supply := uint64(0)
			holders := make([]common.Address, len(balances))
			for i, b := range balances {
				supply += b
				holders[i] = addr(byte(i + 1))
			}
			if supply == 0 {
				return true // nothing to allocate against
			}

			snap := NewSnapshotStore()
			if err := snap.Take(supply, time.Now()); err != nil {
				return false
			}
			if err := snap.AddHolders(holders, balances); err != nil {
				return false
			}
			if err := snap.Validate(); err != nil {
				return false
			}

			amount := amountSeed%supply + 1

			shares, err := NewAllocationEngine().Calculate(snap, amount)
			if err != nil {
				return false
			}

			total := uint64(0)
			for _, share := range shares {
				total += share.Amount
			}
			return total == amount
		},
		gen.SliceOfN(8, gen.UInt64Range(0, 1<<40)).SuchThat(func(bs []uint64) bool {
			return len(bs) > 0
		}),
		gen.UInt64(),
	))

	properties.Property("zero-balance holders receive nothing", prop.ForAll(
		func(balance uint64, amountSeed uint64) bool {
			if balance == 0 {
				return true
			}

			snap := NewSnapshotStore()
			if err := snap.Take(balance, time.Now()); err != nil {
				return false
			}
			err := snap.AddHolders(
				[]common.Address{addr(1), addr(2)},
				[]uint64{0, balance},
			)
			if err != nil {
				return false
			}
			if err := snap.Validate(); err != nil {
				return false
			}

			amount := amountSeed%balance + 1
			shares, err := NewAllocationEngine().Calculate(snap, amount)
			if err != nil {
				return false
			}
			return shares[0].Amount == 0 && shares[1].Amount == amount
		},
		gen.UInt64Range(0, 1<<40),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
