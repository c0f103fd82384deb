package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-ledger/internal/types"
)

// Restore hooks rebuild engine state from persisted records after a
// restart. They bypass the usual operation preconditions: the records were
// validated when first committed.

// RestoreReserve rebuilds a reserve from a committed balance and its
// deposit trail.
func RestoreReserve(total uint64, sources []types.ReserveSource) *YieldReserve {
	r := NewYieldReserve()
	r.totalUndistributed = total
	r.sources = append(r.sources, sources...)
	return r
}

// RestoreDistribution rebuilds one distribution from persisted shares.
// The holder slice carries the original insertion order.
func RestoreDistribution(id, totalAmount uint64, createdAt time.Time, completed bool, shares []Share, claimed map[common.Address]bool) *Distribution {
	dist := &Distribution{
		ID:          id,
		TotalAmount: totalAmount,
		CreatedAt:   createdAt,
		Completed:   completed,
		shares:      make(map[common.Address]uint64, len(shares)),
		claimed:     make(map[common.Address]bool, len(claimed)),
	}
	for _, share := range shares {
		dist.order = append(dist.order, share.Holder)
		dist.shares[share.Holder] = share.Amount
	}
	for holder, c := range claimed {
		if c {
			dist.claimed[holder] = true
		}
	}
	return dist
}

// Restore inserts a rebuilt distribution and keeps the id sequence ahead
// of everything restored so far.
func (l *DistributionLedger) Restore(dist *Distribution) {
	l.distributions[dist.ID] = dist
	if dist.ID >= l.nextID {
		l.nextID = dist.ID + 1
	}
}

// RestorePosition reinstates a persisted stake position.
func (l *StakeLedger) RestorePosition(holder common.Address, pos StakePosition) {
	p := pos
	l.positions[holder] = &p
}
