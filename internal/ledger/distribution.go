package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-ledger/internal/types"
)

// Distribution is one allocation run of a fixed total amount across a
// validated snapshot's holders. Shares are computed once at creation and
// never change; claimed flags flip at most once per holder.
type Distribution struct {
	ID          uint64
	TotalAmount uint64
	CreatedAt   time.Time
	Completed   bool

	// order preserves the snapshot's holder insertion order so push
	// payouts iterate deterministically.
	order   []common.Address
	shares  map[common.Address]uint64
	claimed map[common.Address]bool
}

// Share returns the holder's allocated amount, zero if not allocated.
func (d *Distribution) Share(holder common.Address) uint64 {
	return d.shares[holder]
}

// IsClaimed reports whether the holder has been paid for this distribution.
func (d *Distribution) IsClaimed(holder common.Address) bool {
	return d.claimed[holder]
}

// View returns the externally visible distribution state.
func (d *Distribution) View() types.DistributionView {
	view := types.DistributionView{
		ID:          d.ID,
		TotalAmount: d.TotalAmount,
		Completed:   d.Completed,
		CreatedAt:   d.CreatedAt,
	}
	for _, holder := range d.order {
		view.Shares = append(view.Shares, types.HolderShare{
			Holder: holder.Hex(),
			Amount: d.shares[holder],
		})
		if d.claimed[holder] {
			view.Claimed = append(view.Claimed, holder.Hex())
		}
	}
	return view
}

// DistributionLedger tracks every distribution ever created and guarantees
// at-most-once payment per (distribution, holder) across the admin push
// path and the self-service pull path. Distributions are never deleted.
type DistributionLedger struct {
	engine        *AllocationEngine
	distributions map[uint64]*Distribution
	nextID        uint64
}

// NewDistributionLedger creates an empty distribution ledger.
func NewDistributionLedger(engine *AllocationEngine) *DistributionLedger {
	return &DistributionLedger{
		engine:        engine,
		distributions: make(map[uint64]*Distribution),
		nextID:        1,
	}
}

// Create allocates totalAmount across the snapshot's holders, debits the
// reserve and stores the resulting distribution under the next sequential
// id. The reserve must cover the amount and the snapshot must be validated.
func (l *DistributionLedger) Create(snap *SnapshotStore, reserve *YieldReserve, totalAmount uint64, now time.Time) (*Distribution, error) {
	if totalAmount == 0 {
		return nil, errZeroAmount()
	}
	if totalAmount > reserve.Total() {
		return nil, errInsufficientReserve(totalAmount, reserve.Total())
	}

	shares, err := l.engine.Calculate(snap, totalAmount)
	if err != nil {
		return nil, err
	}

	dist := &Distribution{
		ID:          l.nextID,
		TotalAmount: totalAmount,
		CreatedAt:   now,
		shares:      make(map[common.Address]uint64, len(shares)),
		claimed:     make(map[common.Address]bool),
	}
	for _, share := range shares {
		dist.order = append(dist.order, share.Holder)
		dist.shares[share.Holder] = share.Amount
	}

	reserve.debit(totalAmount)
	l.distributions[dist.ID] = dist
	l.nextID++

	return dist, nil
}

// PayoutPush attempts to pay every unclaimed holder with a nonzero share.
// A failed transfer leaves that holder's claimed flag unset and is counted
// rather than aborting the batch: one uncooperative recipient must not
// block payment to the others. The distribution completes only when no
// transfer failed; otherwise the admin may re-invoke, and only the holders
// still unclaimed are retried.
func (l *DistributionLedger) PayoutPush(id uint64, token FungibleLedger) (*types.PayoutResult, error) {
	dist, ok := l.distributions[id]
	if !ok || dist.TotalAmount == 0 {
		return nil, errUnknownDistribution(id)
	}
	if dist.Completed {
		return nil, errAlreadyCompleted(id)
	}

	result := &types.PayoutResult{DistributionID: id}
	for _, holder := range dist.order {
		amount := dist.shares[holder]
		if amount == 0 || dist.claimed[holder] {
			continue
		}

		if err := token.Transfer(holder, amount); err != nil {
			result.FailedCount++
			result.FailedHolders = append(result.FailedHolders, holder.Hex())
			continue
		}

		dist.claimed[holder] = true
		result.PaidCount++
		result.DistributedAmount += amount
	}

	if result.FailedCount == 0 {
		dist.Completed = true
	}
	result.Completed = dist.Completed

	return result, nil
}

// ClaimPull pays the caller their share of one distribution. The claimed
// flag is committed before the external transfer so a reentrant call
// observes it and fails; if the transfer itself fails the flag is rolled
// back and the operation has no effect.
func (l *DistributionLedger) ClaimPull(id uint64, caller common.Address, token FungibleLedger) (uint64, error) {
	dist, ok := l.distributions[id]
	if !ok || dist.TotalAmount == 0 {
		return 0, errUnknownDistribution(id)
	}
	if dist.claimed[caller] {
		return 0, errAlreadyClaimed(id, caller.Hex())
	}

	amount := dist.shares[caller]
	if amount == 0 {
		return 0, errNothingToClaim()
	}

	dist.claimed[caller] = true
	if err := token.Transfer(caller, amount); err != nil {
		dist.claimed[caller] = false
		return 0, errTransferFailed(err)
	}

	return amount, nil
}

// Claimable sums the caller's unclaimed shares across every distribution
// ever created. O(distribution count), acceptable at the expected cadence.
func (l *DistributionLedger) Claimable(holder common.Address) uint64 {
	total := uint64(0)
	for _, dist := range l.distributions {
		if !dist.claimed[holder] {
			total += dist.shares[holder]
		}
	}
	return total
}

// Get returns a distribution by id.
func (l *DistributionLedger) Get(id uint64) (*Distribution, error) {
	dist, ok := l.distributions[id]
	if !ok {
		return nil, errUnknownDistribution(id)
	}
	return dist, nil
}

// Count returns how many distributions have been created.
func (l *DistributionLedger) Count() int {
	return len(l.distributions)
}
