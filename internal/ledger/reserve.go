package ledger

import (
	"time"

	"github.com/yield-ledger/internal/types"
)

// YieldReserve tracks aggregate undistributed value and the append-only
// trail of where it came from.
type YieldReserve struct {
	totalUndistributed uint64
	sources            []types.ReserveSource
}

// NewYieldReserve creates an empty reserve.
func NewYieldReserve() *YieldReserve {
	return &YieldReserve{}
}

// Deposit adds value to the reserve under a free-text source label.
func (r *YieldReserve) Deposit(label string, amount uint64, now time.Time) error {
	if amount == 0 {
		return errZeroAmount()
	}

	r.totalUndistributed += amount
	r.sources = append(r.sources, types.ReserveSource{
		Label:  label,
		Amount: amount,
		At:     now,
	})

	return nil
}

// Withdraw removes value from the reserve administratively.
func (r *YieldReserve) Withdraw(amount uint64) error {
	if amount == 0 {
		return errZeroAmount()
	}
	if amount > r.totalUndistributed {
		return errInsufficientReserve(amount, r.totalUndistributed)
	}

	r.totalUndistributed -= amount
	return nil
}

// debit reduces the reserve for a distribution creation. The caller has
// already checked the amount against the balance.
func (r *YieldReserve) debit(amount uint64) {
	if amount > r.totalUndistributed {
		panic("ledger: reserve debit exceeds undistributed balance")
	}
	r.totalUndistributed -= amount
}

// Total returns the current undistributed balance.
func (r *YieldReserve) Total() uint64 {
	return r.totalUndistributed
}

// Sources returns the deposit audit trail in order of arrival.
func (r *YieldReserve) Sources() []types.ReserveSource {
	out := make([]types.ReserveSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// View returns the externally visible reserve state.
func (r *YieldReserve) View() types.ReserveView {
	return types.ReserveView{
		TotalUndistributed: r.totalUndistributed,
		Sources:            r.Sources(),
	}
}
