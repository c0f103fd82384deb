package ledger

import (
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-ledger/internal/types"
)

const (
	// basisPointDivisor converts basis points to a fraction.
	basisPointDivisor = 10_000
	// secondsPerYear is the accrual year length, 365 days.
	secondsPerYear = 365 * 24 * 60 * 60
	// MaxAPYBasisPoints bounds administrative APY updates.
	MaxAPYBasisPoints = 10_000
)

// StakePosition is one staker's live position. Active implies a nonzero
// principal.
type StakePosition struct {
	Principal   uint64
	StakedAt    time.Time
	LastClaimAt time.Time
	Active      bool
}

// StakeLedger tracks per-staker principal with a continuously accruing,
// claim-at-will reward and a minimum lock before exit. Rewards compound
// only when folded into principal by a top-up stake, not continuously.
type StakeLedger struct {
	positions      map[common.Address]*StakePosition
	vault          common.Address
	lockPeriod     time.Duration
	apyBasisPoints uint64
	paused         bool

	now func() time.Time
}

// NewStakeLedger creates a stake ledger. The vault is the account that
// holds staked principal; lockPeriod gates unstaking and apyBasisPoints
// sets the accrual rate.
func NewStakeLedger(vault common.Address, lockPeriod time.Duration, apyBasisPoints uint64) *StakeLedger {
	return &StakeLedger{
		positions:      make(map[common.Address]*StakePosition),
		vault:          vault,
		lockPeriod:     lockPeriod,
		apyBasisPoints: apyBasisPoints,
		now:            time.Now,
	}
}

// Accrue computes the reward earned by principal at apyBasisPoints over
// [from, to]: principal * apy * elapsed / (secondsPerYear * 10000).
//
// When principal exceeds MaxUint64 / apyBasisPoints the result degrades to
// zero instead of overflowing or failing the caller. That conservative
// degradation is deliberate policy, not an error path.
func Accrue(principal uint64, from, to time.Time, apyBasisPoints uint64) uint64 {
	if apyBasisPoints == 0 || principal == 0 || !to.After(from) {
		return 0
	}
	if principal > math.MaxUint64/apyBasisPoints {
		return 0
	}

	elapsed := uint64(to.Sub(from) / time.Second)

	// The rate product fits uint64 after the bound above; the elapsed
	// multiplication still needs full width.
	reward := new(big.Int).SetUint64(principal * apyBasisPoints)
	reward.Mul(reward, new(big.Int).SetUint64(elapsed))
	reward.Div(reward, big.NewInt(secondsPerYear*basisPointDivisor))

	if !reward.IsUint64() {
		return 0
	}
	return reward.Uint64()
}

// Stake pulls amount from the caller into the vault. A first stake opens a
// position; a top-up folds the pending reward into principal and resets
// both timestamps, so accrual restarts from now on the larger principal.
func (l *StakeLedger) Stake(caller common.Address, amount uint64, token FungibleLedger) error {
	if l.paused {
		return errStakingPaused()
	}
	if amount == 0 {
		return errZeroAmount()
	}

	if err := token.TransferFrom(caller, l.vault, amount); err != nil {
		return errTransferFailed(err)
	}

	now := l.now()
	pos, ok := l.positions[caller]
	if !ok || !pos.Active {
		l.positions[caller] = &StakePosition{
			Principal:   amount,
			StakedAt:    now,
			LastClaimAt: now,
			Active:      true,
		}
		return nil
	}

	pending := Accrue(pos.Principal, pos.LastClaimAt, now, l.apyBasisPoints)
	pos.Principal += amount + pending
	pos.StakedAt = now
	pos.LastClaimAt = now

	return nil
}

// Unstake exits the caller's position after the lock period, paying out
// principal plus accrued rewards. The position is zeroed before the
// external transfer; a failed transfer restores it so the call has no
// partial effect. Unstake stays available while staking is paused.
func (l *StakeLedger) Unstake(caller common.Address, token FungibleLedger) (uint64, error) {
	pos, ok := l.positions[caller]
	if !ok || !pos.Active {
		return 0, errNoActiveStake(caller.Hex())
	}

	now := l.now()
	unlockAt := pos.StakedAt.Add(l.lockPeriod)
	if now.Before(unlockAt) {
		return 0, errLockNotElapsed(unlockAt.Sub(now).String())
	}

	rewards := Accrue(pos.Principal, pos.LastClaimAt, now, l.apyBasisPoints)
	payout := pos.Principal + rewards

	prev := *pos
	pos.Principal = 0
	pos.Active = false

	if err := token.Transfer(caller, payout); err != nil {
		*pos = prev
		return 0, errTransferFailed(err)
	}

	return payout, nil
}

// ClaimRewards pays out the reward accrued since the last claim without
// touching principal. The accrual window is advanced before the external
// transfer and rolled back if it fails.
func (l *StakeLedger) ClaimRewards(caller common.Address, token FungibleLedger) (uint64, error) {
	if l.paused {
		return 0, errStakingPaused()
	}

	pos, ok := l.positions[caller]
	if !ok || !pos.Active {
		return 0, errNoActiveStake(caller.Hex())
	}

	now := l.now()
	rewards := Accrue(pos.Principal, pos.LastClaimAt, now, l.apyBasisPoints)
	if rewards == 0 {
		return 0, errNothingToClaim()
	}

	prevClaim := pos.LastClaimAt
	pos.LastClaimAt = now

	if err := token.Transfer(caller, rewards); err != nil {
		pos.LastClaimAt = prevClaim
		return 0, errTransferFailed(err)
	}

	return rewards, nil
}

// Summary reports the caller's position, pending rewards and remaining
// lock time.
func (l *StakeLedger) Summary(holder common.Address) types.StakeSummary {
	summary := types.StakeSummary{Holder: holder.Hex(), RemainingLock: "0s"}

	pos, ok := l.positions[holder]
	if !ok || !pos.Active {
		return summary
	}

	now := l.now()
	summary.Principal = pos.Principal
	summary.StakedAt = pos.StakedAt
	summary.LastClaimAt = pos.LastClaimAt
	summary.Active = true
	summary.PendingRewards = Accrue(pos.Principal, pos.LastClaimAt, now, l.apyBasisPoints)

	if unlockAt := pos.StakedAt.Add(l.lockPeriod); now.Before(unlockAt) {
		summary.RemainingLock = unlockAt.Sub(now).String()
	}

	return summary
}

// Position returns a copy of the holder's raw position.
func (l *StakeLedger) Position(holder common.Address) (StakePosition, bool) {
	pos, ok := l.positions[holder]
	if !ok {
		return StakePosition{}, false
	}
	return *pos, true
}

// SetLockPeriod updates the minimum stake duration for future unstakes.
func (l *StakeLedger) SetLockPeriod(period time.Duration) {
	l.lockPeriod = period
}

// LockPeriod returns the current lock period.
func (l *StakeLedger) LockPeriod() time.Duration {
	return l.lockPeriod
}

// SetAPY updates the accrual rate, bounded by MaxAPYBasisPoints.
func (l *StakeLedger) SetAPY(basisPoints uint64) error {
	if basisPoints > MaxAPYBasisPoints {
		return errAPYTooHigh(basisPoints, MaxAPYBasisPoints)
	}
	l.apyBasisPoints = basisPoints
	return nil
}

// APY returns the current accrual rate in basis points.
func (l *StakeLedger) APY() uint64 {
	return l.apyBasisPoints
}

// Pause gates Stake and ClaimRewards. Unstake is deliberately exempt so
// stakers are never locked out of exit.
func (l *StakeLedger) Pause() {
	l.paused = true
}

// Unpause lifts the pause.
func (l *StakeLedger) Unpause() {
	l.paused = false
}

// Paused reports the pause state.
func (l *StakeLedger) Paused() bool {
	return l.paused
}
