package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// fakeToken is a FungibleLedger that records transfers and can be told to
// fail for specific recipients.
type fakeToken struct {
	paid     map[common.Address]uint64
	failFor  map[common.Address]bool
	transfer int
}

func newFakeToken() *fakeToken {
	return &fakeToken{
		paid:    make(map[common.Address]uint64),
		failFor: make(map[common.Address]bool),
	}
}

func (f *fakeToken) Transfer(to common.Address, amount uint64) error {
	f.transfer++
	if f.failFor[to] {
		return errors.New("recipient rejected transfer")
	}
	f.paid[to] += amount
	return nil
}

func (f *fakeToken) TransferFrom(from, to common.Address, amount uint64) error {
	return f.Transfer(to, amount)
}

func (f *fakeToken) BalanceOf(holder common.Address) uint64 { return f.paid[holder] }
func (f *fakeToken) TotalSupply() uint64                    { return 0 }

func newLedgerWithDistribution(t *testing.T, amount uint64) (*DistributionLedger, *YieldReserve, *Distribution) {
	t.Helper()

	snap := validatedSnapshot(t, 1000,
		[]common.Address{addr(1), addr(2), addr(3)},
		[]uint64{500, 300, 200},
	)
	reserve := NewYieldReserve()
	if err := reserve.Deposit("rental income", 1_000_000, time.Now()); err != nil {
		t.Fatal(err)
	}

	dl := NewDistributionLedger(NewAllocationEngine())
	dist, err := dl.Create(snap, reserve, amount, time.Now())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return dl, reserve, dist
}

func TestDistributionCreate(t *testing.T) {
	dl, reserve, dist := newLedgerWithDistribution(t, 10)

	if dist.ID != 1 {
		t.Errorf("first distribution id = %d, want 1", dist.ID)
	}
	if reserve.Total() != 1_000_000-10 {
		t.Errorf("reserve after create = %d, want %d", reserve.Total(), 1_000_000-10)
	}
	if dist.Share(addr(1)) != 5 || dist.Share(addr(2)) != 3 || dist.Share(addr(3)) != 2 {
		t.Errorf("shares = %d/%d/%d, want 5/3/2",
			dist.Share(addr(1)), dist.Share(addr(2)), dist.Share(addr(3)))
	}

	// IDs are sequential.
	snap := validatedSnapshot(t, 1000,
		[]common.Address{addr(1), addr(2), addr(3)},
		[]uint64{500, 300, 200},
	)
	second, err := dl.Create(snap, reserve, 20, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != 2 {
		t.Errorf("second distribution id = %d, want 2", second.ID)
	}
}

func TestDistributionCreateErrors(t *testing.T) {
	snap := validatedSnapshot(t, 100, []common.Address{addr(1)}, []uint64{100})
	reserve := NewYieldReserve()
	if err := reserve.Deposit("seed", 50, time.Now()); err != nil {
		t.Fatal(err)
	}
	dl := NewDistributionLedger(NewAllocationEngine())

	if _, err := dl.Create(snap, reserve, 0, time.Now()); ErrorCode(err) != CodeZeroAmount {
		t.Errorf("Create(0) = %v, want %s", err, CodeZeroAmount)
	}
	if _, err := dl.Create(snap, reserve, 51, time.Now()); ErrorCode(err) != CodeInsufficientReserve {
		t.Errorf("Create(51) = %v, want %s", err, CodeInsufficientReserve)
	}
	if reserve.Total() != 50 {
		t.Errorf("reserve mutated by failed create: %d", reserve.Total())
	}
}

func TestPayoutPushAllSucceed(t *testing.T) {
	dl, _, dist := newLedgerWithDistribution(t, 10)
	token := newFakeToken()

	result, err := dl.PayoutPush(dist.ID, token)
	if err != nil {
		t.Fatalf("PayoutPush() error = %v", err)
	}

	if !result.Completed || result.FailedCount != 0 || result.PaidCount != 3 {
		t.Errorf("result = %+v, want completed with 3 paid", result)
	}
	if result.DistributedAmount != 10 {
		t.Errorf("DistributedAmount = %d, want 10", result.DistributedAmount)
	}
	if token.paid[addr(1)] != 5 || token.paid[addr(2)] != 3 || token.paid[addr(3)] != 2 {
		t.Errorf("payouts = %v, want 5/3/2", token.paid)
	}

	// A completed distribution rejects another push.
	if _, err := dl.PayoutPush(dist.ID, token); ErrorCode(err) != CodeAlreadyCompleted {
		t.Errorf("second PayoutPush() = %v, want %s", err, CodeAlreadyCompleted)
	}
}

func TestPayoutPushOneFailingRecipient(t *testing.T) {
	dl, _, dist := newLedgerWithDistribution(t, 10)
	token := newFakeToken()
	token.failFor[addr(2)] = true

	result, err := dl.PayoutPush(dist.ID, token)
	if err != nil {
		t.Fatalf("PayoutPush() error = %v", err)
	}

	if result.Completed {
		t.Error("distribution must not complete with a failed transfer")
	}
	if result.FailedCount != 1 || result.PaidCount != 2 {
		t.Errorf("result = %+v, want 2 paid / 1 failed", result)
	}
	if !dist.IsClaimed(addr(1)) || dist.IsClaimed(addr(2)) || !dist.IsClaimed(addr(3)) {
		t.Error("claimed flags wrong after partial payout")
	}

	// The failed holder stays eligible for a self-service pull claim that
	// pays exactly their share.
	token.failFor[addr(2)] = false
	amount, err := dl.ClaimPull(dist.ID, addr(2), token)
	if err != nil {
		t.Fatalf("ClaimPull() error = %v", err)
	}
	if amount != 3 || token.paid[addr(2)] != 3 {
		t.Errorf("pulled %d (paid %d), want 3", amount, token.paid[addr(2)])
	}

	// A push retry now finds nothing outstanding and completes.
	result, err = dl.PayoutPush(dist.ID, token)
	if err != nil {
		t.Fatalf("retry PayoutPush() error = %v", err)
	}
	if !result.Completed || result.PaidCount != 0 {
		t.Errorf("retry result = %+v, want completed with 0 paid", result)
	}
	// Total received by each holder never exceeds the allocated share.
	if token.paid[addr(1)] != 5 || token.paid[addr(2)] != 3 || token.paid[addr(3)] != 2 {
		t.Errorf("final payouts = %v, want 5/3/2", token.paid)
	}
}

func TestPayoutPushRetryOnlyFailedHolders(t *testing.T) {
	dl, _, dist := newLedgerWithDistribution(t, 10)
	token := newFakeToken()
	token.failFor[addr(2)] = true

	if _, err := dl.PayoutPush(dist.ID, token); err != nil {
		t.Fatal(err)
	}

	token.failFor[addr(2)] = false
	result, err := dl.PayoutPush(dist.ID, token)
	if err != nil {
		t.Fatal(err)
	}
	if result.PaidCount != 1 || result.DistributedAmount != 3 {
		t.Errorf("retry paid %d holders / %d units, want 1 / 3", result.PaidCount, result.DistributedAmount)
	}
	if !result.Completed {
		t.Error("retry with all transfers succeeding must complete")
	}
	if token.paid[addr(1)] != 5 {
		t.Errorf("already-paid holder paid again: %d", token.paid[addr(1)])
	}
}

func TestPayoutPushUnknownDistribution(t *testing.T) {
	dl := NewDistributionLedger(NewAllocationEngine())
	if _, err := dl.PayoutPush(42, newFakeToken()); ErrorCode(err) != CodeUnknownDistribution {
		t.Errorf("PayoutPush(42) = %v, want %s", err, CodeUnknownDistribution)
	}
}

func TestClaimPullIdempotence(t *testing.T) {
	dl, _, dist := newLedgerWithDistribution(t, 10)
	token := newFakeToken()

	amount, err := dl.ClaimPull(dist.ID, addr(1), token)
	if err != nil {
		t.Fatalf("ClaimPull() error = %v", err)
	}
	if amount != 5 {
		t.Errorf("claimed %d, want 5", amount)
	}

	// The second claim must fail and must not transfer again.
	if _, err := dl.ClaimPull(dist.ID, addr(1), token); ErrorCode(err) != CodeAlreadyClaimed {
		t.Errorf("second ClaimPull() = %v, want %s", err, CodeAlreadyClaimed)
	}
	if token.paid[addr(1)] != 5 {
		t.Errorf("holder paid %d total, want 5", token.paid[addr(1)])
	}
}

func TestClaimPullErrors(t *testing.T) {
	dl, _, dist := newLedgerWithDistribution(t, 10)
	token := newFakeToken()

	if _, err := dl.ClaimPull(99, addr(1), token); ErrorCode(err) != CodeUnknownDistribution {
		t.Errorf("ClaimPull(unknown) = %v, want %s", err, CodeUnknownDistribution)
	}
	if _, err := dl.ClaimPull(dist.ID, addr(7), token); ErrorCode(err) != CodeNothingToClaim {
		t.Errorf("ClaimPull(non-holder) = %v, want %s", err, CodeNothingToClaim)
	}
}

func TestClaimPullRollsBackOnTransferFailure(t *testing.T) {
	dl, _, dist := newLedgerWithDistribution(t, 10)
	token := newFakeToken()
	token.failFor[addr(1)] = true

	_, err := dl.ClaimPull(dist.ID, addr(1), token)
	if ErrorCode(err) != CodeTransferFailed {
		t.Fatalf("ClaimPull() = %v, want %s", err, CodeTransferFailed)
	}
	if dist.IsClaimed(addr(1)) {
		t.Error("claimed flag must roll back when the transfer fails")
	}

	// After the recipient recovers, the claim succeeds once.
	token.failFor[addr(1)] = false
	amount, err := dl.ClaimPull(dist.ID, addr(1), token)
	if err != nil || amount != 5 {
		t.Errorf("ClaimPull() after recovery = %d, %v; want 5, nil", amount, err)
	}
}

func TestClaimableAcrossDistributions(t *testing.T) {
	dl, reserve, first := newLedgerWithDistribution(t, 10)

	snap := validatedSnapshot(t, 1000,
		[]common.Address{addr(1), addr(2), addr(3)},
		[]uint64{500, 300, 200},
	)
	if _, err := dl.Create(snap, reserve, 100, time.Now()); err != nil {
		t.Fatal(err)
	}

	// addr(1): 5 from the first distribution, 50 from the second.
	if got := dl.Claimable(addr(1)); got != 55 {
		t.Errorf("Claimable() = %d, want 55", got)
	}

	token := newFakeToken()
	if _, err := dl.ClaimPull(first.ID, addr(1), token); err != nil {
		t.Fatal(err)
	}
	if got := dl.Claimable(addr(1)); got != 50 {
		t.Errorf("Claimable() after claiming first = %d, want 50", got)
	}
}
