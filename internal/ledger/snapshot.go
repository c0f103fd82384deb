package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-ledger/internal/types"
)

// balanceEntry tags a recorded balance with the snapshot generation it was
// written in. Entries from older generations read as zero, which replaces
// the per-holder clearing loop on retake with an O(1) generation bump.
type balanceEntry struct {
	generation uint64
	amount     uint64
}

// SnapshotStore captures a holder set with balances and a total-supply
// checkpoint. A snapshot is populated while active and becomes immutable
// once validated; validation asserts that recorded balances sum exactly to
// the supply checkpoint.
type SnapshotStore struct {
	takenAt     time.Time
	totalSupply uint64
	holders     []common.Address
	balances    map[common.Address]balanceEntry
	generation  uint64
	active      bool
	validated   bool
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		balances: make(map[common.Address]balanceEntry),
	}
}

// Take begins a new snapshot cycle. The previous snapshot's balances are
// invalidated wholesale by advancing the generation counter; stale entries
// must never leak into the new cycle. Fails while a capture is in progress.
func (s *SnapshotStore) Take(totalSupply uint64, now time.Time) error {
	if s.active {
		return errSnapshotActive()
	}

	s.generation++
	s.holders = s.holders[:0]
	s.totalSupply = totalSupply
	s.takenAt = now
	s.active = true
	s.validated = false

	return nil
}

// AddHolders records a batch of holder balances into the active snapshot.
// A holder seen for the first time this cycle is appended to the ordered
// holder list; a repeated holder keeps its position and its balance is
// overwritten with the last value given, not accumulated.
func (s *SnapshotStore) AddHolders(holders []common.Address, balances []uint64) error {
	if !s.active {
		return errSnapshotNotActive()
	}
	if len(holders) != len(balances) {
		return errLengthMismatch(len(holders), len(balances))
	}
	if len(holders) == 0 {
		return errEmptyBatch()
	}

	for _, holder := range holders {
		if holder == (common.Address{}) {
			return errZeroAddress()
		}
	}

	for i, holder := range holders {
		entry, seen := s.balances[holder]
		if !seen || entry.generation != s.generation {
			s.holders = append(s.holders, holder)
		}
		s.balances[holder] = balanceEntry{generation: s.generation, amount: balances[i]}
	}

	return nil
}

// Validate seals the active snapshot. The sum of all recorded balances must
// equal the supply checkpoint exactly; on success the snapshot becomes
// immutable until the next Take.
func (s *SnapshotStore) Validate() error {
	if !s.active {
		return errSnapshotNotActive()
	}
	if len(s.holders) == 0 {
		return errEmptyBatch()
	}

	// Sum in big.Int: adversarial batches may exceed uint64 even though a
	// correct batch sums to the uint64 supply checkpoint.
	sum := new(big.Int)
	for _, holder := range s.holders {
		sum.Add(sum, new(big.Int).SetUint64(s.BalanceOf(holder)))
	}

	if !sum.IsUint64() || sum.Uint64() != s.totalSupply {
		recorded := uint64(0)
		if sum.IsUint64() {
			recorded = sum.Uint64()
		}
		return errSupplyMismatch(recorded, s.totalSupply)
	}

	s.active = false
	s.validated = true

	return nil
}

// BalanceOf returns the balance recorded for a holder in the current
// snapshot cycle, or zero if none was recorded this cycle.
func (s *SnapshotStore) BalanceOf(holder common.Address) uint64 {
	entry, ok := s.balances[holder]
	if !ok || entry.generation != s.generation {
		return 0
	}
	return entry.amount
}

// IsHolder reports whether the holder was recorded this snapshot cycle.
func (s *SnapshotStore) IsHolder(holder common.Address) bool {
	entry, ok := s.balances[holder]
	return ok && entry.generation == s.generation
}

// Holders returns the recorded holders in insertion order. The order is
// load-bearing: remainder assignment during allocation depends on it.
func (s *SnapshotStore) Holders() []common.Address {
	out := make([]common.Address, len(s.holders))
	copy(out, s.holders)
	return out
}

// HolderCount returns the number of holders recorded this cycle.
func (s *SnapshotStore) HolderCount() int {
	return len(s.holders)
}

// TotalSupply returns the supply checkpoint recorded when the snapshot
// cycle opened.
func (s *SnapshotStore) TotalSupply() uint64 {
	return s.totalSupply
}

// Active reports whether a capture is in progress. Results read from an
// active snapshot are provisional.
func (s *SnapshotStore) Active() bool {
	return s.active
}

// Validated reports whether the current snapshot passed validation.
func (s *SnapshotStore) Validated() bool {
	return s.validated
}

// TakenAt returns the time the current snapshot cycle opened.
func (s *SnapshotStore) TakenAt() time.Time {
	return s.takenAt
}

// Summary returns the externally visible snapshot state.
func (s *SnapshotStore) Summary() types.SnapshotSummary {
	return types.SnapshotSummary{
		TakenAt:     s.takenAt,
		TotalSupply: s.totalSupply,
		HolderCount: len(s.holders),
		Active:      s.active,
		Validated:   s.validated,
	}
}
