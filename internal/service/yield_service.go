// Package service hosts the ledger engines behind a serialized,
// authorization-checked API and mirrors committed state to storage.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-ledger/internal/ledger"
	"github.com/yield-ledger/internal/logging"
	"github.com/yield-ledger/internal/retry"
	"github.com/yield-ledger/internal/storage"
	"github.com/yield-ledger/internal/types"
)

// SnapshotRepository persists balance snapshots
type SnapshotRepository interface {
	Create(ctx context.Context, takenAt time.Time, totalSupply uint64) (int64, error)
	MarkValidated(ctx context.Context, id int64, at time.Time) error
	ReplaceHolders(ctx context.Context, snapshotID int64, holders []storage.SnapshotHolderRecord) error
	GetLatest(ctx context.Context) (*storage.SnapshotRecord, error)
	GetHolders(ctx context.Context, snapshotID int64) ([]storage.SnapshotHolderRecord, error)
}

// DistributionRepository persists distributions and their shares
type DistributionRepository interface {
	Create(ctx context.Context, rec *storage.DistributionRecord, shares []storage.ShareRecord) error
	MarkCompleted(ctx context.Context, id uint64) error
	MarkClaimed(ctx context.Context, distributionID uint64, holder string, at time.Time) error
	Get(ctx context.Context, id uint64) (*storage.DistributionRecord, error)
	GetShares(ctx context.Context, id uint64) ([]storage.ShareRecord, error)
	MaxID(ctx context.Context) (uint64, error)
}

// ReserveRepository persists the reserve balance
type ReserveRepository interface {
	SetTotal(ctx context.Context, total uint64) error
	GetTotal(ctx context.Context) (uint64, error)
}

// EventSink appends ledger events to the audit trail
type EventSink interface {
	Append(ctx context.Context, event *types.LedgerEvent) error
}

// ClaimableCache caches per-holder claimable totals
type ClaimableCache interface {
	GetClaimable(ctx context.Context, holder string) (uint64, bool)
	SetClaimable(ctx context.Context, holder string, amount uint64)
	InvalidateHolder(ctx context.Context, holder string)
	InvalidateAll(ctx context.Context)
}

// YieldService owns the snapshot, reserve and distribution engines. The
// engines keep pure in-process state; this service serializes access with
// one mutex, enforces the admin boundary and mirrors committed state to
// storage. Mirror and event writes are best-effort: the in-memory commit
// is authoritative and a storage hiccup never rolls it back.
type YieldService struct {
	mu sync.Mutex

	snapshot      *ledger.SnapshotStore
	reserve       *ledger.YieldReserve
	distributions *ledger.DistributionLedger
	token         ledger.FungibleLedger
	admin         common.Address

	snapshotID int64 // db id of the current snapshot, 0 before the first Take

	snapshotRepo SnapshotRepository
	distRepo     DistributionRepository
	reserveRepo  ReserveRepository
	events       EventSink
	cache        ClaimableCache
	logger       *logging.Logger
}

// YieldServiceDeps carries the collaborators of a YieldService
type YieldServiceDeps struct {
	Token        ledger.FungibleLedger
	Admin        common.Address
	SnapshotRepo SnapshotRepository
	DistRepo     DistributionRepository
	ReserveRepo  ReserveRepository
	Events       EventSink
	Cache        ClaimableCache
	Logger       *logging.Logger
}

// NewYieldService creates a yield service with empty engines
func NewYieldService(deps YieldServiceDeps) *YieldService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &YieldService{
		snapshot:      ledger.NewSnapshotStore(),
		reserve:       ledger.NewYieldReserve(),
		distributions: ledger.NewDistributionLedger(ledger.NewAllocationEngine()),
		token:         deps.Token,
		admin:         deps.Admin,
		snapshotRepo:  deps.SnapshotRepo,
		distRepo:      deps.DistRepo,
		reserveRepo:   deps.ReserveRepo,
		events:        deps.Events,
		cache:         deps.Cache,
		logger:        logger,
	}
}

func errUnauthorized(caller common.Address) *types.ServiceError {
	return &types.ServiceError{
		Code:    ledger.CodeUnauthorized,
		Message: fmt.Sprintf("caller %s is not the ledger admin", caller.Hex()),
	}
}

func (s *YieldService) requireAdmin(caller common.Address) error {
	if caller != s.admin {
		return errUnauthorized(caller)
	}
	return nil
}

// Restore rebuilds engine state from storage after a restart
func (s *YieldService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, err := s.reserveRepo.GetTotal(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore reserve: %w", err)
	}
	s.reserve = ledger.RestoreReserve(total, nil)

	rec, err := s.snapshotRepo.GetLatest(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	if rec != nil && rec.ValidatedAt != nil {
		holders, err := s.snapshotRepo.GetHolders(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to restore snapshot holders: %w", err)
		}
		if err := s.replaySnapshot(rec, holders); err != nil {
			return err
		}
		s.snapshotID = rec.ID
	}

	maxID, err := s.distRepo.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore distributions: %w", err)
	}
	for id := uint64(1); id <= maxID; id++ {
		if err := s.restoreDistribution(ctx, id); err != nil {
			return err
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"reserve":       total,
		"distributions": maxID,
	}).Info("Ledger state restored from storage")

	return nil
}

// replaySnapshot re-runs the capture cycle against the engine so the
// restored snapshot passes through the same validation as a live one.
func (s *YieldService) replaySnapshot(rec *storage.SnapshotRecord, records []storage.SnapshotHolderRecord) error {
	if err := s.snapshot.Take(rec.TotalSupply, rec.TakenAt); err != nil {
		return fmt.Errorf("failed to replay snapshot: %w", err)
	}

	holders := make([]common.Address, len(records))
	balances := make([]uint64, len(records))
	for i, h := range records {
		holders[i] = common.HexToAddress(h.Holder)
		balances[i] = h.Balance
	}
	if len(holders) > 0 {
		if err := s.snapshot.AddHolders(holders, balances); err != nil {
			return fmt.Errorf("failed to replay snapshot holders: %w", err)
		}
	}

	if err := s.snapshot.Validate(); err != nil {
		return fmt.Errorf("restored snapshot failed validation: %w", err)
	}
	return nil
}

func (s *YieldService) restoreDistribution(ctx context.Context, id uint64) error {
	rec, err := s.distRepo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to restore distribution %d: %w", id, err)
	}
	if rec == nil {
		return nil
	}

	shareRecords, err := s.distRepo.GetShares(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to restore shares of distribution %d: %w", id, err)
	}

	shares := make([]ledger.Share, 0, len(shareRecords))
	claimed := make(map[common.Address]bool)
	for _, sr := range shareRecords {
		holder := common.HexToAddress(sr.Holder)
		shares = append(shares, ledger.Share{Holder: holder, Amount: sr.Amount})
		if sr.Claimed {
			claimed[holder] = true
		}
	}

	s.distributions.Restore(ledger.RestoreDistribution(
		rec.ID, rec.TotalAmount, rec.CreatedAt, rec.Completed, shares, claimed,
	))
	return nil
}

// TakeSnapshot opens a new snapshot cycle, checkpointing the token's
// current total supply. The recorded balances must later sum to exactly
// this checkpoint for Validate to pass. Admin only.
func (s *YieldService) TakeSnapshot(ctx context.Context, caller common.Address) (types.SnapshotSummary, error) {
	if err := s.requireAdmin(caller); err != nil {
		return types.SnapshotSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	totalSupply := s.token.TotalSupply()
	now := time.Now().UTC()
	if err := s.snapshot.Take(totalSupply, now); err != nil {
		return types.SnapshotSummary{}, err
	}

	id, err := s.snapshotRepo.Create(ctx, now, totalSupply)
	if err != nil {
		s.logger.WithError(err).Error("Failed to mirror snapshot")
	} else {
		s.snapshotID = id
	}

	return s.snapshot.Summary(), nil
}

// AddHolders records a batch of holder balances into the active snapshot.
// Admin only.
func (s *YieldService) AddHolders(ctx context.Context, caller common.Address, holders []common.Address, balances []uint64) (types.SnapshotSummary, error) {
	if err := s.requireAdmin(caller); err != nil {
		return types.SnapshotSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.snapshot.AddHolders(holders, balances); err != nil {
		return types.SnapshotSummary{}, err
	}
	return s.snapshot.Summary(), nil
}

// ValidateSnapshot seals the active snapshot and mirrors the final holder
// set. Admin only.
func (s *YieldService) ValidateSnapshot(ctx context.Context, caller common.Address) (types.SnapshotSummary, error) {
	if err := s.requireAdmin(caller); err != nil {
		return types.SnapshotSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.snapshot.Validate(); err != nil {
		return types.SnapshotSummary{}, err
	}

	if s.snapshotID != 0 {
		records := make([]storage.SnapshotHolderRecord, 0, s.snapshot.HolderCount())
		for i, holder := range s.snapshot.Holders() {
			records = append(records, storage.SnapshotHolderRecord{
				Holder:   holder.Hex(),
				Balance:  s.snapshot.BalanceOf(holder),
				Position: i,
			})
		}
		if err := s.snapshotRepo.ReplaceHolders(ctx, s.snapshotID, records); err != nil {
			s.logger.WithError(err).Error("Failed to mirror snapshot holders")
		}
		if err := s.snapshotRepo.MarkValidated(ctx, s.snapshotID, time.Now().UTC()); err != nil {
			s.logger.WithError(err).Error("Failed to mirror snapshot validation")
		}
	}

	return s.snapshot.Summary(), nil
}

// CurrentSnapshot returns the state of the current snapshot
func (s *YieldService) CurrentSnapshot(ctx context.Context) types.SnapshotSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Summary()
}

// Deposit adds value to the reserve under a source label. Admin only.
func (s *YieldService) Deposit(ctx context.Context, caller common.Address, label string, amount uint64) (types.ReserveView, error) {
	if err := s.requireAdmin(caller); err != nil {
		return types.ReserveView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reserve.Deposit(label, amount, time.Now().UTC()); err != nil {
		return types.ReserveView{}, err
	}

	s.mirrorReserve(ctx)
	s.appendEvent(ctx, &types.LedgerEvent{
		Kind:   types.EventDeposit,
		Amount: amount,
		Source: label,
	})

	return s.reserve.View(), nil
}

// WithdrawReserve removes undistributed value administratively. Admin only.
func (s *YieldService) WithdrawReserve(ctx context.Context, caller common.Address, amount uint64) (types.ReserveView, error) {
	if err := s.requireAdmin(caller); err != nil {
		return types.ReserveView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reserve.Withdraw(amount); err != nil {
		return types.ReserveView{}, err
	}

	s.mirrorReserve(ctx)
	s.appendEvent(ctx, &types.LedgerEvent{
		Kind:   types.EventWithdraw,
		Amount: amount,
	})

	return s.reserve.View(), nil
}

// Reserve returns the reserve state
func (s *YieldService) Reserve(ctx context.Context) types.ReserveView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserve.View()
}

// CreateDistribution allocates an amount of the reserve across the
// validated snapshot's holders. Admin only.
func (s *YieldService) CreateDistribution(ctx context.Context, caller common.Address, amount uint64) (types.DistributionView, error) {
	if err := s.requireAdmin(caller); err != nil {
		return types.DistributionView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dist, err := s.distributions.Create(s.snapshot, s.reserve, amount, time.Now().UTC())
	if err != nil {
		return types.DistributionView{}, err
	}

	view := dist.View()
	rec := &storage.DistributionRecord{
		ID:          dist.ID,
		SnapshotID:  s.snapshotID,
		TotalAmount: dist.TotalAmount,
		CreatedAt:   dist.CreatedAt,
	}
	shareRecords := make([]storage.ShareRecord, 0, len(view.Shares))
	for _, share := range view.Shares {
		shareRecords = append(shareRecords, storage.ShareRecord{Holder: share.Holder, Amount: share.Amount})
	}
	if err := s.distRepo.Create(ctx, rec, shareRecords); err != nil {
		s.logger.WithError(err).Error("Failed to mirror distribution")
	}
	s.mirrorReserve(ctx)

	s.appendEvent(ctx, &types.LedgerEvent{
		Kind:           types.EventDistributionCreated,
		DistributionID: dist.ID,
		Amount:         dist.TotalAmount,
	})

	// Every holder's claimable total changed.
	s.cache.InvalidateAll(ctx)

	return view, nil
}

// Payout pushes payment to every outstanding holder of a distribution.
// Admin only. Per-holder failures are reported, not fatal.
func (s *YieldService) Payout(ctx context.Context, caller common.Address, id uint64) (*types.PayoutResult, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dist, err := s.distributions.Get(id)
	if err != nil {
		return nil, err
	}
	before := claimedSet(dist)

	result, err := s.distributions.PayoutPush(id, s.token)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, holder := range newlyClaimed(dist, before) {
		if err := s.distRepo.MarkClaimed(ctx, id, holder.Hex(), now); err != nil {
			s.logger.WithError(err).Error("Failed to mirror payout claim")
		}
		s.appendEvent(ctx, &types.LedgerEvent{
			Kind:           types.EventPayout,
			DistributionID: id,
			Holder:         holder.Hex(),
			Amount:         dist.Share(holder),
		})
		s.cache.InvalidateHolder(ctx, holder.Hex())
	}
	if result.Completed {
		if err := s.distRepo.MarkCompleted(ctx, id); err != nil {
			s.logger.WithError(err).Error("Failed to mirror distribution completion")
		}
	}

	if result.FailedCount > 0 {
		s.logger.WithFields(map[string]interface{}{
			"distributionId": id,
			"failedCount":    result.FailedCount,
			"failedHolders":  result.FailedHolders,
		}).Warn("Push payout left holders unpaid")
	}

	return result, nil
}

// GetDistribution returns one distribution's state
func (s *YieldService) GetDistribution(ctx context.Context, id uint64) (types.DistributionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist, err := s.distributions.Get(id)
	if err != nil {
		return types.DistributionView{}, err
	}
	return dist.View(), nil
}

// Claim pays the caller their share of one distribution
func (s *YieldService) Claim(ctx context.Context, caller common.Address, id uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount, err := s.distributions.ClaimPull(id, caller, s.token)
	if err != nil {
		return 0, err
	}

	if err := s.distRepo.MarkClaimed(ctx, id, caller.Hex(), time.Now().UTC()); err != nil {
		s.logger.WithError(err).Error("Failed to mirror pull claim")
	}
	s.appendEvent(ctx, &types.LedgerEvent{
		Kind:           types.EventClaim,
		DistributionID: id,
		Holder:         caller.Hex(),
		Amount:         amount,
	})
	s.cache.InvalidateHolder(ctx, caller.Hex())

	return amount, nil
}

// Claimable returns the holder's unclaimed total across all distributions
func (s *YieldService) Claimable(ctx context.Context, holder common.Address) uint64 {
	if amount, ok := s.cache.GetClaimable(ctx, holder.Hex()); ok {
		return amount
	}

	s.mu.Lock()
	amount := s.distributions.Claimable(holder)
	s.mu.Unlock()

	s.cache.SetClaimable(ctx, holder.Hex(), amount)
	return amount
}

// mirrorReserve writes the committed reserve balance, best-effort
func (s *YieldService) mirrorReserve(ctx context.Context) {
	if err := s.reserveRepo.SetTotal(ctx, s.reserve.Total()); err != nil {
		s.logger.WithError(err).Error("Failed to mirror reserve")
	}
}

// appendEvent writes an audit event with a short retry. Event loss is
// logged, never surfaced: the ledger operation already committed.
func (s *YieldService) appendEvent(ctx context.Context, event *types.LedgerEvent) {
	cfg := &retry.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
	result := retry.WithExponentialBackoff(ctx, cfg, func(ctx context.Context, attempt int) error {
		return s.events.Append(ctx, event)
	})
	if !result.Success {
		s.logger.WithError(result.LastError).WithField("kind", event.Kind).Error("Dropped ledger event")
	}
}

func claimedSet(dist *ledger.Distribution) map[common.Address]bool {
	set := make(map[common.Address]bool)
	for _, share := range dist.View().Shares {
		holder := common.HexToAddress(share.Holder)
		if dist.IsClaimed(holder) {
			set[holder] = true
		}
	}
	return set
}

func newlyClaimed(dist *ledger.Distribution, before map[common.Address]bool) []common.Address {
	var holders []common.Address
	for _, share := range dist.View().Shares {
		holder := common.HexToAddress(share.Holder)
		if dist.IsClaimed(holder) && !before[holder] {
			holders = append(holders, holder)
		}
	}
	return holders
}
