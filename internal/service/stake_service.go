package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-ledger/internal/ledger"
	"github.com/yield-ledger/internal/logging"
	"github.com/yield-ledger/internal/storage"
	"github.com/yield-ledger/internal/types"
)

// StakeRepository persists stake positions
type StakeRepository interface {
	Upsert(ctx context.Context, rec *storage.StakeRecord) error
	ListActive(ctx context.Context) ([]storage.StakeRecord, error)
}

// StakeService owns the stake ledger. Like YieldService it serializes
// engine access with one mutex and mirrors committed positions to storage.
type StakeService struct {
	mu sync.Mutex

	stakes *ledger.StakeLedger
	token  ledger.FungibleLedger
	admin  common.Address

	stakeRepo StakeRepository
	events    EventSink
	logger    *logging.Logger
}

// StakeServiceDeps carries the collaborators of a StakeService
type StakeServiceDeps struct {
	Token      ledger.FungibleLedger
	Admin      common.Address
	Vault      common.Address
	LockPeriod time.Duration
	APY        uint64
	StakeRepo  StakeRepository
	Events     EventSink
	Logger     *logging.Logger
}

// NewStakeService creates a stake service with an empty position set
func NewStakeService(deps StakeServiceDeps) *StakeService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &StakeService{
		stakes:    ledger.NewStakeLedger(deps.Vault, deps.LockPeriod, deps.APY),
		token:     deps.Token,
		admin:     deps.Admin,
		stakeRepo: deps.StakeRepo,
		events:    deps.Events,
		logger:    logger,
	}
}

// Restore reloads active stake positions from storage
func (s *StakeService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.stakeRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore stake positions: %w", err)
	}

	for _, rec := range records {
		s.stakes.RestorePosition(common.HexToAddress(rec.Holder), ledger.StakePosition{
			Principal:   rec.Principal,
			StakedAt:    rec.StakedAt,
			LastClaimAt: rec.LastClaimAt,
			Active:      rec.Active,
		})
	}

	s.logger.WithField("positions", len(records)).Info("Stake positions restored from storage")
	return nil
}

// Stake opens or tops up the caller's position
func (s *StakeService) Stake(ctx context.Context, caller common.Address, amount uint64) (types.StakeSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stakes.Stake(caller, amount, s.token); err != nil {
		return types.StakeSummary{}, err
	}

	s.mirrorPosition(ctx, caller)
	s.appendEvent(ctx, &types.LedgerEvent{
		Kind:   types.EventStake,
		Holder: caller.Hex(),
		Amount: amount,
	})

	return s.stakes.Summary(caller), nil
}

// Unstake exits the caller's position after the lock period
func (s *StakeService) Unstake(ctx context.Context, caller common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, err := s.stakes.Unstake(caller, s.token)
	if err != nil {
		return 0, err
	}

	s.mirrorPosition(ctx, caller)
	s.appendEvent(ctx, &types.LedgerEvent{
		Kind:   types.EventUnstake,
		Holder: caller.Hex(),
		Amount: payout,
	})

	return payout, nil
}

// ClaimRewards pays out the caller's accrued rewards
func (s *StakeService) ClaimRewards(ctx context.Context, caller common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rewards, err := s.stakes.ClaimRewards(caller, s.token)
	if err != nil {
		return 0, err
	}

	s.mirrorPosition(ctx, caller)
	s.appendEvent(ctx, &types.LedgerEvent{
		Kind:   types.EventRewardClaim,
		Holder: caller.Hex(),
		Amount: rewards,
	})

	return rewards, nil
}

// Summary returns the holder's position and pending rewards
func (s *StakeService) Summary(ctx context.Context, holder common.Address) types.StakeSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stakes.Summary(holder)
}

// StakingConfig is the externally visible staking configuration
type StakingConfig struct {
	APYBasisPoints uint64 `json:"apyBasisPoints"`
	LockPeriod     string `json:"lockPeriod"`
	Paused         bool   `json:"paused"`
}

// Config returns the current staking parameters
func (s *StakeService) Config(ctx context.Context) StakingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StakingConfig{
		APYBasisPoints: s.stakes.APY(),
		LockPeriod:     s.stakes.LockPeriod().String(),
		Paused:         s.stakes.Paused(),
	}
}

// UpdateConfig applies new staking parameters. Admin only. Rate and lock
// changes apply to accrual windows going forward; a nil field leaves the
// parameter unchanged.
func (s *StakeService) UpdateConfig(ctx context.Context, caller common.Address, apy *uint64, lockPeriod *time.Duration, paused *bool) (StakingConfig, error) {
	if caller != s.admin {
		return StakingConfig{}, errUnauthorized(caller)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if apy != nil {
		if err := s.stakes.SetAPY(*apy); err != nil {
			return StakingConfig{}, err
		}
	}
	if lockPeriod != nil {
		s.stakes.SetLockPeriod(*lockPeriod)
	}
	if paused != nil {
		if *paused {
			s.stakes.Pause()
		} else {
			s.stakes.Unpause()
		}
	}

	cfg := StakingConfig{
		APYBasisPoints: s.stakes.APY(),
		LockPeriod:     s.stakes.LockPeriod().String(),
		Paused:         s.stakes.Paused(),
	}
	s.logger.WithFields(map[string]interface{}{
		"apyBasisPoints": cfg.APYBasisPoints,
		"lockPeriod":     cfg.LockPeriod,
		"paused":         cfg.Paused,
	}).Info("Staking configuration updated")

	return cfg, nil
}

// mirrorPosition writes the committed position, best-effort
func (s *StakeService) mirrorPosition(ctx context.Context, holder common.Address) {
	pos, ok := s.stakes.Position(holder)
	if !ok {
		return
	}
	rec := &storage.StakeRecord{
		Holder:      holder.Hex(),
		Principal:   pos.Principal,
		StakedAt:    pos.StakedAt,
		LastClaimAt: pos.LastClaimAt,
		Active:      pos.Active,
	}
	if err := s.stakeRepo.Upsert(ctx, rec); err != nil {
		s.logger.WithError(err).Error("Failed to mirror stake position")
	}
}

// appendEvent writes an audit event, best-effort
func (s *StakeService) appendEvent(ctx context.Context, event *types.LedgerEvent) {
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithField("kind", event.Kind).Error("Dropped ledger event")
	}
}
