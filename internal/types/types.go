// Package types provides common type definitions for the yield ledger system.
package types

import "time"

// CallerRole represents the privilege level of an API caller
type CallerRole string

const (
	// RoleAdmin represents the single privileged administrative identity
	RoleAdmin CallerRole = "admin"
	// RoleHolder represents a self-service token holder or staker
	RoleHolder CallerRole = "holder"
)

// EventKind classifies entries in the append-only ledger event trail
type EventKind string

const (
	// EventDeposit records value entering the yield reserve
	EventDeposit EventKind = "deposit"
	// EventWithdraw records an administrative reserve withdrawal
	EventWithdraw EventKind = "withdraw"
	// EventDistributionCreated records a new distribution being allocated
	EventDistributionCreated EventKind = "distribution_created"
	// EventPayout records a successful push payout to a holder
	EventPayout EventKind = "payout"
	// EventClaim records a successful pull claim by a holder
	EventClaim EventKind = "claim"
	// EventStake records a stake or stake top-up
	EventStake EventKind = "stake"
	// EventUnstake records a full exit of a stake position
	EventUnstake EventKind = "unstake"
	// EventRewardClaim records a claim of accrued staking rewards
	EventRewardClaim EventKind = "reward_claim"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// SnapshotSummary describes the state of the current balance snapshot
type SnapshotSummary struct {
	TakenAt     time.Time `json:"takenAt"`
	TotalSupply uint64    `json:"totalSupply"`
	HolderCount int       `json:"holderCount"`
	Active      bool      `json:"active"`
	Validated   bool      `json:"validated"`
}

// HolderShare represents one holder's allocated amount in a distribution
type HolderShare struct {
	Holder string `json:"holder"`
	Amount uint64 `json:"amount"`
}

// DistributionView is the externally visible state of a distribution
type DistributionView struct {
	ID          uint64        `json:"id"`
	TotalAmount uint64        `json:"totalAmount"`
	Completed   bool          `json:"completed"`
	CreatedAt   time.Time     `json:"createdAt"`
	Shares      []HolderShare `json:"shares"`
	Claimed     []string      `json:"claimed"`
}

// PayoutResult summarizes one push payout attempt over a distribution
type PayoutResult struct {
	DistributionID    uint64   `json:"distributionId"`
	DistributedAmount uint64   `json:"distributedAmount"`
	PaidCount         int      `json:"paidCount"`
	FailedCount       int      `json:"failedCount"`
	FailedHolders     []string `json:"failedHolders,omitempty"`
	Completed         bool     `json:"completed"`
}

// ReserveSource is one audit entry of value entering the reserve
type ReserveSource struct {
	Label  string    `json:"label"`
	Amount uint64    `json:"amount"`
	At     time.Time `json:"at"`
}

// ReserveView is the externally visible state of the yield reserve
type ReserveView struct {
	TotalUndistributed uint64          `json:"totalUndistributed"`
	Sources            []ReserveSource `json:"sources"`
}

// StakeSummary describes a staker's position and pending rewards
type StakeSummary struct {
	Holder         string    `json:"holder"`
	Principal      uint64    `json:"principal"`
	StakedAt       time.Time `json:"stakedAt"`
	LastClaimAt    time.Time `json:"lastClaimAt"`
	Active         bool      `json:"active"`
	PendingRewards uint64    `json:"pendingRewards"`
	RemainingLock  string    `json:"remainingLock"`
}

// LedgerEvent is one append-only audit record of a ledger mutation
type LedgerEvent struct {
	ID             string    `json:"id"`
	Kind           EventKind `json:"kind"`
	DistributionID uint64    `json:"distributionId,omitempty"`
	Holder         string    `json:"holder,omitempty"`
	Amount         uint64    `json:"amount"`
	Source         string    `json:"source,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
