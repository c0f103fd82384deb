package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// StakeRecord mirrors one committed stake position
type StakeRecord struct {
	Holder      string    `json:"holder"`
	Principal   uint64    `json:"principal"`
	StakedAt    time.Time `json:"stakedAt"`
	LastClaimAt time.Time `json:"lastClaimAt"`
	Active      bool      `json:"active"`
}

// StakeRepository persists stake positions to Postgres
type StakeRepository struct {
	db *PostgresDB
}

// NewStakeRepository creates a new stake repository
func NewStakeRepository(db *PostgresDB) *StakeRepository {
	return &StakeRepository{db: db}
}

// Upsert writes the current state of a stake position. One row per holder;
// stake, unstake and claim all funnel through here.
func (r *StakeRepository) Upsert(ctx context.Context, rec *StakeRecord) error {
	query := `
		INSERT INTO stake_positions (holder, principal, staked_at, last_claim_at, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (holder) DO UPDATE SET
			principal = EXCLUDED.principal,
			staked_at = EXCLUDED.staked_at,
			last_claim_at = EXCLUDED.last_claim_at,
			active = EXCLUDED.active
	`

	_, err := r.db.Pool().Exec(ctx, query,
		strings.ToLower(rec.Holder),
		strconv.FormatUint(rec.Principal, 10),
		rec.StakedAt,
		rec.LastClaimAt,
		rec.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stake position: %w", err)
	}
	return nil
}

// Get returns the stake position of a holder, or nil when none exists
func (r *StakeRepository) Get(ctx context.Context, holder string) (*StakeRecord, error) {
	query := `
		SELECT holder, principal, staked_at, last_claim_at, active
		FROM stake_positions
		WHERE holder = $1
	`

	var rec StakeRecord
	var principalStr string

	err := r.db.Pool().QueryRow(ctx, query, strings.ToLower(holder)).Scan(
		&rec.Holder, &principalStr, &rec.StakedAt, &rec.LastClaimAt, &rec.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stake position: %w", err)
	}

	rec.Principal, err = strconv.ParseUint(principalStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt principal for %s: %w", rec.Holder, err)
	}

	return &rec, nil
}

// ListActive returns all active stake positions
func (r *StakeRepository) ListActive(ctx context.Context) ([]StakeRecord, error) {
	query := `
		SELECT holder, principal, staked_at, last_claim_at, active
		FROM stake_positions
		WHERE active = TRUE
		ORDER BY holder ASC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query stake positions: %w", err)
	}
	defer rows.Close()

	var records []StakeRecord
	for rows.Next() {
		var rec StakeRecord
		var principalStr string
		if err := rows.Scan(&rec.Holder, &principalStr, &rec.StakedAt, &rec.LastClaimAt, &rec.Active); err != nil {
			return nil, fmt.Errorf("failed to scan stake position: %w", err)
		}
		rec.Principal, err = strconv.ParseUint(principalStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt principal for %s: %w", rec.Holder, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
