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

// SnapshotRecord mirrors one committed balance snapshot
type SnapshotRecord struct {
	ID          int64      `json:"id"`
	TakenAt     time.Time  `json:"takenAt"`
	TotalSupply uint64     `json:"totalSupply"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
}

// SnapshotHolderRecord mirrors one holder row of a snapshot. Position
// preserves the insertion order the allocation engine iterates in.
type SnapshotHolderRecord struct {
	Holder   string `json:"holder"`
	Balance  uint64 `json:"balance"`
	Position int    `json:"position"`
}

// SnapshotRepository persists balance snapshots to Postgres
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts a new snapshot row and returns its id
func (r *SnapshotRepository) Create(ctx context.Context, takenAt time.Time, totalSupply uint64) (int64, error) {
	query := `
		INSERT INTO snapshots (taken_at, total_supply)
		VALUES ($1, $2)
		RETURNING id
	`

	var id int64
	err := r.db.Pool().QueryRow(ctx, query, takenAt, strconv.FormatUint(totalSupply, 10)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", err)
	}

	return id, nil
}

// MarkValidated records the validation time of a snapshot
func (r *SnapshotRepository) MarkValidated(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE snapshots SET validated_at = $2 WHERE id = $1`

	if _, err := r.db.Pool().Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark snapshot validated: %w", err)
	}
	return nil
}

// ReplaceHolders replaces the holder set of a snapshot in one transaction
func (r *SnapshotRepository) ReplaceHolders(ctx context.Context, snapshotID int64, holders []SnapshotHolderRecord) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM snapshot_holders WHERE snapshot_id = $1`, snapshotID); err != nil {
		return fmt.Errorf("failed to clear snapshot holders: %w", err)
	}

	for _, h := range holders {
		_, err := tx.Exec(ctx, `
			INSERT INTO snapshot_holders (snapshot_id, holder, balance, position)
			VALUES ($1, $2, $3, $4)
		`, snapshotID, strings.ToLower(h.Holder), strconv.FormatUint(h.Balance, 10), h.Position)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot holder: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot holders: %w", err)
	}
	return nil
}

// GetLatest returns the most recent snapshot, or nil when none exists
func (r *SnapshotRepository) GetLatest(ctx context.Context) (*SnapshotRecord, error) {
	query := `
		SELECT id, taken_at, total_supply, validated_at
		FROM snapshots
		ORDER BY id DESC
		LIMIT 1
	`

	var rec SnapshotRecord
	var supplyStr string

	err := r.db.Pool().QueryRow(ctx, query).Scan(&rec.ID, &rec.TakenAt, &supplyStr, &rec.ValidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	rec.TotalSupply, err = strconv.ParseUint(supplyStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt total_supply for snapshot %d: %w", rec.ID, err)
	}

	return &rec, nil
}

// GetHolders returns the holder rows of a snapshot in insertion order
func (r *SnapshotRepository) GetHolders(ctx context.Context, snapshotID int64) ([]SnapshotHolderRecord, error) {
	query := `
		SELECT holder, balance, position
		FROM snapshot_holders
		WHERE snapshot_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot holders: %w", err)
	}
	defer rows.Close()

	var holders []SnapshotHolderRecord
	for rows.Next() {
		var h SnapshotHolderRecord
		var balanceStr string
		if err := rows.Scan(&h.Holder, &balanceStr, &h.Position); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot holder: %w", err)
		}
		h.Balance, err = strconv.ParseUint(balanceStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt balance for holder %s: %w", h.Holder, err)
		}
		holders = append(holders, h)
	}

	return holders, rows.Err()
}
