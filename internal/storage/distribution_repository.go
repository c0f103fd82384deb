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

// DistributionRecord mirrors one committed distribution
type DistributionRecord struct {
	ID          uint64    `json:"id"`
	SnapshotID  int64     `json:"snapshotId"`
	TotalAmount uint64    `json:"totalAmount"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ShareRecord mirrors one holder's share of a distribution
type ShareRecord struct {
	Holder    string     `json:"holder"`
	Amount    uint64     `json:"amount"`
	Claimed   bool       `json:"claimed"`
	ClaimedAt *time.Time `json:"claimedAt,omitempty"`
}

// DistributionRepository persists distributions and their shares to Postgres
type DistributionRepository struct {
	db *PostgresDB
}

// NewDistributionRepository creates a new distribution repository
func NewDistributionRepository(db *PostgresDB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

// Create inserts a distribution and all of its shares in one transaction
func (r *DistributionRepository) Create(ctx context.Context, rec *DistributionRecord, shares []ShareRecord) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO distributions (id, snapshot_id, total_amount, completed, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.SnapshotID, strconv.FormatUint(rec.TotalAmount, 10), rec.Completed, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert distribution: %w", err)
	}

	for _, s := range shares {
		_, err := tx.Exec(ctx, `
			INSERT INTO distribution_shares (distribution_id, holder, amount, claimed)
			VALUES ($1, $2, $3, $4)
		`, rec.ID, strings.ToLower(s.Holder), strconv.FormatUint(s.Amount, 10), s.Claimed)
		if err != nil {
			return fmt.Errorf("failed to insert distribution share: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit distribution: %w", err)
	}
	return nil
}

// MarkCompleted marks a distribution as fully paid out
func (r *DistributionRepository) MarkCompleted(ctx context.Context, id uint64) error {
	query := `UPDATE distributions SET completed = TRUE WHERE id = $1`

	if _, err := r.db.Pool().Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark distribution completed: %w", err)
	}
	return nil
}

// MarkClaimed records that a holder's share has been paid, by push or pull
func (r *DistributionRepository) MarkClaimed(ctx context.Context, distributionID uint64, holder string, at time.Time) error {
	query := `
		UPDATE distribution_shares
		SET claimed = TRUE, claimed_at = $3
		WHERE distribution_id = $1 AND holder = $2
	`

	if _, err := r.db.Pool().Exec(ctx, query, distributionID, strings.ToLower(holder), at); err != nil {
		return fmt.Errorf("failed to mark share claimed: %w", err)
	}
	return nil
}

// Get returns one distribution, or nil when it does not exist
func (r *DistributionRepository) Get(ctx context.Context, id uint64) (*DistributionRecord, error) {
	query := `
		SELECT id, snapshot_id, total_amount, completed, created_at
		FROM distributions
		WHERE id = $1
	`

	var rec DistributionRecord
	var amountStr string

	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.SnapshotID, &amountStr, &rec.Completed, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}

	rec.TotalAmount, err = strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt total_amount for distribution %d: %w", rec.ID, err)
	}

	return &rec, nil
}

// GetShares returns all shares of a distribution
func (r *DistributionRepository) GetShares(ctx context.Context, id uint64) ([]ShareRecord, error) {
	query := `
		SELECT holder, amount, claimed, claimed_at
		FROM distribution_shares
		WHERE distribution_id = $1
		ORDER BY holder ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution shares: %w", err)
	}
	defer rows.Close()

	var shares []ShareRecord
	for rows.Next() {
		var s ShareRecord
		var amountStr string
		if err := rows.Scan(&s.Holder, &amountStr, &s.Claimed, &s.ClaimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan distribution share: %w", err)
		}
		s.Amount, err = strconv.ParseUint(amountStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for share %s: %w", s.Holder, err)
		}
		shares = append(shares, s)
	}

	return shares, rows.Err()
}

// MaxID returns the highest distribution id, used to restore the id
// sequence after a restart
func (r *DistributionRepository) MaxID(ctx context.Context) (uint64, error) {
	query := `SELECT COALESCE(MAX(id), 0) FROM distributions`

	var max uint64
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max distribution id: %w", err)
	}
	return max, nil
}
