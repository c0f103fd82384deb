package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// ReserveRepository persists the reserve balance to Postgres. The reserve
// is a singleton row; the source audit trail lives in the event log.
type ReserveRepository struct {
	db *PostgresDB
}

// NewReserveRepository creates a new reserve repository
func NewReserveRepository(db *PostgresDB) *ReserveRepository {
	return &ReserveRepository{db: db}
}

// SetTotal writes the current undistributed reserve balance
func (r *ReserveRepository) SetTotal(ctx context.Context, total uint64) error {
	query := `
		INSERT INTO reserve (id, total_undistributed)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET total_undistributed = EXCLUDED.total_undistributed
	`

	if _, err := r.db.Pool().Exec(ctx, query, strconv.FormatUint(total, 10)); err != nil {
		return fmt.Errorf("failed to set reserve total: %w", err)
	}
	return nil
}

// GetTotal returns the committed reserve balance, zero when never written
func (r *ReserveRepository) GetTotal(ctx context.Context) (uint64, error) {
	query := `SELECT total_undistributed FROM reserve WHERE id = 1`

	var totalStr string
	err := r.db.Pool().QueryRow(ctx, query).Scan(&totalStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get reserve total: %w", err)
	}

	total, err := strconv.ParseUint(totalStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt reserve total: %w", err)
	}
	return total, nil
}
