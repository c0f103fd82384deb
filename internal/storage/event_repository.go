package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yield-ledger/internal/types"
)

// EventRepository appends ledger events to ClickHouse. The table is
// append-only; events are never updated or deleted.
type EventRepository struct {
	db *ClickHouseDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *ClickHouseDB) *EventRepository {
	return &EventRepository{db: db}
}

// Append writes one ledger event. An empty ID is assigned here.
func (r *EventRepository) Append(ctx context.Context, event *types.LedgerEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO ledger_events (id, kind, distribution_id, holder, amount, source, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return r.db.Conn().Exec(ctx, query,
		event.ID,
		string(event.Kind),
		event.DistributionID,
		strings.ToLower(event.Holder),
		event.Amount,
		event.Source,
		event.Timestamp,
	)
}

// AppendBatch writes multiple ledger events efficiently
func (r *EventRepository) AppendBatch(ctx context.Context, events []*types.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO ledger_events (id, kind, distribution_id, holder, amount, source, ts)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now().UTC()
		}
		if err := batch.Append(e.ID, string(e.Kind), e.DistributionID, strings.ToLower(e.Holder), e.Amount, e.Source, e.Timestamp); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// GetByHolder returns events for one holder in a time range
func (r *EventRepository) GetByHolder(ctx context.Context, holder string, from, to time.Time) ([]types.LedgerEvent, error) {
	query := `
		SELECT id, kind, distribution_id, holder, amount, source, ts
		FROM ledger_events
		WHERE holder = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := r.db.Conn().Query(ctx, query, strings.ToLower(holder), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer rows.Close()

	var events []types.LedgerEvent
	for rows.Next() {
		var e types.LedgerEvent
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.DistributionID, &e.Holder, &e.Amount, &e.Source, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		e.Kind = types.EventKind(kind)
		events = append(events, e)
	}

	return events, nil
}

// GetByKind returns events of one kind in a time range
func (r *EventRepository) GetByKind(ctx context.Context, kind types.EventKind, from, to time.Time) ([]types.LedgerEvent, error) {
	query := `
		SELECT id, kind, distribution_id, holder, amount, source, ts
		FROM ledger_events
		WHERE kind = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := r.db.Conn().Query(ctx, query, string(kind), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer rows.Close()

	var events []types.LedgerEvent
	for rows.Next() {
		var e types.LedgerEvent
		var k string
		if err := rows.Scan(&e.ID, &k, &e.DistributionID, &e.Holder, &e.Amount, &e.Source, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		e.Kind = types.EventKind(k)
		events = append(events, e)
	}

	return events, nil
}
