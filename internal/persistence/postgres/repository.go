package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/observability"
)

const selectColumns = `id::text, action_type, COALESCE(actor_name, ''), COALESCE(actor_avatar_url, ''),
        COALESCE(subject_name, ''), COALESCE(location, ''), COALESCE(session_id, ''), created_at`

// Repository provides Postgres-backed persistence for the activity log and its outbox.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends the entry to the activity log and queues its outbox event inside a single transaction.
func (r *Repository) Record(ctx context.Context, entry domain.ActivityLogEntry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertEntry = `INSERT INTO activity_log (id, action_type, actor_name, actor_avatar_url, subject_name, location, session_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, insertEntry,
		entry.ID,
		string(entry.ActionType),
		nullIfEmpty(entry.ActorName),
		nullIfEmpty(entry.ActorAvatarURL),
		nullIfEmpty(entry.SubjectName),
		nullIfEmpty(entry.Location),
		nullIfEmpty(entry.SessionID),
		entry.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, entry, domain.EventActivityLogged); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordActivityLogged(entry.CreatedAt)
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, entry domain.ActivityLogEntry, eventType string) error {
	body, err := json.Marshal(entry.Record())
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok || meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err = tx.Exec(ctx, stmt,
		entry.ID,
		eventType,
		meta.Topic,
		meta.PartitionKeyFn(entry),
		body,
		fmt.Sprintf("%s:%s", entry.ID, eventType),
	)
	return err
}

// FetchRecent returns up to limit activity log records, newest first, in their boundary form.
func (r *Repository) FetchRecent(ctx context.Context, limit int) ([]domain.RawRecord, error) {
	entries, _, err := r.ListRecent(ctx, nil, limit)
	if err != nil {
		return nil, err
	}
	records := make([]domain.RawRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, entry.Record())
	}
	return records, nil
}

// ListRecent returns activity log entries ordered newest first.
func (r *Repository) ListRecent(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.ActivityLogEntry, *domain.Cursor, error) {
	if limit <= 0 {
		return nil, nil, nil
	}

	args := []interface{}{limit}
	query := `SELECT ` + selectColumns + ` FROM activity_log`

	if cursor != nil {
		query += ` WHERE (created_at, id) < ($2, $3::uuid)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.ActivityLogEntry, 0, limit)
	for rows.Next() {
		var (
			entry      domain.ActivityLogEntry
			actionType string
		)
		if err := rows.Scan(&entry.ID, &actionType, &entry.ActorName, &entry.ActorAvatarURL, &entry.SubjectName, &entry.Location, &entry.SessionID, &entry.CreatedAt); err != nil {
			return nil, nil, err
		}
		entry.ActionType = domain.ActionType(actionType)
		entry.CreatedAt = entry.CreatedAt.UTC()
		results = append(results, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	return results, nextCursor, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	PartitionKeyFn func(domain.ActivityLogEntry) string
}

var eventCatalog = map[string]EventMetadata{
	domain.EventActivityLogged: {
		Topic: domain.ActivityLogTopic,
		PartitionKeyFn: func(e domain.ActivityLogEntry) string {
			return string(e.ActionType)
		},
	},
}
