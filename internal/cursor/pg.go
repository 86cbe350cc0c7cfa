package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"eventengine/pkg/models"
)

// PGLog reads and appends event rows in a Postgres event log table. The id
// column is a lexicographically ordered string, so `id > $watermark` with an
// ascending sort gives strict insertion-order iteration.
type PGLog struct {
	pool  *pgxpool.Pool
	table string
}

// NewPGLog connects to the event log database.
func NewPGLog(ctx context.Context, dsn, table string) (*PGLog, error) {
	if table == "" {
		table = "event_log"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect event log: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping event log: %w", err)
	}
	return &PGLog{pool: pool, table: table}, nil
}

// Read implements EventLog.
func (l *PGLog) Read(ctx context.Context, q Query) ([]*models.RawEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = PageSize
	}

	sql := fmt.Sprintf(`SELECT id, type, "timestamp", data, options FROM %s WHERE ($1 = '' OR id > $1)`, l.table)
	if q.ExcludeSync {
		sql += ` AND COALESCE((options->>'sync')::boolean, false) = false`
	}
	sql += ` ORDER BY id ASC LIMIT $2`

	rows, err := l.pool.Query(ctx, sql, q.AfterID, limit)
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	defer rows.Close()

	out := make([]*models.RawEvent, 0, limit)
	for rows.Next() {
		var (
			ev      models.RawEvent
			ts      time.Time
			data    []byte
			options []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ts, &data, &options); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev.Timestamp = ts
		if len(data) > 0 {
			if err := json.Unmarshal(data, &ev.Data); err != nil {
				return nil, fmt.Errorf("decode event %s data: %w", ev.ID, err)
			}
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &ev.Options); err != nil {
				return nil, fmt.Errorf("decode event %s options: %w", ev.ID, err)
			}
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return out, nil
}

// Append inserts one event.
func (l *PGLog) Append(ctx context.Context, event *models.RawEvent) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	options, err := json.Marshal(event.Options)
	if err != nil {
		return fmt.Errorf("encode event options: %w", err)
	}

	sql := fmt.Sprintf(`INSERT INTO %s (id, type, "timestamp", data, options) VALUES ($1, $2, $3, $4, $5)`, l.table)
	if _, err := l.pool.Exec(ctx, sql, event.ID, event.Type, event.Timestamp, data, options); err != nil {
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}
	return nil
}

// Close releases the connection pool.
func (l *PGLog) Close() {
	l.pool.Close()
}
