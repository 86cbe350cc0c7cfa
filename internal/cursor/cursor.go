// Package cursor reads bounded, strictly ordered batches of unprocessed
// events from the event log after a watermark id.
package cursor

import (
	"context"

	"eventengine/pkg/models"
)

// PageSize bounds one poll batch.
const PageSize = 1000

// Query selects a page of events.
type Query struct {
	// AfterID keeps only rows with id greater than this value; the empty
	// string selects from the beginning of the log.
	AfterID string
	// Limit caps the page size.
	Limit int
	// ExcludeSync drops rows flagged options.sync=true. Rows where the
	// flag is absent or false always pass.
	ExcludeSync bool
}

// EventLog is the read side of the upstream event store. Read returns rows
// in ascending id order.
type EventLog interface {
	Read(ctx context.Context, q Query) ([]*models.RawEvent, error)
}

// Cursor polls the event log. In production mode sync-flagged events are
// excluded: those were already executed inline at ingestion time and must not
// be processed twice.
type Cursor struct {
	log        EventLog
	production bool
}

// New creates a cursor over the given log.
func New(log EventLog, production bool) *Cursor {
	return &Cursor{log: log, production: production}
}

// Poll returns the next batch after lastID, or an empty slice when caught
// up. Stateless per call; the caller owns the watermark and the polling
// cadence.
func (c *Cursor) Poll(ctx context.Context, lastID string) ([]*models.RawEvent, error) {
	return c.log.Read(ctx, Query{
		AfterID:     lastID,
		Limit:       PageSize,
		ExcludeSync: c.production,
	})
}
