package cursor

import (
	"context"
	"sort"
	"sync"

	"eventengine/pkg/models"
)

// MemLog is an in-memory EventLog, used in tests and when the engine runs
// without a database.
type MemLog struct {
	mu     sync.Mutex
	events []*models.RawEvent
}

// NewMemLog creates an empty in-memory log.
func NewMemLog() *MemLog {
	return &MemLog{}
}

// Append adds one event, keeping the log sorted by id.
func (l *MemLog) Append(ctx context.Context, event *models.RawEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := sort.Search(len(l.events), func(i int) bool { return l.events[i].ID >= event.ID })
	l.events = append(l.events, nil)
	copy(l.events[i+1:], l.events[i:])
	l.events[i] = event
	return nil
}

// Read implements EventLog.
func (l *MemLog) Read(ctx context.Context, q Query) ([]*models.RawEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*models.RawEvent, 0, q.Limit)
	for _, ev := range l.events {
		if q.AfterID != "" && ev.ID <= q.AfterID {
			continue
		}
		if q.ExcludeSync && ev.Options.Sync {
			continue
		}
		out = append(out, ev)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}
