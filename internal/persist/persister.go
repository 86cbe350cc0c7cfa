// Package persist fans per-event results out into analytical-store rows and
// performs best-effort bulk inserts.
package persist

import (
	"context"

	"eventengine/internal/logger"
	"eventengine/internal/metrics"
	"eventengine/pkg/models"
)

// Inserter is the row-oriented bulk insert capability of the analytical
// store: one call writes one batch of flat JSON rows into one table.
type Inserter interface {
	Insert(ctx context.Context, table string, rows []interface{}) error
}

// Config configures a Persister.
type Config struct {
	FactTable  string
	LabelTable string
	DatasetID  int64
}

// Persister writes result batches to the fact and label tables. The two
// inserts are independent: one failing does not stop or roll back the other,
// and neither failure reaches the caller. Failed batches are not retried.
type Persister struct {
	inserter   Inserter
	factTable  string
	labelTable string
	datasetID  int64
}

// New creates a persister.
func New(inserter Inserter, cfg Config) *Persister {
	if cfg.FactTable == "" {
		cfg.FactTable = "event_entity"
	}
	if cfg.LabelTable == "" {
		cfg.LabelTable = "event_labels"
	}
	return &Persister{
		inserter:   inserter,
		factTable:  cfg.FactTable,
		labelTable: cfg.LabelTable,
		datasetID:  cfg.DatasetID,
	}
}

// Persist writes one batch. Errors are logged and counted, never returned.
func (p *Persister) Persist(ctx context.Context, results []*models.EventResult) {
	if len(results) == 0 {
		return
	}

	facts := p.FactRows(results)
	labels := p.LabelRows(results)

	p.insert(ctx, p.factTable, facts)
	p.insert(ctx, p.labelTable, labels)
	metrics.BatchesPersisted.Inc()
}

func (p *Persister) insert(ctx context.Context, table string, rows []interface{}) {
	if len(rows) == 0 {
		return
	}
	if err := p.inserter.Insert(ctx, table, rows); err != nil {
		logger.Errorf("Failed to insert %d rows into %s: %v", len(rows), table, err)
		metrics.PersistErrors.WithLabelValues(table).Inc()
		return
	}
	metrics.RowsWritten.WithLabelValues(table).Add(float64(len(rows)))
}

// FactRows builds the event/entity fact rows for a batch: one row per
// (event, entity) pair, or one summary row for an event with no entities.
func (p *Persister) FactRows(results []*models.EventResult) []interface{} {
	rows := make([]interface{}, 0, len(results))
	for _, res := range results {
		base := models.FactRow{
			EventID:        res.ID,
			EventType:      res.Type,
			EventTimestamp: res.Timestamp.Unix(),
			EventData:      res.Data,
			DatasetID:      p.datasetID,
		}

		if len(res.Entities) == 0 {
			row := base
			row.Features = res.Features
			rows = append(rows, row)
			continue
		}

		for _, entity := range res.Entities {
			row := base
			row.EntityID = entity.ID
			row.EntityType = entity.Type
			row.EntityName = entityName(entity)
			row.Features = mergeFeatures(res.Features, entity.Features)
			rows = append(rows, row)
		}
	}
	return rows
}

// LabelRows flattens every result's event labels into one row each. Status
// is always ADDED today; see models.LabelRowStatusAdded.
func (p *Persister) LabelRows(results []*models.EventResult) []interface{} {
	rows := make([]interface{}, 0)
	for _, res := range results {
		for _, label := range res.Labels {
			rows = append(rows, models.LabelRow{
				EventID:        res.ID,
				EventType:      res.Type,
				EventTimestamp: res.Timestamp.Unix(),
				Type:           label.Type,
				Label:          label.Label,
				Cause:          label.Cause,
				Status:         models.LabelRowStatusAdded,
				DatasetID:      p.datasetID,
			})
		}
	}
	return rows
}

// entityName is the display-name policy: the entity's Name feature when
// present, the entity id otherwise.
func entityName(entity models.ResultEntity) string {
	if v, ok := entity.Features["Name"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return entity.ID
}

// mergeFeatures unions event features with one entity's features; the
// entity's values win on name collisions.
func mergeFeatures(event, entity map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(event)+len(entity))
	for k, v := range event {
		merged[k] = v
	}
	for k, v := range entity {
		merged[k] = v
	}
	return merged
}
