package models

// FactRow is one persisted (event, entity) pair in the analytical store, or a
// single summary row for an event that touched no entities. Timestamps are
// unix seconds; sub-second precision is intentionally discarded.
type FactRow struct {
	EventID        string                 `json:"event_id"`
	EventType      string                 `json:"event_type"`
	EventTimestamp int64                  `json:"event_timestamp"`
	EventData      map[string]interface{} `json:"event_data"`
	Features       map[string]interface{} `json:"features"`
	EntityID       string                 `json:"entity_id,omitempty"`
	EntityType     string                 `json:"entity_type,omitempty"`
	EntityName     string                 `json:"entity_name,omitempty"`
	DatasetID      int64                  `json:"dataset_id"`
}

// LabelRowStatusAdded is the only status written today. Label removals are
// collected upstream but do not yet surface as a distinct persisted status.
const LabelRowStatusAdded = "ADDED"

// LabelRow is one persisted event label.
type LabelRow struct {
	EventID        string `json:"event_id"`
	EventType      string `json:"event_type"`
	EventTimestamp int64  `json:"event_timestamp"`
	Type           string `json:"type"`
	Label          string `json:"label"`
	Cause          string `json:"cause,omitempty"`
	Status         string `json:"status"`
	DatasetID      int64  `json:"dataset_id"`
}
