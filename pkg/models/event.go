package models

import "time"

// EventOptions carries per-event ingestion flags.
type EventOptions struct {
	// Sync marks an event that was executed inline at ingestion time and
	// must be skipped by the batch pipeline in production.
	Sync bool `json:"sync,omitempty"`
}

// RawEvent is one row of the upstream event log. IDs are time-ordered and
// lexicographically sortable; the log is read in ascending-id order.
type RawEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Options   EventOptions           `json:"options,omitempty"`
}

// EntityRef identifies an entity by its composite key. Relation may be empty.
type EntityRef struct {
	Type     string `json:"type"`
	Relation string `json:"relation,omitempty"`
	ID       string `json:"id"`
}

// LabelAction distinguishes label addition from removal.
type LabelAction string

const (
	LabelActionAdd    LabelAction = "add"
	LabelActionRemove LabelAction = "remove"
)

// EventLabel is a label attached to an event by the rule program.
type EventLabel struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Cause string `json:"cause,omitempty"`
}

// EntityLabel is a label added to or removed from an entity, with the
// provenance token naming the rule branch that produced it.
type EntityLabel struct {
	EntityID   string      `json:"entity_id"`
	EntityType string      `json:"entity_type"`
	LabelType  string      `json:"label_type"`
	Label      string      `json:"label"`
	Action     LabelAction `json:"action"`
	Cause      string      `json:"cause,omitempty"`
}

// ResultEntity is one tracked entity with its flattened feature map.
// Features is never nil; an entity with no features carries an empty map.
type ResultEntity struct {
	EntityRef
	Features map[string]interface{} `json:"features"`
}

// EventResult is the normalized outcome of executing one event against the
// compiled rule program.
type EventResult struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	Data         map[string]interface{} `json:"data"`
	Features     map[string]interface{} `json:"features"`
	Labels       []EventLabel           `json:"labels"`
	Entities     []ResultEntity         `json:"entities"`
	EntityLabels []EntityLabel          `json:"entity_labels,omitempty"`
}
