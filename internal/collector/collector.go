// Package collector implements the per-execution result accumulator that the
// rule program writes entities, features, and labels into while it runs.
package collector

import (
	"eventengine/internal/identity"
	"eventengine/pkg/models"
)

// Synthetic bookkeeping types never surface as tracked entities.
var syntheticTypes = map[string]struct{}{
	"RateLimit":     {},
	"Counter":       {},
	"UniqueCounter": {},
}

// Feature is one named value attached to the event.
type Feature struct {
	Name  string
	Value interface{}
}

// EntityFeature is one named value attached to an entity.
type EntityFeature struct {
	EntityID string
	Name     string
	Value    interface{}
}

// Collected is the immutable snapshot produced by Finalize. Entities are
// deduplicated by id in first-seen order; feature and label lists keep their
// accumulation order, duplicates included.
type Collected struct {
	Entities       []models.EntityRef
	EventFeatures  []Feature
	EntityFeatures []EntityFeature
	EventLabels    []models.EventLabel
	EntityLabels   []models.EntityLabel
}

// Collector accumulates execution results. One instance is owned by exactly
// one event execution and is never shared, so no locking is needed. All
// operations are additive and none of them fail.
type Collector struct {
	entities       []models.EntityRef
	eventFeatures  []Feature
	entityFeatures []EntityFeature
	eventLabels    []models.EventLabel
	entityLabels   []models.EntityLabel
	finalized      bool
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{}
}

// TrackEntity records an entity reference. Synthetic bookkeeping types are
// discarded. The same entity may be tracked any number of times; Finalize
// deduplicates by id.
func (c *Collector) TrackEntity(ref string) {
	if c.finalized {
		return
	}
	parsed := identity.Parse(ref)
	if _, synthetic := syntheticTypes[parsed.Type]; synthetic {
		return
	}
	c.entities = append(c.entities, parsed)
}

// AddEventFeature appends a feature on the event. Repeated names are allowed;
// the consumer takes the last occurrence when flattening.
func (c *Collector) AddEventFeature(name string, value interface{}) {
	if c.finalized {
		return
	}
	c.eventFeatures = append(c.eventFeatures, Feature{Name: name, Value: value})
}

// AddEntityFeature appends a feature on the referenced entity.
func (c *Collector) AddEntityFeature(ref, name string, value interface{}) {
	if c.finalized {
		return
	}
	parsed := identity.Parse(ref)
	c.entityFeatures = append(c.entityFeatures, EntityFeature{EntityID: parsed.ID, Name: name, Value: value})
}

// AddEntityLabel records a label addition on the referenced entity. The cause
// token is forwarded as-is, never interpreted.
func (c *Collector) AddEntityLabel(cause, ref, labelType, label string) {
	c.appendEntityLabel(cause, ref, labelType, label, models.LabelActionAdd)
}

// RemoveEntityLabel records a label removal on the referenced entity.
func (c *Collector) RemoveEntityLabel(cause, ref, labelType, label string) {
	c.appendEntityLabel(cause, ref, labelType, label, models.LabelActionRemove)
}

func (c *Collector) appendEntityLabel(cause, ref, labelType, label string, action models.LabelAction) {
	if c.finalized {
		return
	}
	parsed := identity.Parse(ref)
	c.entityLabels = append(c.entityLabels, models.EntityLabel{
		EntityID:   parsed.ID,
		EntityType: parsed.Type,
		LabelType:  labelType,
		Label:      label,
		Action:     action,
		Cause:      cause,
	})
}

// AddEventLabel records a label on the event.
func (c *Collector) AddEventLabel(labelType, label, cause string) {
	if c.finalized {
		return
	}
	c.eventLabels = append(c.eventLabels, models.EventLabel{Type: labelType, Label: label, Cause: cause})
}

// Finalize closes the collector and returns the snapshot. Entities are
// deduplicated by id, preserving first-seen order. Mutations after Finalize
// are ignored.
func (c *Collector) Finalize() Collected {
	c.finalized = true

	seen := make(map[string]struct{}, len(c.entities))
	entities := make([]models.EntityRef, 0, len(c.entities))
	for _, e := range c.entities {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		entities = append(entities, e)
	}

	return Collected{
		Entities:       entities,
		EventFeatures:  c.eventFeatures,
		EntityFeatures: c.entityFeatures,
		EventLabels:    c.eventLabels,
		EntityLabels:   c.entityLabels,
	}
}
