package collector

import "testing"

func TestSyntheticTypesAreNeverTracked(t *testing.T) {
	c := New()
	c.TrackEntity("RateLimit/signup:1.2.3.4")
	c.TrackEntity("Counter/logins:u1")
	c.TrackEntity("UniqueCounter/devices:u1")
	c.TrackEntity("User::owner/123")

	out := c.Finalize()
	if len(out.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d: %+v", len(out.Entities), out.Entities)
	}
	if out.Entities[0].Type != "User" || out.Entities[0].ID != "123" {
		t.Fatalf("unexpected entity: %+v", out.Entities[0])
	}
}

func TestFinalizeDeduplicatesByIDPreservingFirstSeenOrder(t *testing.T) {
	c := New()
	c.TrackEntity("User::owner/a")
	c.TrackEntity("Device/b")
	c.TrackEntity("User::owner/a")
	c.TrackEntity("Card/c")
	c.TrackEntity("Device/b")

	out := c.Finalize()
	if len(out.Entities) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(out.Entities))
	}
	order := []string{"a", "b", "c"}
	for i, id := range order {
		if out.Entities[i].ID != id {
			t.Fatalf("entity %d: got id %q, want %q", i, out.Entities[i].ID, id)
		}
	}
}

func TestEventFeaturesKeepDuplicates(t *testing.T) {
	c := New()
	c.AddEventFeature("x", "1")
	c.AddEventFeature("x", "2")

	out := c.Finalize()
	if len(out.EventFeatures) != 2 {
		t.Fatalf("expected both feature entries to accumulate, got %d", len(out.EventFeatures))
	}
	if out.EventFeatures[1].Value != "2" {
		t.Fatalf("last entry should be the last write, got %v", out.EventFeatures[1].Value)
	}
}

func TestEntityLabelActionsAndCausePassThrough(t *testing.T) {
	c := New()
	c.AddEntityLabel("rule-7", "User::owner/123", "risk", "high")
	c.RemoveEntityLabel("rule-9", "User::owner/123", "risk", "low")

	out := c.Finalize()
	if len(out.EntityLabels) != 2 {
		t.Fatalf("expected 2 entity labels, got %d", len(out.EntityLabels))
	}
	add := out.EntityLabels[0]
	if add.Action != "add" || add.Cause != "rule-7" || add.EntityID != "123" || add.EntityType != "User" {
		t.Fatalf("unexpected add label: %+v", add)
	}
	if out.EntityLabels[1].Action != "remove" || out.EntityLabels[1].Cause != "rule-9" {
		t.Fatalf("unexpected remove label: %+v", out.EntityLabels[1])
	}
}

func TestMutationsAfterFinalizeAreIgnored(t *testing.T) {
	c := New()
	c.AddEventLabel("risk", "high", "r1")
	first := c.Finalize()

	c.AddEventLabel("risk", "low", "r2")
	c.TrackEntity("User/late")
	second := c.Finalize()

	if len(first.EventLabels) != 1 || len(second.EventLabels) != 1 {
		t.Fatalf("post-finalize mutation leaked: %d / %d", len(first.EventLabels), len(second.EventLabels))
	}
	if len(second.Entities) != 0 {
		t.Fatalf("post-finalize entity leaked: %+v", second.Entities)
	}
}
