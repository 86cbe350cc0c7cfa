package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"eventengine/internal/runtime"
	"eventengine/pkg/models"
)

// fakeProgram resolves instantly and applies fn to the sink, unless hang is
// set, in which case feature resolution blocks until the context expires.
type fakeProgram struct {
	features    []string
	fn          func(event *models.RawEvent, sink runtime.Sink)
	hang        bool
	finalizeErr error
}

func (p *fakeProgram) Version() string    { return "test" }
func (p *fakeProgram) Features() []string { return p.features }

func (p *fakeProgram) Execute(event *models.RawEvent, env runtime.Env) runtime.Execution {
	return &fakeExecution{prog: p, event: event, env: env}
}

type fakeExecution struct {
	prog    *fakeProgram
	event   *models.RawEvent
	env     runtime.Env
	applied bool
}

func (e *fakeExecution) FetchFeature(ctx context.Context, name string) error {
	if e.prog.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if name == runtime.CompletionFeature && !e.applied {
		e.applied = true
		if e.prog.fn != nil {
			e.prog.fn(e.event, e.env.Sink)
		}
	}
	return nil
}

func (e *fakeExecution) Finalize(ctx context.Context) error {
	return e.prog.finalizeErr
}

func testEvent(id string) *models.RawEvent {
	return &models.RawEvent{
		ID:        id,
		Type:      "signup",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC),
		Data:      map[string]interface{}{"k": "v"},
	}
}

func TestRunFlattensFeaturesLastWriteWins(t *testing.T) {
	prog := &fakeProgram{fn: func(event *models.RawEvent, sink runtime.Sink) {
		sink.AddEventFeature("x", "1")
		sink.AddEventFeature("x", "2")
		sink.TrackEntity("User::owner/123")
		sink.AddEntityFeature("User::owner/123", "riskScore", "42")
		sink.AddEventLabel("risk", "high", "rule-1")
	}}

	r := New(prog, Config{})
	res, err := r.Run(context.Background(), testEvent("evt-a"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Features["x"] != "2" {
		t.Fatalf("expected last write to win, got %v", res.Features["x"])
	}
	if len(res.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %+v", res.Entities)
	}
	e := res.Entities[0]
	if e.ID != "123" || e.Type != "User" || e.Relation != "owner" {
		t.Fatalf("unexpected entity: %+v", e)
	}
	if e.Features["riskScore"] != "42" {
		t.Fatalf("entity feature map wrong: %+v", e.Features)
	}
	if len(res.Labels) != 1 || res.Labels[0].Label != "high" {
		t.Fatalf("unexpected labels: %+v", res.Labels)
	}
}

func TestRunEntityWithoutFeaturesGetsEmptyMap(t *testing.T) {
	prog := &fakeProgram{fn: func(event *models.RawEvent, sink runtime.Sink) {
		sink.TrackEntity("Device/d-1")
	}}

	r := New(prog, Config{})
	res, err := r.Run(context.Background(), testEvent("evt-b"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %+v", res.Entities)
	}
	if res.Entities[0].Features == nil || len(res.Entities[0].Features) != 0 {
		t.Fatalf("expected empty feature map, got %#v", res.Entities[0].Features)
	}
}

func TestRunNoSharedStateAcrossEvents(t *testing.T) {
	prog := &fakeProgram{fn: func(event *models.RawEvent, sink runtime.Sink) {
		if event.ID == "first" {
			sink.AddEventLabel("risk", "high", "rule-1")
		}
	}}

	r := New(prog, Config{})
	first, err := r.Run(context.Background(), testEvent("first"))
	if err != nil {
		t.Fatalf("run first: %v", err)
	}
	second, err := r.Run(context.Background(), testEvent("second"))
	if err != nil {
		t.Fatalf("run second: %v", err)
	}

	if len(first.Labels) != 1 {
		t.Fatalf("first run lost its label: %+v", first.Labels)
	}
	if len(second.Labels) != 0 {
		t.Fatalf("collector state leaked into second run: %+v", second.Labels)
	}
}

func TestRunTimeoutFailsEventWithID(t *testing.T) {
	r := New(&fakeProgram{hang: true}, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := r.Run(context.Background(), testEvent("evt-hang"))
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "evt-hang") {
		t.Fatalf("error not tagged with event id: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout did not bound execution: %v", elapsed)
	}
}

func TestRunFinalizeFailurePropagates(t *testing.T) {
	boom := errors.New("flush rejected")
	r := New(&fakeProgram{finalizeErr: boom}, Config{})

	_, err := r.Run(context.Background(), testEvent("evt-f"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected finalize error, got %v", err)
	}
	if !strings.Contains(err.Error(), "evt-f") {
		t.Fatalf("error not tagged with event id: %v", err)
	}
}
