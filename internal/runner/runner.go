// Package runner executes single events against a compiled program and shapes
// the collected side effects into normalized per-event results.
package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"eventengine/internal/collector"
	"eventengine/internal/runtime"
	"eventengine/pkg/models"
)

// DefaultTimeout bounds feature resolution for one event.
const DefaultTimeout = 10 * time.Second

// DefaultCallLimit caps concurrent outbound data calls per execution.
const DefaultCallLimit = 10

// Config tunes a Runner.
type Config struct {
	Timeout   time.Duration
	CallLimit int64
}

// Runner runs events against one compiled program. The program is shared
// read-only; every run gets a fresh execution and a fresh collector.
type Runner struct {
	program  runtime.Program
	features []string
	timeout  time.Duration
	calls    *runtime.Gate
}

// New creates a runner bound to a program. The declared feature set is a
// static property of the program and is captured once here, not per event.
func New(program runtime.Program, cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CallLimit <= 0 {
		cfg.CallLimit = DefaultCallLimit
	}
	return &Runner{
		program:  program,
		features: program.Features(),
		timeout:  cfg.Timeout,
		calls:    runtime.NewGate(cfg.CallLimit),
	}
}

// Run executes one event. It either returns a complete result or an error
// tagged with the event id; no partial result is ever produced. A timeout
// abandons the execution and fails the event.
func (r *Runner) Run(ctx context.Context, event *models.RawEvent) (*models.EventResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sink := collector.New()
	exec := r.program.Execute(event, runtime.Env{Sink: sink, Calls: r.calls})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exec.FetchFeature(gctx, runtime.CompletionFeature)
	})
	for _, name := range r.features {
		name := name
		g.Go(func() error {
			return exec.FetchFeature(gctx, name)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("event %s: %w", event.ID, err)
	}

	if err := exec.Finalize(ctx); err != nil {
		return nil, fmt.Errorf("event %s: finalize: %w", event.ID, err)
	}

	return buildResult(event, sink.Finalize()), nil
}

func buildResult(event *models.RawEvent, out collector.Collected) *models.EventResult {
	features := make(map[string]interface{}, len(out.EventFeatures))
	for _, f := range out.EventFeatures {
		features[f.Name] = f.Value
	}

	perEntity := make(map[string]map[string]interface{}, len(out.Entities))
	for _, f := range out.EntityFeatures {
		m, ok := perEntity[f.EntityID]
		if !ok {
			m = make(map[string]interface{})
			perEntity[f.EntityID] = m
		}
		m[f.Name] = f.Value
	}

	entities := make([]models.ResultEntity, 0, len(out.Entities))
	for _, e := range out.Entities {
		fm := perEntity[e.ID]
		if fm == nil {
			fm = map[string]interface{}{}
		}
		entities = append(entities, models.ResultEntity{EntityRef: e, Features: fm})
	}

	labels := out.EventLabels
	if labels == nil {
		labels = []models.EventLabel{}
	}

	return &models.EventResult{
		ID:           event.ID,
		Type:         event.Type,
		Timestamp:    event.Timestamp,
		Data:         event.Data,
		Features:     features,
		Labels:       labels,
		Entities:     entities,
		EntityLabels: out.EntityLabels,
	}
}
