// Package runtime defines the seam between the pipeline and the embedded rule
// language: a compiler produces an immutable program from a virtual file set,
// and each event gets its own execution writing results into a sink.
package runtime

import (
	"context"

	"golang.org/x/sync/semaphore"

	"eventengine/pkg/models"
)

// CompletionFeature is the distinguished output that resolves only once every
// other feature of an execution has settled.
const CompletionFeature = "ExecutionComplete"

// Sink receives the side effects a running program emits: tracked entities,
// features, and labels. One sink is bound to exactly one execution.
type Sink interface {
	TrackEntity(ref string)
	AddEventFeature(name string, value interface{})
	AddEntityFeature(ref, name string, value interface{})
	AddEntityLabel(cause, ref, labelType, label string)
	RemoveEntityLabel(cause, ref, labelType, label string)
	AddEventLabel(labelType, label, cause string)
}

// Env is the per-execution environment handed to a program.
type Env struct {
	Sink Sink
	// Calls bounds concurrent outbound data calls made during feature
	// resolution. May be nil, in which case calls are unrestricted.
	Calls *Gate
}

// Compiler turns rule source files into an executable program. Compile
// diagnostics keep their file context intact.
type Compiler interface {
	Compile(ctx context.Context, files *FileSet) (Program, error)
}

// Program is a compiled rule program. Programs are immutable and safe to
// share across any number of concurrent executions.
type Program interface {
	// Version identifies the compiled source set.
	Version() string
	// Features lists the declared output feature names, excluding
	// CompletionFeature.
	Features() []string
	// Execute starts an execution for one event. The event is bound as the
	// program's EventData input.
	Execute(event *models.RawEvent, env Env) Execution
}

// Execution is one in-flight evaluation of a program against a single event.
type Execution interface {
	// FetchFeature drives resolution of one declared feature, or of
	// CompletionFeature, to completion.
	FetchFeature(ctx context.Context, name string) error
	// Finalize flushes deferred side effects requested by the program. It
	// runs once, after every feature has resolved, and its failure fails
	// the whole event.
	Finalize(ctx context.Context) error
}

// Gate limits concurrent outbound calls with a weighted semaphore.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate creates a gate admitting at most n concurrent calls.
func NewGate(n int64) *Gate {
	return &Gate{sem: semaphore.NewWeighted(n)}
}

// Do runs fn once a slot is available. A nil gate runs fn directly.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if g == nil {
		return fn()
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn()
}
