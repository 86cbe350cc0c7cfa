// Package pipeline drives the event execution loop: poll an ordered batch
// from the event log, execute events with bounded concurrency against the
// compiled program, advance the watermark, and hand the surviving results to
// the persister through the sequential task queue.
package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"eventengine/internal/cursor"
	"eventengine/internal/logger"
	"eventengine/internal/metrics"
	"eventengine/internal/persist"
	"eventengine/internal/runner"
	"eventengine/internal/taskqueue"
	"eventengine/internal/watermark"
	"eventengine/pkg/models"
)

// Config tunes the pipeline loop.
type Config struct {
	Dataset      string
	Workers      int
	PollInterval time.Duration
}

// Pipeline is the batch execution loop for one dataset.
type Pipeline struct {
	cursor    *cursor.Cursor
	runner    *runner.Runner
	persister *persist.Persister
	queue     *taskqueue.Queue
	marks     watermark.Store
	types     *TypeCache

	dataset      string
	workers      int
	pollInterval time.Duration
}

// New creates a pipeline.
func New(cur *cursor.Cursor, run *runner.Runner, per *persist.Persister, marks watermark.Store, queue *taskqueue.Queue, types *TypeCache, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Pipeline{
		cursor:       cur,
		runner:       run,
		persister:    per,
		queue:        queue,
		marks:        marks,
		types:        types,
		dataset:      cfg.Dataset,
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval,
	}
}

// Run polls until the context is cancelled, then drains the persist queue.
func (p *Pipeline) Run(ctx context.Context) error {
	lastID, err := p.marks.Load(ctx, p.dataset)
	if err != nil {
		return err
	}
	if lastID != "" {
		logger.Infof("Resuming dataset %s from watermark %s", p.dataset, lastID)
	}
	logger.Infof("Event pipeline started: dataset=%s workers=%d", p.dataset, p.workers)

	for {
		if ctx.Err() != nil {
			break
		}

		batch, err := p.cursor.Poll(ctx, lastID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Errorf("Failed to poll event log: %v", err)
			metrics.CursorErrors.Inc()
			p.sleep(ctx, p.pollInterval)
			continue
		}
		if len(batch) == 0 {
			p.sleep(ctx, p.pollInterval)
			continue
		}

		results := p.runBatch(ctx, batch)

		// The watermark advances on successful read, not on persist
		// success. A failed persist drops its rows; see DESIGN.md.
		lastID = batch[len(batch)-1].ID
		if err := p.marks.Save(ctx, p.dataset, lastID); err != nil {
			logger.Errorf("Failed to save watermark %s: %v", lastID, err)
		}

		if len(results) > 0 {
			p.enqueuePersist(results)
		}
	}

	p.queue.Wait()
	return ctx.Err()
}

// EnqueuePersist schedules one result batch on the sequential queue. Also
// used by the inline sync execution path.
func (p *Pipeline) EnqueuePersist(results []*models.EventResult) {
	p.enqueuePersist(results)
}

func (p *Pipeline) enqueuePersist(results []*models.EventResult) {
	p.queue.Enqueue(func() error {
		// Detached from the loop context so shutdown does not abandon
		// an in-flight write.
		p.persister.Persist(context.Background(), results)
		return nil
	})
}

// runBatch executes one batch with bounded concurrency. Results keep the
// batch's input order; failed events are logged and omitted.
func (p *Pipeline) runBatch(ctx context.Context, batch []*models.RawEvent) []*models.EventResult {
	slots := make([]*models.EventResult, len(batch))
	sem := semaphore.NewWeighted(int64(p.workers))
	var wg sync.WaitGroup

	for i, event := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, event *models.RawEvent) {
			defer wg.Done()
			defer sem.Release(1)

			if p.types.Observe(event.Type) {
				logger.Infof("New event type observed: %s", event.Type)
			}

			start := time.Now()
			res, err := p.runner.Run(ctx, event)
			metrics.EventDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				logger.Errorf("Event execution failed: %v", err)
				metrics.EventFailures.Inc()
				return
			}
			slots[i] = res
			metrics.EventsProcessed.Inc()
		}(i, event)
	}
	wg.Wait()

	results := make([]*models.EventResult, 0, len(batch))
	for _, res := range slots {
		if res != nil {
			results = append(results, res)
		}
	}
	return results
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
