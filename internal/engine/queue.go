package engine

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

// Queue bounds how many calls reach the wrapped engine at once. With one
// worker every Stage and Extract runs strictly one after another, which is
// the safe choice for engines not known to be reentrant.
type Queue struct {
	engine Engine
	slots  chan struct{}
	logger *slog.Logger

	waiting  atomic.Int64
	inFlight atomic.Int64
}

// NewQueue wraps e. workers < 1 is treated as 1.
func NewQueue(e Engine, workers int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		engine: e,
		slots:  make(chan struct{}, workers),
		logger: logger,
	}
}

func (q *Queue) Ready() bool {
	return q.engine != nil && q.engine.Ready()
}

func (q *Queue) Workers() int {
	return cap(q.slots)
}

// Stats reports calls waiting for a slot and calls currently running.
func (q *Queue) Stats() (waiting, inFlight int64) {
	return q.waiting.Load(), q.inFlight.Load()
}

func (q *Queue) Stage(ctx context.Context, r io.Reader, ext string) (*Input, error) {
	if err := q.acquire(ctx); err != nil {
		return nil, err
	}
	defer q.release()
	return q.engine.Stage(ctx, r, ext)
}

func (q *Queue) Extract(ctx context.Context, in *Input, req Request) ([]byte, error) {
	if err := q.acquire(ctx); err != nil {
		return nil, err
	}
	defer q.release()

	if q.logger != nil {
		q.logger.Debug("extracting slice", "index", req.Index, "start", req.Start, "duration", req.Duration)
	}
	return q.engine.Extract(ctx, in, req)
}

func (q *Queue) acquire(ctx context.Context) error {
	q.waiting.Add(1)
	defer q.waiting.Add(-1)

	select {
	case q.slots <- struct{}{}:
		q.inFlight.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) release() {
	q.inFlight.Add(-1)
	<-q.slots
}
