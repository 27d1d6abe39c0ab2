// Package listener classifies resources on demand as change events arrive
// over HTTP or through a spool directory.
package listener

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/model"
)

// ErrQueueFull is returned when the queue cannot take another event.
var ErrQueueFull = eris.New("listener: queue full")

// ErrInvalidEvent is returned for events missing an identifier.
var ErrInvalidEvent = eris.New("listener: event needs dataset_id and resource_id")

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev model.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev model.Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev model.Event) error { return f(ctx, ev) }

// Queue is a bounded FIFO of events. A resource already waiting is not
// queued twice. Once its event is taken off the queue the resource can be
// queued again, so a change arriving mid-classification gets its own run.
type Queue struct {
	events chan model.Event

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewQueue creates a Queue holding at most size waiting events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 100
	}
	return &Queue{
		events:  make(chan model.Event, size),
		pending: make(map[string]struct{}),
	}
}

// Enqueue adds ev. It reports false when the resource is already waiting.
func (q *Queue) Enqueue(ev model.Event) (bool, error) {
	if !ev.Valid() {
		return false, ErrInvalidEvent
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[ev.ResourceID]; ok {
		return false, nil
	}
	select {
	case q.events <- ev:
		q.pending[ev.ResourceID] = struct{}{}
		return true, nil
	default:
		return false, ErrQueueFull
	}
}

// Len returns the number of waiting events.
func (q *Queue) Len() int { return len(q.events) }

func (q *Queue) done(resourceID string) {
	q.mu.Lock()
	delete(q.pending, resourceID)
	q.mu.Unlock()
}

// Run processes events one at a time until ctx is done. Handler errors
// are logged and never stop the loop.
func (q *Queue) Run(ctx context.Context, h Handler) {
	log := zap.L().With(zap.String("component", "listener"))
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q.events:
			q.done(ev.ResourceID)
			q.handle(ctx, log, h, ev)
		}
	}
}

func (q *Queue) handle(ctx context.Context, log *zap.Logger, h Handler, ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("listener: handler panicked",
				zap.String("resource_id", ev.ResourceID),
				zap.Any("panic", r),
			)
		}
	}()
	if err := h.Handle(ctx, ev); err != nil {
		log.Error("listener: event failed",
			zap.String("dataset_id", ev.DatasetID),
			zap.String("resource_id", ev.ResourceID),
			zap.Error(err),
		)
	}
}
