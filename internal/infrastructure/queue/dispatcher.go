package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// DepthFunc observes the backlog of one worker after each enqueue.
type DepthFunc func(worker string, depth int)

// Dispatcher routes session events to a fixed set of workers by hashing
// the client-session id, so events of one session are applied in order.
type Dispatcher struct {
	workers []chan ports.SessionEvent
	handler ports.SessionEventHandler
	depth   DepthFunc
	log     zerolog.Logger
}

var _ ports.SessionEventQueue = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, handler ports.SessionEventHandler, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.SessionEvent, numWorkers),
		handler: handler,
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.SessionEvent, channelBuffer)
	}
	return d
}

// WithDepth reports queue depth to fn.
func (d *Dispatcher) WithDepth(fn DepthFunc) *Dispatcher {
	d.depth = fn
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends an event to the worker owning its client session. It
// blocks only when that worker's buffer is full.
func (d *Dispatcher) Enqueue(ev ports.SessionEvent) {
	idx := d.shardIndex(ev.ClientID)
	d.workers[idx] <- ev
	d.observe(idx)
}

func (d *Dispatcher) shardIndex(clientID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) observe(idx int) {
	if d.depth != nil {
		d.depth(strconv.Itoa(idx), len(d.workers[idx]))
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := d.handler.DeliverToSession(ctx, ev); err != nil {
				d.log.Error().Err(err).
					Str("client_id", ev.ClientID).
					Str("event", string(ev.Event.Type)).
					Int("worker_id", id).
					Msg("session event delivery failed")
			}
			d.observe(id)
		}
	}
}
