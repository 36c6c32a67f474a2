package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/factwatch/factwatch/internal/watch/event"
	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"
)

// Handler handles a single event. Handlers report failures on their own,
// the dispatcher does not observe them.
type Handler func(context.Context, event.Event)

type Config struct {
	// MaxConcurrent is the maximum number of events handled concurrently
	MaxConcurrent int `conf:"max_concurrent"`
}

var DefaultConfig = Config{
	MaxConcurrent: 4,
}

type Params struct {
	// Context is the context handlers are invoked with
	Context context.Context

	// Config is the dispatcher config
	Config Config

	// Handler is invoked for every dispatched event
	Handler Handler

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

// slot is a unit of handler concurrency leased from the pool.
type slot struct {
	id int64
}

// Dispatcher hands events to a handler without blocking the caller.
// At most Config.MaxConcurrent handlers run at the same time, further
// events wait for a free slot in the background.
type Dispatcher struct {
	ctx     context.Context
	pool    *puddle.Pool[*slot]
	handler Handler

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}

	log *zap.Logger
}

func New(params Params) (*Dispatcher, error) {
	if params.Context == nil {
		params.Context = context.Background()
	}

	if params.Config.MaxConcurrent <= 0 {
		params.Config.MaxConcurrent = DefaultConfig.MaxConcurrent
	}

	log := params.Log.Named("dispatcher")

	pool, err := createPool(params.Config, log)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		ctx:     params.Context,
		pool:    pool,
		handler: params.Handler,
		done:    make(chan struct{}),
		log:     log,
	}, nil
}

// Dispatch schedules evt to be handled and returns immediately.
// Events dispatched after Shutdown are dropped.
func (d *Dispatcher) Dispatch(evt event.Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("dropping event, dispatcher closed", zap.Stringer("event", evt))
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.inflight.Done()
		d.handle(evt)
	}()
}

func (d *Dispatcher) handle(evt event.Event) {
	resource, err := d.pool.Acquire(d.ctx)
	if err != nil {
		d.log.Error("error acquiring slot, dropping event",
			zap.Stringer("event", evt),
			zap.Error(err),
		)
		return
	}

	defer resource.Release()

	d.log.Debug("handling event",
		zap.Stringer("event", evt),
		zap.Int64("slot", resource.Value().id),
	)

	d.handler(d.ctx, evt)
}

// Wait blocks until every dispatched event has been handled.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Shutdown stops accepting events and waits for in-flight events to
// be handled, or for ctx to be done. The pool is closed once the last
// in-flight event was handled, even if ctx expired before, see Done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.log.Debug("shutting down")

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.closeOnce.Do(func() {
		go func() {
			d.inflight.Wait()
			d.pool.Close()
			d.log.Debug("shut down")
			close(d.done)
		}()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.log.Warn("shutdown interrupted, events still in flight", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// Done is closed after Shutdown once every in-flight event was handled
// and the pool was closed.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// MARK: - Pool

func createPool(config Config, log *zap.Logger) (*puddle.Pool[*slot], error) {
	var next atomic.Int64

	constructor := func(context.Context) (*slot, error) {
		s := &slot{id: next.Add(1)}
		log.Debug("created slot", zap.Int64("slot", s.id))
		return s, nil
	}

	destructor := func(s *slot) {
		log.Debug("destroyed slot", zap.Int64("slot", s.id))
	}

	return puddle.NewPool(&puddle.Config[*slot]{
		Constructor: constructor,
		Destructor:  destructor,
		MaxSize:     int32(config.MaxConcurrent),
	})
}
