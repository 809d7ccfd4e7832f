package history

import (
	"context"
	"sync"
	"time"

	"github.com/straja-ai/adaware/internal/redact"
)

// Sink consumes analysis records (store, file, webhook, s3).
type Sink interface {
	Name() string
	Deliver(context.Context, *Record) error
	Close(context.Context) error
}

// Metrics holds delivery counters.
type Metrics struct {
	Enqueued    uint64
	Dropped     uint64
	SinkSuccess map[string]uint64
	SinkFailure map[string]uint64
}

// EmitterConfig controls worker and queue sizing.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
	DeliverTimeout  time.Duration
	OnDrop          func() // called for every record that could not be queued
}

// Emitter buffers records and delivers them to sinks off the request path.
// A full queue drops the record rather than blocking.
type Emitter struct {
	queue           chan *Record
	sinks           []Sink
	shutdownTimeout time.Duration
	deliverTimeout  time.Duration
	onDrop          func()

	mu        sync.RWMutex
	metricsMu sync.Mutex
	metrics   Metrics
	closed    bool
	wg        sync.WaitGroup
}

// NewEmitter starts the delivery workers.
func NewEmitter(cfg EmitterConfig, sinks ...Sink) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 5 * time.Second
	}

	e := &Emitter{
		queue:           make(chan *Record, cfg.QueueSize),
		sinks:           sinks,
		shutdownTimeout: cfg.ShutdownTimeout,
		deliverTimeout:  cfg.DeliverTimeout,
		onDrop:          cfg.OnDrop,
		metrics: Metrics{
			SinkSuccess: make(map[string]uint64, len(sinks)),
			SinkFailure: make(map[string]uint64, len(sinks)),
		},
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Emit enqueues without blocking.
func (e *Emitter) Emit(rec *Record) {
	if e == nil || rec == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.drop()
		return
	}
	select {
	case e.queue <- rec:
		e.count(func(m *Metrics) { m.Enqueued++ })
	default:
		e.drop()
	}
}

func (e *Emitter) drop() {
	e.count(func(m *Metrics) { m.Dropped++ })
	if e.onDrop != nil {
		e.onDrop()
	}
}

// Close stops accepting records, drains the queue within the shutdown
// timeout and closes every sink.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()
	select {
	case <-done:
	case <-waitCtx.Done():
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			redact.Warnf("history: sink %s close error: %v", s.Name(), err)
		}
	}
}

// Snapshot copies the counters.
func (e *Emitter) Snapshot() Metrics {
	if e == nil {
		return Metrics{}
	}
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	out := e.metrics
	out.SinkSuccess = make(map[string]uint64, len(e.metrics.SinkSuccess))
	out.SinkFailure = make(map[string]uint64, len(e.metrics.SinkFailure))
	for k, v := range e.metrics.SinkSuccess {
		out.SinkSuccess[k] = v
	}
	for k, v := range e.metrics.SinkFailure {
		out.SinkFailure[k] = v
	}
	return out
}

func (e *Emitter) count(f func(*Metrics)) {
	e.metricsMu.Lock()
	f(&e.metrics)
	e.metricsMu.Unlock()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for rec := range e.queue {
		e.deliver(rec)
	}
}

func (e *Emitter) deliver(rec *Record) {
	for _, s := range e.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), e.deliverTimeout)
		err := s.Deliver(ctx, rec)
		cancel()
		name := s.Name()
		if err != nil {
			redact.Warnf("history: sink %s failed for %s: %v", name, rec.ID, err)
			e.count(func(m *Metrics) { m.SinkFailure[name]++ })
			continue
		}
		e.count(func(m *Metrics) { m.SinkSuccess[name]++ })
	}
}

// StoreSink adapts a Store to the emitter.
type StoreSink struct {
	Store Store
	Label string
}

func (s StoreSink) Name() string {
	if s.Label != "" {
		return "store:" + s.Label
	}
	return "store"
}

func (s StoreSink) Deliver(ctx context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}
	return s.Store.Save(ctx, *rec)
}

// Close leaves the store open; its owner closes it.
func (s StoreSink) Close(context.Context) error { return nil }
