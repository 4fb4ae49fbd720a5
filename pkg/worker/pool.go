package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pool processes work items of type T on a fixed set of goroutines
// behind a bounded queue.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	wg       sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted int64
	processed int64
	failed    int64
	dropped   int64

	metrics *poolMetrics
}

type poolMetrics struct {
	queueDepth prometheus.Gauge
	submitted  prometheus.Counter
	processed  prometheus.Counter
	failed     prometheus.Counter
	dropped    prometheus.Counter
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithPrometheus registers per-pool metrics on reg under prefix.
func WithPrometheus[T any](reg prometheus.Registerer, prefix string) Option[T] {
	return func(p *Pool[T]) {
		m := &poolMetrics{
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: prefix + "_queue_depth",
				Help: "Current worker pool queue depth",
			}),
			submitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: prefix + "_submitted_total",
				Help: "Total work items submitted",
			}),
			processed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: prefix + "_processed_total",
				Help: "Total work items processed",
			}),
			failed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: prefix + "_failed_total",
				Help: "Total work items that failed processing",
			}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: prefix + "_dropped_total",
				Help: "Total work items dropped due to a full queue",
			}),
		}
		for _, c := range []prometheus.Collector{m.queueDepth, m.submitted, m.processed, m.failed, m.dropped} {
			reg.MustRegister(c)
		}
		p.metrics = m
	}
}

// NewPool creates a pool of workers draining a queue of queueSize into
// processor. Non-positive sizes take defaults.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Start launches the workers. ctx cancellation stops them after the
// item in hand.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Submit queues work without blocking. A full queue drops the item and
// returns ErrQueueFull.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- work:
		atomic.AddInt64(&p.submitted, 1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		atomic.AddInt64(&p.dropped, 1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for in-flight work.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}
	close(p.workChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.stopped = true
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}
			if err := p.processor(ctx, work); err != nil {
				atomic.AddInt64(&p.failed, 1)
				if p.metrics != nil {
					p.metrics.failed.Inc()
				}
			} else {
				atomic.AddInt64(&p.processed, 1)
				if p.metrics != nil {
					p.metrics.processed.Inc()
				}
			}
			if p.metrics != nil {
				p.metrics.queueDepth.Set(float64(len(p.workChan)))
			}
		}
	}
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Workers    int
	QueueSize  int
	QueueDepth int
	Submitted  int64
	Processed  int64
	Failed     int64
	Dropped    int64
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}
