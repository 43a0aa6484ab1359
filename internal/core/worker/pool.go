package worker

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	ErrClosed    = errors.New("worker pool closed")
	ErrSaturated = errors.New("worker pool saturated")

	// ErrWorkerPanic is wrapped by every PanicError.
	ErrWorkerPanic = errors.New("worker panic")
)

// PanicError is the distinguished result of a job that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("worker panic: %v", e.Value) }
func (e *PanicError) Unwrap() error { return ErrWorkerPanic }

// Outcome is one finished job. Ticket matches the value Submit returned.
type Outcome[R any] struct {
	Ticket uint64
	Value  R
	Panic  *PanicError
}

// Protect runs f and converts a panic into a PanicError.
func Protect[R any](f func() R) (r R, perr *PanicError) {
	defer func() {
		if v := recover(); v != nil {
			perr = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return f(), nil
}

type message[R any] struct {
	ticket uint64
	work   func() R
	close  bool
}

// Pool is a fixed set of long-lived worker goroutines sharing one request
// channel and one result channel. Both channels are buffered to the pool's
// capacity and Submit refuses work beyond it, so workers never block on
// delivering a result.
type Pool[R any] struct {
	requests chan message[R]
	results  chan Outcome[R]

	// pending counts jobs submitted whose outcome has not been received.
	pending  atomic.Int64
	tickets  atomic.Uint64
	size     int
	capacity int

	mu     sync.Mutex // guards closed against concurrent Submit/Close
	closed bool
	wg     sync.WaitGroup
	log    *zap.Logger
}

// New starts n workers (runtime.NumCPU() when n <= 0). capacity bounds the
// number of outstanding jobs and defaults to 64*n.
func New[R any](n, capacity int, log *zap.Logger) *Pool[R] {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if capacity <= 0 {
		capacity = 64 * n
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool[R]{
		requests: make(chan message[R], capacity+n),
		results:  make(chan Outcome[R], capacity),
		size:     n,
		capacity: capacity,
		log:      log,
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.work(i)
	}
	return p
}

func (p *Pool[R]) work(id int) {
	defer p.wg.Done()
	for msg := range p.requests {
		if msg.close {
			return
		}
		v, perr := Protect(msg.work)
		if perr != nil {
			p.log.Error("job panicked",
				zap.Int("worker", id),
				zap.Uint64("ticket", msg.ticket),
				zap.Any("panic", perr.Value),
				zap.ByteString("stack", perr.Stack),
			)
		}
		p.results <- Outcome[R]{Ticket: msg.ticket, Value: v, Panic: perr}
	}
}

// Size returns the number of workers.
func (p *Pool[R]) Size() int { return p.size }

// Capacity returns the maximum number of outstanding jobs.
func (p *Pool[R]) Capacity() int { return p.capacity }

// Pending returns the number of submitted jobs not yet received.
func (p *Pool[R]) Pending() int { return int(p.pending.Load()) }

// Saturated reports whether Submit would refuse a job.
func (p *Pool[R]) Saturated() bool { return p.Pending() >= p.capacity }

// Submit queues f and returns its ticket. It never blocks.
func (p *Pool[R]) Submit(f func() R) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	if p.Saturated() {
		return 0, ErrSaturated
	}
	ticket := p.tickets.Add(1)
	p.pending.Add(1)
	p.requests <- message[R]{ticket: ticket, work: f}
	return ticket, nil
}

// TryRecv returns a finished outcome if one is ready.
func (p *Pool[R]) TryRecv() (Outcome[R], bool) {
	select {
	case o := <-p.results:
		p.pending.Add(-1)
		return o, true
	default:
		return Outcome[R]{}, false
	}
}

// Recv blocks for the next outcome. It returns false at once when nothing is pending.
func (p *Pool[R]) Recv() (Outcome[R], bool) {
	if p.Pending() == 0 {
		return Outcome[R]{}, false
	}
	o := <-p.results
	p.pending.Add(-1)
	return o, true
}

// Drain blocks until every outstanding job has finished and returns their outcomes.
func (p *Pool[R]) Drain() []Outcome[R] {
	var out []Outcome[R]
	for {
		o, ok := p.Recv()
		if !ok {
			return out
		}
		out = append(out, o)
	}
}

// Close sends one close message per worker and waits for them to exit.
// Work queued before Close still runs; its outcomes stay receivable.
func (p *Pool[R]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for i := 0; i < p.size; i++ {
		p.requests <- message[R]{close: true}
	}
	p.mu.Unlock()
	p.wg.Wait()
}
