package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsJobs(t *testing.T) {
	p := New[int](4, 0, nil)
	defer p.Close()

	want := map[uint64]int{}
	for i := 0; i < 100; i++ {
		i := i
		ticket, err := p.Submit(func() int { return i * i })
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		want[ticket] = i * i
	}
	outs := p.Drain()
	if len(outs) != 100 {
		t.Fatalf("expected 100 outcomes, got %d", len(outs))
	}
	for _, o := range outs {
		if o.Panic != nil {
			t.Fatalf("unexpected panic: %v", o.Panic)
		}
		if want[o.Ticket] != o.Value {
			t.Errorf("ticket %d: got %d, want %d", o.Ticket, o.Value, want[o.Ticket])
		}
	}
	if p.Pending() != 0 {
		t.Errorf("expected 0 pending after drain, got %d", p.Pending())
	}
}

func TestPoolDefaultSize(t *testing.T) {
	p := New[struct{}](0, 0, nil)
	defer p.Close()
	if p.Size() < 1 {
		t.Errorf("expected at least one worker, got %d", p.Size())
	}
	if p.Capacity() != 64*p.Size() {
		t.Errorf("unexpected default capacity %d", p.Capacity())
	}
}

func TestPoolPanicResult(t *testing.T) {
	p := New[int](2, 0, nil)
	defer p.Close()

	bad, _ := p.Submit(func() int { panic("boom") })
	good, _ := p.Submit(func() int { return 1 })

	var sawPanic, sawGood bool
	for _, o := range p.Drain() {
		switch o.Ticket {
		case bad:
			if o.Panic == nil {
				t.Fatal("expected panic outcome")
			}
			if !errors.Is(o.Panic, ErrWorkerPanic) {
				t.Error("PanicError must wrap ErrWorkerPanic")
			}
			if o.Panic.Value != "boom" || len(o.Panic.Stack) == 0 {
				t.Errorf("unexpected panic payload %v", o.Panic.Value)
			}
			sawPanic = true
		case good:
			sawGood = o.Value == 1 && o.Panic == nil
		}
	}
	if !sawPanic || !sawGood {
		t.Errorf("sawPanic=%v sawGood=%v", sawPanic, sawGood)
	}
}

func TestPoolParallelism(t *testing.T) {
	const n = 4
	p := New[int](n, 0, nil)
	defer p.Close()

	var running, peak atomic.Int32
	var ready sync.WaitGroup
	ready.Add(n)
	release := make(chan struct{})
	for i := 0; i < n; i++ {
		if _, err := p.Submit(func() int {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			ready.Done()
			<-release
			running.Add(-1)
			return 0
		}); err != nil {
			t.Fatal(err)
		}
	}
	ready.Wait()
	close(release)
	p.Drain()
	if peak.Load() != n {
		t.Errorf("expected %d jobs in parallel, peak %d", n, peak.Load())
	}
}

func TestPoolSaturation(t *testing.T) {
	p := New[int](1, 2, nil)
	defer p.Close()

	block := make(chan struct{})
	for i := 0; i < 2; i++ {
		if _, err := p.Submit(func() int { <-block; return 0 }); err != nil {
			t.Fatal(err)
		}
	}
	if !p.Saturated() {
		t.Error("expected saturated")
	}
	if _, err := p.Submit(func() int { return 0 }); !errors.Is(err, ErrSaturated) {
		t.Errorf("expected ErrSaturated, got %v", err)
	}
	close(block)
	if _, ok := p.Recv(); !ok {
		t.Fatal("expected an outcome")
	}
	if _, err := p.Submit(func() int { return 0 }); err != nil {
		t.Errorf("expected room after receive, got %v", err)
	}
	p.Drain()
}

func TestPoolTryRecvAndRecvEmpty(t *testing.T) {
	p := New[int](1, 0, nil)
	defer p.Close()
	if _, ok := p.TryRecv(); ok {
		t.Error("expected nothing ready")
	}
	if _, ok := p.Recv(); ok {
		t.Error("Recv must not block with nothing pending")
	}
	_, _ = p.Submit(func() int { return 5 })
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o, ok := p.TryRecv(); ok {
			if o.Value != 5 {
				t.Errorf("got %d", o.Value)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("outcome never arrived")
}

func TestPoolClose(t *testing.T) {
	p := New[int](2, 0, nil)
	_, _ = p.Submit(func() int { return 3 })
	p.Close()
	p.Close() // idempotent
	if _, err := p.Submit(func() int { return 0 }); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	outs := p.Drain()
	if len(outs) != 1 || outs[0].Value != 3 {
		t.Errorf("queued work lost on close: %+v", outs)
	}
}

func TestProtect(t *testing.T) {
	v, perr := Protect(func() string { return "ok" })
	if v != "ok" || perr != nil {
		t.Errorf("got %q %v", v, perr)
	}
	_, perr = Protect(func() string { panic(errors.New("bad")) })
	if perr == nil {
		t.Fatal("expected panic error")
	}
}
