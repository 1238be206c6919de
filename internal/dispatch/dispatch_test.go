package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()

	const n = 100
	var got []int
	for i := 0; i < n; i++ {
		i := i
		q.Submit(func() { got = append(got, i) })
	}
	q.Close()

	if len(got) != n {
		t.Fatalf("ran %d units of work, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("work ran out of order: got[%d] = %d", i, v)
		}
	}
}

func TestQueueConcurrentSubmitters(t *testing.T) {
	q := NewQueue()

	// The worker is the only goroutine touching counter, so any data race
	// here would be caught by -race.
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Submit(func() { counter++ })
			}
		}()
	}
	wg.Wait()
	q.Close()

	if counter != 400 {
		t.Errorf("counter = %d, want 400", counter)
	}
}

func TestCallReturnsValue(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	got, err := Call(q, func(p *Promise[int]) { p.Resolve(42) })
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if got != 42 {
		t.Errorf("Call = %d, want 42", got)
	}
}

func TestCallPropagatesError(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	want := errors.New("boom")
	_, err := Call(q, func(p *Promise[int]) { p.Reject(want) })
	if !errors.Is(err, want) {
		t.Errorf("Call error = %v, want %v", err, want)
	}
}

func TestPromiseDoubleResolvePanics(t *testing.T) {
	tests := []struct {
		name   string
		first  func(p *Promise[int])
		second func(p *Promise[int])
	}{
		{"resolve then resolve", func(p *Promise[int]) { p.Resolve(1) }, func(p *Promise[int]) { p.Resolve(2) }},
		{"resolve then reject", func(p *Promise[int]) { p.Resolve(1) }, func(p *Promise[int]) { p.Reject(errors.New("x")) }},
		{"reject then resolve", func(p *Promise[int]) { p.Reject(errors.New("x")) }, func(p *Promise[int]) { p.Resolve(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPromise[int]()
			tt.first(p)

			defer func() {
				if recover() == nil {
					t.Error("second resolution did not panic")
				}
			}()
			tt.second(p)
		})
	}
}

func TestLatchFirstTripWins(t *testing.T) {
	l := NewLatch()

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Trip(errors.New("cause")) {
				wins <- i
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for range wins {
		winners++
	}
	if winners != 1 {
		t.Errorf("latch tripped %d times, want exactly 1", winners)
	}
}

func TestLatchReleasesAllWaiters(t *testing.T) {
	l := NewLatch()
	want := errors.New("done")

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- l.Wait() }()
	}

	l.Trip(want)
	// A late trip is a benign no-op and must not change the cause.
	if l.Trip(errors.New("late")) {
		t.Error("second Trip reported a win")
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if !errors.Is(err, want) {
				t.Errorf("Wait = %v, want %v", err, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Wait did not return after Trip")
		}
	}
}

func TestLatchTripped(t *testing.T) {
	l := NewLatch()
	if l.Tripped() {
		t.Error("new latch reports tripped")
	}
	l.Trip(nil)
	if !l.Tripped() {
		t.Error("tripped latch reports untripped")
	}
	if err := l.Wait(); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
}
