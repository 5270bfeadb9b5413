package host

import (
	"container/heap"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimerService runs callbacks after a delay on a single background goroutine.
//
// Pending timers live in a min-heap ordered by deadline. The loop sleeps until
// the earliest deadline or until a coalescing signal reports that the heap
// changed. Callbacks run outside the lock, on the timer goroutine.
type TimerService struct {
	log *zap.Logger

	mu      sync.Mutex
	h       eventHeap
	entries map[int64]*timerEvent
	nextID  int64
	closed  bool

	sig  chan struct{}
	done chan struct{}
}

// timerEvent represents a scheduled callback.
// index is required for heap.Fix + O(log n) removals.
type timerEvent struct {
	id    int64
	when  time.Time
	fn    func()
	index int
}

// NewTimerService starts the timer goroutine. Call Close to stop it.
func NewTimerService(log *zap.Logger) *TimerService {
	t := &TimerService{
		log:     log.Named("timers"),
		entries: make(map[int64]*timerEvent),
		sig:     make(chan struct{}, 1), // coalescing wake-up
		done:    make(chan struct{}),
	}
	heap.Init(&t.h)

	go t.mainloop()
	return t
}

// After schedules fn to run once d has elapsed and returns its handle.
// Handles start at 1 and are never reused.
func (t *TimerService) After(d time.Duration, fn func()) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	ev := &timerEvent{id: t.nextID, when: time.Now().Add(d), fn: fn}
	if t.closed {
		return ev.id
	}
	t.entries[ev.id] = ev
	heap.Push(&t.h, ev)

	t.poke()
	return ev.id
}

// Cancel drops the timer if it has not fired yet.
func (t *TimerService) Cancel(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ev, ok := t.entries[id]
	if !ok {
		return
	}
	heap.Remove(&t.h, ev.index)
	delete(t.entries, id)
	t.poke()
}

// Pending returns the number of timers that have not fired or been cancelled.
func (t *TimerService) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Close stops the goroutine; pending timers never fire.
func (t *TimerService) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.h = t.h[:0]
	t.entries = make(map[int64]*timerEvent)
	t.mu.Unlock()

	close(t.done)
}

// poke must be called with mu held.
func (t *TimerService) poke() {
	select {
	case t.sig <- struct{}{}:
	default:
	}
}

func (t *TimerService) mainloop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		t.mu.Lock()
		if len(t.h) == 0 {
			t.mu.Unlock()
			select {
			case <-t.sig:
				continue
			case <-t.done:
				return
			}
		}

		ev := t.h[0]
		delay := time.Until(ev.when)
		if delay > 0 {
			arm(timer, delay)
			t.mu.Unlock()

			select {
			case <-timer.C:
			case <-t.sig:
			case <-t.done:
				return
			}
			continue
		}

		heap.Pop(&t.h)
		delete(t.entries, ev.id)
		t.mu.Unlock()

		t.fire(ev)
	}
}

func (t *TimerService) fire(ev *timerEvent) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("timer callback panicked", zap.Int64("timer_id", ev.id), zap.Any("panic", r))
		}
	}()
	ev.fn()
}

// arm resets timer to d, draining a stale fire first.
func arm(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

// --- heap internals ----------------------------------------------------------

// eventHeap is a min-heap ordered by event.when.
type eventHeap []*timerEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	return h[i].when.Before(h[j].when)
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*timerEvent)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	ev.index = -1 // mark as removed
	*h = old[:n-1]
	return ev
}
