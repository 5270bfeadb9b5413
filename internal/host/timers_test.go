package host

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTimerServiceFiresInDeadlineOrder(t *testing.T) {
	ts := NewTimerService(zaptest.NewLogger(t))
	defer ts.Close()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	record := func(n int) func() {
		return func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			wg.Done()
		}
	}

	wg.Add(3)
	ts.After(30*time.Millisecond, record(3))
	ts.After(10*time.Millisecond, record(1))
	ts.After(20*time.Millisecond, record(2))

	wg.Wait()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, ts.Pending())
}

func TestTimerServiceCancel(t *testing.T) {
	ts := NewTimerService(zaptest.NewLogger(t))
	defer ts.Close()

	fired := make(chan int64, 2)
	a := ts.After(20*time.Millisecond, func() { fired <- 1 })
	ts.After(40*time.Millisecond, func() { fired <- 2 })
	require.Equal(t, 2, ts.Pending())

	ts.Cancel(a)
	ts.Cancel(a) // no-op
	assert.Equal(t, 1, ts.Pending())

	select {
	case n := <-fired:
		assert.EqualValues(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	select {
	case n := <-fired:
		t.Fatalf("cancelled timer fired: %d", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerServiceSurvivesPanic(t *testing.T) {
	ts := NewTimerService(zaptest.NewLogger(t))
	defer ts.Close()

	done := make(chan struct{})
	ts.After(0, func() { panic("boom") })
	ts.After(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer loop stopped after a panicking callback")
	}
}

func TestTimerServiceClose(t *testing.T) {
	ts := NewTimerService(zaptest.NewLogger(t))
	ts.After(time.Hour, func() {})
	ts.Close()
	ts.Close()

	assert.Equal(t, 0, ts.Pending())
	id := ts.After(time.Millisecond, func() { t.Error("fired after close") })
	assert.Positive(t, id)
	time.Sleep(20 * time.Millisecond)
}
