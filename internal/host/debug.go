package host

import (
	"slices"
	"sync"

	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
)

var _ processmgr.Environment = (*Debug)(nil)

// Finish is one Finished call seen by Debug.
type Finish struct {
	PID    int64
	State  processmgr.ProcessState
	Floats []float64
	Text   string
}

// PrintLine is one Print call seen by Debug.
type PrintLine struct {
	PID  int64
	Text string
}

// Debug is a recording host for tests. Timers never fire on their own:
// SetTimer stores the callback and FireTimers runs them by hand.
type Debug struct {
	Clock Clock

	mu       sync.Mutex
	started  []int64
	finished []Finish
	prints   []PrintLine
	timers   map[int64]func()
	nextID   int64
	cleared  []int64
}

// NewDebug returns a Debug host reading time from clock (RealClock when nil).
func NewDebug(clock Clock) *Debug {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Debug{Clock: clock, timers: make(map[int64]func())}
}

func (d *Debug) Now() int64 { return d.Clock.Now() }

func (d *Debug) Started(pid int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = append(d.started, pid)
}

func (d *Debug) Finished(pid int64, state processmgr.ProcessState, floats []float64, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished = append(d.finished, Finish{PID: pid, State: state, Floats: floats, Text: text})
}

func (d *Debug) Print(pid int64, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prints = append(d.prints, PrintLine{PID: pid, Text: text})
}

func (d *Debug) SetTimer(_ int64, fn func()) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.timers[d.nextID] = fn
	return d.nextID
}

func (d *Debug) ClearTimer(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.timers[id]; ok {
		delete(d.timers, id)
		d.cleared = append(d.cleared, id)
	}
}

// FireTimers runs every pending timer callback (ascending handle order) and
// returns how many ran.
func (d *Debug) FireTimers() int {
	d.mu.Lock()
	ids := make([]int64, 0, len(d.timers))
	for id := range d.timers {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, d.timers[id])
		delete(d.timers, id)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// PendingTimers returns the number of timers neither fired nor cleared.
func (d *Debug) PendingTimers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Cleared returns the handles passed to ClearTimer for pending timers.
func (d *Debug) Cleared() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.cleared...)
}

func (d *Debug) StartedPIDs() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.started...)
}

func (d *Debug) Finishes() []Finish {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Finish(nil), d.finished...)
}

// FinishOf returns the first Finished record for pid.
func (d *Debug) FinishOf(pid int64) (Finish, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.finished {
		if f.PID == pid {
			return f, true
		}
	}
	return Finish{}, false
}

// Prints returns the printed text of pid in call order.
func (d *Debug) Prints(pid int64) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, p := range d.prints {
		if p.PID == pid {
			out = append(out, p.Text)
		}
	}
	return out
}
