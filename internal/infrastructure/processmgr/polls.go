package processmgr

import (
	"sort"
	"sync"
)

// PollSet tracks the host handles (timers) a process is currently blocked on.
// The scheduler never looks inside; the process instance cancels whatever is
// left when the process terminates.
type PollSet struct {
	mu      sync.Mutex
	handles map[int64]struct{}
}

func newPollSet() *PollSet {
	return &PollSet{handles: make(map[int64]struct{})}
}

// Add registers an outstanding handle.
func (p *PollSet) Add(id int64) {
	p.mu.Lock()
	p.handles[id] = struct{}{}
	p.mu.Unlock()
}

// Remove forgets a handle; no-op when unknown.
func (p *PollSet) Remove(id int64) {
	p.mu.Lock()
	delete(p.handles, id)
	p.mu.Unlock()
}

// Len returns the number of outstanding handles.
func (p *PollSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// CancelAll empties the set and calls cancel for every handle, in ascending order.
func (p *PollSet) CancelAll(cancel func(id int64)) {
	p.mu.Lock()
	ids := make([]int64, 0, len(p.handles))
	for id := range p.handles {
		ids = append(ids, id)
	}
	p.handles = make(map[int64]struct{})
	p.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		cancel(id)
	}
}
