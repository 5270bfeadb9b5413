package processmgr

import "sort"

// procTable owns every live process, keyed by PID.
//
// Data structures:
//   - byID: PID → process
//   - ids: PIDs in ascending order (deterministic listing)
//   - pos: PID → index into ids
//
// Not safe for concurrent use; the scheduler is its only user.
type procTable struct {
	gen  *pidAllocator
	byID map[int64]*process
	ids  []int64
	pos  map[int64]int
}

func newProcTable(pidMax int64) *procTable {
	return &procTable{
		gen:  newPIDAllocator(pidMax),
		byID: make(map[int64]*process),
		ids:  make([]int64, 0),
		pos:  make(map[int64]int),
	}
}

// insert stores p under a freshly allocated PID.
// The caller must assign that PID to p's descriptor before scheduling it.
func (t *procTable) insert(p *process) (int64, bool) {
	pid, ok := t.gen.alloc()
	if !ok {
		return 0, false
	}

	t.byID[pid] = p

	// Append fast path: pid is strictly greater than current maximum.
	if n := len(t.ids); n == 0 || pid > t.ids[n-1] {
		t.ids = append(t.ids, pid)
		t.pos[pid] = len(t.ids) - 1
		return pid, true
	}

	// Wrapped allocator: keep ascending order via binary search.
	idx := sort.Search(len(t.ids), func(i int) bool { return t.ids[i] >= pid })
	t.ids = append(t.ids, 0)
	copy(t.ids[idx+1:], t.ids[idx:])
	t.ids[idx] = pid
	for i := idx; i < len(t.ids); i++ {
		t.pos[t.ids[i]] = i
	}
	return pid, true
}

// get returns the process for pid, or nil.
func (t *procTable) get(pid int64) *process {
	return t.byID[pid]
}

// remove discards pid; idempotent.
func (t *procTable) remove(pid int64) {
	idx, ok := t.pos[pid]
	if !ok {
		return
	}

	delete(t.byID, pid)
	delete(t.pos, pid)
	t.gen.release(pid)

	copy(t.ids[idx:], t.ids[idx+1:])
	t.ids = t.ids[:len(t.ids)-1]
	for i := idx; i < len(t.ids); i++ {
		t.pos[t.ids[i]] = i
	}
}

// list returns a copy of the live PIDs in ascending order.
func (t *procTable) list() []int64 {
	out := make([]int64, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t *procTable) len() int { return len(t.ids) }
