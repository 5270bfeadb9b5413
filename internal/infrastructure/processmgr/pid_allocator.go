package processmgr

// defaultPIDMax bounds the identifier space, Linux-style.
const defaultPIDMax = 32768

// pidAllocator manages a monotonic, wrap-around PID space.
// Behavior mirrors Linux: increment, wrap, skip in-use. A PID becomes
// reusable only after release.
type pidAllocator struct {
	next   int64
	inUse  map[int64]struct{}
	pidMax int64
}

// newPIDAllocator returns an allocator over [1, pidMax], starting at 1.
func newPIDAllocator(pidMax int64) *pidAllocator {
	if pidMax <= 0 {
		pidMax = defaultPIDMax
	}
	return &pidAllocator{
		next:   1,
		pidMax: pidMax,
		inUse:  make(map[int64]struct{}),
	}
}

// alloc returns the next available PID, or false if the space is exhausted.
func (a *pidAllocator) alloc() (int64, bool) {
	start := a.next

	for {
		p := a.next

		// increment-first semantics (kernel-like)
		a.next++
		if a.next > a.pidMax {
			a.next = 1
		}

		if _, used := a.inUse[p]; !used {
			a.inUse[p] = struct{}{}
			return p, true
		}

		// wrapped fully → no available PIDs
		if a.next == start {
			return 0, false
		}
	}
}

// release returns a PID to the free pool. No-op on unknown PIDs.
func (a *pidAllocator) release(pid int64) {
	delete(a.inUse, pid)
}
