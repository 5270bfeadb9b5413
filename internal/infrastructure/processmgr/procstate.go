package processmgr

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ipidSource hands out internal process identifiers. Never reused for the
// lifetime of the owning scheduler; the first value issued is 1.
type ipidSource struct {
	last atomic.Int64
}

func (s *ipidSource) next() int64 { return s.last.Add(1) }

// ProcState is the per-process scheduling descriptor.
//
// Lifecycle flags:
//   - halted: monotonic, once set never cleared
//   - sleeping: set by Sleep, cleared by Wake at the moment of the wake.
//     A wake that arrives while the process is awake is not remembered.
//
// The execution context mutates it while the process runs; host timers call
// Wake from their own goroutine, hence the mutex.
type ProcState struct {
	mu sync.Mutex

	mbox     *Mailbox
	signal   func(target int64)
	halted   bool
	sleeping bool
	pid      int64
	hasPID   bool
	ipid     int64
	polls    *PollSet
}

// NewProcState builds a descriptor wired to mbox (nil disables wake posts).
func NewProcState(mbox *Mailbox, ipid int64) *ProcState {
	return &ProcState{
		mbox:  mbox,
		ipid:  ipid,
		polls: newPollSet(),
	}
}

// AssignPID records the table identifier. A second call with a different
// value is a programming error and panics.
func (s *ProcState) AssignPID(pid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasPID && s.pid != pid {
		panic(fmt.Sprintf("ProcState: pid already assigned (have %d, got %d)", s.pid, pid))
	}
	s.pid = pid
	s.hasPID = true
}

// PID returns the table identifier, if assigned.
func (s *ProcState) PID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid, s.hasPID
}

func (s *ProcState) IPID() int64 { return s.ipid }

func (s *ProcState) Halt() {
	s.mu.Lock()
	s.halted = true
	s.mu.Unlock()
}

func (s *ProcState) Sleep() {
	s.mu.Lock()
	s.sleeping = true
	s.mu.Unlock()
}

// Wake clears the sleeping flag and posts the pid to the mailbox so the
// scheduler re-admits it. The post happens even if the process was awake.
func (s *ProcState) Wake() {
	s.mu.Lock()
	s.sleeping = false
	pid, ok := s.pid, s.hasPID
	s.mu.Unlock()

	if s.mbox != nil && ok {
		s.mbox.Post(pid)
	}
}

// Signal wakes another process. Under a scheduler the target's descriptor is
// woken directly; a standalone descriptor can only post the identifier.
func (s *ProcState) Signal(target int64) {
	if s.signal != nil {
		s.signal(target)
		return
	}
	if s.mbox != nil {
		s.mbox.Post(target)
	}
}

func (s *ProcState) IsSleeping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sleeping
}

func (s *ProcState) IsHalted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Polls exposes the poll-tracking set for blocking operations.
func (s *ProcState) Polls() *PollSet { return s.polls }
