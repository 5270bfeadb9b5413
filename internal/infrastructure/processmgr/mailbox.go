package processmgr

import "sync"

// Mailbox collects identifiers of processes that became runnable because of
// an external event (timer, another process, management API).
//
// Producers: any goroutine. Consumer: the scheduler, which drains the whole
// mailbox at the start of every pass. Entries are not deduplicated.
type Mailbox struct {
	mu    sync.Mutex
	woken []int64

	// coalescing wake-up for an idle driver
	ready chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Post appends pid. Safe for concurrent use.
func (m *Mailbox) Post(pid int64) {
	m.mu.Lock()
	m.woken = append(m.woken, pid)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns everything posted so far.
// Posts racing with Drain land either in the returned slice or in the next one.
func (m *Mailbox) Drain() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.woken
	m.woken = nil
	return out
}

// Len returns the number of pending entries.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.woken)
}

// Ready fires (at most once per burst of posts) after Post.
func (m *Mailbox) Ready() <-chan struct{} { return m.ready }
