package host

import "sync"

// outputLines is the ring size of one process's captured output.
const outputLines = 500

// outputBuffer is a thread-safe circular buffer of printed lines with O(1) append and O(N) read.
type outputBuffer struct {
	lines [outputLines]string // Fixed-size ring
	head  int                 // Next write position
	size  int                 // Current number of lines
	mu    sync.RWMutex
}

// Append adds a line, overwriting the oldest once full.
func (b *outputBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.head] = line
	b.head = (b.head + 1) % outputLines
	if b.size < outputLines {
		b.size++
	}
}

// Read returns the last n lines, newest → oldest, in a new slice.
//
// Semantics:
//   - If n <= 0: returns everything held
//   - If n > 500: clamped to 500
func (b *outputBuffer) Read(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}
	if n <= 0 || n > b.size {
		n = b.size
	}

	out := make([]string, n)
	newest := (b.head - 1 + outputLines) % outputLines
	for i := 0; i < n; i++ {
		out[i] = b.lines[(newest-i+outputLines)%outputLines]
	}
	return out
}

// Len returns how many lines are held.
func (b *outputBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *outputBuffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = [outputLines]string{}
	b.head, b.size = 0, 0
}

// OutputManager keeps per-process output buffers.
// - Creates buffers lazily
// - A buffer outlives its process until the pid is reused
type OutputManager struct {
	mu   sync.RWMutex
	bufs map[int64]*outputBuffer // PID → buffer
}

// NewOutputManager initializes an empty registry.
func NewOutputManager() *OutputManager {
	return &OutputManager{bufs: make(map[int64]*outputBuffer)}
}

func (m *OutputManager) get(pid int64) *outputBuffer {
	m.mu.RLock()
	buf, ok := m.bufs[pid]
	m.mu.RUnlock()
	if ok {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if buf, ok := m.bufs[pid]; ok {
		return buf
	}
	buf = new(outputBuffer)
	m.bufs[pid] = buf
	return buf
}

// Append records one printed line for pid.
func (m *OutputManager) Append(pid int64, line string) { m.get(pid).Append(line) }

// Read returns up to n lines for pid, newest first. Unknown pids yield nil.
func (m *OutputManager) Read(pid int64, n int) []string {
	m.mu.RLock()
	buf, ok := m.bufs[pid]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return buf.Read(n)
}

// Reset clears pid's buffer; called when a pid is handed to a new process.
func (m *OutputManager) Reset(pid int64) {
	m.mu.RLock()
	buf, ok := m.bufs[pid]
	m.mu.RUnlock()
	if ok {
		buf.reset()
	}
}
