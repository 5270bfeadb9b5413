package host

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
)

const (
	recordQueueSize = 256
	recordTimeout   = 2 * time.Second
	recentExits     = 100
	exitOutputLines = 20
)

var _ processmgr.Environment = (*System)(nil)

// System is the production host environment: wall clock, zap logging,
// captured output, real timers and (optionally) persisted exit records.
type System struct {
	log     *zap.Logger
	clock   Clock
	timers  *TimerService
	outputs *OutputManager

	mu    sync.Mutex
	exits []ExitRecord // newest last, capped at recentExits

	rec     Recorder
	records chan ExitRecord
	wg      sync.WaitGroup
}

// NewSystem builds a System. rec may be nil to disable persistence.
func NewSystem(log *zap.Logger, rec Recorder) *System {
	s := &System{
		log:     log.Named("host"),
		clock:   NewRealClock(),
		timers:  NewTimerService(log),
		outputs: NewOutputManager(),
		rec:     rec,
	}
	if rec != nil {
		s.records = make(chan ExitRecord, recordQueueSize)
		s.wg.Add(1)
		go s.recordLoop()
	}
	return s
}

func (s *System) Now() int64 { return s.clock.Now() }

func (s *System) Started(pid int64) {
	s.outputs.Reset(pid)
	s.log.Info("process started", zap.Int64("pid", pid))
}

func (s *System) Finished(pid int64, state processmgr.ProcessState, floats []float64, text string) {
	rec := NewExitRecord(pid, state, floats, text)
	rec.Output = s.outputs.Read(pid, exitOutputLines)

	s.log.Info("process finished",
		zap.Int64("pid", pid),
		zap.Stringer("state", state),
		zap.Float64s("floats", rec.Floats),
		zap.String("text", text))

	s.mu.Lock()
	s.exits = append(s.exits, rec)
	if len(s.exits) > recentExits {
		s.exits = s.exits[len(s.exits)-recentExits:]
	}
	s.mu.Unlock()

	if s.records == nil {
		return
	}
	select {
	case s.records <- rec:
	default:
		s.log.Warn("exit record queue full; dropping", zap.Int64("pid", pid), zap.Stringer("id", rec.ID))
	}
}

func (s *System) Print(pid int64, text string) {
	s.outputs.Append(pid, text)
	s.log.Debug("print", zap.Int64("pid", pid), zap.String("text", text))
}

func (s *System) SetTimer(delayMS int64, fn func()) int64 {
	return s.timers.After(time.Duration(delayMS)*time.Millisecond, fn)
}

func (s *System) ClearTimer(id int64) { s.timers.Cancel(id) }

// Outputs exposes the captured output buffers.
func (s *System) Outputs() *OutputManager { return s.outputs }

// PendingTimers reports timers that have not yet fired.
func (s *System) PendingTimers() int { return s.timers.Pending() }

// RecentExits returns up to n exit records, newest first.
func (s *System) RecentExits(n int) []ExitRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.exits) {
		n = len(s.exits)
	}
	out := make([]ExitRecord, 0, n)
	for i := len(s.exits) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.exits[i])
	}
	return out
}

// Close stops timers and flushes queued exit records.
func (s *System) Close() {
	s.timers.Close()
	if s.records != nil {
		close(s.records)
		s.wg.Wait()
	}
}

func (s *System) recordLoop() {
	defer s.wg.Done()
	for rec := range s.records {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := s.rec.Record(ctx, rec); err != nil {
			s.log.Error("failed to record exit", zap.Int64("pid", rec.PID), zap.Error(err))
		}
		cancel()
	}
}
