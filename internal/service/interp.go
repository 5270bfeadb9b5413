package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/edirooss/scriptd/internal/bytecode"
	"github.com/edirooss/scriptd/internal/host"
	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
)

var (
	// ErrNotFound means the pid has no live process.
	ErrNotFound = errors.New("process not found")
	// ErrInvalidProgram wraps assembly and start failures.
	ErrInvalidProgram = errors.New("invalid program")
)

// ExecRequest describes a process to start.
type ExecRequest struct {
	Source     string
	Entry      string
	Name       string
	CycleLimit int64
	MaxStack   int
}

// -----------------------------------------------------------------------------
// InterpService
// -----------------------------------------------------------------------------
//
// Runtime model
//   - The scheduler is single-threaded; every call into it holds mu.
//   - Run drives the scheduler in ticks of tick milliseconds, releasing mu
//     between ticks so API calls interleave.
//   - When idle, Run blocks on the mailbox signal (timers, wakes) or on kick
//     (new process, kill).
type InterpService struct {
	log     *zap.Logger
	outputs *host.OutputManager

	mu    sync.Mutex
	sched *processmgr.Scheduler
	tick  int64

	kick chan struct{}
}

// NewInterpService wraps sched. outputs may be nil when output capture is off.
func NewInterpService(log *zap.Logger, sched *processmgr.Scheduler, outputs *host.OutputManager, tickMS int64) *InterpService {
	if tickMS <= 0 {
		tickMS = 10
	}
	return &InterpService{
		log:     log.Named("interp_service"),
		outputs: outputs,
		sched:   sched,
		tick:    tickMS,
		kick:    make(chan struct{}, 1),
	}
}

// Exec assembles req.Source and starts it.
func (s *InterpService) Exec(req ExecRequest) (int64, error) {
	prog, err := bytecode.Assemble(req.Source)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidProgram, err)
	}

	cfg := &processmgr.ProcessConfig{
		Name:       req.Name,
		CycleLimit: req.CycleLimit,
		MaxStack:   req.MaxStack,
	}

	s.mu.Lock()
	pid, err := s.sched.Exec(prog, req.Entry, cfg)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, processmgr.ErrTooManyProcesses) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", ErrInvalidProgram, err)
	}

	s.poke()
	return pid, nil
}

// Status returns the process snapshot (Gone when absent).
func (s *InterpService) Status(pid int64) processmgr.ProcessStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Status(pid)
}

// Wake delivers an external wake to pid.
func (s *InterpService) Wake(pid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Wake(pid)
}

// Kill terminates pid. Returns ErrNotFound if it is not live.
func (s *InterpService) Kill(pid int64, reason string) error {
	s.mu.Lock()
	ok := s.sched.Kill(pid, reason)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.poke()
	return nil
}

// List returns live processes in pid order.
func (s *InterpService) List() []processmgr.ProcessInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.List()
}

// Output returns up to n captured lines for pid, newest first. Output of a
// finished process stays readable until its pid is reused.
func (s *InterpService) Output(pid int64, n int) []string {
	if s.outputs == nil {
		return nil
	}
	return s.outputs.Read(pid, n)
}

// SetMaxProcs adjusts the live-process limit.
func (s *InterpService) SetMaxProcs(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.SetMaxProcs(n)
}

// Usage reports the live-process limit and current usage.
func (s *InterpService) Usage() processmgr.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Usage()
}

// Run drives the scheduler until ctx is cancelled.
func (s *InterpService) Run(ctx context.Context) error {
	s.log.Info("driver started", zap.Int64("tick_ms", s.tick))
	defer s.log.Info("driver stopped")

	for {
		s.mu.Lock()
		busy := s.sched.Run(s.tick)
		s.mu.Unlock()

		if busy {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.kick:
		case <-s.sched.Ready():
		}
	}
}

func (s *InterpService) poke() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}
