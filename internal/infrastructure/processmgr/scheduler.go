package processmgr

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrTooManyProcesses means the live-process limit or the PID space is exhausted.
	ErrTooManyProcesses = errors.New("too many processes")
	// ErrNilProgram is returned by Exec when no program is given.
	ErrNilProgram = errors.New("nil program")
)

// idSet is an unordered set of PIDs. Passes rotate whole sets; nothing may
// depend on iteration order.
type idSet map[int64]struct{}

func (s idSet) add(pid int64) { s[pid] = struct{}{} }

type runResult int

const (
	runFinished runResult = iota
	runEmpty
	runTimeout
)

// Scheduler multiplexes script processes onto the calling goroutine.
//
// -----------------------------------------------------------------------------
// Queues
//
//   - runq:  processes runnable in the current pass
//   - nextq: processes that stayed Running and get a slice next pass
//   - mbox:  PIDs woken from outside (timers, other processes, Wake)
//
// Every pass drains the mailbox into runq, takes runq as a whole, gives each
// member one quantum, then rotates nextq into runq. Sleeping processes sit in
// neither queue until a mailbox entry re-admits them.
//
// -----------------------------------------------------------------------------
// Concurrency model
//
//   - Exec, Run, Status, Wake, Kill, List, SetMaxProcs: one goroutine at a
//     time (the caller serialises)
//   - the Mailbox and ProcState.Wake (host timers): any goroutine
type Scheduler struct {
	log *zap.Logger
	env Environment
	cfg Config

	procs *procTable
	runq  idSet
	nextq idSet
	mbox  *Mailbox
	ipids ipidSource
	quota *procQuota
}

// New constructs a scheduler driving processes against env.
func New(log *zap.Logger, env Environment, cfg Config) *Scheduler {
	cfg.setDefaults()

	return &Scheduler{
		log:   log.Named("scheduler"),
		env:   env,
		cfg:   cfg,
		procs: newProcTable(defaultPIDMax),
		runq:  make(idSet),
		nextq: make(idSet),
		mbox:  NewMailbox(),
		quota: newProcQuota(cfg.MaxProcs),
	}
}

// Exec starts prog at entry and queues the new process. On failure nothing
// is created and the table is untouched.
func (s *Scheduler) Exec(prog Program, entry string, pc *ProcessConfig) (int64, error) {
	if prog == nil {
		return 0, ErrNilProgram
	}
	if pc == nil {
		pc = &DefaultProcessConfig
	}

	ipid := s.ipids.next()
	if !s.quota.take(ipid) {
		return 0, ErrTooManyProcesses
	}

	st := NewProcState(s.mbox, ipid)
	st.signal = s.Wake
	ctx, err := prog.Start(entry, st, *pc)
	if err != nil {
		s.quota.give(ipid)
		return 0, fmt.Errorf("start %q: %w", entry, err)
	}

	p := newProcess(s.log, st, ctx, *pc)
	pid, ok := s.procs.insert(p)
	if !ok {
		s.quota.give(ipid)
		return 0, ErrTooManyProcesses
	}

	// The descriptor must know its PID before anything can wake it.
	st.AssignPID(pid)
	p.log = s.log.With(zap.Int64("pid", pid), zap.Int64("ipid", ipid))
	s.runq.add(pid)

	p.log.Debug("process started", zap.String("name", pc.Name), zap.String("entry", entry))
	s.env.Started(pid)
	return pid, nil
}

// Run is one scheduling tick of at most delta milliseconds (checked between
// processes, so one quantum may overrun it).
//
// Returns true when it stopped at the deadline with work left, false when
// nothing is runnable.
func (s *Scheduler) Run(delta int64) bool {
	end := s.env.Now() + delta
	for {
		s.addAwoken()
		r := s.drainRunq(end)

		// rotate: survivors join whatever is still queued
		for pid := range s.nextq {
			s.runq.add(pid)
		}
		s.nextq = make(idSet)

		switch r {
		case runFinished:
			continue
		case runTimeout:
			return true
		default:
			return false
		}
	}
}

// addAwoken moves mailbox entries into runq. The wake itself was delivered
// when it was posted; a process that went back to sleep since then stays
// asleep. Entries for unknown PIDs are absorbed.
func (s *Scheduler) addAwoken() {
	for _, pid := range s.mbox.Drain() {
		if s.procs.get(pid) != nil {
			s.runq.add(pid)
		}
	}
}

func (s *Scheduler) drainRunq(end int64) runResult {
	if len(s.runq) == 0 {
		return runEmpty
	}

	runnable := s.runq
	s.runq = make(idSet)

	for pid := range runnable {
		delete(runnable, pid)

		if p := s.procs.get(pid); p != nil {
			p.run(s.env, s.cfg.CyclesPerRun)

			st := p.status()
			if st.State.Kind == Running {
				s.nextq.add(pid)
			}
			if !st.State.Alive() {
				s.reap(pid, p)
			}
		}

		if s.env.Now() >= end {
			// Unvisited members keep their place for the next tick.
			for rest := range runnable {
				s.runq.add(rest)
			}
			return runTimeout
		}
	}
	return runFinished
}

// reap removes a terminal process from the table; idempotent.
func (s *Scheduler) reap(pid int64, p *process) {
	if s.procs.get(pid) != p {
		return
	}
	p.finish(s.env)
	s.procs.remove(pid)
	s.quota.give(p.st.IPID())
}

// Status returns the process snapshot, or the Gone sentinel.
func (s *Scheduler) Status(pid int64) ProcessStatus {
	if p := s.procs.get(pid); p != nil {
		return p.status()
	}
	return statusGone
}

// Wake wakes pid now if it is asleep and posts it to the mailbox. Waking an
// awake process only posts. Unknown pids are posted and absorbed on drain.
func (s *Scheduler) Wake(pid int64) {
	if p := s.procs.get(pid); p != nil {
		p.st.Wake()
		return
	}
	s.mbox.Post(pid)
}

// Kill moves a live process to Killed(reason). The host is told at once and
// the process is removed on the next pass. Returns false if pid is not live.
func (s *Scheduler) Kill(pid int64, reason string) bool {
	p := s.procs.get(pid)
	if p == nil || !p.kill(reason) {
		return false
	}
	p.log.Info("process killed", zap.String("reason", reason))
	p.finish(s.env)
	s.mbox.Post(pid)
	return true
}

// ProcessInfo describes one live process.
type ProcessInfo struct {
	PID    int64
	IPID   int64
	Name   string
	Status ProcessStatus
}

// List returns the live processes in ascending PID order.
func (s *Scheduler) List() []ProcessInfo {
	pids := s.procs.list()
	out := make([]ProcessInfo, 0, len(pids))
	for _, pid := range pids {
		p := s.procs.get(pid)
		out = append(out, ProcessInfo{
			PID:    pid,
			IPID:   p.st.IPID(),
			Name:   p.cfg.Name,
			Status: p.status(),
		})
	}
	return out
}

// Len returns the number of processes in the table.
func (s *Scheduler) Len() int { return s.procs.len() }

// SetMaxProcs changes the live-process limit. Running processes above a
// lowered limit are left alone; new Execs fail until usage drops.
func (s *Scheduler) SetMaxProcs(n int64) {
	if old := s.quota.setLimit(n); old != n {
		s.log.Info("updated process limit", zap.Int64("old", old), zap.Int64("new", n))
	}
}

// Usage reports the live-process limit and who holds it.
func (s *Scheduler) Usage() Usage { return s.quota.usage() }

// Ready fires after a wake is posted; drivers block on it when idle.
func (s *Scheduler) Ready() <-chan struct{} { return s.mbox.Ready() }

// Mailbox exposes the wake mailbox.
func (s *Scheduler) Mailbox() *Mailbox { return s.mbox }
