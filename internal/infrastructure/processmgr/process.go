package processmgr

import "go.uber.org/zap"

// process couples a descriptor with a running program.
//
// Canonical usage:
//
//	newProcess → table insert → st.AssignPID → run/status ... → finish (once)
//
// State is derived, never stored: killed beats halted beats sleeping.
type process struct {
	log *zap.Logger
	st  *ProcState
	ctx ExecContext
	cfg ProcessConfig

	cycles   int64
	killed   bool
	reason   string
	finished bool
}

func newProcess(log *zap.Logger, st *ProcState, ctx ExecContext, cfg ProcessConfig) *process {
	return &process{
		log: log,
		st:  st,
		ctx: ctx,
		cfg: cfg,
	}
}

// run executes up to budget cycles. A process that is not alive, or that is
// sleeping without a delivered wake, does nothing.
func (p *process) run(env Environment, budget int64) {
	if !p.state().Alive() || p.st.IsSleeping() {
		return
	}

	spent, err := p.ctx.Advance(env, budget)
	if spent > 0 {
		p.cycles += spent
	}

	switch {
	case err != nil:
		p.kill(err.Error())
	case p.cfg.CycleLimit > 0 && p.cycles >= p.cfg.CycleLimit:
		p.kill("cycle limit exceeded")
	}

	if !p.state().Alive() {
		p.finish(env)
	}
}

func (p *process) state() ProcessState {
	switch {
	case p.killed:
		return ProcessState{Kind: Killed, Reason: p.reason}
	case p.st.IsHalted():
		return ProcessState{Kind: Halted}
	case p.st.IsSleeping():
		return ProcessState{Kind: Sleeping}
	default:
		return ProcessState{Kind: Running}
	}
}

func (p *process) status() ProcessStatus {
	return ProcessStatus{State: p.state(), Cycles: p.cycles}
}

// kill moves a live process to Killed. Terminal states are sticky.
func (p *process) kill(reason string) bool {
	if !p.state().Alive() {
		return false
	}
	p.killed = true
	p.reason = reason
	return true
}

// finish releases outstanding polls and reports the final state to the host.
// Idempotent.
func (p *process) finish(env Environment) {
	if p.finished {
		return
	}
	p.finished = true

	p.st.Polls().CancelAll(env.ClearTimer)

	pid, _ := p.st.PID()
	state := p.state()
	floats, text := p.ctx.Results()

	p.log.Debug("process finished",
		zap.Stringer("state", state),
		zap.Int64("cycles", p.cycles),
		zap.String("text", text))

	env.Finished(pid, state, floats, text)
}
