package processmgr

// Environment is the host side of the runtime: clock, lifecycle hooks,
// output and timers. All methods are called from the goroutine driving the
// scheduler except timer callbacks, which the host runs wherever it likes.
type Environment interface {
	// Now returns a monotonic time in milliseconds.
	Now() int64
	Started(pid int64)
	// Finished is called exactly once per process, when it stops being alive.
	Finished(pid int64, state ProcessState, floats []float64, text string)
	Print(pid int64, text string)
	// SetTimer arranges for fn to run after delayMS and returns a handle.
	SetTimer(delayMS int64, fn func()) int64
	ClearTimer(id int64)
}

// Program is a startable compiled program.
type Program interface {
	// Start resolves entry into an execution context bound to st.
	// An empty entry selects the program's default entry point.
	Start(entry string, st *ProcState, cfg ProcessConfig) (ExecContext, error)
}

// ExecContext is one running program.
type ExecContext interface {
	// Advance executes up to budget cycles, stopping early when the program
	// sleeps, yields or halts. It returns the cycles consumed. A non-nil error
	// is a runtime fault; its message becomes the Killed reason.
	Advance(env Environment, budget int64) (int64, error)
	// Results returns the numeric and textual results so far.
	Results() ([]float64, string)
}

// ProcessConfig tunes one process.
type ProcessConfig struct {
	Name string
	// CycleLimit kills the process once its cumulative cycles reach it. 0 = unlimited.
	CycleLimit int64
	// MaxStack bounds the operand stack of the execution context. 0 = context default.
	MaxStack int
}

// DefaultProcessConfig is used when Exec is given a nil config.
var DefaultProcessConfig = ProcessConfig{}

// Config tunes the scheduler.
type Config struct {
	// CyclesPerRun is the quantum handed to each process per pass.
	CyclesPerRun int64
	// MaxProcs caps the number of live processes.
	MaxProcs int64
}

// DefaultConfig mirrors the defaults of the daemon configuration.
var DefaultConfig = Config{
	CyclesPerRun: 100,
	MaxProcs:     1024,
}

func (c *Config) setDefaults() {
	if c.CyclesPerRun <= 0 {
		c.CyclesPerRun = DefaultConfig.CyclesPerRun
	}
	if c.MaxProcs <= 0 {
		c.MaxProcs = DefaultConfig.MaxProcs
	}
}
