package bytecode

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
)

var (
	errDivideByZero   = errors.New("division by zero")
	errStackUnderflow = errors.New("stack underflow")
	errStackOverflow  = errors.New("stack overflow")
)

// Context is one started Program.
type Context struct {
	prog     *Program
	st       *processmgr.ProcState
	pc       int
	stack    []float64
	text     string
	maxStack int
}

var _ processmgr.ExecContext = (*Context)(nil)

// Advance executes whole instructions while fewer than budget cycles have
// been consumed. The last instruction may overrun the budget by its own cost.
func (c *Context) Advance(env processmgr.Environment, budget int64) (int64, error) {
	var spent int64
	for spent < budget {
		if c.st.IsHalted() {
			return spent, nil
		}
		if c.pc >= len(c.prog.code) {
			c.st.Halt()
			return spent, nil
		}

		in := c.prog.code[c.pc]
		c.pc++
		spent += in.Op.Cost()

		stop, err := c.step(env, in)
		if err != nil {
			return spent, fmt.Errorf("%w (line %d)", err, in.Line)
		}
		if stop {
			return spent, nil
		}
	}
	return spent, nil
}

// Results returns the stack bottom→top and the text register.
func (c *Context) Results() ([]float64, string) {
	out := make([]float64, len(c.stack))
	copy(out, c.stack)
	return out, c.text
}

// step executes one instruction; stop reports that the slice must end.
func (c *Context) step(env processmgr.Environment, in Instr) (stop bool, err error) {
	switch in.Op {
	case OpNop:
	case OpPush:
		return false, c.push(in.Num)
	case OpPop:
		_, err = c.pop()
	case OpDup:
		var v float64
		if v, err = c.peek(); err == nil {
			err = c.push(v)
		}
	case OpSwap:
		if len(c.stack) < 2 {
			return false, errStackUnderflow
		}
		n := len(c.stack)
		c.stack[n-1], c.stack[n-2] = c.stack[n-2], c.stack[n-1]
	case OpInc, OpDec:
		if len(c.stack) == 0 {
			return false, errStackUnderflow
		}
		if in.Op == OpInc {
			c.stack[len(c.stack)-1]++
		} else {
			c.stack[len(c.stack)-1]--
		}
	case OpAdd, OpSub, OpMul, OpDiv:
		err = c.binary(in.Op)
	case OpJmp:
		c.pc = in.Target
	case OpJz, OpJnz:
		var v float64
		if v, err = c.pop(); err != nil {
			return false, err
		}
		if (v == 0) == (in.Op == OpJz) {
			c.pc = in.Target
		}
	case OpText:
		c.text = in.Str
	case OpPrint:
		env.Print(c.pid(), in.Str)
	case OpPrintN:
		var v float64
		if v, err = c.peek(); err == nil {
			env.Print(c.pid(), strconv.FormatFloat(v, 'g', -1, 64))
		}
	case OpPID:
		return false, c.push(float64(c.pid()))
	case OpSleep:
		c.st.Sleep()
		return true, nil
	case OpWait:
		c.st.Sleep()
		c.armWake(env, int64(in.Num))
		return true, nil
	case OpWake:
		var v float64
		if v, err = c.pop(); err == nil {
			c.st.Signal(int64(v))
		}
	case OpYield:
		return true, nil
	case OpHalt:
		c.st.Halt()
		return true, nil
	case OpFail:
		return false, errors.New(in.Str)
	default:
		return false, fmt.Errorf("bad opcode %d", in.Op)
	}
	return false, err
}

// armWake sets a host timer that wakes this process, tracked in the poll set
// so it is cancelled if the process ends first. The timer may fire before
// SetTimer returns; its handle is then never added.
func (c *Context) armWake(env processmgr.Environment, ms int64) {
	st := c.st
	var (
		mu     sync.Mutex
		handle int64
		armed  bool
		fired  bool
	)
	id := env.SetTimer(ms, func() {
		mu.Lock()
		fired = true
		if armed {
			st.Polls().Remove(handle)
		}
		mu.Unlock()
		st.Wake()
	})

	mu.Lock()
	defer mu.Unlock()
	if !fired {
		handle, armed = id, true
		st.Polls().Add(id)
	}
}

func (c *Context) binary(op Op) error {
	b, err := c.pop()
	if err != nil {
		return err
	}
	a, err := c.pop()
	if err != nil {
		return err
	}
	var r float64
	switch op {
	case OpAdd:
		r = a + b
	case OpSub:
		r = a - b
	case OpMul:
		r = a * b
	case OpDiv:
		if b == 0 {
			return errDivideByZero
		}
		r = a / b
	}
	return c.push(r)
}

func (c *Context) push(v float64) error {
	if len(c.stack) >= c.maxStack {
		return errStackOverflow
	}
	c.stack = append(c.stack, v)
	return nil
}

func (c *Context) pop() (float64, error) {
	n := len(c.stack)
	if n == 0 {
		return 0, errStackUnderflow
	}
	v := c.stack[n-1]
	c.stack = c.stack[:n-1]
	return v, nil
}

func (c *Context) peek() (float64, error) {
	if len(c.stack) == 0 {
		return 0, errStackUnderflow
	}
	return c.stack[len(c.stack)-1], nil
}

func (c *Context) pid() int64 {
	pid, _ := c.st.PID()
	return pid
}
