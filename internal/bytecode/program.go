package bytecode

import (
	"fmt"
	"sort"

	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
)

// DefaultEntry is the label used when no entry point is requested.
const DefaultEntry = "main"

// DefaultMaxStack bounds the operand stack when the process config leaves it at 0.
const DefaultMaxStack = 256

// Program is an assembled, immutable instruction list. One Program can be
// started any number of times; every start gets its own Context.
type Program struct {
	code   []Instr
	labels map[string]int
}

var _ processmgr.Program = (*Program)(nil)

// Start resolves entry and returns a fresh execution context bound to st.
func (p *Program) Start(entry string, st *processmgr.ProcState, cfg processmgr.ProcessConfig) (processmgr.ExecContext, error) {
	if st == nil {
		return nil, fmt.Errorf("start: nil process state")
	}
	pc, err := p.resolve(entry)
	if err != nil {
		return nil, err
	}

	maxStack := cfg.MaxStack
	if maxStack <= 0 {
		maxStack = DefaultMaxStack
	}

	return &Context{
		prog:     p,
		st:       st,
		pc:       pc,
		maxStack: maxStack,
	}, nil
}

func (p *Program) resolve(entry string) (int, error) {
	if entry == "" {
		if pc, ok := p.labels[DefaultEntry]; ok {
			return pc, nil
		}
		return 0, nil
	}
	pc, ok := p.labels[entry]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEntry, entry)
	}
	return pc, nil
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.code) }

// Labels returns the label names in ascending order.
func (p *Program) Labels() []string {
	out := make([]string, 0, len(p.labels))
	for l := range p.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Instr returns a copy of instruction i.
func (p *Program) Instr(i int) Instr { return p.code[i] }
