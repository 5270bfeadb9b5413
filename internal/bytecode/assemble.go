package bytecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrMalformed wraps every assembly failure.
	ErrMalformed = errors.New("malformed program")
	// ErrUnknownEntry means the requested entry point is not a label.
	ErrUnknownEntry = errors.New("unknown entry point")
)

// SyntaxError reports a problem on one source line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

func (e *SyntaxError) Unwrap() error { return ErrMalformed }

func syntaxErr(line int, format string, args ...any) error {
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

type fixup struct {
	instr int
	label string
	line  int
}

// Assemble turns source text into a Program.
//
// Syntax, one statement per line:
//
//	# comment            (";" works too)
//	loop:                label, usable as a jump target or entry point
//	    push 3
//	    jnz loop
//	    print "done"     string operands use Go quoting
func Assemble(src string) (*Program, error) {
	prog := &Program{labels: make(map[string]int)}
	var fixups []fixup

	for i, raw := range strings.Split(src, "\n") {
		line := i + 1
		text := strings.TrimSpace(stripComment(raw))
		if text == "" {
			continue
		}

		if label, rest, ok := splitLabel(text); ok {
			if _, dup := prog.labels[label]; dup {
				return nil, syntaxErr(line, "duplicate label %q", label)
			}
			prog.labels[label] = len(prog.code)
			text = strings.TrimSpace(rest)
			if text == "" {
				continue
			}
		}

		name, operand := text, ""
		if sp := strings.IndexFunc(text, unicode.IsSpace); sp >= 0 {
			name, operand = text[:sp], strings.TrimSpace(text[sp:])
		}

		op, ok := opByName[strings.ToLower(name)]
		if !ok {
			return nil, syntaxErr(line, "unknown instruction %q", name)
		}
		in := Instr{Op: op, Line: line}

		switch opTable[op].operand {
		case operandNone:
			if operand != "" {
				return nil, syntaxErr(line, "%s takes no operand", op)
			}
		case operandNumber:
			n, err := strconv.ParseFloat(operand, 64)
			if err != nil {
				return nil, syntaxErr(line, "%s needs a number, got %q", op, operand)
			}
			in.Num = n
		case operandString:
			s, err := strconv.Unquote(operand)
			if err != nil {
				return nil, syntaxErr(line, "%s needs a quoted string, got %q", op, operand)
			}
			in.Str = s
		case operandLabel:
			if !isIdent(operand) {
				return nil, syntaxErr(line, "%s needs a label, got %q", op, operand)
			}
			fixups = append(fixups, fixup{instr: len(prog.code), label: operand, line: line})
		}

		prog.code = append(prog.code, in)
	}

	for _, f := range fixups {
		target, ok := prog.labels[f.label]
		if !ok {
			return nil, syntaxErr(f.line, "undefined label %q", f.label)
		}
		prog.code[f.instr].Target = target
	}

	return prog, nil
}

// MustAssemble is Assemble for sources known to be valid; it panics otherwise.
func MustAssemble(src string) *Program {
	p, err := Assemble(src)
	if err != nil {
		panic(err)
	}
	return p
}

// stripComment cuts the line at the first '#' or ';' outside a string literal.
func stripComment(s string) string {
	inQuote, escaped := false, false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case (r == '#' || r == ';') && !inQuote:
			return s[:i]
		}
	}
	return s
}

func splitLabel(s string) (label, rest string, ok bool) {
	head, tail, found := strings.Cut(s, ":")
	if !found || strings.ContainsAny(head, " \t\"") || !isIdent(head) {
		return "", "", false
	}
	return head, tail, true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '.' || r == '-'):
		default:
			return false
		}
	}
	return true
}
