package bytecode

// Op is a single instruction opcode.
type Op uint8

const (
	OpNop Op = iota
	OpPush
	OpPop
	OpDup
	OpSwap
	OpInc
	OpDec
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpJmp
	OpJz
	OpJnz
	OpText
	OpPrint
	OpPrintN
	OpPID
	OpSleep
	OpWait
	OpWake
	OpYield
	OpHalt
	OpFail
)

type operandKind uint8

const (
	operandNone operandKind = iota
	operandNumber
	operandLabel
	operandString
)

type opInfo struct {
	name    string
	operand operandKind
	cost    int64
}

// opTable is indexed by Op. Costs are in cycles.
var opTable = [...]opInfo{
	OpNop:    {"nop", operandNone, 1},
	OpPush:   {"push", operandNumber, 1},
	OpPop:    {"pop", operandNone, 1},
	OpDup:    {"dup", operandNone, 1},
	OpSwap:   {"swap", operandNone, 1},
	OpInc:    {"inc", operandNone, 1},
	OpDec:    {"dec", operandNone, 1},
	OpAdd:    {"add", operandNone, 2},
	OpSub:    {"sub", operandNone, 2},
	OpMul:    {"mul", operandNone, 2},
	OpDiv:    {"div", operandNone, 4},
	OpJmp:    {"jmp", operandLabel, 1},
	OpJz:     {"jz", operandLabel, 2},
	OpJnz:    {"jnz", operandLabel, 2},
	OpText:   {"text", operandString, 2},
	OpPrint:  {"print", operandString, 4},
	OpPrintN: {"printn", operandNone, 4},
	OpPID:    {"pid", operandNone, 1},
	OpSleep:  {"sleep", operandNone, 2},
	OpWait:   {"wait", operandNumber, 8},
	OpWake:   {"wake", operandNone, 3},
	OpYield:  {"yield", operandNone, 1},
	OpHalt:   {"halt", operandNone, 1},
	OpFail:   {"fail", operandString, 1},
}

var opByName = func() map[string]Op {
	m := make(map[string]Op, len(opTable))
	for op, info := range opTable {
		m[info.name] = Op(op)
	}
	return m
}()

func (o Op) String() string {
	if int(o) < len(opTable) {
		return opTable[o].name
	}
	return "op?"
}

// Cost returns the cycles charged for one execution of o.
func (o Op) Cost() int64 {
	if int(o) < len(opTable) {
		return opTable[o].cost
	}
	return 1
}

// Instr is one assembled instruction. Jump targets are resolved to Target.
type Instr struct {
	Op     Op
	Num    float64
	Str    string
	Target int
	Line   int
}
