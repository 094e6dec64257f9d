// Package sm implements the stack-machine intermediate representation: its
// instruction set and location descriptors, the compilation environment
// that threads label/scope/binding state through the lowering, and the
// recursive AST to SM lowering itself.
package sm

import "fmt"

// LocKind discriminates the three homes a binding may have.
type LocKind int

const (
	// KArg is the i-th argument of the enclosing function.
	KArg LocKind = iota
	// KLoc is the i-th local slot of the enclosing function.
	KLoc
	// KGlb is a named global.
	KGlb
)

// Loc is a binding's physical home: an argument slot, a local slot, or a
// named global.
type Loc struct {
	Kind  LocKind
	Index int    // valid for KArg, KLoc
	Name  string // valid for KGlb
}

// Arg builds an Arg(i) location.
func Arg(i int) Loc { return Loc{Kind: KArg, Index: i} }

// Local builds a Loc(i) location. Named Local rather than Loc because the
// Loc name is taken by the location type itself.
func Local(i int) Loc { return Loc{Kind: KLoc, Index: i} }

// Glb builds a Glb(name) location.
func Glb(name string) Loc { return Loc{Kind: KGlb, Name: name} }

func (l Loc) String() string {
	switch l.Kind {
	case KArg:
		return fmt.Sprintf("arg[%d]", l.Index)
	case KLoc:
		return fmt.Sprintf("loc[%d]", l.Index)
	case KGlb:
		return l.Name
	default:
		return "?loc"
	}
}

// Op is a BINOP operator.
type Op string

const (
	Add Op = "+"
	Sub Op = "-"
	Mul Op = "*"
	Div Op = "/"
	Mod Op = "%"
	Lt  Op = "<"
	Le  Op = "<="
	Eq  Op = "=="
	Ne  Op = "!="
	Gt  Op = ">"
	Ge  Op = ">="
	And Op = "&&"
	Or  Op = "!!"
)

// Cond is a CJMP condition.
type Cond string

const (
	Zero    Cond = "z"
	Nonzero Cond = "nz"
)

// Code enumerates the SM instruction set.
type Code int

const (
	READ Code = iota
	WRITE
	BINOP
	LD
	LDA
	ST
	STI
	CONST
	LABEL
	JMP
	CJMP
	CALL
	BEGIN
	END
	GLOBAL
	DROP
	DUP
)

var codeNames = [...]string{
	"READ", "WRITE", "BINOP", "LD", "LDA", "ST", "STI", "CONST", "LABEL",
	"JMP", "CJMP", "CALL", "BEGIN", "END", "GLOBAL", "DROP", "DUP",
}

func (c Code) String() string {
	if int(c) < 0 || int(c) >= len(codeNames) {
		return "?"
	}
	return codeNames[c]
}

// Instruction is one SM instruction. Only the fields relevant to Code are
// populated.
type Instruction struct {
	Code Code

	N     int    // CONST n; CALL n (arg count)
	Loc   Loc    // LD/LDA/ST loc
	Op    Op     // BINOP op
	Label string // LABEL l; JMP l; CJMP _, l
	Cond  Cond   // CJMP cond, _
	Fun   string // CALL f; BEGIN f
	Args  int    // BEGIN a (argument count)
	Locs  int    // BEGIN locals (local slot count)
	Name  string // GLOBAL x
}

func i(c Code) Instruction { return Instruction{Code: c} }

// Read builds a READ instruction.
func Read() Instruction { return i(READ) }

// Write builds a WRITE instruction.
func Write() Instruction { return i(WRITE) }

// Binop builds a BINOP instruction.
func Binop(op Op) Instruction { return Instruction{Code: BINOP, Op: op} }

// LoadLoc builds an LD instruction.
func LoadLoc(l Loc) Instruction { return Instruction{Code: LD, Loc: l} }

// LoadAddr builds an LDA instruction.
func LoadAddr(l Loc) Instruction { return Instruction{Code: LDA, Loc: l} }

// Store builds an ST instruction.
func Store(l Loc) Instruction { return Instruction{Code: ST, Loc: l} }

// StoreIndirect builds an STI instruction.
func StoreIndirect() Instruction { return i(STI) }

// Const builds a CONST instruction.
func Const(n int) Instruction { return Instruction{Code: CONST, N: n} }

// Label builds a LABEL instruction.
func Label(l string) Instruction { return Instruction{Code: LABEL, Label: l} }

// Jmp builds a JMP instruction.
func Jmp(l string) Instruction { return Instruction{Code: JMP, Label: l} }

// Cjmp builds a CJMP instruction.
func Cjmp(cond Cond, l string) Instruction {
	return Instruction{Code: CJMP, Cond: cond, Label: l}
}

// Call builds a CALL instruction.
func Call(f string, n int) Instruction { return Instruction{Code: CALL, Fun: f, N: n} }

// Begin builds a BEGIN instruction.
func Begin(f string, args, locals int) Instruction {
	return Instruction{Code: BEGIN, Fun: f, Args: args, Locs: locals}
}

// End builds an END instruction.
func End() Instruction { return i(END) }

// Global builds a GLOBAL instruction.
func Global(name string) Instruction { return Instruction{Code: GLOBAL, Name: name} }

// Drop builds a DROP instruction.
func Drop() Instruction { return i(DROP) }

// Dup builds a DUP instruction. The frontend does not currently emit it,
// but the x86 backend lowers it, so a frontend extension can rely on it.
func Dup() Instruction { return i(DUP) }

// Program is a flat SM program: the output of lowering and the input to
// x86 generation.
type Program []Instruction
