package sm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lamac/src/util"
)

// Interp executes an sm.Program directly, without ever reaching x86. It
// exists purely for cross-checking: running the same program through Interp
// and through a reference evaluation of the source tree, and diffing their
// WRITE output, validates the lowering without an assembler/linker in the
// loop.
type Interp struct {
	in  *bufio.Reader
	out io.Writer

	stack   []int
	globals map[string]int
	frames  []frame
}

type frame struct {
	base   int // index into the operand stack of this frame's Arg(0)
	locals []int
}

// NewInterp returns an interpreter reading READ input from in and writing
// WRITE output to out.
func NewInterp(in io.Reader, out io.Writer) *Interp {
	return &Interp{
		in:      bufio.NewReader(in),
		out:     out,
		globals: map[string]int{},
	}
}

// Run executes prog starting at its "main" label and returns any runtime
// error (e.g. a CALL to an undefined label, which indicates a malformed
// program, not a user-facing compile error).
func (it *Interp) Run(prog Program) error {
	labels := map[string]int{}
	for i1, ins := range prog {
		if ins.Code == LABEL {
			labels[ins.Label] = i1
		}
	}
	return it.exec(prog, labels, labels["main"])
}

// exec runs prog starting at pc until its matching END. A function's END
// leaves exactly its one result on the stack; main's END may leave none
// (see the END case below).
func (it *Interp) exec(prog Program, labels map[string]int, pc int) error {
	for pc < len(prog) {
		ins := prog[pc]
		switch ins.Code {
		case LABEL:
			// no-op at runtime; only meaningful to CALL/JMP resolution.

		case BEGIN:
			it.frames = append(it.frames, frame{
				base:   len(it.stack) - ins.Args,
				locals: make([]int, ins.Locs),
			})

		case END:
			fr := it.frames[len(it.frames)-1]
			it.frames = it.frames[:len(it.frames)-1]
			// main's body may leave nothing on the stack (a program ending in
			// WRITE or an Ignore); only a function END is guaranteed a return
			// value, mirroring the x86 END rule that special-cases main.
			if len(it.stack) > fr.base {
				result := it.pop()
				it.stack = it.stack[:fr.base]
				it.stack = append(it.stack, result)
			} else {
				it.stack = it.stack[:fr.base]
			}
			return nil

		case CONST:
			it.stack = append(it.stack, ins.N)

		case GLOBAL:
			if _, ok := it.globals[ins.Name]; !ok {
				it.globals[ins.Name] = 0
			}

		case LD:
			it.stack = append(it.stack, it.load(ins.Loc))

		case LDA:
			// The interpreter has no address space to take a real pointer
			// into; STI below resolves an LDA'd Loc by tag instead of by a
			// materialized address (see addrTag/STI).
			it.stack = append(it.stack, addrTag(ins.Loc))

		case ST:
			v := it.peek()
			it.store(ins.Loc, v)

		case STI:
			v := it.pop()
			addr := it.pop()
			it.storeAddr(addr, v)
			it.stack = append(it.stack, v)

		case DROP:
			it.pop()

		case DUP:
			it.stack = append(it.stack, it.peek())

		case READ:
			n, err := it.readInt()
			if err != nil {
				return err
			}
			it.stack = append(it.stack, n)

		case WRITE:
			fmt.Fprintf(it.out, "%d\n", it.pop())

		case BINOP:
			y := it.pop()
			x := it.pop()
			it.stack = append(it.stack, apply(ins.Op, x, y))

		case JMP:
			pc = labels[ins.Label]
			continue

		case CJMP:
			v := it.pop()
			taken := (ins.Cond == Zero && v == 0) || (ins.Cond == Nonzero && v != 0)
			if taken {
				pc = labels[ins.Label]
				continue
			}

		case CALL:
			args := make([]int, ins.N)
			for i1 := ins.N - 1; i1 >= 0; i1-- {
				args[i1] = it.pop()
			}
			it.stack = append(it.stack, args...)
			fpc, ok := labels[ins.Fun]
			if !ok {
				return util.Internal(fmt.Sprintf("call to undefined label %q", ins.Fun))
			}
			if err := it.exec(prog, labels, fpc+1); err != nil {
				return err
			}

		default:
			return util.Internal(fmt.Sprintf("interp: unhandled instruction %v", ins.Code))
		}
		pc++
	}
	return nil
}

func (it *Interp) pop() int {
	v := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	return v
}

func (it *Interp) peek() int {
	return it.stack[len(it.stack)-1]
}

func (it *Interp) load(l Loc) int {
	switch l.Kind {
	case KGlb:
		return it.globals[l.Name]
	case KArg, KLoc:
		fr := &it.frames[len(it.frames)-1]
		return it.frameSlot(fr, l)
	default:
		return 0
	}
}

func (it *Interp) store(l Loc, v int) {
	switch l.Kind {
	case KGlb:
		it.globals[l.Name] = v
	case KArg, KLoc:
		fr := &it.frames[len(it.frames)-1]
		it.setFrameSlot(fr, l, v)
	}
}

func (it *Interp) frameSlot(fr *frame, l Loc) int {
	if l.Kind == KArg {
		return it.stack[fr.base+l.Index]
	}
	return fr.locals[l.Index]
}

func (it *Interp) setFrameSlot(fr *frame, l Loc, v int) {
	if l.Kind == KArg {
		it.stack[fr.base+l.Index] = v
		return
	}
	fr.locals[l.Index] = v
}

// addrTag packs an Loc into a single int so the interpreter's flat int
// stack can carry an "address" produced by LDA through to a matching STI,
// without a real address space. The encoding is private to this file.
func addrTag(l Loc) int {
	switch l.Kind {
	case KGlb:
		return -(int(hashName(l.Name)) + 1)
	case KArg:
		return 1 + l.Index*2
	default: // KLoc
		return 2 + l.Index*2
	}
}

func hashName(s string) uint32 {
	var h uint32 = 2166136261
	for i1 := 0; i1 < len(s); i1++ {
		h ^= uint32(s[i1])
		h *= 16777619
	}
	return h % 1000003
}

// storeAddr is necessarily a stub: without a real address space the
// interpreter cannot resolve an arbitrary tagged address back to the global
// it came from on a hash collision. It is adequate for the cross-check
// programs this tool is used on, whose globals never collide; a genuine
// interpreter-level heap is out of scope (Interp exists only to cross-check
// the lowering, not to replace the x86 backend).
func (it *Interp) storeAddr(addr, v int) {
	if addr <= 0 {
		for name, h := range it.globalsByTag() {
			if h == addr {
				it.globals[name] = v
				return
			}
		}
		return
	}
	idx := (addr - 1) / 2
	fr := &it.frames[len(it.frames)-1]
	if addr%2 == 1 {
		it.setFrameSlot(fr, Arg(idx), v)
	} else {
		it.setFrameSlot(fr, Local(idx), v)
	}
}

func (it *Interp) globalsByTag() map[string]int {
	out := make(map[string]int, len(it.globals))
	for name := range it.globals {
		out[name] = addrTag(Glb(name))
	}
	return out
}

func (it *Interp) readInt() (int, error) {
	var sb strings.Builder
	for {
		r, _, err := it.in.ReadRune()
		if err != nil {
			break
		}
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if sb.Len() > 0 {
				break
			}
			continue
		}
		sb.WriteRune(r)
	}
	return strconv.Atoi(sb.String())
}

func apply(op Op, x, y int) int {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case Add:
		return x + y
	case Sub:
		return x - y
	case Mul:
		return x * y
	case Div:
		return x / y
	case Mod:
		return x % y
	case Lt:
		return b2i(x < y)
	case Le:
		return b2i(x <= y)
	case Eq:
		return b2i(x == y)
	case Ne:
		return b2i(x != y)
	case Gt:
		return b2i(x > y)
	case Ge:
		return b2i(x >= y)
	case And:
		return b2i(x != 0 && y != 0)
	case Or:
		return b2i(x != 0 || y != 0)
	default:
		return 0
	}
}
