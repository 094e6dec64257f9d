package x86

import (
	"github.com/dolthub/swiss"

	"lamac/src/sm"
	"lamac/src/util"
)

// Env is the x86 codegen environment: the symbolic operand stack, the
// high-water stack-slot count, the set of global names, the barrier flag,
// the label-to-symbolic-stack map, and the current function label. Like
// sm.Env, every mutating method returns a new Env.
type Env struct {
	stack      *util.Stack[Opnd]
	stackSlots int
	curLocals  int
	globals    *swiss.Map[string, struct{}]
	barrier    bool
	stackMap   map[string][]Opnd
	curFunc    string
	patches    map[string]int
}

// NewEnv returns an empty codegen environment.
func NewEnv() Env {
	return Env{
		stack:    &util.Stack[Opnd]{},
		globals:  swiss.NewMap[string, struct{}](8),
		stackMap: map[string][]Opnd{},
	}
}

// clone returns a shallow copy of e with its own stack, so that pushing or
// popping on the returned Env never mutates a value some other Env still
// holds a reference to (stackMap snapshots in particular rely on this).
func (e Env) clone() Env {
	e.stack = util.FromSlice(e.stack.Slice())
	return e
}

// Allocate chooses the next symbolic stack slot given the current top:
// empty stack starts at R(0); a register top below nRegs-1
// advances to the next register; a register top at the edge, or any
// non-register/non-S(_) top, spills to S(curLocals); an S(k) top advances
// to S(k+1). It returns the chosen operand and the updated Env with that
// operand pushed and stackSlots raised to cover it.
//
// S(i) is the same operand family BEGIN's declared locals are bound to
// (Loc(i) -> S(i), see Loc below), so a spill that started counting from
// S(0) would alias a function's own local variables the moment register
// pressure forced a spill. Offsetting the first spill by curLocals keeps
// S(0)..S(curLocals-1) reserved for locals and lets temporaries spill into
// S(curLocals) upward instead.
func (e Env) Allocate() (Opnd, Env) {
	e = e.clone()
	top, ok := e.stack.Peek()
	var chosen Opnd
	switch {
	case !ok:
		chosen = R(int(ebx))
	case top.Kind == OReg:
		if int(top.reg)+1 < nRegs {
			chosen = R(int(top.reg) + 1)
		} else {
			chosen = S(e.curLocals)
		}
	case top.Kind == OStack:
		chosen = S(top.idx + 1)
	default:
		chosen = S(e.curLocals)
	}
	e.stack.Push(chosen)
	if chosen.Kind == OStack && chosen.idx+1 > e.stackSlots {
		// chosen.idx+1 is the number of 4-byte words the frame must reserve
		// to cover S(chosen.idx), per the -(i+1)*4(%ebp) mapping in stackOffset.
		e.stackSlots = chosen.idx + 1
	}
	return chosen, e
}

// StackSlots returns the high-water frame-word count observed so far in the
// current function: at least curLocals, more if temporaries have spilled
// past the declared locals.
func (e Env) StackSlots() int { return e.stackSlots }

// Push pushes x onto the symbolic stack.
func (e Env) Push(x Opnd) Env {
	e = e.clone()
	e.stack.Push(x)
	return e
}

// Pop pops and returns the top of the symbolic stack.
func (e Env) Pop() (Opnd, Env, error) {
	e = e.clone()
	x, ok := e.stack.Pop()
	if !ok {
		return Opnd{}, e, util.Internal("pop on empty symbolic stack")
	}
	return x, e, nil
}

// Pop2 pops and returns the top two operands, x (most recently pushed)
// then y.
func (e Env) Pop2() (x, y Opnd, env Env, err error) {
	env = e
	if x, env, err = env.Pop(); err != nil {
		return
	}
	if y, env, err = env.Pop(); err != nil {
		return
	}
	return
}

// Peek returns the top of the symbolic stack without popping it.
func (e Env) Peek() (Opnd, error) {
	x, ok := e.stack.Peek()
	if !ok {
		return Opnd{}, util.Internal("peek on empty symbolic stack")
	}
	return x, nil
}

// AddGlobal unions name into the global set.
func (e Env) AddGlobal(name string) Env {
	e.globals.Put(name, struct{}{})
	return e
}

// Globals enumerates the global set. Order is not significant here;
// callers that need determinism (assembly serialization) sort it
// themselves (see asm.go).
func (e Env) Globals() []string {
	out := make([]string, 0, e.globals.Count())
	e.globals.Iter(func(k string, _ struct{}) bool {
		out = append(out, k)
		return false
	})
	return out
}

// Loc materializes an sm.Loc as an x86 operand:
// Glb(x) -> M("global_x"), Arg(i) -> S(-1-i), Loc(i) -> S(i).
func (e Env) Loc(l sm.Loc) Opnd {
	switch l.Kind {
	case sm.KGlb:
		return M("global_" + l.Name)
	case sm.KArg:
		return S(-1 - l.Index)
	case sm.KLoc:
		return S(l.Index)
	default:
		return Opnd{}
	}
}

// IsBarrier reports whether the barrier flag is set.
func (e Env) IsBarrier() bool { return e.barrier }

// SetBarrier sets the barrier flag.
func (e Env) SetBarrier() Env {
	e.barrier = true
	return e
}

// SetStack snapshots the current symbolic stack under label and clears the
// barrier flag. Called at jumps and before conditional jumps.
func (e Env) SetStack(label string) Env {
	m := make(map[string][]Opnd, len(e.stackMap)+1)
	for k, v := range e.stackMap {
		m[k] = v
	}
	m[label] = e.stack.Slice()
	e.stackMap = m
	e.barrier = false
	return e
}

// RetrieveStack replaces the current symbolic stack with the one recorded
// for label, or leaves it unchanged if label has no entry, and clears the
// barrier flag: the label has now consumed it, and ordinary fallthrough
// accounting resumes until the next JMP sets it again.
func (e Env) RetrieveStack(label string) Env {
	if xs, ok := e.stackMap[label]; ok {
		e.stack = util.FromSlice(append([]Opnd(nil), xs...))
	}
	e.barrier = false
	return e
}

// EnterFunction sets the current function label and resets the per-function
// frame bookkeeping: locals is the declared-locals count from BEGIN's
// operand, which seeds both curLocals (the spill offset) and stackSlots
// (the frame-word high-water mark, so a function with declared locals but
// no spills still reserves their words).
func (e Env) EnterFunction(label string, locals int) Env {
	e.curFunc = label
	e.curLocals = locals
	e.stackSlots = locals
	// A BEGIN is only ever reached by CALL, never by fallthrough with live
	// values, so any residue the previous function's END left (main's END
	// does not pop) must not leak into this function's allocation.
	e.stack = &util.Stack[Opnd]{}
	return e
}

// CurrentFunction returns the current function label.
func (e Env) CurrentFunction() string { return e.curFunc }

// RecordFrame records fn's final frame-word count, read back by Generate
// once the whole program has been walked to backpatch fn's prologue.
func (e Env) RecordFrame(fn string, words int) Env {
	m := make(map[string]int, len(e.patches)+1)
	for k, v := range e.patches {
		m[k] = v
	}
	m[fn] = words
	e.patches = m
	return e
}

// Patches returns the fn -> frame-word map recorded by RecordFrame.
func (e Env) Patches() map[string]int { return e.patches }

// LiveRegisters returns the R(_) operands in the symbolic stack below the
// top depth items, bottom-up: the registers a CALL whose arguments occupy
// the top depth slots must preserve across the call.
func (e Env) LiveRegisters(depth int) []Opnd {
	all := e.stack.Slice()
	if depth > len(all) {
		depth = len(all)
	}
	below := all[:len(all)-depth]
	var out []Opnd
	for _, o := range below {
		if o.Kind == OReg {
			out = append(out, o)
		}
	}
	return out
}
