package x86

import (
	"fmt"
	"strings"

	"lamac/src/ast"
	"lamac/src/sm"
	"lamac/src/util"
)

// cmpSuffix maps a BINOP comparison operator to its x86 set<suf> suffix.
var cmpSuffix = map[sm.Op]string{
	sm.Lt: "l", sm.Le: "le", sm.Eq: "e", sm.Ne: "ne", sm.Ge: "ge", sm.Gt: "g",
}

// condSuffix maps a CJMP condition to its x86 j<cc> suffix.
var condSuffix = map[sm.Cond]string{
	sm.Zero: "z", sm.Nonzero: "nz",
}

// Generate lowers prog to x86 assembly text via a left fold: each step
// takes (env, emitted-so-far) and returns the updated pair. pos, parallel
// to prog, supplies the source position used to report
// an unsupported-instruction error; callers without per-instruction
// positions (e.g. sm.Parse output) may pass nil.
func Generate(prog sm.Program, pos []ast.Pos) (string, []string, error) {
	env := NewEnv()
	w := util.NewWriter()
	for i1, ins := range prog {
		var p ast.Pos
		if pos != nil && i1 < len(pos) {
			p = pos[i1]
		}
		var err error
		env, err = step(env, &w, ins, p)
		if err != nil {
			return "", nil, err
		}
	}
	return resolvePrologues(w.String(), env.Patches()), env.Globals(), nil
}

func disasm(ins sm.Instruction) string { return ins.String() }

// prologuePlaceholder returns the token BEGIN writes in place of the
// frame-size sub instruction for fn, backfilled by resolvePrologues once
// fn's END has reported its final frame-word count.
func prologuePlaceholder(fn string) string {
	return fmt.Sprintf("@@FRAME:%s@@\n", fn)
}

// resolvePrologues replaces each function's prologue placeholder with its
// actual stack reservation (or removes the line entirely if the function
// needed no frame at all), now that every END in patches has reported the
// function's final frame-word count.
func resolvePrologues(text string, patches map[string]int) string {
	for fn, words := range patches {
		token := prologuePlaceholder(fn)
		repl := ""
		if words > 0 {
			repl = fmt.Sprintf("\tsubl\t$%d, %s\n", 4*words, register_esp.String())
		}
		text = strings.Replace(text, token, repl, 1)
	}
	return text
}

func step(env Env, w *util.Writer, ins sm.Instruction, pos ast.Pos) (Env, error) {
	w.WriteString(fmt.Sprintf("\t# %s\n", disasm(ins)))
	switch ins.Code {
	case sm.CONST:
		s, e2 := env.Allocate()
		w.Ins2("movl", fmt.Sprintf("$%d", ins.N), s.String())
		return e2, nil

	case sm.LD:
		s, e2 := env.Allocate()
		move(w, env.Loc(ins.Loc), s)
		return e2, nil

	case sm.LDA:
		s, e2 := env.Allocate()
		w.Ins2("leal", env.Loc(ins.Loc).String(), register_eax.String())
		w.Ins2("movl", register_eax.String(), s.String())
		return e2, nil

	case sm.ST:
		top, err := env.Peek()
		if err != nil {
			return env, err
		}
		move(w, top, env.Loc(ins.Loc))
		return env, nil

	case sm.STI:
		x, y, e2, err := env.Pop2()
		if err != nil {
			return env, err
		}
		w.Ins2("movl", x.String(), register_eax.String())
		w.Ins2("movl", y.String(), register_edx.String())
		w.WriteString(fmt.Sprintf("\tmovl\t%s, (%s)\n", register_eax.String(), register_edx.String()))
		w.Ins2("movl", register_eax.String(), y.String())
		e2 = e2.Push(y)
		return e2, nil

	case sm.DROP:
		_, e2, err := env.Pop()
		return e2, err

	case sm.DUP:
		top, err := env.Peek()
		if err != nil {
			return env, err
		}
		s, e2 := env.Allocate()
		move(w, top, s)
		return e2, nil

	case sm.READ:
		s, e2 := env.Allocate()
		w.Ins1("call", "Lread")
		w.Ins2("movl", register_eax.String(), s.String())
		return e2, nil

	case sm.WRITE:
		s, e2, err := env.Pop()
		if err != nil {
			return env, err
		}
		w.Ins1("pushl", s.String())
		w.Ins1("call", "Lwrite")
		w.Ins1("popl", register_eax.String())
		return e2, nil

	case sm.BINOP:
		return binop(env, w, ins.Op)

	case sm.LABEL:
		if env.IsBarrier() {
			env = env.RetrieveStack(ins.Label)
		}
		w.Label(ins.Label)
		return env, nil

	case sm.JMP:
		env = env.SetStack(ins.Label)
		env = env.SetBarrier()
		w.Ins1("jmp", ins.Label)
		return env, nil

	case sm.CJMP:
		s, e2, err := env.Pop()
		if err != nil {
			return env, err
		}
		e2 = e2.SetStack(ins.Label)
		w.WriteString(fmt.Sprintf("\tcmpl\t$0, %s\n", s.String()))
		w.Ins1("j"+condSuffix[ins.Cond], ins.Label)
		return e2, nil

	case sm.BEGIN:
		env = env.EnterFunction(ins.Fun, ins.Locs)
		w.Ins1("pushl", register_ebp.String())
		w.Ins2("movl", register_esp.String(), register_ebp.String())
		// The frame also has to make room for whatever this function's body
		// spills past its declared locals (see Env.Allocate), and that count
		// isn't known until the body has been walked. Emit a placeholder here
		// and patch it with the real sub once END has seen the final count
		// (Generate does the patching after the fold finishes).
		w.WriteString(prologuePlaceholder(ins.Fun))
		return env, nil

	case sm.END:
		env = env.RecordFrame(env.CurrentFunction(), env.StackSlots())
		if env.CurrentFunction() == "main" {
			w.Ins2("movl", register_ebp.String(), register_esp.String())
			w.Ins1("popl", register_ebp.String())
			w.WriteString(fmt.Sprintf("\txorl\t%s, %s\n", register_eax.String(), register_eax.String()))
			w.WriteString("\tret\n")
			return env, nil
		}
		y, e2, err := env.Pop()
		if err != nil {
			return env, util.Internal("epilogue without a return value in a non-main function")
		}
		w.Ins2("movl", register_ebp.String(), register_esp.String())
		w.Ins1("popl", register_ebp.String())
		move(w, y, register_eax)
		w.WriteString("\tret\n")
		return e2, nil

	case sm.CALL:
		return call(env, w, ins)

	case sm.GLOBAL:
		return env.AddGlobal(ins.Name), nil

	default:
		return env, util.Unsupported(pos, ins.Code.String())
	}
}

// Named register constants used directly by gen.go (as opposed to the
// symbolic stack, which only ever allocates R(0..nRegs-1)).
var (
	register_eax = R(int(eax))
	register_edx = R(int(edx))
	register_ebp = R(int(ebp))
	register_esp = R(int(esp))
)

// move emits a mov from `from` to `to`. If both operands are memory-class
// (a symbolic stack slot or named memory), x86 cannot address both in one
// instruction, so the move is split through %eax.
func move(w *util.Writer, from, to Opnd) {
	if from.memClass() && to.memClass() {
		w.Ins2("movl", from.String(), register_eax.String())
		w.Ins2("movl", register_eax.String(), to.String())
		return
	}
	w.Ins2("movl", from.String(), to.String())
}

// binop lowers the arithmetic, comparison, and logical BINOP operators.
func binop(env Env, w *util.Writer, op sm.Op) (Env, error) {
	switch op {
	case sm.Add, sm.Sub, sm.Mul:
		x, y, e2, err := env.Pop2()
		if err != nil {
			return env, err
		}
		mnemonic := map[sm.Op]string{sm.Add: "addl", sm.Sub: "subl", sm.Mul: "imull"}[op]
		w.Ins2("movl", y.String(), register_eax.String())
		w.Ins2(mnemonic, x.String(), register_eax.String())
		w.Ins2("movl", register_eax.String(), y.String())
		return e2.Push(y), nil

	case sm.Div, sm.Mod:
		x, y, e2, err := env.Pop2()
		if err != nil {
			return env, err
		}
		w.Ins2("movl", y.String(), register_eax.String())
		w.WriteString("\tcltd\n")
		w.Ins1("idivl", x.String())
		if op == sm.Div {
			w.Ins2("movl", register_eax.String(), y.String())
		} else {
			w.Ins2("movl", register_edx.String(), y.String())
		}
		return e2.Push(y), nil

	case sm.Lt, sm.Le, sm.Eq, sm.Ne, sm.Gt, sm.Ge:
		x, y, e2, err := env.Pop2()
		if err != nil {
			return env, err
		}
		w.Ins2("movl", y.String(), register_edx.String())
		w.WriteString(fmt.Sprintf("\txorl\t%s, %s\n", register_eax.String(), register_eax.String()))
		w.WriteString(fmt.Sprintf("\tcmpl\t%s, %s\n", x.String(), register_edx.String()))
		w.Ins1("set"+cmpSuffix[op], "%al")
		w.Ins2("movl", register_eax.String(), y.String())
		return e2.Push(y), nil

	case sm.And, sm.Or:
		// Not short-circuiting: both operands are always evaluated, then
		// normalized to 0/1 and combined arithmetically. The source language
		// defines && and !! this way; do not "improve" it.
		x, y, e2, err := env.Pop2()
		if err != nil {
			return env, err
		}
		w.Ins2("movl", y.String(), register_eax.String())
		w.WriteString(fmt.Sprintf("\tandl\t%s, %s\n", register_eax.String(), register_eax.String()))
		w.Ins1("setne", "%al")
		w.Ins2("movl", x.String(), register_edx.String())
		w.WriteString(fmt.Sprintf("\tandl\t%s, %s\n", register_edx.String(), register_edx.String()))
		w.Ins1("setne", "%dl")
		if op == sm.And {
			w.WriteString("\tandb\t%dl, %al\n")
		} else {
			w.WriteString("\torb\t%dl, %al\n")
		}
		w.Ins1("setne", "%al")
		w.WriteString(fmt.Sprintf("\tmovzbl\t%%al, %s\n", register_eax.String()))
		w.Ins2("movl", register_eax.String(), y.String())
		return e2.Push(y), nil

	default:
		return env, util.Internal(fmt.Sprintf("unknown BINOP operator %q", op))
	}
}

// call implements the cdecl calling convention: live registers are
// computed before popping arguments, and arguments are pushed so that
// the first-evaluated (leftmost, source order) argument ends up nearest
// the callee's frame — Arg(0) — matching the declaration order AddArg
// assigns formal parameters in (src/sm/env.go). Caller-saved registers are
// preserved around the call.
func call(env Env, w *util.Writer, ins sm.Instruction) (Env, error) {
	live := env.LiveRegisters(ins.N)

	args := make([]Opnd, ins.N)
	var err error
	for i1 := 0; i1 < ins.N; i1++ {
		var a Opnd
		a, env, err = env.Pop()
		if err != nil {
			return env, err
		}
		args[i1] = a // args[0] = rightmost (last evaluated) argument
	}

	for _, r := range live {
		w.Ins1("pushl", r.String())
	}
	// args is already in reverse source order (args[0] = rightmost); pushing
	// it front-to-back pushes the rightmost argument first and the leftmost
	// last, so the leftmost lands at the lowest address (8(%ebp) = Arg(0)).
	for _, a := range args {
		w.Ins1("pushl", a.String())
	}
	w.Ins1("call", ins.Fun)
	if ins.N > 0 {
		w.WriteString(fmt.Sprintf("\taddl\t$%d, %s\n", 4*ins.N, register_esp.String()))
	}
	for i1 := len(live) - 1; i1 >= 0; i1-- {
		w.Ins1("popl", live[i1].String())
	}

	s, env2 := env.Allocate()
	w.Ins2("movl", register_eax.String(), s.String())
	return env2, nil
}
