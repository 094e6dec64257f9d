package ast

import (
	"fmt"
	"io"
)

// Eval is a small tree-walking reference evaluator. It is test
// infrastructure only, the oracle the SM interpreter's output is compared
// against; it is not a second compiler backend and makes no attempt at the
// performance or error-reporting quality of the real pipeline.
type Eval struct {
	In  io.Reader
	Out io.Writer

	globals map[string]int
	frames  []frame
}

type frame struct {
	args   []int
	locals map[string]int
}

type funDef struct {
	args []string
	body *Node
}

// NewEval returns an evaluator reading READ input from in and writing WRITE
// output (one value per line) to out.
func NewEval(in io.Reader, out io.Writer) *Eval {
	return &Eval{In: in, Out: out, globals: map[string]int{}}
}

// Run evaluates program, a Scope node at the top level, per evalExpr
// semantics in Testable Property 1.
func (ev *Eval) Run(program *Node) error {
	funs := map[string]funDef{}
	_, err := ev.eval(program, funs)
	return err
}

func (ev *Eval) lookup(name string) (int, bool) {
	if len(ev.frames) > 0 {
		f := ev.frames[len(ev.frames)-1]
		if v, ok := f.locals[name]; ok {
			return v, true
		}
	}
	if v, ok := ev.globals[name]; ok {
		return v, true
	}
	return 0, false
}

func (ev *Eval) assign(name string, v int) {
	if len(ev.frames) > 0 {
		f := &ev.frames[len(ev.frames)-1]
		if _, ok := f.locals[name]; ok {
			f.locals[name] = v
			return
		}
	}
	ev.globals[name] = v
}

func (ev *Eval) eval(n *Node, funs map[string]funDef) (int, error) {
	switch n.Kind {
	case KConst:
		return n.IntVal, nil
	case KVar:
		v, ok := ev.lookup(n.Name)
		if !ok {
			return 0, fmt.Errorf("name %s is undefined at %s", n.Name, n.Pos)
		}
		return v, nil
	case KRef:
		// The reference evaluator has no addresses; it resolves a Ref the same
		// way as a Var read, which is sufficient for the value-level
		// cross-check this type exists for.
		v, _ := ev.lookup(n.Name)
		return v, nil
	case KBinop:
		l, err := ev.eval(n.Left, funs)
		if err != nil {
			return 0, err
		}
		r, err := ev.eval(n.Right, funs)
		if err != nil {
			return 0, err
		}
		return binop(n.Op, l, r), nil
	case KAssn:
		v, err := ev.eval(n.Rhs, funs)
		if err != nil {
			return 0, err
		}
		ev.assign(n.Lhs.Name, v)
		return v, nil
	case KSeq:
		if _, err := ev.eval(n.A, funs); err != nil {
			return 0, err
		}
		return ev.eval(n.B, funs)
	case KSkip:
		return 0, nil
	case KRead:
		var v int
		if _, err := fmt.Fscan(ev.In, &v); err != nil {
			return 0, fmt.Errorf("read: %w", err)
		}
		ev.assign(n.Name, v)
		return 0, nil
	case KWrite:
		v, err := ev.eval(n.E, funs)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(ev.Out, "%d\n", v)
		return 0, nil
	case KIf:
		c, err := ev.eval(n.Cond, funs)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return ev.eval(n.Then, funs)
		} else if n.Else != nil {
			return ev.eval(n.Else, funs)
		}
		return 0, nil
	case KWhile:
		for {
			c, err := ev.eval(n.Cond, funs)
			if err != nil {
				return 0, err
			}
			if c == 0 {
				return 0, nil
			}
			if _, err := ev.eval(n.Body, funs); err != nil {
				return 0, err
			}
		}
	case KRepeat:
		for {
			if _, err := ev.eval(n.Body, funs); err != nil {
				return 0, err
			}
			c, err := ev.eval(n.Cond, funs)
			if err != nil {
				return 0, err
			}
			if c != 0 {
				return 0, nil
			}
		}
	case KIgnore:
		_, err := ev.eval(n.E, funs)
		return 0, err
	case KCall:
		fd, ok := funs[n.Name]
		if !ok {
			return 0, fmt.Errorf("%s does not designate a function at %s", n.Name, n.Pos)
		}
		args := make([]int, len(n.CallArgs))
		for i1, e1 := range n.CallArgs {
			v, err := ev.eval(e1, funs)
			if err != nil {
				return 0, err
			}
			args[i1] = v
		}
		locals := map[string]int{}
		for i1, e1 := range fd.args {
			locals[e1] = args[i1]
		}
		ev.frames = append(ev.frames, frame{args: args, locals: locals})
		v, err := ev.eval(fd.body, funs)
		ev.frames = ev.frames[:len(ev.frames)-1]
		return v, err
	case KScope:
		inner := make(map[string]funDef, len(funs))
		for k, v := range funs {
			inner[k] = v
		}
		for _, d := range n.Defs {
			if d.Kind == DFun {
				inner[d.Name] = funDef{args: d.Args, body: d.Body}
			} else {
				for _, name := range d.Names {
					ev.assign(name, 0)
				}
			}
		}
		return ev.eval(n.Body, inner)
	default:
		return 0, fmt.Errorf("eval: unhandled node kind %v", n.Kind)
	}
}

func binop(op string, l, r int) int {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case "+":
		return l + r
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		return l / r
	case "%":
		return l % r
	case "<":
		return b2i(l < r)
	case "<=":
		return b2i(l <= r)
	case "==":
		return b2i(l == r)
	case "!=":
		return b2i(l != r)
	case ">":
		return b2i(l > r)
	case ">=":
		return b2i(l >= r)
	case "&&":
		return b2i(l != 0 && r != 0)
	case "!!":
		return b2i(l != 0 || r != 0)
	}
	panic("eval: unknown binop " + op)
}
