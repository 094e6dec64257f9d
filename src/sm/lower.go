package sm

import (
	"fmt"

	"lamac/src/ast"
	"lamac/src/util"
)

// Compile lowers a whole program (the top-level Scope AST node handed in
// by the external parser) to an SM Program: a main label wrapping the
// top-level body, then an iterative drain of the pending-function queue so
// mutually recursive functions resolve regardless of declaration order.
func Compile(program *ast.Node) (Program, error) {
	env := NewEnv()
	var out Program

	out = append(out, Label("main"))
	body, env, err := compileExpr(program, env)
	if err != nil {
		return nil, err
	}
	out = append(out, Begin("main", 0, env.nLocals))
	out = append(out, body...)
	out = append(out, End())

	for {
		var funcs []pending
		funcs, env = env.GetFuns()
		if len(funcs) == 0 {
			break
		}
		for _, fn := range funcs {
			fEnv := env.BeginFun(fn.scopes)
			for _, a := range fn.args {
				fEnv = fEnv.AddArg(a)
			}
			var fbody Program
			fbody, fEnv, err = compileExpr(fn.body, fEnv)
			if err != nil {
				return nil, err
			}
			out = append(out, Label(fn.label))
			out = append(out, Begin(fn.label, len(fn.args), fEnv.nLocals))
			out = append(out, fbody...)
			out = append(out, End())
			// fEnv started from env, so its label counter and pending queue
			// (which BeginFun carries, and the body may have grown) are the
			// authoritative ones now. Threading them back keeps labels unique
			// across functions and drains nested declarations on the next
			// loop iteration.
			env.labels = fEnv.labels
			env.funcs = fEnv.funcs
		}
	}
	return out, nil
}

// compileExpr lowers a single AST node, threading env through recursive
// calls. Every value-producing construct leaves exactly one value on the
// symbolic stack; DROP is inserted where the source language discards a
// result (Ignore).
func compileExpr(n *ast.Node, env Env) (Program, Env, error) {
	switch n.Kind {
	case ast.KConst:
		return Program{Const(n.IntVal)}, env, nil

	case ast.KVar:
		loc, err := env.LookupVar(n.Pos, n.Name)
		if err != nil {
			return nil, env, err
		}
		return Program{LoadLoc(loc)}, env, nil

	case ast.KRef:
		loc, err := env.LookupVar(n.Pos, n.Name)
		if err != nil {
			return nil, env, err
		}
		return Program{LoadAddr(loc)}, env, nil

	case ast.KRead:
		loc, err := env.LookupVar(n.Pos, n.Name)
		if err != nil {
			return nil, env, err
		}
		return Program{Read(), Store(loc), Drop()}, env, nil

	case ast.KWrite:
		e, env, err := compileExpr(n.E, env)
		if err != nil {
			return nil, env, err
		}
		return append(e, Write()), env, nil

	case ast.KBinop:
		l, env, err := compileExpr(n.Left, env)
		if err != nil {
			return nil, env, err
		}
		r, env, err := compileExpr(n.Right, env)
		if err != nil {
			return nil, env, err
		}
		out := append(l, r...)
		return append(out, Binop(Op(n.Op))), env, nil

	case ast.KAssn:
		if n.Lhs.Kind == ast.KRef {
			loc, err := env.LookupVar(n.Lhs.Pos, n.Lhs.Name)
			if err != nil {
				return nil, env, err
			}
			e, env, err := compileExpr(n.Rhs, env)
			if err != nil {
				return nil, env, err
			}
			return append(e, Store(loc)), env, nil
		}
		lhs, env, err := compileExpr(n.Lhs, env)
		if err != nil {
			return nil, env, err
		}
		rhs, env, err := compileExpr(n.Rhs, env)
		if err != nil {
			return nil, env, err
		}
		out := append(lhs, rhs...)
		return append(out, StoreIndirect()), env, nil

	case ast.KSeq:
		a, env, err := compileExpr(n.A, env)
		if err != nil {
			return nil, env, err
		}
		b, env, err := compileExpr(n.B, env)
		if err != nil {
			return nil, env, err
		}
		return append(a, b...), env, nil

	case ast.KIgnore:
		e, env, err := compileExpr(n.E, env)
		if err != nil {
			return nil, env, err
		}
		return append(e, Drop()), env, nil

	case ast.KSkip:
		return Program{}, env, nil

	case ast.KIf:
		cond, env, err := compileExpr(n.Cond, env)
		if err != nil {
			return nil, env, err
		}
		lelse, env := env.GenLabel()
		lend, env := env.GenLabel()
		then, env, err := compileExpr(n.Then, env)
		if err != nil {
			return nil, env, err
		}
		out := append(Program{}, cond...)
		out = append(out, Cjmp(Zero, lelse))
		out = append(out, then...)
		out = append(out, Jmp(lend))
		out = append(out, Label(lelse))
		if n.Else != nil {
			els, env2, err := compileExpr(n.Else, env)
			if err != nil {
				return nil, env2, err
			}
			out = append(out, els...)
			env = env2
		}
		out = append(out, Label(lend))
		return out, env, nil

	case ast.KWhile:
		lbody, env := env.GenLabel()
		lcond, env := env.GenLabel()
		body, env, err := compileExpr(n.Body, env)
		if err != nil {
			return nil, env, err
		}
		cond, env, err := compileExpr(n.Cond, env)
		if err != nil {
			return nil, env, err
		}
		out := Program{Jmp(lcond), Label(lbody)}
		out = append(out, body...)
		out = append(out, Label(lcond))
		out = append(out, cond...)
		out = append(out, Cjmp(Nonzero, lbody))
		return out, env, nil

	case ast.KRepeat:
		lstart, env := env.GenLabel()
		body, env, err := compileExpr(n.Body, env)
		if err != nil {
			return nil, env, err
		}
		cond, env, err := compileExpr(n.Cond, env)
		if err != nil {
			return nil, env, err
		}
		out := Program{Label(lstart)}
		out = append(out, body...)
		out = append(out, cond...)
		out = append(out, Cjmp(Zero, lstart))
		return out, env, nil

	case ast.KCall:
		label, arity, err := env.LookupFun(n.Pos, n.Name)
		if err != nil {
			return nil, env, err
		}
		_ = arity // arity is checked by the external validator; not re-verified here.
		var out Program
		for _, a := range n.CallArgs {
			var e Program
			e, env, err = compileExpr(a, env)
			if err != nil {
				return nil, env, err
			}
			out = append(out, e...)
		}
		return append(out, Call(label, len(n.CallArgs))), env, nil

	case ast.KScope:
		return compileScope(n, env)

	default:
		return nil, env, util.Internal(fmt.Sprintf("lower: unhandled node kind %v", n.Kind))
	}
}

// compileScope handles a scope in three steps: (1) bind every definition
// once, accumulating a GLOBAL prelude for locals declared while already at
// global scope; (2) enqueue every function body via RememberFun, now that
// all sibling bindings (so mutual recursion) exist; (3) emit the prelude
// followed by the scope body, then leave the scope.
func compileScope(n *ast.Node, env Env) (Program, Env, error) {
	env = env.BeginScope()
	isGlobal := env.depth == 1
	var prelude Program

	type funcDecl struct {
		label string
		args  []string
		body  *ast.Node
	}
	var funcDecls []funcDecl

	for _, d := range n.Defs {
		if d.Kind == ast.DLocal {
			for _, name := range d.Names {
				if isGlobal {
					prelude = append(prelude, Global(name))
				}
				env = env.AddVar(name)
			}
		} else {
			label, env2 := env.GenFunLabel(d.Name)
			env = env2
			env = env.AddFun(d.Name, label, len(d.Args))
			funcDecls = append(funcDecls, funcDecl{label: label, args: d.Args, body: d.Body})
		}
	}

	for _, fd := range funcDecls {
		env = env.RememberFun(fd.label, fd.args, fd.body)
	}

	body, env, err := compileExpr(n.Body, env)
	if err != nil {
		return nil, env, err
	}

	out := append(Program{}, prelude...)
	out = append(out, body...)
	env = env.EndScope()
	return out, env, nil
}
