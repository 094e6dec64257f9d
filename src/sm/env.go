package sm

import (
	"github.com/dolthub/swiss"

	"lamac/src/ast"
	"lamac/src/util"
)

// bindKind discriminates what a name table entry refers to.
type bindKind int

const (
	bindVar bindKind = iota
	bindFun
)

// binding is one entry in the compilation environment's name table: either
// a variable location or a function's label and arity.
type binding struct {
	kind  bindKind
	loc   Loc
	label string
	arity int
}

// pending is a function body queued for later compilation, captured with a
// deep copy of the enclosing environment's name table as it stood at the
// point of declaration.
type pending struct {
	label  string
	args   []string
	body   *ast.Node
	scopes []*swiss.Map[string, binding]
}

// Env is the SM-stage compilation environment: label counter, scope depth,
// the name table (stacked by lexical scope), local/arg counters, and the
// pending-function queue. Every method returns an updated Env value. The
// per-scope name maps are shared by pointer between copies of an Env, so
// AddArg, AddVar and AddFun also write into the innermost map that earlier
// copies holding the same scope see; BeginScope, EndScope and BeginFun
// build a new scope slice.
type Env struct {
	labels  util.Labeler
	depth   int
	scopes  []*swiss.Map[string, binding]
	nArgs   int
	nLocals int
	funcs   []pending
}

// NewEnv returns the environment at the very outermost level, before any
// scope has been entered. depth starts at 0 rather than 1 so that the
// first BeginScope call — made when lowering the program's own top-level
// Scope node — lands on depth 1, which is what AddVar/GenFunLabel treat as
// "global". BeginFun resets depth to 1 directly, so a
// function's own top-level scope lands on depth 2 instead: only names
// declared outside every function are globals.
func NewEnv() Env {
	return Env{}
}

// GenLabel returns a fresh "L<n>" label and the updated Env.
func (e Env) GenLabel() (string, Env) {
	l, labels := e.labels.Next()
	e.labels = labels
	return l, e
}

// GenFunLabel returns a label for function name: "L<name>" at global scope
// (depth 1, so top-level functions get readable, stable labels), else a
// uniquified "L<name>_<n>" for functions nested in an inner scope.
func (e Env) GenFunLabel(name string) (string, Env) {
	if e.depth == 1 {
		return "L" + name, e
	}
	l, labels := e.labels.Next()
	e.labels = labels
	return "L" + name + "_" + l[1:], e
}

// BeginScope pushes a new, empty lexical frame and increments scope depth.
func (e Env) BeginScope() Env {
	e.depth++
	scopes := make([]*swiss.Map[string, binding], len(e.scopes)+1)
	copy(scopes, e.scopes)
	scopes[len(scopes)-1] = swiss.NewMap[string, binding](8)
	e.scopes = scopes
	return e
}

// EndScope pops the innermost lexical frame and decrements scope depth.
func (e Env) EndScope() Env {
	e.depth--
	scopes := make([]*swiss.Map[string, binding], len(e.scopes)-1)
	copy(scopes, e.scopes[:len(e.scopes)-1])
	e.scopes = scopes
	return e
}

func (e Env) innermost() *swiss.Map[string, binding] {
	return e.scopes[len(e.scopes)-1]
}

// AddArg binds name to the next argument slot.
func (e Env) AddArg(name string) Env {
	e.innermost().Put(name, binding{kind: bindVar, loc: Arg(e.nArgs)})
	e.nArgs++
	return e
}

// AddVar binds name to a global (at depth 1) or the next local slot
// (otherwise).
func (e Env) AddVar(name string) Env {
	if e.depth == 1 {
		e.innermost().Put(name, binding{kind: bindVar, loc: Glb(name)})
	} else {
		e.innermost().Put(name, binding{kind: bindVar, loc: Local(e.nLocals)})
		e.nLocals++
	}
	return e
}

// AddFun binds name to a function of the given label and arity.
func (e Env) AddFun(name, label string, arity int) Env {
	e.innermost().Put(name, binding{kind: bindFun, label: label, arity: arity})
	return e
}

// cloneScopes deep-copies the scope stack so a captured pending function
// snapshot is immune to later mutation of the live environment.
func cloneScopes(scopes []*swiss.Map[string, binding]) []*swiss.Map[string, binding] {
	out := make([]*swiss.Map[string, binding], len(scopes))
	for i1, e1 := range scopes {
		m := swiss.NewMap[string, binding](uint32(e1.Count()))
		e1.Iter(func(k string, v binding) bool {
			m.Put(k, v)
			return false
		})
		out[i1] = m
	}
	return out
}

// BeginFun resets the environment to a fresh function (depth 1 relative to
// the function, argument/local counters at zero) while keeping capturedState
// as the enclosing scope stack, so names declared outside the function are
// still visible inside it; the caller then adds the formal parameters on
// top of that state.
func (e Env) BeginFun(capturedScopes []*swiss.Map[string, binding]) Env {
	e.depth = 1
	e.nArgs = 0
	e.nLocals = 0
	scopes := make([]*swiss.Map[string, binding], len(capturedScopes)+1)
	copy(scopes, capturedScopes)
	scopes[len(scopes)-1] = swiss.NewMap[string, binding](8)
	e.scopes = scopes
	// funcs (the pending queue) is carried across BeginFun deliberately:
	// compiling a function body may enqueue further nested functions.
	return e
}

// RememberFun enqueues body for later compilation at label, capturing a
// deep copy of the current scope stack.
func (e Env) RememberFun(label string, args []string, body *ast.Node) Env {
	e.funcs = append(e.funcs, pending{label: label, args: args, body: body, scopes: cloneScopes(e.scopes)})
	return e
}

// GetFuns returns the currently queued pending functions and an Env with
// the queue cleared. Clearing matters because the drain is iterative:
// compiling a queued body may itself call RememberFun and add more work.
func (e Env) GetFuns() ([]pending, Env) {
	funcs := e.funcs
	e.funcs = nil
	return funcs, e
}

// LookupVar resolves name to a variable location. It fails if name is
// undefined or bound to a function.
func (e Env) LookupVar(pos ast.Pos, name string) (Loc, error) {
	b, ok := e.lookup(name)
	if !ok {
		return Loc{}, util.Undefined(pos, name)
	}
	if b.kind != bindVar {
		return Loc{}, util.NotVariable(pos, name)
	}
	return b.loc, nil
}

// LookupFun resolves name to a function label and arity. It fails if name
// is undefined or bound to a variable.
func (e Env) LookupFun(pos ast.Pos, name string) (label string, arity int, err error) {
	b, ok := e.lookup(name)
	if !ok {
		return "", 0, util.Undefined(pos, name)
	}
	if b.kind != bindFun {
		return "", 0, util.NotFunction(pos, name)
	}
	return b.label, b.arity, nil
}

func (e Env) lookup(name string) (binding, bool) {
	for i1 := len(e.scopes) - 1; i1 >= 0; i1-- {
		if b, ok := e.scopes[i1].Get(name); ok {
			return b, true
		}
	}
	return binding{}, false
}
