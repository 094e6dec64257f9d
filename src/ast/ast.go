// Package ast defines the syntax tree shape that the source language's
// lexer and parser hand to the compiler. Lexing and parsing themselves are
// out of scope for this module; ast is the sole contract with that external
// collaborator.
package ast

import "fmt"

// Pos is a source position, carried on every node so that naming errors can
// be reported as "msg at L:C".
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Kind discriminates the tagged union of expression/statement nodes.
type Kind int

const (
	KConst Kind = iota
	KVar
	KRef
	KBinop
	KAssn
	KSeq
	KSkip
	KRead
	KWrite
	KIf
	KWhile
	KRepeat
	KIgnore
	KCall
	KScope
)

// DefKind discriminates the two forms a Scope's definitions may take.
type DefKind int

const (
	DLocal DefKind = iota
	DFun
)

// Def is one definition inside a Scope: either a list of local names or a
// function declaration.
type Def struct {
	Kind DefKind
	Pos  Pos

	// DLocal
	Names []string

	// DFun
	Name string
	Args []string
	Body *Node
}

// Node is a single AST node. Only the fields relevant to Kind are
// populated, which keeps the recursive lowering in package sm a straight
// switch over Kind.
type Node struct {
	Kind Kind
	Pos  Pos

	// KConst
	IntVal int

	// KVar, KRef, KRead, KCall (Name = function name)
	Name string

	// KBinop
	Op    string
	Left  *Node
	Right *Node

	// KAssn
	Lhs *Node
	Rhs *Node

	// KSeq
	A *Node
	B *Node

	// KWrite, KIgnore: E
	// KIf: Cond, Then, Else (Else nil => no else branch)
	// KWhile: Cond, Body
	// KRepeat: Body, Cond
	E     *Node
	Cond  *Node
	Then  *Node
	Else  *Node
	Body  *Node

	// KCall
	CallArgs []*Node

	// KScope
	Defs []Def
}

// Const builds a Const node.
func Const(pos Pos, n int) *Node { return &Node{Kind: KConst, Pos: pos, IntVal: n} }

// Var builds a Var node.
func Var(pos Pos, name string) *Node { return &Node{Kind: KVar, Pos: pos, Name: name} }

// Ref builds a Ref node.
func Ref(pos Pos, name string) *Node { return &Node{Kind: KRef, Pos: pos, Name: name} }

// Binop builds a Binop node.
func Binop(pos Pos, op string, l, r *Node) *Node {
	return &Node{Kind: KBinop, Pos: pos, Op: op, Left: l, Right: r}
}

// Assn builds an Assn node.
func Assn(pos Pos, lhs, rhs *Node) *Node {
	return &Node{Kind: KAssn, Pos: pos, Lhs: lhs, Rhs: rhs}
}

// Seq builds a Seq node.
func Seq(pos Pos, a, b *Node) *Node { return &Node{Kind: KSeq, Pos: pos, A: a, B: b} }

// Skip builds a Skip node.
func Skip(pos Pos) *Node { return &Node{Kind: KSkip, Pos: pos} }

// Read builds a Read node.
func Read(pos Pos, name string) *Node { return &Node{Kind: KRead, Pos: pos, Name: name} }

// Write builds a Write node.
func Write(pos Pos, e *Node) *Node { return &Node{Kind: KWrite, Pos: pos, E: e} }

// If builds an If node. els may be nil.
func If(pos Pos, cond, then, els *Node) *Node {
	return &Node{Kind: KIf, Pos: pos, Cond: cond, Then: then, Else: els}
}

// While builds a While node.
func While(pos Pos, cond, body *Node) *Node {
	return &Node{Kind: KWhile, Pos: pos, Cond: cond, Body: body}
}

// Repeat builds a Repeat node (body runs at least once; loop while !cond).
func Repeat(pos Pos, body, cond *Node) *Node {
	return &Node{Kind: KRepeat, Pos: pos, Body: body, Cond: cond}
}

// Ignore builds an Ignore node (evaluate e, discard its value).
func Ignore(pos Pos, e *Node) *Node { return &Node{Kind: KIgnore, Pos: pos, E: e} }

// Call builds a Call node.
func Call(pos Pos, name string, args []*Node) *Node {
	return &Node{Kind: KCall, Pos: pos, Name: name, CallArgs: args}
}

// Scope builds a Scope node.
func Scope(pos Pos, defs []Def, body *Node) *Node {
	return &Node{Kind: KScope, Pos: pos, Defs: defs, Body: body}
}
