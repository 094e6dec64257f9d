package ast

import (
	"encoding/json"
	"fmt"
)

// kindNames mirrors Kind's iota order; used for the JSON wire form so that
// source files stay stable across Kind renumbering.
var kindNames = [...]string{
	"const", "var", "ref", "binop", "assn", "seq", "skip", "read", "write",
	"if", "while", "repeat", "ignore", "call", "scope",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

func kindFromString(s string) (Kind, error) {
	for i1, e1 := range kindNames {
		if e1 == s {
			return Kind(i1), nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// wireNode is the on-disk JSON shape for Node: a flat, tagged record. The
// parser (out of scope for this module) is expected to emit this shape, or a
// caller can build Node values directly with the constructors in ast.go.
type wireNode struct {
	Kind   string     `json:"kind"`
	Line   int        `json:"line"`
	Col    int        `json:"col"`
	IntVal int        `json:"int,omitempty"`
	Name   string     `json:"name,omitempty"`
	Op     string     `json:"op,omitempty"`
	Left   *wireNode  `json:"left,omitempty"`
	Right  *wireNode  `json:"right,omitempty"`
	Lhs    *wireNode  `json:"lhs,omitempty"`
	Rhs    *wireNode  `json:"rhs,omitempty"`
	A      *wireNode  `json:"a,omitempty"`
	B      *wireNode  `json:"b,omitempty"`
	E      *wireNode  `json:"e,omitempty"`
	Cond   *wireNode  `json:"cond,omitempty"`
	Then   *wireNode  `json:"then,omitempty"`
	Else   *wireNode  `json:"else,omitempty"`
	Body   *wireNode  `json:"body,omitempty"`
	Args   []*wireNode `json:"args,omitempty"`
	Defs   []wireDef  `json:"defs,omitempty"`
}

type wireDef struct {
	Kind  string      `json:"kind"`
	Line  int         `json:"line"`
	Col   int         `json:"col"`
	Names []string    `json:"names,omitempty"`
	Name  string      `json:"name,omitempty"`
	Args  []string    `json:"args,omitempty"`
	Body  *wireNode   `json:"body,omitempty"`
}

func toWire(n *Node) *wireNode {
	if n == nil {
		return nil
	}
	w := &wireNode{
		Kind:   n.Kind.String(),
		Line:   n.Pos.Line,
		Col:    n.Pos.Col,
		IntVal: n.IntVal,
		Name:   n.Name,
		Op:     n.Op,
		Left:   toWire(n.Left),
		Right:  toWire(n.Right),
		Lhs:    toWire(n.Lhs),
		Rhs:    toWire(n.Rhs),
		A:      toWire(n.A),
		B:      toWire(n.B),
		E:      toWire(n.E),
		Cond:   toWire(n.Cond),
		Then:   toWire(n.Then),
		Else:   toWire(n.Else),
		Body:   toWire(n.Body),
	}
	for _, e1 := range n.CallArgs {
		w.Args = append(w.Args, toWire(e1))
	}
	for _, e1 := range n.Defs {
		d := wireDef{Line: e1.Pos.Line, Col: e1.Pos.Col, Names: e1.Names, Name: e1.Name, Args: e1.Args, Body: toWire(e1.Body)}
		if e1.Kind == DFun {
			d.Kind = "fun"
		} else {
			d.Kind = "local"
		}
		w.Defs = append(w.Defs, d)
	}
	return w
}

func fromWire(w *wireNode) (*Node, error) {
	if w == nil {
		return nil, nil
	}
	k, err := kindFromString(w.Kind)
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: k, Pos: Pos{Line: w.Line, Col: w.Col}, IntVal: w.IntVal, Name: w.Name, Op: w.Op}
	if n.Left, err = fromWire(w.Left); err != nil {
		return nil, err
	}
	if n.Right, err = fromWire(w.Right); err != nil {
		return nil, err
	}
	if n.Lhs, err = fromWire(w.Lhs); err != nil {
		return nil, err
	}
	if n.Rhs, err = fromWire(w.Rhs); err != nil {
		return nil, err
	}
	if n.A, err = fromWire(w.A); err != nil {
		return nil, err
	}
	if n.B, err = fromWire(w.B); err != nil {
		return nil, err
	}
	if n.E, err = fromWire(w.E); err != nil {
		return nil, err
	}
	if n.Cond, err = fromWire(w.Cond); err != nil {
		return nil, err
	}
	if n.Then, err = fromWire(w.Then); err != nil {
		return nil, err
	}
	if n.Else, err = fromWire(w.Else); err != nil {
		return nil, err
	}
	if n.Body, err = fromWire(w.Body); err != nil {
		return nil, err
	}
	for _, e1 := range w.Args {
		c, err := fromWire(e1)
		if err != nil {
			return nil, err
		}
		n.CallArgs = append(n.CallArgs, c)
	}
	for _, e1 := range w.Defs {
		body, err := fromWire(e1.Body)
		if err != nil {
			return nil, err
		}
		d := Def{Pos: Pos{Line: e1.Line, Col: e1.Col}, Names: e1.Names, Name: e1.Name, Args: e1.Args, Body: body}
		switch e1.Kind {
		case "fun":
			d.Kind = DFun
		case "local":
			d.Kind = DLocal
		default:
			return nil, fmt.Errorf("unknown def kind %q", e1.Kind)
		}
		n.Defs = append(n.Defs, d)
	}
	return n, nil
}

// Marshal serializes a Node tree to the JSON wire form, the sole contract
// between this module and an external parser.
func Marshal(n *Node) ([]byte, error) {
	return json.MarshalIndent(toWire(n), "", "  ")
}

// Unmarshal parses the JSON wire form back into a Node tree.
func Unmarshal(data []byte) (*Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(&w)
}
