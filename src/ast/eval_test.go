package ast

import (
	"strings"
	"testing"
)

// program builds a Scope(defs, body) at 1:1, the shape every test program in
// this package starts from.
func program(defs []Def, body *Node) *Node {
	return Scope(Pos{1, 1}, defs, body)
}

func TestEvalArithmetic(t *testing.T) {
	// write(1 + 2*3)
	mul := Binop(Pos{1, 1}, "*", Const(Pos{1, 1}, 2), Const(Pos{1, 1}, 3))
	add := Binop(Pos{1, 1}, "+", Const(Pos{1, 1}, 1), mul)
	p := program(nil, Write(Pos{1, 1}, add))

	var out strings.Builder
	ev := NewEval(strings.NewReader(""), &out)
	if err := ev.Run(p); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if got := strings.TrimSpace(out.String()); got != "7" {
		t.Fatalf("got %q, want %q", got, "7")
	}
}

func TestEvalWhileLoop(t *testing.T) {
	// local n = 10, s = 0; while n > 0 do s := s + n; n := n - 1 od; write(s)
	defs := []Def{{Kind: DLocal, Names: []string{"n", "s"}}}
	cond := Binop(Pos{1, 1}, ">", Var(Pos{1, 1}, "n"), Const(Pos{1, 1}, 0))
	assnS := Assn(Pos{1, 1}, Ref(Pos{1, 1}, "s"), Binop(Pos{1, 1}, "+", Var(Pos{1, 1}, "s"), Var(Pos{1, 1}, "n")))
	assnN := Assn(Pos{1, 1}, Ref(Pos{1, 1}, "n"), Binop(Pos{1, 1}, "-", Var(Pos{1, 1}, "n"), Const(Pos{1, 1}, 1)))
	body := Seq(Pos{1, 1}, Ignore(Pos{1, 1}, assnS), Ignore(Pos{1, 1}, assnN))
	loop := While(Pos{1, 1}, cond, body)
	initN := Assn(Pos{1, 1}, Ref(Pos{1, 1}, "n"), Const(Pos{1, 1}, 10))
	top := Seq(Pos{1, 1}, Ignore(Pos{1, 1}, initN),
		Seq(Pos{1, 1}, Ignore(Pos{1, 1}, loop), Write(Pos{1, 1}, Var(Pos{1, 1}, "s"))))
	p := program(defs, top)

	var out strings.Builder
	ev := NewEval(strings.NewReader(""), &out)
	if err := ev.Run(p); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if got := strings.TrimSpace(out.String()); got != "55" {
		t.Fatalf("got %q, want %q", got, "55")
	}
}

func TestEvalRecursiveFactorial(t *testing.T) {
	// fun fact(n) { if n == 0 then 1 else n * fact(n-1) fi } write(fact(5))
	isZero := Binop(Pos{2, 1}, "==", Var(Pos{2, 1}, "n"), Const(Pos{2, 1}, 0))
	rec := Call(Pos{2, 1}, "fact", []*Node{Binop(Pos{2, 1}, "-", Var(Pos{2, 1}, "n"), Const(Pos{2, 1}, 1))})
	then := Const(Pos{2, 1}, 1)
	els := Binop(Pos{2, 1}, "*", Var(Pos{2, 1}, "n"), rec)
	fact := If(Pos{2, 1}, isZero, then, els)
	defs := []Def{{Kind: DFun, Name: "fact", Args: []string{"n"}, Body: fact}}
	call := Call(Pos{1, 1}, "fact", []*Node{Const(Pos{1, 1}, 5)})
	p := program(defs, Write(Pos{1, 1}, call))

	var out strings.Builder
	ev := NewEval(strings.NewReader(""), &out)
	if err := ev.Run(p); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if got := strings.TrimSpace(out.String()); got != "120" {
		t.Fatalf("got %q, want %q", got, "120")
	}
}

func TestEvalReadAndWrite(t *testing.T) {
	// local a, b; read(a); read(b); write(a+b); write(a-b)
	defs := []Def{{Kind: DLocal, Names: []string{"a", "b"}}}
	readA := Read(Pos{1, 1}, "a")
	readB := Read(Pos{1, 1}, "b")
	sum := Write(Pos{1, 1}, Binop(Pos{1, 1}, "+", Var(Pos{1, 1}, "a"), Var(Pos{1, 1}, "b")))
	diff := Write(Pos{1, 1}, Binop(Pos{1, 1}, "-", Var(Pos{1, 1}, "a"), Var(Pos{1, 1}, "b")))
	top := Seq(Pos{1, 1}, readA, Seq(Pos{1, 1}, readB, Seq(Pos{1, 1}, sum, diff)))
	p := program(defs, top)

	var out strings.Builder
	ev := NewEval(strings.NewReader("3 4"), &out)
	if err := ev.Run(p); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if got := strings.TrimSpace(out.String()); got != "7\n-1" {
		t.Fatalf("got %q, want %q", got, "7\\n-1")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	defs := []Def{{Kind: DLocal, Names: []string{"x"}}}
	p := program(defs, Write(Pos{1, 1}, Binop(Pos{1, 1}, "*", Var(Pos{1, 1}, "x"), Var(Pos{1, 1}, "x"))))

	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %s", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}
	if got.Kind != KScope || got.Body.Kind != KWrite {
		t.Fatalf("round trip did not preserve shape: %+v", got)
	}
}
