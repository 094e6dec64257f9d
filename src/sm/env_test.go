package sm

import (
	"testing"

	"lamac/src/ast"
)

func TestNewEnvStartsOutsideAnyScope(t *testing.T) {
	e := NewEnv()
	if e.depth != 0 {
		t.Fatalf("NewEnv depth = %d, want 0", e.depth)
	}
}

func TestTopLevelVarIsGlobal(t *testing.T) {
	e := NewEnv().BeginScope()
	e = e.AddVar("x")
	loc, err := e.LookupVar(ast.Pos{}, "x")
	if err != nil {
		t.Fatalf("LookupVar: %s", err)
	}
	if loc.Kind != KGlb || loc.Name != "x" {
		t.Fatalf("got %v, want Glb(x)", loc)
	}
}

func TestFunctionOwnLocalsAreNotGlobal(t *testing.T) {
	e := NewEnv().BeginScope()
	e = e.BeginFun(nil).BeginScope()
	e = e.AddVar("y")
	loc, err := e.LookupVar(ast.Pos{}, "y")
	if err != nil {
		t.Fatalf("LookupVar: %s", err)
	}
	if loc.Kind != KLoc || loc.Index != 0 {
		t.Fatalf("got %v, want Loc(0)", loc)
	}
}

func TestGenFunLabelStableAtGlobalScope(t *testing.T) {
	e := NewEnv().BeginScope()
	l1, e := e.GenFunLabel("fact")
	if l1 != "Lfact" {
		t.Fatalf("got %q, want %q", l1, "Lfact")
	}
	_ = e
}

func TestGenFunLabelUniquifiedWhenNested(t *testing.T) {
	e := NewEnv().BeginScope().BeginScope()
	l1, e := e.GenFunLabel("helper")
	l2, _ := e.GenFunLabel("helper")
	if l1 == l2 {
		t.Fatalf("expected distinct labels, got %q twice", l1)
	}
}

func TestLookupVarUndefined(t *testing.T) {
	e := NewEnv().BeginScope()
	if _, err := e.LookupVar(ast.Pos{}, "nope"); err == nil {
		t.Fatal("expected an error for an undefined name")
	}
}

func TestLookupVarOnFunctionNameFails(t *testing.T) {
	e := NewEnv().BeginScope()
	e = e.AddFun("f", "Lf", 0)
	if _, err := e.LookupVar(ast.Pos{}, "f"); err == nil {
		t.Fatal("expected LookupVar on a function binding to fail")
	}
}
