package sm

import "testing"

func TestProgramStringParseRoundTrip(t *testing.T) {
	prog := Program{
		Label("main"),
		Begin("main", 0, 1),
		Const(5),
		Store(Local(0)),
		Drop(),
		LoadLoc(Local(0)),
		LoadLoc(Local(0)),
		Binop(Mul),
		Write(),
		End(),
	}

	text := prog.String()
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if len(got) != len(prog) {
		t.Fatalf("got %d instructions, want %d", len(got), len(prog))
	}
	for i1 := range prog {
		if got[i1].String() != prog[i1].String() {
			t.Fatalf("instruction %d: got %q, want %q", i1, got[i1].String(), prog[i1].String())
		}
	}
}

func TestLocStringForms(t *testing.T) {
	cases := []struct {
		loc  Loc
		want string
	}{
		{Arg(2), "arg[2]"},
		{Local(3), "loc[3]"},
		{Glb("counter"), "counter"},
	}
	for _, c := range cases {
		if got := c.loc.String(); got != c.want {
			t.Errorf("Loc.String() = %q, want %q", got, c.want)
		}
	}
}
