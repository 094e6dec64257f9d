package x86_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lamac/src/sm"
	"lamac/src/x86"
)

func TestLocMapping(t *testing.T) {
	env := x86.NewEnv()

	require.Equal(t, "8(%ebp)", env.Loc(sm.Arg(0)).String())
	require.Equal(t, "12(%ebp)", env.Loc(sm.Arg(1)).String())
	require.Equal(t, "-4(%ebp)", env.Loc(sm.Local(0)).String())
	require.Equal(t, "-8(%ebp)", env.Loc(sm.Local(1)).String())
	require.Equal(t, "global_counter", env.Loc(sm.Glb("counter")).String())
}

func TestAllocateFillsRegistersThenSpillsToStack(t *testing.T) {
	env := x86.NewEnv()

	r0, env := env.Allocate()
	require.Equal(t, "%ebx", r0.String())

	r1, env := env.Allocate()
	require.Equal(t, "%ecx", r1.String())

	r2, env := env.Allocate()
	require.Equal(t, "%esi", r2.String())

	s0, env := env.Allocate()
	require.Equal(t, "-4(%ebp)", s0.String())

	s1, _ := env.Allocate()
	require.Equal(t, "-8(%ebp)", s1.String())
}

func TestLiveRegistersBelowCallArguments(t *testing.T) {
	env := x86.NewEnv()
	var a, b, c, d x86.Opnd
	a, env = env.Allocate() // %ebx
	b, env = env.Allocate() // %ecx
	c, env = env.Allocate() // %esi
	d, env = env.Allocate() // spills to -4(%ebp)
	_ = a
	_ = d

	live := env.LiveRegisters(2) // top 2 (c, d) are the call's args
	require.Len(t, live, 2)
	require.Equal(t, "%ebx", live[0].String())
	require.Equal(t, "%ecx", live[1].String())
	_ = b
	_ = c
}

func TestGenerateWriteConstant(t *testing.T) {
	prog := sm.Program{
		sm.Label("main"),
		sm.Begin("main", 0, 0),
		sm.Const(7),
		sm.Write(),
		sm.End(),
	}
	text, globals, err := x86.Generate(prog, nil)
	require.NoError(t, err)
	require.Empty(t, globals)
	require.True(t, strings.Contains(text, "call\tLwrite"))
	require.True(t, strings.Contains(text, "main:"))
}

func TestAllocateSkipsDeclaredLocalSlots(t *testing.T) {
	// A function declares one local (Loc(0) -> -4(%ebp)); once its body
	// exhausts the three usable registers, the first spill must not reuse
	// that same -4(%ebp) slot.
	env := x86.NewEnv().EnterFunction("f", 1)

	var r0, r1, r2, s0 x86.Opnd
	r0, env = env.Allocate()
	r1, env = env.Allocate()
	r2, env = env.Allocate()
	s0, _ = env.Allocate()

	require.Equal(t, "%ebx", r0.String())
	require.Equal(t, "%ecx", r1.String())
	require.Equal(t, "%esi", r2.String())
	require.Equal(t, "-8(%ebp)", s0.String(), "first spill must land past the declared local at -4(%ebp)")
}

func TestGenerateSizesFrameForLocalsAndSpills(t *testing.T) {
	// f declares 1 local and holds 4 simultaneous live values (3 registers
	// plus a spill), so its frame must reserve both the local and the spill:
	// 2 words, "subl $8, %esp".
	prog := sm.Program{
		sm.Label("main"),
		sm.Begin("main", 0, 0),
		sm.Const(0),
		sm.Call("f", 0),
		sm.Drop(),
		sm.End(),

		sm.Label("Lf"),
		sm.Begin("f", 0, 1),
		sm.Const(1), // %ebx
		sm.Const(2), // %ecx
		sm.Const(3), // %esi
		sm.Const(4), // spills to -8(%ebp), since -4(%ebp) is f's local
		sm.Drop(),
		sm.Drop(),
		sm.Drop(),
		sm.Drop(),
		sm.Const(0),
		sm.End(),
	}
	text, _, err := x86.Generate(prog, nil)
	require.NoError(t, err)
	require.True(t, strings.Contains(text, "subl\t$8, %esp"), "expected an 8-byte frame for f, got:\n%s", text)
	require.False(t, strings.Contains(text, "@@FRAME"), "prologue placeholder must be fully resolved:\n%s", text)
}

func TestAssembleEmitsSortedGlobals(t *testing.T) {
	prog := sm.Program{
		sm.Label("main"),
		sm.Global("z"),
		sm.Global("a"),
		sm.Begin("main", 0, 0),
		sm.Const(0),
		sm.Store(sm.Glb("z")),
		sm.Drop(),
		sm.End(),
	}
	out, err := x86.Assemble(prog, nil)
	require.NoError(t, err)

	ia := strings.Index(out.Text, "global_a:")
	iz := strings.Index(out.Text, "global_z:")
	require.True(t, ia >= 0 && iz >= 0 && ia < iz, "expected global_a before global_z in sorted output")
}

func TestGenerateSpillsPastRegisters(t *testing.T) {
	// Four values live at once: the fourth must land in a stack slot, and
	// main's frame must reserve it.
	prog := sm.Program{
		sm.Label("main"),
		sm.Begin("main", 0, 0),
		sm.Const(1), // %ebx
		sm.Const(2), // %ecx
		sm.Const(3), // %esi
		sm.Const(4), // -4(%ebp)
		sm.Binop(sm.Add),
		sm.Binop(sm.Add),
		sm.Binop(sm.Add),
		sm.Write(),
		sm.End(),
	}
	text, _, err := x86.Generate(prog, nil)
	require.NoError(t, err)
	require.Contains(t, text, "-4(%ebp)")
	require.Contains(t, text, "subl\t$4, %esp")
}

func TestGenerateJoinLabelsEmittedOnce(t *testing.T) {
	// An if/else diamond: L0 (else) is reached with the barrier set (right
	// after the then-branch's JMP), L1 (end) with the barrier clear
	// (fallthrough from the else branch). Each label must appear exactly once.
	prog := sm.Program{
		sm.Label("main"),
		sm.Begin("main", 0, 0),
		sm.Const(1),
		sm.Cjmp(sm.Zero, "L0"),
		sm.Const(10),
		sm.Jmp("L1"),
		sm.Label("L0"),
		sm.Const(20),
		sm.Label("L1"),
		sm.Write(),
		sm.End(),
	}
	text, _, err := x86.Generate(prog, nil)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(text, "L0:"))
	require.Equal(t, 1, strings.Count(text, "L1:"))
}

func TestGenerateCallPreservesLiveRegisters(t *testing.T) {
	// %ebx holds an unrelated live value across the call; it must be pushed
	// before the argument pushes and popped after the stack cleanup.
	prog := sm.Program{
		sm.Label("main"),
		sm.Begin("main", 0, 0),
		sm.Const(7), // %ebx, live across the call
		sm.Const(1), // %ecx, the call argument
		sm.Call("Lf", 1),
		sm.Binop(sm.Add),
		sm.Write(),
		sm.End(),

		sm.Label("Lf"),
		sm.Begin("Lf", 1, 0),
		sm.Const(0),
		sm.End(),
	}
	text, _, err := x86.Generate(prog, nil)
	require.NoError(t, err)

	iPush := strings.Index(text, "pushl\t%ebx")
	iCall := strings.Index(text, "call\tLf")
	iPop := strings.Index(text, "popl\t%ebx")
	require.True(t, iPush >= 0 && iCall >= 0 && iPop >= 0, "missing save/call/restore:\n%s", text)
	require.True(t, iPush < iCall && iCall < iPop, "save/restore must bracket the call:\n%s", text)
	require.Contains(t, text, "addl\t$4, %esp")
}

func TestGenerateUnsupportedInstructionReported(t *testing.T) {
	prog := sm.Program{{Code: sm.Code(99)}}
	_, _, err := x86.Generate(prog, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not yet implemented")
}

func TestGenerateMainEpilogueZeroesEAX(t *testing.T) {
	prog := sm.Program{
		sm.Label("main"),
		sm.Begin("main", 0, 0),
		sm.End(),
	}
	text, _, err := x86.Generate(prog, nil)
	require.NoError(t, err)
	require.Contains(t, text, "xorl\t%eax, %eax")
}
