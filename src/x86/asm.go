package x86

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"lamac/src/ast"
	"lamac/src/sm"
)

// Output bundles a fully serialized assembly file: the .data section
// declares each global as a zero-initialized 32-bit cell, and the .text
// section holds the generated body.
type Output struct {
	Text string
}

// Assemble runs Generate over prog and serializes the result into a
// complete AT&T-syntax assembly file: a .global main directive, a .data
// section with one zero-initialized .int slot per global, and a .text
// section with the generated body. Lread, Lwrite, and the C runtime
// scaffolding around main are not emitted here; they are external symbols
// resolved at link time against the precompiled $LAMA_RUNTIME/runtime.o.
//
// Globals are emitted in sorted order so two runs of the same program match
// byte for byte, which matters for golden file tests and for reproducible
// builds.
func Assemble(prog sm.Program, pos []ast.Pos) (Output, error) {
	body, globals, err := Generate(prog, pos)
	if err != nil {
		return Output{}, err
	}
	slices.Sort(globals)

	var sb strings.Builder
	sb.WriteString("\t.global main\n")
	sb.WriteString("\t.data\n")
	for _, g := range globals {
		fmt.Fprintf(&sb, "global_%s:\t.int\t0\n", g)
	}
	sb.WriteString("\t.text\n")
	sb.WriteString(body)

	return Output{Text: sb.String()}, nil
}
