// Package util holds the small pieces of ambient machinery shared by the
// sm and x86 packages: positioned compile errors, an AT&T-syntax line
// writer, and a generic stack. The compiler is single-threaded and
// synchronous throughout, so none of this carries locks or channels.
package util

import (
	"fmt"

	"lamac/src/ast"
)

// CompileError is a fatal, positioned error: naming errors and
// unsupported-instruction errors are reported as "<msg> at L:C".
type CompileError struct {
	Pos ast.Pos
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s at %s", e.Msg, e.Pos)
}

// Undefined reports that name has no binding in scope.
func Undefined(pos ast.Pos, name string) error {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf("name %q is undefined", name)}
}

// NotVariable reports that name is bound, but to a function.
func NotVariable(pos ast.Pos, name string) error {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf("%q does not designate a variable", name)}
}

// NotFunction reports that name is bound, but not to a function.
func NotFunction(pos ast.Pos, name string) error {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf("%q does not designate a function", name)}
}

// Unsupported reports a codegen rule gap: an SM instruction for which the
// x86 lowering has no case. This indicates a malformed SM program, not user
// error, but is reported in the same positioned shape.
func Unsupported(pos ast.Pos, insn string) error {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf("codegeneration for %s is not yet implemented", insn)}
}

// Internal reports a pattern-exhaustion / invariant violation inside
// codegen (e.g. pop on an empty symbolic stack). These never trigger on
// valid SM input; when they do, they are bugs in this compiler, not in the
// compiled program.
func Internal(msg string) error {
	return fmt.Errorf("internal error: %s", msg)
}
