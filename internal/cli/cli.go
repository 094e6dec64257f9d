// Package cli wires the sm/x86/ast pipeline to a command line, in the shape
// of nenuphar's internal/maincmd package: a Cmd struct bound by
// github.com/mna/mainer's reflection-based flag parser, a single Main entry
// point returning a mainer.ExitCode, and a context cancelled on SIGINT so a
// hung child gcc process can be interrupted.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mna/mainer"

	"lamac/src/ast"
	"lamac/src/sm"
	"lamac/src/util"
	"lamac/src/x86"
)

// toolchainError wraps a nonzero exit from the external gcc invocation so
// Main can propagate that exact code as the compiler's own exit code,
// rather than collapsing every failure to the generic mainer.Failure.
type toolchainError struct {
	code int
	err  error
}

func (e toolchainError) Error() string { return e.err.Error() }
func (e toolchainError) Unwrap() error { return e.err }

const binName = "lamac"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <source.json> [-o <B>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <source.json> [-o <B>]
       %[1]s -h|--help
       %[1]s -v|--version

Compiles the JSON AST contract of an imperative expression language down to
a 32-bit x86 binary, via a stack-machine intermediate form.

Reads <source.json> if given, stdin otherwise.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --vb                      Verbose: echo each build step to stderr.
       --sm                      Print the SM textual form and exit; no
                                 assembler or linker is invoked.
       -S                        Emit the generated assembly (<B>.s) and
                                 stop; do not invoke gcc.
       -o <B>                    Base name for generated files (default
                                 "a").

Environment variables:
       LAMA_RUNTIME              Directory containing runtime.o, the
                                 precompiled object providing Lread/Lwrite
                                 (default "../runtime").
`, binName)
)

// Cmd is the lamac command. Its exported fields are bound from flags by
// mainer.Parser; unexported fields hold the parsed positional arguments.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool   `flag:"h,help"`
	Version bool   `flag:"v,version"`
	Verbose bool   `flag:"vb"`
	EmitSM  bool   `flag:"sm"`
	EmitAsm bool   `flag:"S"`
	Out     string `flag:"o"`

	args []string
}

// SetArgs records the positional (non-flag) arguments, per the
// mainer.Parser contract.
func (c *Cmd) SetArgs(args []string) { c.args = args }

// SetFlags records which boolean flags were explicitly present, per the
// mainer.Parser contract. lamac has no flag whose meaning depends on
// whether it was set versus defaulted, so this is a no-op.
func (c *Cmd) SetFlags(map[string]bool) {}

// Validate rejects argument combinations Main cannot act on.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		return fmt.Errorf("at most one source file may be given, got %d", len(c.args))
	}
	if c.EmitSM && c.EmitAsm {
		return fmt.Errorf("--sm and -S are mutually exclusive")
	}
	if c.Out == "" {
		c.Out = "a"
	}
	return nil
}

// Main parses flags, runs the requested pipeline stage, and returns the
// process exit code: mainer.Success/Failure/InvalidArgs, or the exit code
// of the gcc child process when the full compile-assemble-link path runs.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: true, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	var source string
	if len(c.args) == 1 {
		source = c.args[0]
	}
	if err := c.run(ctx, stdio, source); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		var tc toolchainError
		if errors.As(err, &tc) {
			return mainer.ExitCode(tc.code)
		}
		return mainer.Failure
	}
	return mainer.Success
}

func (c *Cmd) run(ctx context.Context, stdio mainer.Stdio, source string) error {
	c.logStep(stdio, "reading source")
	text, err := util.ReadSource(source)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	c.logStep(stdio, "parsing AST contract")
	program, err := ast.Unmarshal([]byte(text))
	if err != nil {
		return fmt.Errorf("decoding AST: %w", err)
	}

	c.logStep(stdio, "lowering to SM")
	prog, err := sm.Compile(program)
	if err != nil {
		return err
	}

	if c.EmitSM {
		fmt.Fprint(stdio.Stdout, prog.String())
		return nil
	}
	if c.Verbose {
		fmt.Fprint(stdio.Stderr, prog.String())
	}

	c.logStep(stdio, "generating x86")
	out, err := x86.Assemble(prog, nil)
	if err != nil {
		return err
	}

	asmPath := c.Out + ".s"
	if err := util.WriteFile(asmPath, out.Text); err != nil {
		return fmt.Errorf("writing %s: %w", asmPath, err)
	}
	if c.EmitAsm {
		return nil
	}

	return c.link(ctx, stdio, asmPath)
}

// link invokes the external C toolchain: gcc -g -m32 -o <B>
// <runtime>/runtime.o <B>.s. Its exit code, when nonzero, is surfaced as an
// error carrying that code so Main's caller can tell a toolchain failure
// from an upstream compile failure.
func (c *Cmd) link(ctx context.Context, stdio mainer.Stdio, asmPath string) error {
	runtimeDir := os.Getenv("LAMA_RUNTIME")
	if runtimeDir == "" {
		runtimeDir = "../runtime"
	}
	runtimeObj := filepath.Join(runtimeDir, "runtime.o")

	c.logStep(stdio, fmt.Sprintf("linking with gcc (runtime: %s)", runtimeObj))
	cmd := exec.CommandContext(ctx, "gcc", "-g", "-m32", "-o", c.Out, runtimeObj, asmPath)
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return toolchainError{code: ee.ExitCode(), err: fmt.Errorf("gcc failed with exit code %d", ee.ExitCode())}
		}
		return fmt.Errorf("running gcc: %w", err)
	}
	return nil
}

func (c *Cmd) logStep(stdio mainer.Stdio, msg string) {
	if c.Verbose {
		fmt.Fprintf(stdio.Stderr, "lamac: %s\n", msg)
	}
}
