package cli_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"

	"lamac/internal/cli"
	"lamac/src/ast"
)

func TestValidateRejectsMultipleSources(t *testing.T) {
	c := &cli.Cmd{}
	c.SetArgs([]string{"a.json", "b.json"})
	require.Error(t, c.Validate())
}

func TestValidateRejectsConflictingEmitFlags(t *testing.T) {
	c := &cli.Cmd{EmitSM: true, EmitAsm: true}
	require.Error(t, c.Validate())
}

func TestValidateDefaultsOutputBaseName(t *testing.T) {
	c := &cli.Cmd{}
	require.NoError(t, c.Validate())
	require.Equal(t, "a", c.Out)
}

func TestValidateAllowsHelpOrVersionWithNoSource(t *testing.T) {
	c := &cli.Cmd{Help: true}
	require.NoError(t, c.Validate())

	c2 := &cli.Cmd{Version: true}
	require.NoError(t, c2.Validate())
}

func TestMainEmitSM(t *testing.T) {
	// write(1 + 2*3), as the external parser would hand it over.
	mul := ast.Binop(ast.Pos{Line: 1, Col: 10}, "*", ast.Const(ast.Pos{Line: 1, Col: 10}, 2), ast.Const(ast.Pos{Line: 1, Col: 14}, 3))
	add := ast.Binop(ast.Pos{Line: 1, Col: 7}, "+", ast.Const(ast.Pos{Line: 1, Col: 7}, 1), mul)
	top := ast.Scope(ast.Pos{Line: 1, Col: 1}, nil, ast.Write(ast.Pos{Line: 1, Col: 1}, add))
	data, err := ast.Marshal(top)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "prog.json")
	require.NoError(t, os.WriteFile(src, data, 0o644))

	var stdout, stderr strings.Builder
	c := &cli.Cmd{}
	code := c.Main([]string{"lamac", "--sm", src}, mainer.Stdio{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, mainer.Success, code, "stderr: %s", stderr.String())

	out := stdout.String()
	require.Contains(t, out, "LABEL main")
	require.Contains(t, out, "BINOP *")
	require.Contains(t, out, "WRITE")
	require.Contains(t, out, "END")
}

func TestMainRejectsInvalidFlag(t *testing.T) {
	var stdout, stderr strings.Builder
	c := &cli.Cmd{}
	code := c.Main([]string{"lamac", "--no-such-flag"}, mainer.Stdio{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, mainer.InvalidArgs, code)
	require.Contains(t, stderr.String(), "invalid arguments")
}
