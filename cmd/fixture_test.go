package cmd_test

import (
	"bytes"
	"go/token"
	"testing"

	"github.com/cottand/typecore/cmd"
	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixture(t *testing.T) {
	modules, queries, opts, err := cmd.LoadFixture("testdata/sized.yaml", config.Default())
	require.NoError(t, err)

	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, config.Default().UnifyFuel, opts.UnifyFuel)

	require.Len(t, modules, 2)
	lib, app := modules[0], modules[1]
	assert.Equal(t, "lib", lib.Name)
	require.Len(t, lib.Decls, 2)
	trait, ok := lib.Decls[0].(*ast.TraitDecl)
	require.True(t, ok)
	assert.Equal(t, "Size", trait.Name)
	require.Len(t, trait.Required, 1)
	assert.Equal(t, "size", trait.Required[0].Name)
	_, ok = lib.Decls[1].(*ast.ImplDecl)
	assert.True(t, ok)

	require.Len(t, app.Decls, 3)
	five, ok := app.Decls[1].(*ast.Declaration)
	require.True(t, ok)
	assert.Equal(t, "Nat", ast.TypeExprString(five.TypeAnn))
	sum, ok := five.Value.(*ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, token.ADD, sum.Op)
	assert.Equal(t, 17, int(five.Pos()))

	plural := app.Decls[2].(*ast.Declaration)
	pf, ok := plural.Value.(*ast.PatternFunc)
	require.True(t, ok)
	require.Len(t, pf.Arms, 2)
	_, ok = pf.Arms[1].Patterns[0].(*ast.WildcardPattern)
	assert.True(t, ok)

	require.Len(t, queries, 1)
	assert.Equal(t, "app", queries[0].Module)
}

func TestLoadFixtureErrors(t *testing.T) {
	cases := map[string]string{
		"missing file":     "testdata/missing.yaml",
		"invalid options":  "testdata/invalid_options.yaml",
		"unknown operator": "testdata/unknown_operator.yaml",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := cmd.LoadFixture(path, config.Default())
			assert.Error(t, err)
		})
	}
}

func TestCheckCommand(t *testing.T) {
	cases := map[string]struct {
		fixture string
		failed  bool
		output  []string
	}{
		"well typed": {
			fixture: "testdata/sized.yaml",
			output:  []string{"declarations", "five", "Nat", "queries", "Ratio"},
		},
		"negative nat": {
			fixture: "testdata/negative.yaml",
			failed:  true,
			output:  []string{"diagnostics", "bad", "error"},
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			out := &bytes.Buffer{}
			cmd.CheckCmd.SetOut(out)
			cmd.CheckCmd.SetErr(&bytes.Buffer{})
			cmd.CheckCmd.SetArgs([]string{"--log-format", "text", c.fixture})
			err := cmd.CheckCmd.Execute()
			if c.failed {
				assert.ErrorContains(t, err, "1 of 1 modules have errors")
			} else {
				assert.NoError(t, err)
			}
			for _, s := range c.output {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}
