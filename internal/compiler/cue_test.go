package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dusa/internal/ast"
)

func TestCompileProgram_Patterns(t *testing.T) {
	p := mustLoad(t, `
builtins: {plus: "INT_PLUS"}
rules: [{
	premises: [
		{name: "in", args: ["X", "_", "_Y", "()", 7, true, {string: "Hi"}, {const: "pair", args: ["a", "X"]}]},
		{neq: ["X", "a"]},
	]
	conclusion: {name: "out", args: [{call: "plus", args: ["X", 1]}], choices: ["yes", "no"], open: true}
}]
`)
	require.Len(t, p.Decls, 1)
	d := p.Decls[0]
	assert.Equal(t, ast.DeclRule, d.Kind)
	require.Len(t, d.Premises, 2)

	assert.Equal(t, []ast.Pattern{
		ast.Var{Name: "X"},
		ast.Wildcard{Name: "_"},
		ast.Wildcard{Name: "_Y"},
		ast.Trivial{},
		ast.IntLit{Value: 7},
		ast.BoolLit{Value: true},
		ast.StringLit{Value: "Hi"},
		ast.Const{Name: "pair", Args: []ast.Pattern{ast.Const{Name: "a"}, ast.Var{Name: "X"}}},
	}, d.Premises[0].Args)
	assert.Nil(t, d.Premises[0].Value)

	assert.Equal(t, ast.NotEqual, d.Premises[1].Builtin)
	assert.Equal(t, "!=", d.Premises[1].Name)

	c := d.Conclusion
	require.NotNil(t, c)
	assert.False(t, c.Exhaustive)
	assert.Equal(t, []ast.Pattern{ast.Const{Name: "yes"}, ast.Const{Name: "no"}}, c.Values)
	assert.Equal(t, ast.Call{Name: "plus", Builtin: ast.IntPlus, Args: []ast.Pattern{ast.Var{Name: "X"}, ast.IntLit{Value: 1}}}, c.Args[0])
}

func TestCompileProgram_DeclarationKinds(t *testing.T) {
	p := mustLoad(t, `
rules: [{conclusion: {name: "p", value: "tt"}}]
demands: [[{name: "p", value: "tt"}]]
forbids: [[{name: "p", value: "ff"}]]
`)
	require.Len(t, p.Decls, 3)
	assert.Equal(t, ast.DeclRule, p.Decls[0].Kind)
	assert.True(t, p.Decls[0].Conclusion.Exhaustive)
	assert.Equal(t, ast.DeclDemand, p.Decls[1].Kind)
	assert.Nil(t, p.Decls[1].Conclusion)
	assert.Equal(t, ast.DeclForbid, p.Decls[2].Kind)
}

func TestCompileProgram_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing conclusion", `rules: [{premises: []}]`, "conclusion is required"},
		{"missing name", `rules: [{conclusion: {args: []}}]`, "name is required"},
		{"float", `rules: [{conclusion: {name: "p", value: 1.5}}]`, "unsupported pattern"},
		{"value and choices", `rules: [{conclusion: {name: "p", value: 1, choices: [2]}}]`, "mutually exclusive"},
		{"empty choices", `rules: [{conclusion: {name: "p", choices: []}}]`, "at least one choice"},
		{"bad struct", `rules: [{conclusion: {name: "p", value: {nope: 1}}}]`, "one of string, const, or call"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileBytes("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			var cerr *CompileError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestCompileProgram_SyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileBytes("broken.cue", []byte("rules: [\n  {conclusion: \n"))
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Pos.IsValid())
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestLoadProgram_FileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	src := `package prog

rules: [{conclusion: {name: "p", value: "tt"}}]
`
	file := filepath.Join(dir, "prog.cue")
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	fromFile, err := LoadProgram(file)
	require.NoError(t, err)
	assert.Len(t, fromFile.Decls, 1)

	fromDir, err := LoadProgram(dir)
	require.NoError(t, err)
	assert.Len(t, fromDir.Decls, 1)

	_, err = LoadProgram(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}
