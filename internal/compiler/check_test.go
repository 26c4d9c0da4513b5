package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}

func TestCheck_ValidProgram(t *testing.T) {
	assert.Empty(t, Check(mustLoad(t, pathSrc)))
}

func TestCheck_CollectsEveryIssue(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "arity mismatch",
			src: `rules: [
	{conclusion: {name: "edge", args: ["a", "b"]}},
	{conclusion: {name: "edge", args: ["a"]}},
]`,
			want: []string{ErrArityMismatch},
		},
		{
			name: "unbound conclusion variable",
			src:  `rules: [{premises: [{name: "p", args: ["X"]}], conclusion: {name: "q", args: ["X", "Y"]}}]`,
			want: []string{ErrUnboundConclusionVar},
		},
		{
			name: "repeated named wildcard",
			src:  `rules: [{premises: [{name: "p", args: ["_A", "_A"]}], conclusion: {name: "q"}}]`,
			want: []string{ErrRepeatedWildcard},
		},
		{
			name: "anonymous wildcards may repeat",
			src:  `rules: [{premises: [{name: "p", args: ["_", "_"]}], conclusion: {name: "q"}}]`,
			want: nil,
		},
		{
			name: "rule extends a builtin",
			src: `builtins: {plus: "INT_PLUS"}
rules: [{conclusion: {name: "plus", args: [1, 2], value: 3}}]`,
			want: []string{ErrExtendsBuiltin},
		},
		{
			name: "wildcard in conclusion",
			src:  `rules: [{conclusion: {name: "q", args: ["_"]}}]`,
			want: []string{ErrWildcardInConclusion},
		},
		{
			name: "builtin arity",
			src: `builtins: {s: "NAT_SUCC"}
rules: [{premises: [{name: "n", args: ["X"]}], conclusion: {name: "m", args: [{call: "s", args: ["X", "X"]}]}}]`,
			want: []string{ErrBuiltinArity},
		},
		{
			name: "unknown builtin",
			src:  `builtins: {foo: "NOT_A_BUILTIN"}`,
			want: []string{ErrUnknownBuiltin},
		},
		{
			name: "constraint premise",
			src:  `rules: [{premises: [{name: "n", args: ["X"]}, {gt: ["X", 1]}], conclusion: {name: "big", args: ["X"]}}]`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Check(mustLoad(t, tt.src))
			if tt.want == nil {
				assert.Empty(t, issues)
				return
			}
			assert.Equal(t, tt.want, codes(issues))
		})
	}
}

func TestCheck_IssuesCarryPositions(t *testing.T) {
	issues := Check(mustLoad(t, `rules: [
	{conclusion: {name: "edge", args: ["a", "b"]}},
	{conclusion: {name: "edge", args: ["a"]}},
]`))
	require.Len(t, issues, 1)
	assert.Equal(t, "test.cue", issues[0].Pos.File)
	assert.Equal(t, 3, issues[0].Pos.Line)
	assert.Contains(t, issues[0].Error(), "[E201] test.cue:3:")
}
