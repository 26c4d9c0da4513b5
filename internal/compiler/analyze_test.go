package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRecursion_NonRecursive(t *testing.T) {
	warnings := AnalyzeRecursion(mustLoad(t, `rules: [
	{conclusion: {name: "edge", args: ["a", "b"]}},
	{premises: [{name: "edge", args: ["X", "Y"]}], conclusion: {name: "linked", args: ["X"]}},
]`))
	assert.Empty(t, warnings)
}

func TestAnalyzeRecursion_SelfLoopIsInfo(t *testing.T) {
	warnings := AnalyzeRecursion(mustLoad(t, pathSrc))
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"path", "path"}, warnings[0].Path)
	assert.Equal(t, "info", warnings[0].Level)
}

func TestAnalyzeRecursion_GenerativeCycleWarns(t *testing.T) {
	warnings := AnalyzeRecursion(mustLoad(t, `
builtins: {s: "NAT_SUCC"}
rules: [
	{conclusion: {name: "even", args: [0]}},
	{premises: [{name: "even", args: ["N"]}], conclusion: {name: "odd", args: [{call: "s", args: ["N"]}]}},
	{premises: [{name: "odd", args: ["N"]}], conclusion: {name: "even", args: [{call: "s", args: ["N"]}]}},
]`))
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"even", "odd", "even"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "may not terminate")
}
