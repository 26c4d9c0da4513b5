package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCode_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		code  []Instr
		slots int
	}{
		{"empty", nil, 0},
		{"load and store", []Instr{{Op: OpLoad, Arg: 0}, {Op: OpDup}, {Op: OpStore, Arg: 1}, {Op: OpPop}}, 2},
		{"explode then build", []Instr{
			{Op: OpLoad, Arg: 0},
			{Op: OpExplode, Name: "pair", Arg: 2},
			{Op: OpStore, Arg: 1},
			{Op: OpStore, Arg: 2},
			{Op: OpLoad, Arg: 2},
			{Op: OpLoad, Arg: 1},
			{Op: OpBuild, Name: "pair", Arg: 2},
			{Op: OpStore, Arg: 0},
		}, 3},
		{"split", []Instr{
			{Op: OpLoad, Arg: 0},
			{Op: OpSplit, Mask: []bool{false, false}},
			{Op: OpStore, Arg: 1},
			{Op: OpStore, Arg: 2},
		}, 3},
		{"nothing runs after fail", []Instr{{Op: OpFail}, {Op: OpPop}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, CheckCode(tt.code, tt.slots))
		})
	}
}

func TestCheckCode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		code  []Instr
		slots int
		want  string
	}{
		{"load past slots", []Instr{{Op: OpLoad, Arg: 99}}, 2, "code[0] load: slot 99 out of range (2 slots)"},
		{"negative store", []Instr{{Op: OpConst}, {Op: OpStore, Arg: -1}}, 2, "code[1] store: slot -1 out of range (2 slots)"},
		{"pop on empty stack", []Instr{{Op: OpPop}}, 0, "code[0] pop: pops 1 with 0 on the stack"},
		{"comparison short by one", []Instr{{Op: OpLoad, Arg: 0}, {Op: OpLess}}, 1, "code[1] less: pops 2 with 1 on the stack"},
		{"build more than pushed", []Instr{{Op: OpConst}, {Op: OpBuild, Name: "p", Arg: 3}}, 0, "code[1] build: pops 3 with 1 on the stack"},
		{"negative count", []Instr{{Op: OpBuild, Name: "p", Arg: -1}}, 0, "code[0] build: negative count -1"},
		{"split without target", []Instr{{Op: OpConst}, {Op: OpSplit, Mask: []bool{true, false}}}, 0, "code[1] split: pops 2 with 1 on the stack"},
		{"unknown opcode", []Instr{{Op: Op(200)}}, 0, "code[0] op(200): unknown opcode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := CheckCode(tt.code, tt.slots)
			require.NotEmpty(t, errs)
			assert.EqualError(t, errs[0], tt.want)
		})
	}
}

func TestValidate_ChecksStepAndIndexCode(t *testing.T) {
	p := NewProgram()
	p.Relations["p"] = 1
	p.Steps["$r0-0"] = &Step{
		Name:       "$r0-0",
		Kind:       StepConclude,
		Slots:      1,
		Code:       []Instr{{Op: OpLoad, Arg: 5}},
		Relation:   "p",
		ValueSlots: []int{0},
	}
	p.Seeds = []string{"$r0-0"}

	errs := p.Validate()
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "step $r0-0: code[0] load: slot 5 out of range (1 slots)")
}
