package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_KeyOrderAndEscaping(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b":     int64(2),
		"a":     "x<y>&z",
		"é": true,
		"list":  []any{"\n", "\u0001", "quote\""},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x<y>&z","b":2,"list":["\n","\u0001","quote\""],"é":true}`, string(got))
}

func TestMarshalCanonical_UTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates D83D DE00, which sort before U+FB01.
	got, err := MarshalCanonical(Object{"ﬁ": Int(1), "\U0001F600": Int(2)})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"ﬁ\":1}", string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	decomposed := "é"
	got, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"é\"", string(got))
}

func TestMarshalCanonical_LineSeparatorsUnescaped(t *testing.T) {
	got, err := MarshalCanonical("a b")
	require.NoError(t, err)
	assert.Equal(t, "\"a b\"", string(got))
}

func TestMarshalCanonical_RejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.ErrorContains(t, err, "floats")

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue([]byte(`{"n": 3, "s": ["a", true]}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"n": Int(3), "s": Array{String("a"), Bool(true)}}, v)

	_, err = ParseValue([]byte(`{"n": 3.5}`))
	assert.ErrorContains(t, err, "floats")

	_, err = ParseValue([]byte(`null`))
	assert.Error(t, err)
}

func TestSolutionHash_Deterministic(t *testing.T) {
	facts := Array{Object{"name": String("a"), "args": Array{}, "value": Object{"const": String("tt")}}}
	h1 := MustSolutionHash(facts)
	h2 := MustSolutionHash(facts)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	other := MustSolutionHash(Array{})
	assert.NotEqual(t, h1, other)
}
