package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLegacy_Empty(t *testing.T) {
	out, warnings := ParseLegacy("普通的周期说明")
	require.False(t, out.Experiment)
	require.Nil(t, out.Exclusions)
	require.Nil(t, out.Criteria)
	require.Empty(t, warnings)
}

func TestParseLegacy_TrailingText(t *testing.T) {
	out, warnings := ParseLegacy(`EXCLUSIONS: [["a","b"]] 其余说明 CRITERIA: {"t1":[]} 结尾`)
	require.Empty(t, warnings)
	require.Equal(t, [][2]string{{"a", "b"}}, out.Exclusions)
	require.Equal(t, map[string][]Criterion{"t1": {}}, out.Criteria)
}

func TestParseLegacy_BadEntries(t *testing.T) {
	out, warnings := ParseLegacy(`EXCLUSIONS: [["a"],["b","c","d"],["e","f"]]`)
	require.Equal(t, [][2]string{{"e", "f"}}, out.Exclusions)
	require.Len(t, warnings, 2)

	out, warnings = ParseLegacy(`CRITERIA: {"t1":[{"type":"explode","name":"x"},{"type":"minimize","name":"y"}]}`)
	require.Equal(t, []Criterion{{Type: CriterionMinimize, Name: "y"}}, out.Criteria["t1"])
	require.Len(t, warnings, 1)
}

func TestParseLegacy_Malformed(t *testing.T) {
	out, warnings := ParseLegacy(`CRITERIA: {"t1": [`)
	require.Nil(t, out.Criteria)
	require.Len(t, warnings, 1)

	out, warnings = ParseLegacy(`EXCLUSIONS: "not a list"`)
	require.Nil(t, out.Exclusions)
	require.Len(t, warnings, 1)
}
