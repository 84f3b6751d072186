package solver

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func studentsN(n int) []PreferenceInput {
	out := make([]PreferenceInput, n)
	for i := range out {
		out[i] = PreferenceInput{StudentID: fmt.Sprintf("s%d", i)}
	}
	return out
}

func twoTopics() []TopicInput {
	return []TopicInput{{ID: "t-a"}, {ID: "t-b"}}
}

func baseInput(n int) Input {
	return Input{
		Topics:      twoTopics(),
		Preferences: studentsN(n),
		Settings:    Settings{RankingsEnabled: true},
	}
}

func TestBuild_EvenSplit(t *testing.T) {
	plan, err := Build(baseInput(10))
	require.NoError(t, err)
	require.Equal(t, 5, plan.Request.Groups[0].Size)
	require.Equal(t, 5, plan.Request.Groups[1].Size)

	plan, err = Build(baseInput(11))
	require.NoError(t, err)
	require.Equal(t, 6, plan.Request.Groups[0].Size)
	require.Equal(t, 5, plan.Request.Groups[1].Size)
	require.Equal(t, 11, plan.Request.NumStudents)
	require.Equal(t, 2, plan.Request.NumGroups)
}

func TestBuild_GroupSizeOverrides(t *testing.T) {
	in := baseInput(10)
	in.Settings.GroupSizes = map[string]int{"t-a": 3, "t-b": 7}
	plan, err := Build(in)
	require.NoError(t, err)
	require.Equal(t, []int{3, 7}, []int{plan.Request.Groups[0].Size, plan.Request.Groups[1].Size})

	in.Settings.GroupSizes = map[string]int{"t-a": 4, "t-b": 5}
	_, err = Build(in)
	require.ErrorIs(t, err, ErrGroupSizeMismatch)

	// 只覆盖一个分组，另一个保持平均值，合计不等
	in.Settings.GroupSizes = map[string]int{"t-a": 6}
	_, err = Build(in)
	require.ErrorIs(t, err, ErrGroupSizeMismatch)

	in.Settings.GroupSizes = map[string]int{"t-x": 5}
	_, err = Build(in)
	require.ErrorIs(t, err, ErrUnknownTopic)

	in.Settings.GroupSizes = map[string]int{"t-a": -1, "t-b": 11}
	_, err = Build(in)
	require.ErrorIs(t, err, ErrInvalidGroupSize)
}

func TestBuild_EmptyUniverse(t *testing.T) {
	_, err := Build(Input{Topics: twoTopics(), Settings: Settings{RankingsEnabled: true}})
	require.ErrorIs(t, err, ErrNoStudents)

	_, err = Build(Input{Preferences: studentsN(3), Settings: Settings{RankingsEnabled: true}})
	require.ErrorIs(t, err, ErrNoTopics)
}

func TestBuild_StudentUniverse(t *testing.T) {
	in := Input{
		Topics:      twoTopics(),
		StudentIDs:  []string{"x1", "x2", "x1", "x3", "x4"},
		Preferences: []PreferenceInput{{StudentID: "p1"}, {StudentID: "p2"}, {StudentID: "p1"}},
		Settings:    Settings{RankingsEnabled: true},
	}

	plan, err := Build(in)
	require.NoError(t, err)
	require.Equal(t, []string{"p1", "p2"}, plan.Index.Students)

	in.Settings.RankingsEnabled = false
	plan, err = Build(in)
	require.NoError(t, err)
	require.Equal(t, []string{"x1", "x2", "x3", "x4"}, plan.Index.Students)

	in.Settings.RankingsEnabled = true
	in.Description = "EXPERIMENT 第二轮试点"
	plan, err = Build(in)
	require.NoError(t, err)
	require.Equal(t, []string{"x1", "x2", "x3", "x4"}, plan.Index.Students)
}

func TestBuild_PossibleGroupsAndRankings(t *testing.T) {
	in := Input{
		Topics: []TopicInput{{ID: "t-a"}, {ID: "t-b"}, {ID: "t-c"}},
		Preferences: []PreferenceInput{
			{StudentID: "s0", TopicIDs: []string{"t-c", "t-a", "t-b"}},
			{StudentID: "s1", TopicIDs: []string{"t-b"}},
			{StudentID: "s2", TopicIDs: []string{"t-unknown"}},
		},
		Settings: Settings{RankingsEnabled: true},
	}

	plan, err := Build(in)
	require.NoError(t, err)

	s0 := plan.Request.Students[0]
	require.Equal(t, []int{2, 0, 1}, s0.PossibleGroups)
	require.Equal(t, map[int]float64{2: 1, 0: 0.5, 1: 0}, s0.Rankings)

	s1 := plan.Request.Students[1]
	require.Equal(t, []int{1}, s1.PossibleGroups)
	require.Equal(t, map[int]float64{1: 1}, s1.Rankings)

	// 志愿全部无效时视为未填报
	s2 := plan.Request.Students[2]
	require.Equal(t, []int{0, 1, 2}, s2.PossibleGroups)
	require.Nil(t, s2.Rankings)
}

func TestBuild_RankingsDisabledIgnoresPreferences(t *testing.T) {
	in := Input{
		Topics:      twoTopics(),
		StudentIDs:  []string{"s0", "s1"},
		Preferences: []PreferenceInput{{StudentID: "s0", TopicIDs: []string{"t-b"}}},
		Settings:    Settings{RankingsEnabled: false},
	}

	plan, err := Build(in)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, plan.Request.Students[0].PossibleGroups)
	require.Nil(t, plan.Request.Students[0].Rankings)
}

func TestBuild_Values(t *testing.T) {
	in := baseInput(2)
	in.Questions = []QuestionInput{
		{ID: "q1", CategoryID: "cat-skill"},
		{ID: "q2", CategoryID: "cat-skill"},
		{ID: "q3"},
	}
	in.Answers = []AnswerInput{
		{QuestionID: "q1", StudentID: "s0", Value: 2},
		{QuestionID: "q2", StudentID: "s0", Value: 4},
		{QuestionID: "q3", StudentID: "s0", Value: 1},
		{QuestionID: "q-missing", StudentID: "s0", Value: 100},
	}

	plan, err := Build(in)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"cat-skill": 3, "q3": 1}, plan.Request.Students[0].Values)
	require.NotNil(t, plan.Request.Students[1].Values)
	require.Empty(t, plan.Request.Students[1].Values)
}

func TestBuild_Criteria(t *testing.T) {
	ratio := 0.3
	in := baseInput(4)
	in.Topics = []TopicInput{
		{ID: "t-a", CategoryIDs: []string{"cat-pre", "cat-pull"}},
		{ID: "t-b", CategoryIDs: []string{"cat-gone"}},
	}
	in.Categories = []CategoryInput{
		{ID: "cat-bal", CriterionType: CriterionMinimize},
		{ID: "cat-pre", CriterionType: CriterionPrerequisite, MinRatio: &ratio},
		{ID: "cat-pull", CriterionType: CriterionPull, MinRatio: &ratio},
	}
	in.Settings.MinimizeCategoryIDs = []string{"cat-bal"}

	plan, err := Build(in)
	require.NoError(t, err)

	require.Equal(t, []Criterion{
		{Type: CriterionMinimize, Name: "cat-bal"},
		{Type: CriterionPrerequisite, Name: "cat-pre", MinRatio: &ratio},
		{Type: CriterionPull, Name: "cat-pull"},
	}, plan.Request.Groups[0].Criteria)
	require.Equal(t, []Criterion{{Type: CriterionMinimize, Name: "cat-bal"}}, plan.Request.Groups[1].Criteria)
	require.Len(t, plan.Warnings, 1)
}

func TestBuild_LegacyOverrides(t *testing.T) {
	in := baseInput(4)
	in.Categories = []CategoryInput{{ID: "cat-bal", CriterionType: CriterionMinimize}}
	in.Settings.MinimizeCategoryIDs = []string{"cat-bal"}
	in.Description = `说明文字
EXCLUSIONS: [["s0","s1"],["s2","nobody"]]
CRITERIA: {"t-b":[{"type":"pull","name":"cat-x"}]}`

	plan, err := Build(in)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{0, 1}}, plan.Request.Exclude)
	require.Equal(t, []Criterion{{Type: CriterionPull, Name: "cat-x"}}, plan.Request.Groups[1].Criteria)
	require.Equal(t, []Criterion{{Type: CriterionMinimize, Name: "cat-bal"}}, plan.Request.Groups[0].Criteria)
	require.NotEmpty(t, plan.Warnings)
}

func TestBuild_MalformedLegacyIsIgnored(t *testing.T) {
	in := baseInput(2)
	in.Description = `EXCLUSIONS: [["s0", `

	plan, err := Build(in)
	require.NoError(t, err)
	require.Equal(t, [][2]int{}, plan.Request.Exclude)
	require.Len(t, plan.Warnings, 1)
}

func TestBuild_Clamping(t *testing.T) {
	high, low := 120.0, -3.0
	short, long := 5, 10000

	in := baseInput(2)
	in.Settings.RankingPercentage = &high
	in.Settings.MaxTimeSeconds = &short
	plan, err := Build(in)
	require.NoError(t, err)
	require.Equal(t, 99.99, *plan.Request.RankingPercentage)
	require.Equal(t, 15, *plan.Request.MaxTimeInSeconds)

	in.Settings.RankingPercentage = &low
	in.Settings.MaxTimeSeconds = &long
	plan, err = Build(in)
	require.NoError(t, err)
	require.Equal(t, 0.0, *plan.Request.RankingPercentage)
	require.Equal(t, 540, *plan.Request.MaxTimeInSeconds)
}

func TestBuild_WireFormat(t *testing.T) {
	in := baseInput(2)
	in.Preferences[0].TopicIDs = []string{"t-b", "t-a"}

	plan, err := Build(in)
	require.NoError(t, err)

	raw, err := json.Marshal(plan.Request)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.NotContains(t, generic, "ranking_percentage")
	require.NotContains(t, generic, "max_time_in_seconds")
	require.Equal(t, []any{}, generic["exclude"])

	students := generic["students"].([]any)
	first := students[0].(map[string]any)
	require.Equal(t, map[string]any{"1": 1.0, "0": 0.0}, first["rankings"])
	second := students[1].(map[string]any)
	require.NotContains(t, second, "rankings")
	require.Equal(t, map[string]any{}, second["values"])
}
