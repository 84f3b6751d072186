package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

var testIndex = Index{
	Students: []string{"alice", "bob", "carol"},
	Topics:   []string{"t-a", "t-b"},
}

func TestAssignment_UnmarshalBothNames(t *testing.T) {
	var res Result
	raw := `{"assignments":[{"student_id":0,"group_id":1},{"student":1,"group":0},{"student_id":2,"student":0,"group":1}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	require.Equal(t, []Assignment{{0, 1}, {1, 0}, {2, 1}}, res.Assignments)
}

func TestAssignment_UnmarshalMissingField(t *testing.T) {
	var res Result
	err := json.Unmarshal([]byte(`{"assignments":[{"student":0}]}`), &res)
	require.Error(t, err)
}

func TestMap_Ranks(t *testing.T) {
	prefs := []PreferenceInput{
		{StudentID: "alice", TopicIDs: []string{"t-b", "t-a"}},
		{StudentID: "bob", TopicIDs: []string{"t-b"}},
	}

	out, err := Map([]Assignment{{0, 0}, {1, 0}, {2, 1}}, testIndex, prefs)
	require.NoError(t, err)
	require.Len(t, out, 3)

	require.Equal(t, "alice", out[0].StudentID)
	require.Equal(t, "t-a", out[0].TopicID)
	require.Equal(t, 2, *out[0].Rank)

	require.Equal(t, "bob", out[1].StudentID)
	require.Nil(t, out[1].Rank)

	require.Equal(t, "carol", out[2].StudentID)
	require.Equal(t, "t-b", out[2].TopicID)
	require.Nil(t, out[2].Rank)
}

func TestMap_Errors(t *testing.T) {
	_, err := Map([]Assignment{{3, 0}}, testIndex, nil)
	require.ErrorIs(t, err, ErrStudentOutOfRange)

	_, err = Map([]Assignment{{0, -1}}, testIndex, nil)
	require.ErrorIs(t, err, ErrGroupOutOfRange)

	_, err = Map([]Assignment{{0, 0}, {0, 1}}, testIndex, nil)
	require.ErrorIs(t, err, ErrDuplicateStudent)
}

func TestMap_RequiresEveryStudent(t *testing.T) {
	_, err := Map(nil, testIndex, nil)
	require.ErrorIs(t, err, ErrMissingStudents)

	_, err = Map([]Assignment{{0, 0}, {2, 1}}, testIndex, nil)
	require.ErrorIs(t, err, ErrMissingStudents)
}
