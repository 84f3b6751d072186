package solver

import (
	"errors"
	"fmt"
)

var (
	ErrStudentOutOfRange = errors.New("分配结果中的学生下标越界")
	ErrGroupOutOfRange   = errors.New("分配结果中的分组下标越界")
	ErrDuplicateStudent  = errors.New("同一学生被分配了多次")
	ErrMissingStudents   = errors.New("分配结果未覆盖全部学生")
)

// AssignedStudent 还原为业务 ID 的分配结果
// Rank 为该选题在学生当前志愿中的位次（从 1 开始），未填报时为 nil
type AssignedStudent struct {
	StudentID string
	TopicID   string
	Rank      *int
}

// Map 按提交时的下标快照还原分配结果，志愿位次取自当前志愿
// 快照中的每名学生必须恰好出现一次
func Map(assignments []Assignment, idx Index, prefs []PreferenceInput) ([]AssignedStudent, error) {
	rankOf := make(map[string]map[string]int, len(prefs))
	for _, p := range prefs {
		ranks := make(map[string]int, len(p.TopicIDs))
		for pos, tid := range p.TopicIDs {
			if _, dup := ranks[tid]; !dup {
				ranks[tid] = pos + 1
			}
		}
		rankOf[p.StudentID] = ranks
	}

	seen := make(map[int]bool, len(assignments))
	out := make([]AssignedStudent, 0, len(assignments))
	for _, a := range assignments {
		if a.Student < 0 || a.Student >= len(idx.Students) {
			return nil, fmt.Errorf("%w: %d", ErrStudentOutOfRange, a.Student)
		}
		if a.Group < 0 || a.Group >= len(idx.Topics) {
			return nil, fmt.Errorf("%w: %d", ErrGroupOutOfRange, a.Group)
		}
		if seen[a.Student] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStudent, idx.Students[a.Student])
		}
		seen[a.Student] = true

		item := AssignedStudent{
			StudentID: idx.Students[a.Student],
			TopicID:   idx.Topics[a.Group],
		}
		if r, ok := rankOf[item.StudentID][item.TopicID]; ok {
			rank := r
			item.Rank = &rank
		}
		out = append(out, item)
	}
	if len(out) != len(idx.Students) {
		return nil, fmt.Errorf("%w: %d/%d", ErrMissingStudents, len(out), len(idx.Students))
	}
	return out, nil
}
