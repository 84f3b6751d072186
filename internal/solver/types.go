package solver

import (
	"encoding/json"
	"errors"
)

// CriterionType 分组约束类型
type CriterionType string

const (
	CriterionMinimize     CriterionType = "minimize"     // 各组均衡，无比例
	CriterionPrerequisite CriterionType = "prerequisite" // 指定组内最低比例
	CriterionPull         CriterionType = "pull"         // 吸引到指定组，无比例
)

// Valid 是否为已知的约束类型
func (t CriterionType) Valid() bool {
	switch t {
	case CriterionMinimize, CriterionPrerequisite, CriterionPull:
		return true
	}
	return false
}

// Criterion 作用于某个分组的一条约束，Name 为特征名
type Criterion struct {
	Type     CriterionType `json:"type"`
	Name     string        `json:"name"`
	MinRatio *float64      `json:"min_ratio,omitempty"`
}

// Group 求解请求中的一个分组（对应一个选题）
type Group struct {
	ID       int         `json:"id"`
	Size     int         `json:"size"`
	Criteria []Criterion `json:"criteria"`
}

// Student 求解请求中的一个学生
type Student struct {
	ID             int                `json:"id"`
	PossibleGroups []int              `json:"possible_groups"`
	Values         map[string]float64 `json:"values"`
	Rankings       map[int]float64    `json:"rankings,omitempty"`
}

// Request 发送给求解服务的请求体
type Request struct {
	NumStudents       int       `json:"num_students"`
	NumGroups         int       `json:"num_groups"`
	Exclude           [][2]int  `json:"exclude"`
	Groups            []Group   `json:"groups"`
	Students          []Student `json:"students"`
	RankingPercentage *float64  `json:"ranking_percentage,omitempty"`
	MaxTimeInSeconds  *int      `json:"max_time_in_seconds,omitempty"`
}

// DeferredRequest 异步模式的请求体，求解完成后回调 CallbackURL
type DeferredRequest struct {
	DeferredID  string   `json:"deferredId"`
	CallbackURL string   `json:"callbackUrl"`
	Input       *Request `json:"input"`
}

// Index 下标到业务 ID 的快照，Students[i] 是下标 i 的学生
type Index struct {
	Students []string
	Topics   []string
}

var errAssignmentFields = errors.New("分配结果缺少学生或分组下标")

// Assignment 求解结果中的一条分配
// 求解服务可能使用 student_id/group_id 或 student/group 两种字段名，解码时统一
type Assignment struct {
	Student int `json:"student"`
	Group   int `json:"group"`
}

// UnmarshalJSON 兼容两种字段名，同时存在时以 *_id 为准
func (a *Assignment) UnmarshalJSON(b []byte) error {
	var raw struct {
		StudentID *int `json:"student_id"`
		Student   *int `json:"student"`
		GroupID   *int `json:"group_id"`
		Group     *int `json:"group"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	student := raw.StudentID
	if student == nil {
		student = raw.Student
	}
	group := raw.GroupID
	if group == nil {
		group = raw.Group
	}
	if student == nil || group == nil {
		return errAssignmentFields
	}

	a.Student, a.Group = *student, *group
	return nil
}

// Result 求解结果，Error 非空表示求解失败
type Result struct {
	Assignments []Assignment `json:"assignments"`
	Error       string       `json:"error,omitempty"`
}
