package solver

import (
	"errors"
	"fmt"
)

var (
	ErrNoStudents        = errors.New("没有可参与分配的学生")
	ErrNoTopics          = errors.New("没有可分配的选题")
	ErrInvalidGroupSize  = errors.New("分组人数不能为负数")
	ErrGroupSizeMismatch = errors.New("分组人数之和与学生人数不一致")
	ErrUnknownTopic      = errors.New("分组人数配置引用了不存在的选题")
)

// 参数上下限
const (
	maxRankingPercentage = 99.99
	minMaxTimeSeconds    = 15
	maxMaxTimeSeconds    = 540
)

// TopicInput 参与分配的选题，顺序即分组下标
type TopicInput struct {
	ID          string
	CategoryIDs []string
}

// PreferenceInput 学生志愿，TopicIDs 按志愿顺序排列
type PreferenceInput struct {
	StudentID string
	TopicIDs  []string
}

// QuestionInput 问卷题目
type QuestionInput struct {
	ID         string
	CategoryID string
}

// AnswerInput 问卷作答
type AnswerInput struct {
	QuestionID string
	StudentID  string
	Value      float64
}

// CategoryInput 问卷分类及其约束方式
type CategoryInput struct {
	ID            string
	CriterionType CriterionType
	MinRatio      *float64
}

// Settings 周期级求解参数
type Settings struct {
	RankingsEnabled     bool
	RankingPercentage   *float64
	MaxTimeSeconds      *int
	GroupSizes          map[string]int // topicID → 人数，可覆盖任意子集
	MinimizeCategoryIDs []string       // 对所有分组生效的均衡约束
}

// Input 构造求解请求所需的全部数据
type Input struct {
	Description string
	StudentIDs  []string // 访问名单
	Topics      []TopicInput
	Preferences []PreferenceInput
	Questions   []QuestionInput
	Answers     []AnswerInput
	Categories  []CategoryInput
	Settings    Settings
}

// Plan 构造结果：请求体、下标快照与非致命警告
type Plan struct {
	Request  *Request
	Index    Index
	Warnings []string
}

// Build 由业务数据构造求解请求，不做任何 I/O
func Build(in Input) (*Plan, error) {
	legacy, warnings := ParseLegacy(in.Description)
	plan := &Plan{Warnings: warnings}

	students := studentUniverse(in, legacy.Experiment)
	if len(students) == 0 {
		return nil, ErrNoStudents
	}
	if len(in.Topics) == 0 {
		return nil, ErrNoTopics
	}

	topicIndex := make(map[string]int, len(in.Topics))
	topicIDs := make([]string, len(in.Topics))
	for i, t := range in.Topics {
		topicIndex[t.ID] = i
		topicIDs[i] = t.ID
	}
	studentIndex := make(map[string]int, len(students))
	for i, id := range students {
		studentIndex[id] = i
	}

	sizes, err := groupSizes(len(students), topicIndex, in.Settings.GroupSizes)
	if err != nil {
		return nil, err
	}

	groups, warns := buildGroups(in, sizes, legacy.Criteria, topicIndex)
	plan.Warnings = append(plan.Warnings, warns...)

	values := averageValues(in.Questions, in.Answers)
	prefs := make(map[string][]string, len(in.Preferences))
	for _, p := range in.Preferences {
		prefs[p.StudentID] = p.TopicIDs
	}

	req := &Request{
		NumStudents: len(students),
		NumGroups:   len(in.Topics),
		Exclude:     [][2]int{},
		Groups:      groups,
		Students:    make([]Student, len(students)),
	}

	for i, sid := range students {
		s := Student{ID: i, Values: values[sid]}
		if s.Values == nil {
			s.Values = map[string]float64{}
		}

		var ranked []int
		if in.Settings.RankingsEnabled {
			ranked = rankedGroups(prefs[sid], topicIndex)
		}
		if len(ranked) == 0 {
			s.PossibleGroups = allGroups(len(in.Topics))
		} else {
			s.PossibleGroups = ranked
			s.Rankings = rankScores(ranked)
		}
		req.Students[i] = s
	}

	for _, pair := range legacy.Exclusions {
		a, okA := studentIndex[pair[0]]
		b, okB := studentIndex[pair[1]]
		if !okA || !okB || a == b {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("忽略无法匹配的互斥项: %v", pair))
			continue
		}
		req.Exclude = append(req.Exclude, [2]int{a, b})
	}

	req.RankingPercentage = clampFloat(in.Settings.RankingPercentage, 0, maxRankingPercentage)
	req.MaxTimeInSeconds = clampInt(in.Settings.MaxTimeSeconds, minMaxTimeSeconds, maxMaxTimeSeconds)

	plan.Request = req
	plan.Index = Index{Students: students, Topics: topicIDs}
	return plan, nil
}

// studentUniverse 实验模式或关闭志愿排序时以访问名单为准，否则取提交过志愿的学生
func studentUniverse(in Input, experiment bool) []string {
	if experiment || !in.Settings.RankingsEnabled {
		return dedupe(in.StudentIDs)
	}
	ids := make([]string, 0, len(in.Preferences))
	for _, p := range in.Preferences {
		ids = append(ids, p.StudentID)
	}
	return dedupe(ids)
}

// groupSizes 平均分配，余数依次给前面的分组，再套用覆盖配置
func groupSizes(numStudents int, topicIndex map[string]int, overrides map[string]int) ([]int, error) {
	k := len(topicIndex)
	sizes := make([]int, k)
	base, rem := numStudents/k, numStudents%k
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}

	for topicID, size := range overrides {
		idx, ok := topicIndex[topicID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topicID)
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: %s=%d", ErrInvalidGroupSize, topicID, size)
		}
		sizes[idx] = size
	}

	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != numStudents {
		return nil, fmt.Errorf("%w: 分组合计 %d，学生 %d", ErrGroupSizeMismatch, total, numStudents)
	}
	return sizes, nil
}

func buildGroups(in Input, sizes []int, legacy map[string][]Criterion, topicIndex map[string]int) ([]Group, []string) {
	var warnings []string

	categories := make(map[string]CategoryInput, len(in.Categories))
	for _, c := range in.Categories {
		categories[c.ID] = c
	}

	shared := make([]Criterion, 0, len(in.Settings.MinimizeCategoryIDs))
	for _, id := range in.Settings.MinimizeCategoryIDs {
		if _, ok := categories[id]; !ok {
			warnings = append(warnings, fmt.Sprintf("忽略不存在的均衡分类: %s", id))
			continue
		}
		shared = append(shared, Criterion{Type: CriterionMinimize, Name: id})
	}

	groups := make([]Group, len(in.Topics))
	for i, t := range in.Topics {
		criteria := append([]Criterion{}, shared...)
		for _, cid := range t.CategoryIDs {
			cat, ok := categories[cid]
			if !ok {
				warnings = append(warnings, fmt.Sprintf("选题 %s 引用了不存在的分类 %s", t.ID, cid))
				continue
			}
			criteria = append(criteria, criterionFor(cat))
		}
		groups[i] = Group{ID: i, Size: sizes[i], Criteria: criteria}
	}

	for topicID, list := range legacy {
		idx, ok := topicIndex[topicID]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("忽略不存在选题的内联约束: %s", topicID))
			continue
		}
		groups[idx].Criteria = list
	}

	return groups, warnings
}

func criterionFor(cat CategoryInput) Criterion {
	c := Criterion{Type: cat.CriterionType, Name: cat.ID}
	if cat.CriterionType == CriterionPrerequisite {
		c.MinRatio = cat.MinRatio
	}
	return c
}

// averageValues 按特征求每个学生的作答均值，特征为题目分类，无分类时用题目 ID
func averageValues(questions []QuestionInput, answers []AnswerInput) map[string]map[string]float64 {
	feature := make(map[string]string, len(questions))
	for _, q := range questions {
		if q.CategoryID != "" {
			feature[q.ID] = q.CategoryID
		} else {
			feature[q.ID] = q.ID
		}
	}

	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[string]map[string]*acc)
	for _, a := range answers {
		name, ok := feature[a.QuestionID]
		if !ok {
			continue
		}
		byFeature := sums[a.StudentID]
		if byFeature == nil {
			byFeature = make(map[string]*acc)
			sums[a.StudentID] = byFeature
		}
		if byFeature[name] == nil {
			byFeature[name] = &acc{}
		}
		byFeature[name].sum += a.Value
		byFeature[name].count++
	}

	out := make(map[string]map[string]float64, len(sums))
	for sid, byFeature := range sums {
		vals := make(map[string]float64, len(byFeature))
		for name, a := range byFeature {
			vals[name] = a.sum / float64(a.count)
		}
		out[sid] = vals
	}
	return out
}

// rankedGroups 志愿映射为分组下标，跳过未知与重复选题
func rankedGroups(topicIDs []string, topicIndex map[string]int) []int {
	seen := make(map[int]bool, len(topicIDs))
	out := make([]int, 0, len(topicIDs))
	for _, id := range topicIDs {
		idx, ok := topicIndex[id]
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

// rankScores 第一志愿得 1，最后一个志愿得 0，线性递减
func rankScores(ranked []int) map[int]float64 {
	n := len(ranked)
	scores := make(map[int]float64, n)
	for pos, g := range ranked {
		if n == 1 {
			scores[g] = 1
			continue
		}
		scores[g] = 1 - float64(pos)/float64(n-1)
	}
	return scores
}

func allGroups(k int) []int {
	out := make([]int, k)
	for i := range out {
		out[i] = i
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func clampFloat(v *float64, lo, hi float64) *float64 {
	if v == nil {
		return nil
	}
	c := min(max(*v, lo), hi)
	return &c
}

func clampInt(v *int, lo, hi int) *int {
	if v == nil {
		return nil
	}
	c := min(max(*v, lo), hi)
	return &c
}
