package solver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 周期描述中的旧版内联配置标记
//
// 早期版本没有独立的配置字段，教师把实验开关、互斥名单和分组约束
// 直接写进周期描述。为兼容已有数据仍然解析，但格式错误只记警告不报错。
const (
	markerExperiment = "EXPERIMENT"
	markerExclusions = "EXCLUSIONS:"
	markerCriteria   = "CRITERIA:"
)

// LegacyOverrides 从描述中解析出的旧版配置
// Exclusions/Criteria 为 nil 表示未提供或格式错误
type LegacyOverrides struct {
	Experiment bool
	Exclusions [][2]string
	Criteria   map[string][]Criterion
}

// ParseLegacy 解析周期描述，返回配置与解析警告
func ParseLegacy(description string) (LegacyOverrides, []string) {
	var (
		out      LegacyOverrides
		warnings []string
	)

	out.Experiment = strings.Contains(description, markerExperiment)

	var pairs [][]string
	found, err := decodeAfter(description, markerExclusions, &pairs)
	switch {
	case err != nil:
		warnings = append(warnings, fmt.Sprintf("忽略格式错误的 %s 配置: %v", markerExclusions, err))
	case found:
		out.Exclusions = make([][2]string, 0, len(pairs))
		for _, p := range pairs {
			if len(p) != 2 {
				warnings = append(warnings, fmt.Sprintf("忽略长度不为 2 的互斥项: %v", p))
				continue
			}
			out.Exclusions = append(out.Exclusions, [2]string{p[0], p[1]})
		}
	}

	var criteria map[string][]Criterion
	found, err = decodeAfter(description, markerCriteria, &criteria)
	switch {
	case err != nil:
		warnings = append(warnings, fmt.Sprintf("忽略格式错误的 %s 配置: %v", markerCriteria, err))
	case found:
		out.Criteria = make(map[string][]Criterion, len(criteria))
		for topicID, list := range criteria {
			valid := make([]Criterion, 0, len(list))
			for _, c := range list {
				if !c.Type.Valid() || c.Name == "" {
					warnings = append(warnings, fmt.Sprintf("忽略选题 %s 的非法约束: %+v", topicID, c))
					continue
				}
				valid = append(valid, c)
			}
			out.Criteria[topicID] = valid
		}
	}

	return out, warnings
}

// decodeAfter 从 marker 之后解码一个 JSON 值，忽略其后的任意文本
func decodeAfter(s, marker string, v any) (bool, error) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return false, nil
	}
	dec := json.NewDecoder(strings.NewReader(s[idx+len(marker):]))
	if err := dec.Decode(v); err != nil {
		return true, err
	}
	return true, nil
}
