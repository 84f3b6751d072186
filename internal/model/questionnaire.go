package model

// 分类对应的求解约束类型
const (
	CriterionMinimize     = "minimize"
	CriterionPrerequisite = "prerequisite"
	CriterionPull         = "pull"
)

// Category 问卷分类表，对应 categories
// 分类决定对应问卷特征在求解中的约束方式
type Category struct {
	CategoryID    string   `gorm:"type:uuid;primaryKey"            json:"category_id"`
	SemesterID    string   `gorm:"type:varchar(64);not null;index" json:"semester_id"`
	Name          string   `gorm:"type:varchar(100);not null"      json:"name"`
	CriterionType string   `gorm:"type:varchar(20);not null"       json:"criterion_type"` // minimize | prerequisite | pull
	MinRatio      *float64 `gorm:"type:numeric(4,3)"               json:"min_ratio,omitempty"`
}

// TableName 指定表名
func (Category) TableName() string { return "categories" }

// Question 问卷题目表，对应 questions
type Question struct {
	QuestionID string  `gorm:"type:uuid;primaryKey"            json:"question_id"`
	SemesterID string  `gorm:"type:varchar(64);not null;index" json:"semester_id"`
	CategoryID *string `gorm:"type:uuid"                       json:"category_id,omitempty"`
	Prompt     string  `gorm:"type:text;not null"              json:"prompt"`
}

// TableName 指定表名
func (Question) TableName() string { return "questions" }

// Answer 问卷作答表，对应 answers
type Answer struct {
	AnswerID   string  `gorm:"type:uuid;primaryKey"            json:"answer_id"`
	QuestionID string  `gorm:"type:uuid;not null;index"        json:"question_id"`
	StudentID  string  `gorm:"type:varchar(64);not null"       json:"student_id"`
	Value      float64 `gorm:"type:double precision;not null"  json:"value"`
}

// TableName 指定表名
func (Answer) TableName() string { return "answers" }
