package repository

import (
	"context"

	"gorm.io/gorm"

	"project-selector/backend/internal/model"
)

// 选题、志愿与问卷数据由其他模块维护，这里只提供求解所需的读取

// TopicRepository 选题只读接口
type TopicRepository interface {
	// ListBySemester 按创建顺序返回启用的选题，顺序决定分组下标
	ListBySemester(ctx context.Context, semesterID string) ([]model.Topic, error)
}

type topicRepo struct {
	db *gorm.DB
}

// NewTopicRepo 创建 TopicRepository 实例
func NewTopicRepo(db *gorm.DB) TopicRepository {
	return &topicRepo{db: db}
}

func (r *topicRepo) ListBySemester(ctx context.Context, semesterID string) ([]model.Topic, error) {
	var topics []model.Topic
	err := r.db.WithContext(ctx).
		Where("semester_id = ? AND is_active = ?", semesterID, true).
		Order("created_at ASC, topic_id ASC").
		Find(&topics).Error
	return topics, err
}

// PreferenceRepository 志愿只读接口
type PreferenceRepository interface {
	// ListBySemester 按提交时间返回志愿
	ListBySemester(ctx context.Context, semesterID string) ([]model.Preference, error)
	CountBySemester(ctx context.Context, semesterID string) (int64, error)
}

type preferenceRepo struct {
	db *gorm.DB
}

// NewPreferenceRepo 创建 PreferenceRepository 实例
func NewPreferenceRepo(db *gorm.DB) PreferenceRepository {
	return &preferenceRepo{db: db}
}

func (r *preferenceRepo) ListBySemester(ctx context.Context, semesterID string) ([]model.Preference, error) {
	var prefs []model.Preference
	err := r.db.WithContext(ctx).
		Where("semester_id = ?", semesterID).
		Order("submitted_at ASC, student_id ASC").
		Find(&prefs).Error
	return prefs, err
}

func (r *preferenceRepo) CountBySemester(ctx context.Context, semesterID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Preference{}).
		Where("semester_id = ?", semesterID).
		Count(&count).Error
	return count, err
}

// QuestionRepository 问卷题目只读接口
type QuestionRepository interface {
	ListBySemester(ctx context.Context, semesterID string) ([]model.Question, error)
}

type questionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo 创建 QuestionRepository 实例
func NewQuestionRepo(db *gorm.DB) QuestionRepository {
	return &questionRepo{db: db}
}

func (r *questionRepo) ListBySemester(ctx context.Context, semesterID string) ([]model.Question, error) {
	var questions []model.Question
	err := r.db.WithContext(ctx).
		Where("semester_id = ?", semesterID).
		Find(&questions).Error
	return questions, err
}

// AnswerRepository 问卷作答只读接口
type AnswerRepository interface {
	ListByQuestions(ctx context.Context, questionIDs []string) ([]model.Answer, error)
}

type answerRepo struct {
	db *gorm.DB
}

// NewAnswerRepo 创建 AnswerRepository 实例
func NewAnswerRepo(db *gorm.DB) AnswerRepository {
	return &answerRepo{db: db}
}

func (r *answerRepo) ListByQuestions(ctx context.Context, questionIDs []string) ([]model.Answer, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var answers []model.Answer
	err := r.db.WithContext(ctx).
		Where("question_id IN ?", questionIDs).
		Find(&answers).Error
	return answers, err
}

// CategoryRepository 问卷分类只读接口
type CategoryRepository interface {
	ListBySemester(ctx context.Context, semesterID string) ([]model.Category, error)
}

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepo 创建 CategoryRepository 实例
func NewCategoryRepo(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) ListBySemester(ctx context.Context, semesterID string) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).
		Where("semester_id = ?", semesterID).
		Find(&categories).Error
	return categories, err
}
