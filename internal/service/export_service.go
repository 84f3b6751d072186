package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-selector/backend/internal/lifecycle"
	"project-selector/backend/internal/model"
	"project-selector/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrAssignmentNotFound = errors.New("该选题周期尚无分配结果")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response
type ExportService interface {
	// ExportAssignment 导出周期的分配结果为 Excel
	ExportAssignment(ctx context.Context, periodID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportAssignment 导出分配结果为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "分配结果"：学生 | 选题 | 选题 ID | 志愿位次，按选题、学生排序
//   - Sheet "选题统计"：选题 | 分配人数 | 第一志愿人数 | 志愿外人数
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportAssignment(ctx context.Context, periodID string) (*bytes.Buffer, string, error) {
	view, err := loadAssignment(ctx, s.repo, periodID)
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("查询分配结果失败", zap.String("period_id", periodID), zap.Error(err))
		}
		return nil, "", err
	}

	items := append([]model.AssignmentItem(nil), view.batch.Items...)
	sort.Slice(items, func(i, j int) bool {
		ti, tj := view.topicTitles[items[i].TopicID], view.topicTitles[items[j].TopicID]
		if ti != tj {
			return ti < tj
		}
		return items[i].StudentID < items[j].StudentID
	})

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 1. 分配明细
	sheet := "分配结果"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheet, "A", "A", 18)
	f.SetColWidth(sheet, "B", "B", 36)
	f.SetColWidth(sheet, "C", "C", 38)
	f.SetColWidth(sheet, "D", "D", 10)

	f.SetCellValue(sheet, "A1", fmt.Sprintf("%s 分配结果", view.period.Title))
	f.MergeCell(sheet, "A1", cell(colName(3), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	headers := []string{"学生", "选题", "选题 ID", "志愿位次"}
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheet, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	row := 3
	for _, item := range items {
		f.SetCellValue(sheet, cell("A", row), item.StudentID)
		f.SetCellValue(sheet, cell("B", row), topicLabel(view.topicTitles, item.TopicID))
		f.SetCellValue(sheet, cell("C", row), item.TopicID)
		if item.Rank != nil {
			f.SetCellValue(sheet, cell("D", row), *item.Rank)
		} else {
			f.SetCellValue(sheet, cell("D", row), "志愿外")
		}
		row++
	}

	// 2. 选题统计
	type topicStat struct {
		topicID  string
		total    int
		first    int
		unranked int
	}
	stats := make(map[string]*topicStat)
	for _, item := range items {
		st, ok := stats[item.TopicID]
		if !ok {
			st = &topicStat{topicID: item.TopicID}
			stats[item.TopicID] = st
		}
		st.total++
		switch {
		case item.Rank == nil:
			st.unranked++
		case *item.Rank == 1:
			st.first++
		}
	}
	ordered := make([]*topicStat, 0, len(stats))
	for _, st := range stats {
		ordered = append(ordered, st)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return topicLabel(view.topicTitles, ordered[i].topicID) < topicLabel(view.topicTitles, ordered[j].topicID)
	})

	summary := "选题统计"
	f.NewSheet(summary)
	f.SetColWidth(summary, "A", "A", 36)
	f.SetColWidth(summary, "B", "D", 14)

	summaryHeaders := []string{"选题", "分配人数", "第一志愿人数", "志愿外人数"}
	for i, h := range summaryHeaders {
		f.SetCellValue(summary, cell(colName(i), 1), h)
	}
	f.SetCellStyle(summary, "A1", cell(colName(len(summaryHeaders)-1), 1), headerStyle)

	row = 2
	for _, st := range ordered {
		f.SetCellValue(summary, cell("A", row), topicLabel(view.topicTitles, st.topicID))
		f.SetCellValue(summary, cell("B", row), st.total)
		f.SetCellValue(summary, cell("C", row), st.first)
		f.SetCellValue(summary, cell("D", row), st.unranked)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("分配结果_%s.xlsx", view.period.Title)
	return buf, filename, nil
}

// ── 分配结果读取 ──

type assignmentView struct {
	period      *model.SelectionPeriod
	batch       *model.AssignmentBatch
	topicTitles map[string]string
}

// loadAssignment 读取已分配周期的批次及选题标题
func loadAssignment(ctx context.Context, repo *repository.Repository, periodID string) (*assignmentView, error) {
	period, err := repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}
	lc, err := lifecycle.FromModel(period)
	if err != nil {
		return nil, err
	}
	assigned, ok := lc.(lifecycle.Assigned)
	if !ok {
		return nil, ErrAssignmentNotFound
	}

	batch, err := repo.Assignment.GetBatch(ctx, assigned.BatchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	topics, err := repo.Topic.ListBySemester(ctx, period.SemesterID)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(topics))
	for _, t := range topics {
		titles[t.TopicID] = t.Title
	}

	return &assignmentView{period: period, batch: batch, topicTitles: titles}, nil
}

// ── 辅助函数 ──

func topicLabel(titles map[string]string, topicID string) string {
	if title, ok := titles[topicID]; ok {
		return title
	}
	return topicID
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
