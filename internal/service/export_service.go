package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fitclub/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 参与者名单导出为 Excel (.xlsx)，仅开课教练可导出。
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
type ExportService interface {
	// ExportRoster 导出训练参与者名单；返回 buf、建议文件名
	ExportRoster(ctx context.Context, trainingID, trainerID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, loc: loc, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportRoster 导出参与者名单
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 第 1 行：训练标题与时间（合并单元格）
//   - 第 2 行：表头 № / Участник / Записался / За 1 час / Старт
//   - 第 3 行起：按报名先后排列

func (s *exportService) ExportRoster(ctx context.Context, trainingID, trainerID string) (*bytes.Buffer, string, error) {
	training, err := s.repo.Training.GetByID(ctx, trainingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrTrainingNotFound
		}
		s.logger.Error("查询训练失败", zap.String("training_id", trainingID), zap.Error(err))
		return nil, "", err
	}
	if training.TrainerID != trainerID {
		return nil, "", ErrNotTrainingOwner
	}

	signups, err := s.repo.Signup.ListByTraining(ctx, trainingID)
	if err != nil {
		s.logger.Error("查询参与者失败", zap.String("training_id", trainingID), zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Участники"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 6)
	f.SetColWidth(sheetName, "B", "B", 32)
	f.SetColWidth(sheetName, "C", "C", 20)
	f.SetColWidth(sheetName, "D", "E", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("«%s» — %s, %s–%s",
		training.Title, ruDate(time.Time(training.Date)), training.StartTime, training.EndTime))
	f.MergeCell(sheetName, "A1", "E1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	headers := []string{"№", "Участник", "Записался", "За 1 час", "Старт"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", "E2", headerStyle)

	// 数据行
	row := 3
	for i, su := range signups {
		name := su.UserID
		if su.User != nil {
			name = su.User.Name
		}
		f.SetCellValue(sheetName, cell("A", row), i+1)
		f.SetCellValue(sheetName, cell("B", row), name)
		f.SetCellValue(sheetName, cell("C", row), su.CreatedAt.In(s.loc).Format("02.01.2006 15:04"))
		f.SetCellValue(sheetName, cell("D", row), yesNo(su.Notified1h))
		f.SetCellValue(sheetName, cell("E", row), yesNo(su.NotifiedStart))
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("roster_%s_%s.xlsx", training.Day(), strings.ReplaceAll(training.StartTime, ":", ""))
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "—"
}
