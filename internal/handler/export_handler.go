package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/service"
)

// ExportHandler выгружает банк заданий и историю попыток в CSV/Excel
type ExportHandler struct {
	itemService    *service.ItemService
	attemptService *service.AttemptService
}

// NewExportHandler создает новый обработчик экспорта
func NewExportHandler(itemService *service.ItemService, attemptService *service.AttemptService) *ExportHandler {
	return &ExportHandler{
		itemService:    itemService,
		attemptService: attemptService,
	}
}

// ExportItems экспортирует банк заданий в CSV или Excel формате
// GET /api/admin/items/export?format=csv|xlsx&section=grammar&review_status=approved
func (h *ExportHandler) ExportItems(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	filter := repository.ItemFilter{
		Section:      c.Query("section"),
		ReviewStatus: c.DefaultQuery("review_status", entity.ReviewStatusApproved),
		Limit:        10000, // Экспорт без пагинации в разумных пределах
	}

	items, _, err := h.itemService.Search(filter)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	filename := fmt.Sprintf("items_%s", time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportItemsXLSX(c, items, filename)
	default:
		h.exportItemsCSV(c, items, filename)
	}
}

// exportItemsCSV экспортирует вопросы в CSV с правильным экранированием спецсимволов
func (h *ExportHandler) exportItemsCSV(c *gin.Context, items []entity.Item, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"ID", "Секция", "Тема", "Текст", "Сложность", "a", "b", "c", "Статус", "AI", "Качество"})

	for _, item := range items {
		ai := "Нет"
		if item.IsAIGenerated {
			ai = "Да"
		}

		writer.Write([]string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Section,
			sanitizeForExcel(item.Topic),
			sanitizeForExcel(item.Text),
			strconv.Itoa(item.Difficulty),
			strconv.FormatFloat(item.IRTDiscrimination, 'f', 2, 64),
			strconv.FormatFloat(item.IRTDifficulty, 'f', 2, 64),
			strconv.FormatFloat(item.IRTGuessing, 'f', 2, 64),
			item.ReviewStatus,
			ai,
			strconv.Itoa(item.QualityScore),
		})
	}
}

// exportItemsXLSX экспортирует вопросы в Excel с использованием StreamWriter
func (h *ExportHandler) exportItemsXLSX(c *gin.Context, items []entity.Item, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Вопросы"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[ExportHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"ID", "Секция", "Тема", "Текст", "Сложность", "a", "b", "c", "Статус", "AI", "Качество"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[ExportHandler] Ошибка записи заголовков: %v", err)
	}

	for i, item := range items {
		rowNum := i + 2 // Первая строка — заголовки
		cell := fmt.Sprintf("A%d", rowNum)

		ai := "Нет"
		if item.IsAIGenerated {
			ai = "Да"
		}

		row := []interface{}{
			item.ID,
			item.Section,
			sanitizeForExcel(item.Topic),
			sanitizeForExcel(item.Text),
			item.Difficulty,
			item.IRTDiscrimination,
			item.IRTDifficulty,
			item.IRTGuessing,
			item.ReviewStatus,
			ai,
			item.QualityScore,
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[ExportHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[ExportHandler] Ошибка при Flush: %v", err)
		return
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[ExportHandler] Ошибка записи файла в ответ: %v", err)
	}
}

// ExportHistory экспортирует историю попыток текущего пользователя в CSV
// GET /api/attempts/history/export
func (h *ExportHandler) ExportHistory(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	attempts, err := h.attemptService.GetHistory(userID, 100)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	filename := fmt.Sprintf("attempts_%d_%s", userID, time.Now().Format("2006-01-02"))

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"ID", "Тип экзамена", "Статус", "Балл", "Уровень", "Отвечено", "Начата", "Завершена"})

	for _, a := range attempts {
		score := ""
		level := ""
		if a.Result != nil {
			score = strconv.Itoa(a.Result.TotalScore)
			level = a.Result.Level
		}
		started := ""
		if a.StartedAt != nil {
			started = a.StartedAt.Format(time.RFC3339)
		}
		completed := ""
		if a.CompletedAt != nil {
			completed = a.CompletedAt.Format(time.RFC3339)
		}

		writer.Write([]string{
			strconv.FormatUint(uint64(a.ID), 10),
			sanitizeForExcel(a.ExamType),
			a.Status,
			score,
			level,
			strconv.Itoa(len(a.Answers)),
			started,
			completed,
		})
	}
}

// sanitizeForExcel экранирует строки, начинающиеся с символов формул Excel/LibreOffice
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу: = + - @ \t \r
	if strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in ExportHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
