package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// ExamConfigHandler обрабатывает запросы к конфигурациям экзаменов
type ExamConfigHandler struct {
	configRepo repository.ExamConfigRepository
}

// NewExamConfigHandler создает новый обработчик конфигураций
func NewExamConfigHandler(configRepo repository.ExamConfigRepository) *ExamConfigHandler {
	return &ExamConfigHandler{configRepo: configRepo}
}

// ListActive возвращает активные конфигурации экзаменов
// GET /api/exam-configs
func (h *ExamConfigHandler) ListActive(c *gin.Context) {
	configs, err := h.configRepo.ListActive()
	if err != nil {
		h.handleConfigError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

// GetConfig возвращает конфигурацию по ID
// GET /api/exam-configs/:id
func (h *ExamConfigHandler) GetConfig(c *gin.Context) {
	configID := c.MustGet("configID").(uint)

	config, err := h.configRepo.GetByID(configID)
	if err != nil {
		h.handleConfigError(c, err)
		return
	}

	c.JSON(http.StatusOK, config)
}

// CreateConfigRequest представляет запрос на создание конфигурации
type CreateConfigRequest struct {
	Title               string `json:"title" binding:"required,min=3,max=100"`
	ExamType            string `json:"exam_type" binding:"required,min=2,max=50"`
	QuestionsPerSection int    `json:"questions_per_section" binding:"required,min=1,max=50"`
	TimeLimitMinutes    int    `json:"time_limit_minutes" binding:"required,min=10,max=300"`
	IsActive            bool   `json:"is_active"`
}

// CreateConfig создаёт конфигурацию экзамена (админский контур)
// POST /api/admin/exam-configs
func (h *ExamConfigHandler) CreateConfig(c *gin.Context) {
	var req CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config := &entity.ExamConfig{
		Title:               req.Title,
		ExamType:            req.ExamType,
		QuestionsPerSection: req.QuestionsPerSection,
		TimeLimitMinutes:    req.TimeLimitMinutes,
		IsActive:            req.IsActive,
	}

	if err := h.configRepo.Create(config); err != nil {
		h.handleConfigError(c, err)
		return
	}

	c.JSON(http.StatusCreated, config)
}

func (h *ExamConfigHandler) handleConfigError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in ExamConfigHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
