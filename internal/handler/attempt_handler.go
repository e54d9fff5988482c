package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/handler/dto"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/service"
)

// AttemptHandler обрабатывает запросы жизненного цикла экзаменационной попытки
type AttemptHandler struct {
	attemptService *service.AttemptService
	itemService    *service.ItemService
}

// NewAttemptHandler создает новый обработчик попыток
func NewAttemptHandler(attemptService *service.AttemptService, itemService *service.ItemService) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		itemService:    itemService,
	}
}

// CreateAttemptRequest представляет запрос на создание попытки
type CreateAttemptRequest struct {
	ExamConfigID   uint   `json:"exam_config_id" binding:"required"`
	ExamType       string `json:"exam_type" binding:"required,min=2,max=50"`
	DifficultyMode string `json:"difficulty_mode" binding:"omitempty,oneof=adaptive fixed"`
}

// CreateAttempt обрабатывает запрос на создание попытки
// POST /api/attempts
func (h *AttemptHandler) CreateAttempt(c *gin.Context) {
	var req CreateAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uint)

	attempt, err := h.attemptService.CreateAttempt(userID, req.ExamConfigID, req.ExamType, req.DifficultyMode)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewAttemptResponse(attempt))
}

// GetAttempt возвращает попытку
// GET /api/attempts/:id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attempt, err := h.ownedAttempt(c)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptResponse(attempt))
}

// StartAttempt запускает попытку
// POST /api/attempts/:id/start
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	if _, err := h.ownedAttempt(c); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	attempt, err := h.attemptService.StartAttempt(c.MustGet("attemptID").(uint))
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptResponse(attempt))
}

// NextItems возвращает следующую партию вопросов для попытки
// GET /api/attempts/:id/next?count=5&difficulty=3
func (h *AttemptHandler) NextItems(c *gin.Context) {
	if _, err := h.ownedAttempt(c); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	count := 5
	if countStr := c.Query("count"); countStr != "" {
		parsed, err := strconv.Atoi(countStr)
		if err != nil || parsed < 1 || parsed > 20 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be an integer in [1, 20]"})
			return
		}
		count = parsed
	}

	var preferredDifficulty *int
	if diffStr := c.Query("difficulty"); diffStr != "" {
		parsed, err := strconv.Atoi(diffStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty must be an integer"})
			return
		}
		preferredDifficulty = &parsed
	}

	items, err := h.attemptService.SelectNextItems(c.Request.Context(), c.MustGet("attemptID").(uint), count, preferredDifficulty)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": dto.NewListItemResponse(items)})
}

// SubmitAnswerRequest представляет запрос на приём ответа.
// Правильность клиентом не передаётся и вычисляется на сервере.
type SubmitAnswerRequest struct {
	QuestionID      uint `json:"question_id" binding:"required"`
	SelectedOption  *int `json:"selected_option" binding:"required,min=0"`
	TimeSpentSec    int  `json:"time_spent_sec" binding:"omitempty,min=0"`
	MarkedForReview bool `json:"marked_for_review"`
}

// SubmitAnswer принимает ответ на вопрос
// POST /api/attempts/:id/answers
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.ownedAttempt(c); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	attempt, isCorrect, err := h.attemptService.SubmitAnswer(c.MustGet("attemptID").(uint), service.SubmitAnswerInput{
		QuestionID:      req.QuestionID,
		SelectedOption:  *req.SelectedOption,
		TimeSpentSec:    req.TimeSpentSec,
		MarkedForReview: req.MarkedForReview,
	})
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	resp := dto.SubmitAnswerResponse{
		Attempt:   dto.NewAttemptResponse(attempt),
		IsCorrect: isCorrect,
	}

	// Разбор вопроса выдаётся сразу после ответа
	if item, err := h.itemService.GetByID(req.QuestionID); err == nil {
		resp.Explanation = item.Explanation
		resp.KeyPoints = item.KeyPoints
	}

	c.JSON(http.StatusOK, resp)
}

// PauseAttempt приостанавливает попытку
// POST /api/attempts/:id/pause
func (h *AttemptHandler) PauseAttempt(c *gin.Context) {
	if _, err := h.ownedAttempt(c); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	attempt, err := h.attemptService.PauseAttempt(c.MustGet("attemptID").(uint))
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptResponse(attempt))
}

// ResumeAttempt возобновляет приостановленную попытку
// POST /api/attempts/:id/resume
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	if _, err := h.ownedAttempt(c); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	attempt, err := h.attemptService.ResumeAttempt(c.MustGet("attemptID").(uint))
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptResponse(attempt))
}

// CompleteAttempt завершает попытку и возвращает результат
// POST /api/attempts/:id/complete
func (h *AttemptHandler) CompleteAttempt(c *gin.Context) {
	if _, err := h.ownedAttempt(c); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	attempt, err := h.attemptService.CompleteAttempt(c.MustGet("attemptID").(uint))
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptResponse(attempt))
}

// GetResult возвращает результат завершённой попытки
// GET /api/attempts/:id/result
func (h *AttemptHandler) GetResult(c *gin.Context) {
	attempt, err := h.ownedAttempt(c)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	if attempt.Result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result is not available yet"})
		return
	}

	c.JSON(http.StatusOK, attempt.Result)
}

// CheatEventRequest представляет антифрод-событие клиента
type CheatEventRequest struct {
	EventType string `json:"event_type" binding:"required,oneof=tab_switch fullscreen_exit"`
}

// RecordCheatEvent фиксирует антифрод-событие
// POST /api/attempts/:id/events
func (h *AttemptHandler) RecordCheatEvent(c *gin.Context) {
	var req CheatEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.ownedAttempt(c); err != nil {
		h.handleAttemptError(c, err)
		return
	}

	attempt, err := h.attemptService.RecordCheatEvent(c.MustGet("attemptID").(uint), req.EventType)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptResponse(attempt))
}

// GetHistory возвращает историю попыток текущего пользователя
// GET /api/attempts/history?limit=10
func (h *AttemptHandler) GetHistory(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	limit := 10
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	attempts, err := h.attemptService.GetHistory(userID, limit)
	if err != nil {
		log.Printf("[AttemptHandler] Ошибка при получении истории пользователя #%d: %v", userID, err)
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": dto.NewListAttemptResponse(attempts)})
}

// GetBestScore возвращает лучшую завершённую попытку пользователя
// GET /api/attempts/best
func (h *AttemptHandler) GetBestScore(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	attempt, err := h.attemptService.GetBestScore(userID)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}
	if attempt == nil {
		c.JSON(http.StatusOK, gin.H{"attempt": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempt": dto.NewAttemptResponse(attempt)})
}

// ownedAttempt загружает попытку из контекста и проверяет владельца
func (h *AttemptHandler) ownedAttempt(c *gin.Context) (*entity.ExamAttempt, error) {
	attemptID := c.MustGet("attemptID").(uint)
	userID := c.MustGet("user_id").(uint)

	attempt, err := h.attemptService.GetAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, fmt.Errorf("%w: attempt #%d belongs to another user", apperrors.ErrForbidden, attemptID)
	}
	return attempt, nil
}

// handleAttemptError преобразует ошибки сервисов в HTTP-ответы
func (h *AttemptHandler) handleAttemptError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrAttemptExpired) {
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in AttemptHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
