package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	"github.com/yourusername/exam-api/internal/handler/dto"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/service"
	"github.com/yourusername/exam-api/internal/service/examengine"
)

// ItemHandler обрабатывает запросы к банку заданий
type ItemHandler struct {
	itemService       *service.ItemService
	generationService *service.GenerationService
	selector          *examengine.AdaptiveSelector
}

// NewItemHandler создает новый обработчик банка заданий
func NewItemHandler(itemService *service.ItemService, generationService *service.GenerationService, selector *examengine.AdaptiveSelector) *ItemHandler {
	return &ItemHandler{
		itemService:       itemService,
		generationService: generationService,
		selector:          selector,
	}
}

// SearchItems возвращает страницу одобренных вопросов по фильтру
// GET /api/items?section=grammar&topic=tenses&difficulty=3&limit=20&offset=0
func (h *ItemHandler) SearchItems(c *gin.Context) {
	filter := repository.ItemFilter{
		Section:      c.Query("section"),
		QuestionType: c.Query("type"),
		Topic:        c.Query("topic"),
	}

	if diffStr := c.Query("difficulty"); diffStr != "" {
		difficulty, err := strconv.Atoi(diffStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty must be an integer"})
			return
		}
		filter.Difficulties = []int{difficulty}
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = parsed
		}
	}

	items, total, err := h.itemService.Search(filter)
	if err != nil {
		h.handleItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedItemResponse{
		Items:  dto.NewListItemResponse(items),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetItem возвращает вопрос без правильного ответа
// GET /api/items/:id
func (h *ItemHandler) GetItem(c *gin.Context) {
	itemID := c.MustGet("itemID").(uint)

	item, err := h.itemService.GetByID(itemID)
	if err != nil {
		h.handleItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewItemResponse(item))
}

// CreateItemRequest представляет запрос на создание вопроса
type CreateItemRequest struct {
	Section           string   `json:"section" binding:"required"`
	QuestionType      string   `json:"question_type" binding:"required,min=2,max=50"`
	Topic             string   `json:"topic" binding:"required,min=2,max=100"`
	Subtopic          string   `json:"subtopic" binding:"omitempty,max=100"`
	Tags              []string `json:"tags"`
	Text              string   `json:"text" binding:"required,min=3,max=2000"`
	Options           []string `json:"options" binding:"required,min=2,max=6"`
	CorrectOption     *int     `json:"correct_option" binding:"required,min=0"`
	Explanation       string   `json:"explanation" binding:"omitempty,max=2000"`
	KeyPoints         []string `json:"key_points"`
	AudioTranscript   string   `json:"audio_transcript"`
	PassageText       string   `json:"passage_text"`
	Difficulty        int      `json:"difficulty" binding:"required,min=1,max=5"`
	IRTDiscrimination float64  `json:"irt_discrimination" binding:"omitempty,gt=0"`
	IRTDifficulty     float64  `json:"irt_difficulty"`
	IRTGuessing       float64  `json:"irt_guessing" binding:"omitempty,gte=0,lt=1"`
}

func (req *CreateItemRequest) toEntity() entity.Item {
	a := req.IRTDiscrimination
	if a == 0 {
		a = 1.0
	}
	return entity.Item{
		Section:           req.Section,
		QuestionType:      req.QuestionType,
		Topic:             req.Topic,
		Subtopic:          req.Subtopic,
		Tags:              req.Tags,
		Text:              req.Text,
		Options:           req.Options,
		CorrectOption:     *req.CorrectOption,
		Explanation:       req.Explanation,
		KeyPoints:         req.KeyPoints,
		AudioTranscript:   req.AudioTranscript,
		PassageText:       req.PassageText,
		Difficulty:        req.Difficulty,
		IRTDiscrimination: a,
		IRTDifficulty:     req.IRTDifficulty,
		IRTGuessing:       req.IRTGuessing,
	}
}

// CreateItem создаёт вопрос (админский контур)
// POST /api/admin/items
func (h *ItemHandler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item := req.toEntity()
	if err := h.itemService.Create(&item); err != nil {
		h.handleItemError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewAdminItemResponse(&item))
}

// CreateItemsBatchRequest представляет запрос на пакетный импорт вопросов
type CreateItemsBatchRequest struct {
	Items []CreateItemRequest `json:"items" binding:"required,min=1,max=500"`
}

// CreateItemsBatch импортирует партию вопросов (админский контур)
// POST /api/admin/items/batch
func (h *ItemHandler) CreateItemsBatch(c *gin.Context) {
	var req CreateItemsBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]entity.Item, 0, len(req.Items))
	for i := range req.Items {
		items = append(items, req.Items[i].toEntity())
	}

	if err := h.itemService.CreateBatch(items); err != nil {
		h.handleItemError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": len(items)})
}

// GetItemAdmin возвращает вопрос с правильным ответом, калибровкой и
// наблюдаемым pass rate из телеметрии ответов
// GET /api/admin/items/:id
func (h *ItemHandler) GetItemAdmin(c *gin.Context) {
	itemID := c.MustGet("itemID").(uint)

	item, err := h.itemService.GetByID(itemID)
	if err != nil {
		h.handleItemError(c, err)
		return
	}

	resp := dto.NewAdminItemResponse(item)
	if rate := h.selector.ItemPassRate(item.ID); rate >= 0 {
		resp.PassRate = &rate
	}

	c.JSON(http.StatusOK, resp)
}

// SearchItemsAdmin возвращает вопросы любого статуса модерации
// GET /api/admin/items?review_status=pending&is_ai_generated=true
func (h *ItemHandler) SearchItemsAdmin(c *gin.Context) {
	filter := repository.ItemFilter{
		Section:      c.Query("section"),
		Topic:        c.Query("topic"),
		ReviewStatus: c.DefaultQuery("review_status", entity.ReviewStatusPending),
	}

	if aiStr := c.Query("is_ai_generated"); aiStr != "" {
		isAI := aiStr == "true"
		filter.IsAIGenerated = &isAI
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = parsed
		}
	}

	items, total, err := h.itemService.Search(filter)
	if err != nil {
		h.handleItemError(c, err)
		return
	}

	responses := make([]dto.AdminItemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, dto.NewAdminItemResponse(&items[i]))
	}

	c.JSON(http.StatusOK, gin.H{"items": responses, "total": total})
}

// UpdateReviewStatusRequest представляет запрос на смену статуса модерации
type UpdateReviewStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected needs_revision"`
}

// UpdateReviewStatus меняет статус модерации вопроса
// PATCH /api/admin/items/:id/status
func (h *ItemHandler) UpdateReviewStatus(c *gin.Context) {
	var req UpdateReviewStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	itemID := c.MustGet("itemID").(uint)
	if err := h.itemService.UpdateReviewStatus(itemID, req.Status); err != nil {
		h.handleItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": itemID, "review_status": req.Status})
}

// DifficultyStats возвращает распределение одобренных вопросов по сложности
// GET /api/admin/items/stats/difficulty
func (h *ItemHandler) DifficultyStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"difficulty_counts": h.itemService.DifficultyStats()})
}

// GenerateItemsRequest представляет запрос на генерацию вопросов
type GenerateItemsRequest struct {
	Section    string `json:"section" binding:"required"`
	Topic      string `json:"topic" binding:"required,min=2,max=100"`
	Difficulty int    `json:"difficulty" binding:"required,min=1,max=5"`
	Count      int    `json:"count" binding:"required,min=1,max=50"`
}

// GenerateItems запускает фоновую генерацию черновиков вопросов
// POST /api/admin/items/generate
func (h *ItemHandler) GenerateItems(c *gin.Context) {
	var req GenerateItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Фоновая задача переживает HTTP-запрос, поэтому контекст запроса не используется
	taskID, _ := h.generationService.GenerateAsync(context.Background(), service.DraftRequest{
		Section:    req.Section,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Count:      req.Count,
	})

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

// GenerationTaskStatus возвращает состояние фоновой задачи генерации
// GET /api/admin/items/generate/:task_id
func (h *ItemHandler) GenerationTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	status, err := h.generationService.TaskStatus(taskID)
	if err != nil {
		h.handleItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": status})
}

// handleItemError преобразует ошибки сервисов в HTTP-ответы
func (h *ItemHandler) handleItemError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in ItemHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
