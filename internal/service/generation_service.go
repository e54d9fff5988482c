package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// Балл качества, присваиваемый сгенерированным черновикам до модерации
const generatedDraftQuality = 75

// Статусы фоновой задачи генерации
const (
	GenerationTaskRunning = "running"
	GenerationTaskDone    = "done"
	GenerationTaskFailed  = "failed"
)

// Защита от параллельной генерации по одной паре секция/тема и срок
// хранения статуса задачи
const (
	generationLockTTL = 5 * time.Minute
	generationTaskTTL = time.Hour
)

// ItemDraft — черновик вопроса, возвращаемый внешним генератором
type ItemDraft struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation"`
	KeyPoints     []string `json:"key_points"`
	Tags          []string `json:"tags"`
}

// DraftRequest — запрос партии черновиков у внешнего генератора
type DraftRequest struct {
	Section    string `json:"section"`
	Topic      string `json:"topic"`
	Difficulty int    `json:"difficulty"`
	Count      int    `json:"count"`
}

// DraftClient запрашивает черновики вопросов у внешнего генератора
type DraftClient interface {
	GenerateDrafts(ctx context.Context, req DraftRequest) ([]ItemDraft, error)
}

// NoopDraftClient используется, когда генерация отключена конфигурацией
type NoopDraftClient struct{}

func (c *NoopDraftClient) GenerateDrafts(ctx context.Context, req DraftRequest) ([]ItemDraft, error) {
	log.Printf("[GenerationService] noop generate drafts section=%s topic=%s count=%d", req.Section, req.Topic, req.Count)
	return nil, nil
}

// HTTPDraftClient запрашивает черновики у внешнего REST-генератора
type HTTPDraftClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPDraftClient(baseURL, apiKey string, timeout time.Duration) (*HTTPDraftClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("generator base url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDraftClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPDraftClient) GenerateDrafts(ctx context.Context, req DraftRequest) ([]ItemDraft, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		drafts, err := c.doRequest(ctx, body)
		if err == nil {
			return drafts, nil
		}
		lastErr = err

		if wait, ok := draftRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return nil, fmt.Errorf("draft generation failed: %w", err)
	}

	return nil, fmt.Errorf("draft generation failed after retries: %w", lastErr)
}

func (c *HTTPDraftClient) doRequest(ctx context.Context, body []byte) ([]ItemDraft, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/drafts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var drafts []ItemDraft
	if err := json.NewDecoder(resp.Body).Decode(&drafts); err != nil {
		return nil, fmt.Errorf("failed to decode drafts: %w", err)
	}
	return drafts, nil
}

func draftRetryDelay(err error, attempt int) (time.Duration, bool) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}
	return 0, false
}

// GenerationResult — итог асинхронной задачи генерации
type GenerationResult struct {
	TaskID  string
	Created []entity.Item
	Err     error
}

// GenerationService пополняет банк заданий черновиками внешнего генератора.
// Созданные вопросы попадают в банк со статусом pending и в отборе не
// участвуют, пока модерация их не одобрит.
type GenerationService struct {
	itemRepo  repository.ItemRepository
	cacheRepo repository.CacheRepository
	client    DraftClient
}

// NewGenerationService создаёт новый сервис генерации
func NewGenerationService(itemRepo repository.ItemRepository, cacheRepo repository.CacheRepository, client DraftClient) *GenerationService {
	return &GenerationService{
		itemRepo:  itemRepo,
		cacheRepo: cacheRepo,
		client:    client,
	}
}

// Generate синхронно запрашивает черновики и сохраняет их в банк как pending
func (s *GenerationService) Generate(ctx context.Context, req DraftRequest) ([]entity.Item, error) {
	if !entity.IsValidSection(req.Section) {
		return nil, fmt.Errorf("%w: unknown section %q", apperrors.ErrValidation, req.Section)
	}
	if req.Count < 1 || req.Count > 50 {
		return nil, fmt.Errorf("%w: count must be in [1, 50]", apperrors.ErrValidation)
	}
	if req.Difficulty < entity.MinDifficulty || req.Difficulty > entity.MaxDifficulty {
		return nil, fmt.Errorf("%w: difficulty %d out of range", apperrors.ErrValidation, req.Difficulty)
	}

	// Redis-блокировка: две параллельные генерации по одной секции/теме
	// заспамили бы банк дубликатами черновиков
	lockKey := fmt.Sprintf("generation:lock:%s:%s", req.Section, req.Topic)
	acquired, err := s.cacheRepo.SetNX(lockKey, 1, generationLockTTL)
	if err != nil {
		// Redis недоступен: генерация важнее блокировки, работаем без неё
		log.Printf("[GenerationService] WARNING: не удалось взять блокировку %s: %v", lockKey, err)
	} else if !acquired {
		return nil, fmt.Errorf("%w: generation for %s/%s is already running", apperrors.ErrConflict, req.Section, req.Topic)
	} else {
		defer func() {
			if delErr := s.cacheRepo.Delete(lockKey); delErr != nil {
				log.Printf("[GenerationService] WARNING: не удалось снять блокировку %s: %v", lockKey, delErr)
			}
		}()
	}

	drafts, err := s.client.GenerateDrafts(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return []entity.Item{}, nil
	}

	items := make([]entity.Item, 0, len(drafts))
	for _, draft := range drafts {
		if len(draft.Options) < 2 || draft.CorrectOption < 0 || draft.CorrectOption >= len(draft.Options) {
			log.Printf("[GenerationService] Отброшен некорректный черновик (section=%s, topic=%s)", req.Section, req.Topic)
			continue
		}
		items = append(items, entity.Item{
			Section:           req.Section,
			QuestionType:      "multiple_choice",
			Topic:             req.Topic,
			Tags:              draft.Tags,
			Text:              draft.Text,
			Options:           draft.Options,
			CorrectOption:     draft.CorrectOption,
			Explanation:       draft.Explanation,
			KeyPoints:         draft.KeyPoints,
			Difficulty:        req.Difficulty,
			IRTDiscrimination: 1.0,
			IRTDifficulty:     irtSeedForDifficulty(req.Difficulty),
			IRTGuessing:       guessingSeed(len(draft.Options)),
			IsAIGenerated:     true,
			GenerationMethod:  "llm_draft",
			QualityScore:      generatedDraftQuality,
			ReviewStatus:      entity.ReviewStatusPending,
		})
	}

	if len(items) == 0 {
		return []entity.Item{}, nil
	}

	if err := s.itemRepo.CreateBatch(items); err != nil {
		return nil, fmt.Errorf("failed to store generated items: %w", err)
	}

	log.Printf("[GenerationService] Сохранено %d черновиков (section=%s, topic=%s)", len(items), req.Section, req.Topic)
	return items, nil
}

// GenerateAsync запускает генерацию в фоне и возвращает идентификатор задачи
// вместе с каналом результата. Канал буферизован: результат не теряется,
// даже если его никто не читает. Состояние задачи публикуется в Redis и
// опрашивается через TaskStatus.
func (s *GenerationService) GenerateAsync(ctx context.Context, req DraftRequest) (string, <-chan GenerationResult) {
	taskID := uuid.New().String()
	resultCh := make(chan GenerationResult, 1)
	s.publishTaskStatus(taskID, GenerationTaskRunning)

	go func() {
		created, err := s.Generate(ctx, req)
		if err != nil {
			log.Printf("[GenerationService] Задача %s завершилась ошибкой: %v", taskID, err)
			s.publishTaskStatus(taskID, GenerationTaskFailed)
		} else {
			s.publishTaskStatus(taskID, GenerationTaskDone)
		}
		resultCh <- GenerationResult{TaskID: taskID, Created: created, Err: err}
		close(resultCh)
	}()

	return taskID, resultCh
}

// TaskStatus возвращает состояние фоновой задачи генерации.
// Неизвестный (или протухший) идентификатор — ErrNotFound.
func (s *GenerationService) TaskStatus(taskID string) (string, error) {
	key := generationTaskKey(taskID)
	exists, err := s.cacheRepo.Exists(key)
	if err != nil {
		return "", fmt.Errorf("failed to check generation task: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: generation task %s", apperrors.ErrNotFound, taskID)
	}
	return s.cacheRepo.Get(key)
}

func (s *GenerationService) publishTaskStatus(taskID, status string) {
	if err := s.cacheRepo.Set(generationTaskKey(taskID), status, generationTaskTTL); err != nil {
		log.Printf("[GenerationService] WARNING: не удалось записать статус задачи %s: %v", taskID, err)
	}
}

func generationTaskKey(taskID string) string {
	return "generation:task:" + taskID
}

// irtSeedForDifficulty даёт стартовый IRT-параметр b по грубой сложности.
// Центры интервалов отображения θ → сложность.
func irtSeedForDifficulty(difficulty int) float64 {
	switch difficulty {
	case 1:
		return -2.5
	case 2:
		return -1.25
	case 3:
		return 0
	case 4:
		return 1.25
	default:
		return 2.5
	}
}

// guessingSeed — стартовая вероятность угадывания 1/N по числу вариантов
func guessingSeed(options int) float64 {
	if options < 2 {
		return 0
	}
	return 1.0 / float64(options)
}
