package service

import (
	"fmt"
	"log"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// Максимальный размер страницы поиска по банку
const maxSearchLimit = 100

// ItemService реализует операции над банком заданий: поиск для клиентов
// и административный контур (создание, модерация)
type ItemService struct {
	itemRepo repository.ItemRepository
}

// NewItemService создаёт новый сервис банка заданий
func NewItemService(itemRepo repository.ItemRepository) *ItemService {
	return &ItemService{itemRepo: itemRepo}
}

// Search возвращает страницу вопросов по фильтру и общее число подходящих.
// Пустой ReviewStatus трактуется как approved: неодобренные вопросы
// видны только при явном запросе (админский контур).
func (s *ItemService) Search(filter repository.ItemFilter) ([]entity.Item, int64, error) {
	if filter.Section != "" && !entity.IsValidSection(filter.Section) {
		return nil, 0, fmt.Errorf("%w: unknown section %q", apperrors.ErrValidation, filter.Section)
	}
	if filter.ReviewStatus != "" && !entity.IsValidReviewStatus(filter.ReviewStatus) {
		return nil, 0, fmt.Errorf("%w: unknown review status %q", apperrors.ErrValidation, filter.ReviewStatus)
	}
	for _, d := range filter.Difficulties {
		if d < entity.MinDifficulty || d > entity.MaxDifficulty {
			return nil, 0, fmt.Errorf("%w: difficulty %d out of range", apperrors.ErrValidation, d)
		}
	}

	if filter.Limit < 1 {
		filter.Limit = 20
	} else if filter.Limit > maxSearchLimit {
		filter.Limit = maxSearchLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return s.itemRepo.Search(filter)
}

// GetByID возвращает вопрос по идентификатору
func (s *ItemService) GetByID(id uint) (*entity.Item, error) {
	return s.itemRepo.GetByID(id)
}

// Create добавляет вопрос в банк после валидации содержимого и калибровки
func (s *ItemService) Create(item *entity.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}
	if item.ReviewStatus == "" {
		item.ReviewStatus = entity.ReviewStatusPending
	}

	if err := s.itemRepo.Create(item); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	log.Printf("[ItemService] Создан вопрос #%d (section=%s, difficulty=%d)", item.ID, item.Section, item.Difficulty)
	return nil
}

// CreateBatch добавляет партию вопросов. Валидация строгая: одна плохая
// запись отклоняет всю партию до обращения к базе.
func (s *ItemService) CreateBatch(items []entity.Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: empty batch", apperrors.ErrValidation)
	}

	for i := range items {
		if err := validateItem(&items[i]); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if items[i].ReviewStatus == "" {
			items[i].ReviewStatus = entity.ReviewStatusPending
		}
	}

	if err := s.itemRepo.CreateBatch(items); err != nil {
		return fmt.Errorf("failed to create items batch: %w", err)
	}

	log.Printf("[ItemService] Импортирована партия из %d вопросов", len(items))
	return nil
}

// Update обновляет содержимое вопроса. IRT-калибровка одобренного вопроса
// неизменяема: оценки способности сравнимы только при стабильных параметрах.
func (s *ItemService) Update(item *entity.Item) error {
	if item.ID == 0 {
		return fmt.Errorf("%w: item id is required", apperrors.ErrValidation)
	}
	if err := validateItem(item); err != nil {
		return err
	}

	existing, err := s.itemRepo.GetByID(item.ID)
	if err != nil {
		return err
	}

	if existing.IsApproved() {
		if item.IRTDiscrimination != existing.IRTDiscrimination ||
			item.IRTDifficulty != existing.IRTDifficulty ||
			item.IRTGuessing != existing.IRTGuessing {
			return fmt.Errorf("%w: IRT calibration of an approved item is immutable", apperrors.ErrConflict)
		}
	}

	if err := s.itemRepo.Update(item); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

// UpdateReviewStatus меняет статус модерации вопроса
func (s *ItemService) UpdateReviewStatus(id uint, status string) error {
	if !entity.IsValidReviewStatus(status) {
		return fmt.Errorf("%w: unknown review status %q", apperrors.ErrValidation, status)
	}

	if err := s.itemRepo.UpdateReviewStatus(id, status); err != nil {
		return err
	}

	log.Printf("[ItemService] Вопрос #%d: статус модерации → %s", id, status)
	return nil
}

// DifficultyStats возвращает распределение одобренных вопросов по сложности
func (s *ItemService) DifficultyStats() map[int]int64 {
	stats := make(map[int]int64)
	for d := entity.MinDifficulty; d <= entity.MaxDifficulty; d++ {
		count, err := s.itemRepo.CountByDifficulty(d)
		if err != nil {
			log.Printf("[ItemService] Error counting difficulty %d: %v", d, err)
			continue
		}
		stats[d] = count
	}
	return stats
}

// validateItem проверяет инварианты вопроса перед записью в банк
func validateItem(item *entity.Item) error {
	if !entity.IsValidSection(item.Section) {
		return fmt.Errorf("%w: unknown section %q", apperrors.ErrValidation, item.Section)
	}
	if item.Text == "" {
		return fmt.Errorf("%w: question text is required", apperrors.ErrValidation)
	}
	if item.Topic == "" {
		return fmt.Errorf("%w: topic is required", apperrors.ErrValidation)
	}
	if len(item.Options) < 2 {
		return fmt.Errorf("%w: at least two options are required", apperrors.ErrValidation)
	}
	if !item.IsValidOption(item.CorrectOption) {
		return fmt.Errorf("%w: correct option %d out of range", apperrors.ErrValidation, item.CorrectOption)
	}
	if item.Difficulty < entity.MinDifficulty || item.Difficulty > entity.MaxDifficulty {
		return fmt.Errorf("%w: difficulty %d out of range", apperrors.ErrValidation, item.Difficulty)
	}
	if item.IRTDiscrimination <= 0 {
		return fmt.Errorf("%w: IRT discrimination must be positive", apperrors.ErrValidation)
	}
	if item.IRTGuessing < 0 || item.IRTGuessing >= 1 {
		return fmt.Errorf("%w: IRT guessing must be in [0, 1)", apperrors.ErrValidation)
	}
	if item.QualityScore < 0 || item.QualityScore > 100 {
		return fmt.Errorf("%w: quality score must be in [0, 100]", apperrors.ErrValidation)
	}
	return nil
}
