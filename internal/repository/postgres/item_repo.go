package postgres

import (
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// ItemRepo реализует repository.ItemRepository
type ItemRepo struct {
	db *gorm.DB
}

// NewItemRepo создаёт новый репозиторий банка заданий
func NewItemRepo(db *gorm.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// Search возвращает страницу вопросов по фильтру и общее количество подходящих
func (r *ItemRepo) Search(filter repository.ItemFilter) ([]entity.Item, int64, error) {
	query := r.db.Model(&entity.Item{})

	if filter.Section != "" {
		query = query.Where("section = ?", filter.Section)
	}
	if filter.QuestionType != "" {
		query = query.Where("question_type = ?", filter.QuestionType)
	}
	if len(filter.Difficulties) > 0 {
		query = query.Where("difficulty IN ?", filter.Difficulties)
	}
	if filter.Topic != "" {
		query = query.Where("topic ILIKE ?", "%"+filter.Topic+"%")
	}
	if len(filter.Topics) > 0 {
		// Тема входит в список ИЛИ теги пересекаются с ним (JSONB-массив).
		// jsonb_exists_any вместо оператора ?|, который конфликтует с плейсхолдерами
		query = query.Where("topic IN ? OR jsonb_exists_any(tags, ?)", filter.Topics, pq.Array(filter.Topics))
	}
	if len(filter.Tags) > 0 {
		query = query.Where("jsonb_exists_any(tags, ?)", pq.Array(filter.Tags))
	}
	if filter.IsAIGenerated != nil {
		query = query.Where("is_ai_generated = ?", *filter.IsAIGenerated)
	}

	// Пустой статус по умолчанию трактуется как approved
	reviewStatus := filter.ReviewStatus
	if reviewStatus == "" {
		reviewStatus = entity.ReviewStatusApproved
	}
	query = query.Where("review_status = ?", reviewStatus)

	if filter.MinQuality > 0 {
		query = query.Where("quality_score >= ?", filter.MinQuality)
	}
	if len(filter.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIDs)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []entity.Item
	err := query.
		Order("id").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetByID возвращает вопрос по ID
func (r *ItemRepo) GetByID(id uint) (*entity.Item, error) {
	var item entity.Item
	err := r.db.First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Create создаёт новый вопрос
func (r *ItemRepo) Create(item *entity.Item) error {
	return r.db.Create(item).Error
}

// CreateBatch создаёт партию вопросов в одной транзакции
func (r *ItemRepo) CreateBatch(items []entity.Item) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.CreateInBatches(items, 100).Error
}

// Update сохраняет все поля вопроса
func (r *ItemRepo) Update(item *entity.Item) error {
	result := r.db.Model(&entity.Item{}).
		Where("id = ?", item.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(item)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateReviewStatus меняет только статус модерации вопроса
func (r *ItemRepo) UpdateReviewStatus(id uint, status string) error {
	result := r.db.Model(&entity.Item{}).
		Where("id = ?", id).
		Update("review_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CountByDifficulty возвращает количество одобренных вопросов заданной сложности
func (r *ItemRepo) CountByDifficulty(difficulty int) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Item{}).
		Where("difficulty = ? AND review_status = ?", difficulty, entity.ReviewStatusApproved).
		Count(&count).Error
	return count, err
}
