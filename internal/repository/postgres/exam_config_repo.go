package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// ExamConfigRepo реализует repository.ExamConfigRepository
type ExamConfigRepo struct {
	db *gorm.DB
}

// NewExamConfigRepo создаёт новый репозиторий конфигураций экзаменов
func NewExamConfigRepo(db *gorm.DB) *ExamConfigRepo {
	return &ExamConfigRepo{db: db}
}

// GetByID возвращает конфигурацию по ID
func (r *ExamConfigRepo) GetByID(id uint) (*entity.ExamConfig, error) {
	var config entity.ExamConfig
	err := r.db.First(&config, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &config, nil
}

// ListActive возвращает все активные конфигурации
func (r *ExamConfigRepo) ListActive() ([]entity.ExamConfig, error) {
	var configs []entity.ExamConfig
	err := r.db.Where("is_active = ?", true).Order("id").Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// Create создаёт новую конфигурацию
func (r *ExamConfigRepo) Create(config *entity.ExamConfig) error {
	return r.db.Create(config).Error
}
