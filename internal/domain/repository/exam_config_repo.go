package repository

import (
	"github.com/yourusername/exam-api/internal/domain/entity"
)

// ExamConfigRepository определяет методы для работы с конфигурациями экзаменов
type ExamConfigRepository interface {
	GetByID(id uint) (*entity.ExamConfig, error)
	ListActive() ([]entity.ExamConfig, error)
	Create(config *entity.ExamConfig) error
}
