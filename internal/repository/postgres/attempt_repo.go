package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// AttemptRepo реализует repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создаёт новый репозиторий экзаменационных попыток
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Create создаёт новую попытку
func (r *AttemptRepo) Create(attempt *entity.ExamAttempt) error {
	return r.db.Create(attempt).Error
}

// GetByID возвращает попытку по ID
func (r *AttemptRepo) GetByID(id uint) (*entity.ExamAttempt, error) {
	var attempt entity.ExamAttempt
	err := r.db.First(&attempt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// Update сохраняет попытку без проверки версии
func (r *AttemptRepo) Update(attempt *entity.ExamAttempt) error {
	result := r.db.Model(&entity.ExamAttempt{}).
		Where("id = ?", attempt.ID).
		Select("*").
		Omit("id", "created_at", "version").
		Updates(attempt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateWithVersion сохраняет попытку с оптимистичной блокировкой.
// UPDATE срабатывает только если версия в базе совпадает с прочитанной;
// иначе запись была изменена параллельно и возвращается ErrVersionConflict.
func (r *AttemptRepo) UpdateWithVersion(attempt *entity.ExamAttempt) error {
	currentVersion := attempt.Version
	attempt.Version = currentVersion + 1

	result := r.db.Model(&entity.ExamAttempt{}).
		Where("id = ? AND version = ?", attempt.ID, currentVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(attempt)
	if result.Error != nil {
		attempt.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		attempt.Version = currentVersion
		// Либо записи нет, либо версия ушла вперёд — различаем отдельным чтением
		var exists int64
		if err := r.db.Model(&entity.ExamAttempt{}).Where("id = ?", attempt.ID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return apperrors.ErrNotFound
		}
		return apperrors.ErrVersionConflict
	}
	return nil
}

// GetHistory возвращает попытки пользователя, новые первыми
func (r *AttemptRepo) GetHistory(userID uint, limit int) ([]entity.ExamAttempt, error) {
	var attempts []entity.ExamAttempt
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// GetBestScore возвращает завершённую попытку пользователя с максимальным
// итоговым баллом. Ничья разрешается детерминированно: раньше завершённая,
// затем меньший id. Отсутствие завершённых попыток — не ошибка: (nil, nil).
func (r *AttemptRepo) GetBestScore(userID uint) (*entity.ExamAttempt, error) {
	var attempt entity.ExamAttempt
	err := r.db.Where("user_id = ? AND status = ? AND result IS NOT NULL", userID, entity.AttemptStatusCompleted).
		Order("(result->>'total_score')::int DESC, completed_at ASC, id ASC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

// ExpireOverdue переводит в expired все нетерминальные попытки с истёкшим сроком
func (r *AttemptRepo) ExpireOverdue(now time.Time) (int64, error) {
	result := r.db.Model(&entity.ExamAttempt{}).
		Where("expires_at <= ? AND status IN ?", now, []string{
			entity.AttemptStatusNotStarted,
			entity.AttemptStatusInProgress,
			entity.AttemptStatusPaused,
		}).
		Update("status", entity.AttemptStatusExpired)
	return result.RowsAffected, result.Error
}
