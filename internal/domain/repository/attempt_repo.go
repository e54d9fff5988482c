package repository

import (
	"time"

	"github.com/yourusername/exam-api/internal/domain/entity"
)

// AttemptRepository определяет методы для работы с экзаменационными попытками
type AttemptRepository interface {
	Create(attempt *entity.ExamAttempt) error
	GetByID(id uint) (*entity.ExamAttempt, error)

	// Update сохраняет попытку без проверки версии.
	// Используется только для переходов, где гонка невозможна (create/start).
	Update(attempt *entity.ExamAttempt) error

	// UpdateWithVersion сохраняет попытку с оптимистичной блокировкой:
	// UPDATE ... WHERE id = ? AND version = ?, с инкрементом версии.
	// Возвращает ErrVersionConflict, если запись была изменена параллельно.
	// Это обязательная гарантия для upsert'а ответов: две параллельные
	// записи read-modify-write не могут молча потерять ответ.
	UpdateWithVersion(attempt *entity.ExamAttempt) error

	// GetHistory возвращает попытки пользователя, новые первыми
	GetHistory(userID uint, limit int) ([]entity.ExamAttempt, error)

	// GetBestScore возвращает завершённую попытку пользователя с максимальным
	// result.total_score. Ничья разрешается детерминированно: раньше завершённая,
	// затем меньший id. Возвращает (nil, nil), если завершённых попыток нет.
	GetBestScore(userID uint) (*entity.ExamAttempt, error)

	// ExpireOverdue переводит в expired все нетерминальные попытки,
	// у которых истёк expires_at. Возвращает число затронутых записей.
	ExpireOverdue(now time.Time) (int64, error)
}
