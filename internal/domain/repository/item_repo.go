package repository

import (
	"github.com/yourusername/exam-api/internal/domain/entity"
)

// ItemFilter описывает критерии поиска по банку заданий.
// Пустые поля не ограничивают выборку.
type ItemFilter struct {
	Section      string
	QuestionType string

	// Difficulties — допустимые уровни грубой сложности (1-5)
	Difficulties []int

	// Topic — подстрочный поиск по теме (ILIKE)
	Topic string

	// Topics — точное пересечение: тема вопроса входит в список ИЛИ теги пересекаются с ним.
	// Используется адаптивным селектором для слабых тем.
	Topics []string

	// Tags — вопрос должен содержать хотя бы один из тегов
	Tags []string

	// IsAIGenerated — nil не фильтрует; иначе official (false) / generated (true)
	IsAIGenerated *bool

	// ReviewStatus — по умолчанию (пустая строка) трактуется как approved
	ReviewStatus string

	// MinQuality — минимальный балл качества (0 не ограничивает)
	MinQuality int

	// ExcludeIDs — вопросы, исключаемые из выборки (недавно показанные)
	ExcludeIDs []uint

	Limit  int
	Offset int
}

// ItemRepository определяет методы для работы с банком заданий
type ItemRepository interface {
	// Search возвращает страницу вопросов по фильтру и общее количество подходящих
	Search(filter ItemFilter) ([]entity.Item, int64, error)
	GetByID(id uint) (*entity.Item, error)

	// Административные операции (банк read-mostly, записи вне адаптивного ядра)
	Create(item *entity.Item) error
	CreateBatch(items []entity.Item) error
	Update(item *entity.Item) error
	// UpdateReviewStatus меняет только статус модерации.
	// IRT-калибровка после одобрения неизменяема и этим методом не затрагивается.
	UpdateReviewStatus(id uint, status string) error

	// CountByDifficulty возвращает количество одобренных вопросов заданной сложности
	CountByDifficulty(difficulty int) (int64, error)
}
