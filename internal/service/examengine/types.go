package examengine

import (
	"github.com/yourusername/exam-api/internal/domain/repository"
)

// Константы по умолчанию
const (
	// DefaultOverfetchFactor — во сколько раз больше кандидатов запрашивать у банка,
	// чем нужно вернуть. Ограниченная пересэмплировка сохраняет осмысленность
	// ранжирования по информативности без сканирования всего корпуса.
	DefaultOverfetchFactor = 3

	// DefaultWeakTopicBoost — множитель информативности для вопросов по слабым темам
	DefaultWeakTopicBoost = 1.5

	// DefaultPercentile — значение-заглушка перцентиля в результате.
	// Реальное распределение баллов по популяции движок не считает.
	DefaultPercentile = 50

	// Границы оценки способности θ
	MinAbility = -4.0
	MaxAbility = 4.0
)

// Config содержит настройки адаптивного ядра
type Config struct {
	// OverfetchFactor — коэффициент пересэмплировки кандидатов при отборе
	OverfetchFactor int

	// WeakTopicBoost — множитель релевантности для слабых тем
	WeakTopicBoost float64

	// DefaultPercentile — перцентиль, проставляемый в результат (заглушка)
	DefaultPercentile int

	// WeakAccuracyThreshold — порог accuracy (%), ниже которого секция считается слабой
	WeakAccuracyThreshold float64

	// StrongAccuracyThreshold — порог accuracy (%), с которого секция считается сильной
	StrongAccuracyThreshold float64
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		OverfetchFactor:         DefaultOverfetchFactor,
		WeakTopicBoost:          DefaultWeakTopicBoost,
		DefaultPercentile:       DefaultPercentile,
		WeakAccuracyThreshold:   60,
		StrongAccuracyThreshold: 80,
	}
}

// Dependencies содержит зависимости адаптивного ядра
type Dependencies struct {
	ItemRepo  repository.ItemRepository
	CacheRepo repository.CacheRepository
}
