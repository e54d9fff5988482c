package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Максимальные значения шкалированных баллов
const (
	MaxSectionScore = 150
	MaxTotalScore   = 600 // 4 секции по 150
)

// SectionResult представляет результат по одной секции экзамена
type SectionResult struct {
	Section      string  `json:"section"`
	Correct      int     `json:"correct"`
	Total        int     `json:"total"`
	Accuracy     float64 `json:"accuracy"`      // Процент правильных, 0-100
	Score        int     `json:"score"`         // Шкалированный балл, 0-150
	TimeSpentSec int     `json:"time_spent_sec"`
}

// ExamResult представляет итоговый результат завершённой попытки.
// Заполняется ровно один раз при переходе попытки в статус completed.
type ExamResult struct {
	Sections []SectionResult `json:"sections"`

	TotalScore         int      `json:"total_score"` // 0-600
	TotalTimeSpentSec  int      `json:"total_time_spent_sec"`
	AvgTimePerQuestion float64  `json:"avg_time_per_question_sec"`
	Level              string   `json:"level"`
	Strengths          []string `json:"strengths"`  // Секции с accuracy >= 80
	Weaknesses         []string `json:"weaknesses"` // Секции с accuracy < 60
	Percentile         int      `json:"percentile"` // Заглушка, не выводится из реального распределения
}

// Scan реализует интерфейс sql.Scanner для ExamResult (JSONB)
func (r *ExamResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, r)
}

// Value реализует интерфейс driver.Valuer для ExamResult
func (r ExamResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// SectionByName возвращает результат секции по имени
func (r *ExamResult) SectionByName(section string) (SectionResult, bool) {
	for _, s := range r.Sections {
		if s.Section == section {
			return s, true
		}
	}
	return SectionResult{}, false
}
