package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Константы секций экзамена (канонический порядок прохождения)
const (
	SectionListening  = "listening"
	SectionVocabulary = "vocabulary"
	SectionGrammar    = "grammar"
	SectionReading    = "reading"
)

// SectionOrder — канонический порядок секций экзамена
var SectionOrder = []string{SectionListening, SectionVocabulary, SectionGrammar, SectionReading}

// IsValidSection проверяет, что секция входит в фиксированный набор
func IsValidSection(section string) bool {
	for _, s := range SectionOrder {
		if s == section {
			return true
		}
	}
	return false
}

// Константы статусов модерации вопроса
const (
	ReviewStatusPending       = "pending"
	ReviewStatusApproved      = "approved"
	ReviewStatusRejected      = "rejected"
	ReviewStatusNeedsRevision = "needs_revision"
)

// IsValidReviewStatus проверяет корректность статуса модерации
func IsValidReviewStatus(status string) bool {
	switch status {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected, ReviewStatusNeedsRevision:
		return true
	}
	return false
}

// Границы грубой шкалы сложности (1=very_easy ... 5=very_hard)
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	// Обработка NULL значений из базы данных
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	// Обработка пустого массива байтов
	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
// Используется GORM для записи StringArray в JSONB в базе
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Item представляет калиброванный экзаменационный вопрос в банке заданий
type Item struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Section      string      `gorm:"size:20;not null;index" json:"section"`
	QuestionType string      `gorm:"size:50;not null" json:"question_type"`
	Topic        string      `gorm:"size:100;not null;index" json:"topic"`
	Subtopic     string      `gorm:"size:100;not null;default:''" json:"subtopic"`
	Tags         StringArray `gorm:"type:jsonb;not null" json:"tags"`

	Text          string      `gorm:"size:2000;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption int         `gorm:"not null" json:"-"` // Скрыто от клиента
	Explanation   string      `gorm:"size:2000;not null;default:''" json:"explanation"`
	KeyPoints     StringArray `gorm:"type:jsonb;not null" json:"key_points"`

	// Секционные дополнения: транскрипт аудио (listening) и текст для чтения (reading)
	AudioTranscript string `gorm:"type:text;not null;default:''" json:"audio_transcript,omitempty"`
	PassageText     string `gorm:"type:text;not null;default:''" json:"passage_text,omitempty"`

	// Грубая авторская сложность 1-5 (не путать с непрерывным IRT-параметром b)
	Difficulty int `gorm:"not null;default:3;index" json:"difficulty"`

	// IRT-калибровка (3PL). Параметры неизменяемы после одобрения вопроса.
	IRTDiscrimination float64 `gorm:"column:irt_discrimination;not null;default:1" json:"irt_discrimination"` // a > 0
	IRTDifficulty     float64 `gorm:"column:irt_difficulty;not null;default:0" json:"irt_difficulty"`         // b ∈ R
	IRTGuessing       float64 `gorm:"column:irt_guessing;not null;default:0" json:"irt_guessing"`             // c ∈ [0,1)

	// Происхождение вопроса
	IsAIGenerated    bool   `gorm:"not null;default:false" json:"is_ai_generated"`
	GenerationMethod string `gorm:"size:50;not null;default:''" json:"generation_method,omitempty"`
	QualityScore     int    `gorm:"not null;default:100" json:"quality_score"`
	ReviewStatus     string `gorm:"size:20;not null;default:'pending';index" json:"review_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Item) TableName() string {
	return "items"
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (i *Item) IsCorrect(selectedOption int) bool {
	return selectedOption == i.CorrectOption
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (i *Item) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(i.Options)
}

// IsApproved проверяет, одобрен ли вопрос модерацией.
// Только одобренные вопросы участвуют в отборе и оценке.
func (i *Item) IsApproved() bool {
	return i.ReviewStatus == ReviewStatusApproved
}

// OptionsCount возвращает количество вариантов ответа
func (i *Item) OptionsCount() int {
	return len(i.Options)
}

// MatchesTopics проверяет, пересекается ли тема или набор тегов вопроса
// с переданным множеством тем (используется для приоритизации слабых тем)
func (i *Item) MatchesTopics(topics map[string]struct{}) bool {
	if len(topics) == 0 {
		return false
	}
	if _, ok := topics[i.Topic]; ok {
		return true
	}
	for _, tag := range i.Tags {
		if _, ok := topics[tag]; ok {
			return true
		}
	}
	return false
}
