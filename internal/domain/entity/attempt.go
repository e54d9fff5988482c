package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Константы статусов экзаменационной попытки
const (
	AttemptStatusNotStarted = "not_started"
	AttemptStatusInProgress = "in_progress"
	AttemptStatusPaused     = "paused"
	AttemptStatusCompleted  = "completed"
	AttemptStatusAbandoned  = "abandoned"
	AttemptStatusExpired    = "expired"
)

// AttemptTTL — фиксированный срок жизни попытки с момента создания
const AttemptTTL = 24 * time.Hour

// Answer представляет ответ пользователя на вопрос внутри попытки.
// IsCorrect вычисляется на сервере при приёме ответа и никогда не принимается
// от клиента. Section и Topic копируются из вопроса в момент приёма: по ним
// затем считаются слабые секции результата и слабые темы для отбора.
type Answer struct {
	QuestionID      uint      `json:"question_id"`
	Section         string    `json:"section"`
	Topic           string    `json:"topic"`
	SelectedOption  int       `json:"selected_option"`
	IsCorrect       bool      `json:"is_correct"`
	TimeSpentSec    int       `json:"time_spent_sec"`
	MarkedForReview bool      `json:"marked_for_review"`
	AnsweredAt      time.Time `json:"answered_at"`
}

// AnswerList - пользовательский тип для хранения упорядоченного списка ответов в JSONB.
// Инвариант: не более одного ответа на question_id.
type AnswerList []Answer

// Scan реализует интерфейс sql.Scanner для AnswerList
func (a *AnswerList) Scan(value interface{}) error {
	if value == nil {
		*a = AnswerList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*a = AnswerList{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Value реализует интерфейс driver.Valuer для AnswerList
func (a AnswerList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Upsert добавляет ответ или перезаписывает существующий ответ на тот же вопрос.
// Повторный ответ НЕ добавляет дубликат: запись заменяется на месте с сохранением порядка.
// Возвращает true, если произошла перезапись.
func (a *AnswerList) Upsert(answer Answer) bool {
	for i := range *a {
		if (*a)[i].QuestionID == answer.QuestionID {
			(*a)[i] = answer
			return true
		}
	}
	*a = append(*a, answer)
	return false
}

// Get возвращает ответ на вопрос, если он есть
func (a AnswerList) Get(questionID uint) (Answer, bool) {
	for _, ans := range a {
		if ans.QuestionID == questionID {
			return ans, true
		}
	}
	return Answer{}, false
}

// QuestionIDs возвращает ID всех отвеченных вопросов (для исключения из отбора)
func (a AnswerList) QuestionIDs() []uint {
	ids := make([]uint, 0, len(a))
	for _, ans := range a {
		ids = append(ids, ans.QuestionID)
	}
	return ids
}

// ExamAttempt представляет одну попытку прохождения экзамена одним пользователем
type ExamAttempt struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	ExamConfigID   uint   `gorm:"not null;index" json:"exam_config_id"`
	ExamType       string `gorm:"size:50;not null" json:"exam_type"`
	DifficultyMode string `gorm:"size:20;not null;default:'adaptive'" json:"difficulty_mode"`

	Status string `gorm:"size:20;not null;default:'not_started';index" json:"status"`

	StartedAt      *time.Time `json:"started_at,omitempty"`
	PausedAt       *time.Time `json:"paused_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalPausedSec int64      `gorm:"not null;default:0" json:"total_paused_sec"`
	ExpiresAt      time.Time  `gorm:"not null;index" json:"expires_at"`

	// Текущая позиция в экзамене
	CurrentSection       string `gorm:"size:20;not null;default:''" json:"current_section"`
	CurrentQuestionIndex int    `gorm:"not null;default:0" json:"current_question_index"`

	// Текущая оценка способности θ, уточняется после каждого ответа
	Ability float64 `gorm:"not null;default:0" json:"ability"`

	Answers AnswerList  `gorm:"type:jsonb;not null" json:"answers"`
	Result  *ExamResult `gorm:"type:jsonb" json:"result,omitempty"`

	// Антифрод-телеметрия: фиксируется, но движком не интерпретируется
	TabSwitches     int `gorm:"not null;default:0" json:"tab_switches"`
	FullscreenExits int `gorm:"not null;default:0" json:"fullscreen_exits"`

	// Версия записи для оптимистичной блокировки upsert'а ответов
	Version int64 `gorm:"not null;default:1" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// IsTerminal проверяет, находится ли попытка в терминальном статусе.
// Терминальные попытки логически неизменяемы.
func (a *ExamAttempt) IsTerminal() bool {
	switch a.Status {
	case AttemptStatusCompleted, AttemptStatusAbandoned, AttemptStatusExpired:
		return true
	}
	return false
}

// IsInProgress проверяет, идёт ли попытка в данный момент
func (a *ExamAttempt) IsInProgress() bool {
	return a.Status == AttemptStatusInProgress
}

// IsPaused проверяет, приостановлена ли попытка
func (a *ExamAttempt) IsPaused() bool {
	return a.Status == AttemptStatusPaused
}

// IsExpired проверяет, истёк ли срок действия попытки к моменту now.
// Статус при этом может ещё не быть переведён в expired (ленивая проверка).
func (a *ExamAttempt) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
