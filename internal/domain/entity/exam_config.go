package entity

import (
	"time"
)

// ExamConfig представляет конфигурацию экзамена, из которой создаются попытки
type ExamConfig struct {
	ID                  uint   `gorm:"primaryKey" json:"id"`
	Title               string `gorm:"size:100;not null" json:"title"`
	ExamType            string `gorm:"size:50;not null;index" json:"exam_type"`
	QuestionsPerSection int    `gorm:"not null;default:10" json:"questions_per_section"`
	TimeLimitMinutes    int    `gorm:"not null;default:90" json:"time_limit_minutes"`
	IsActive            bool   `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ExamConfig) TableName() string {
	return "exam_configs"
}
