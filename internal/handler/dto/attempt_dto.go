package dto

import (
	"time"

	"github.com/yourusername/exam-api/internal/domain/entity"
)

// AttemptResponse представляет попытку в формате для ответа клиенту.
// Сами ответы не включаются целиком: клиенту достаточно их количества.
type AttemptResponse struct {
	ID                   uint               `json:"id"`
	UserID               uint               `json:"user_id"`
	ExamConfigID         uint               `json:"exam_config_id"`
	ExamType             string             `json:"exam_type"`
	DifficultyMode       string             `json:"difficulty_mode"`
	Status               string             `json:"status"`
	StartedAt            *time.Time         `json:"started_at,omitempty"`
	PausedAt             *time.Time         `json:"paused_at,omitempty"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty"`
	TotalPausedSec       int64              `json:"total_paused_sec"`
	ExpiresAt            time.Time          `json:"expires_at"`
	CurrentSection       string             `json:"current_section,omitempty"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	AnsweredCount        int                `json:"answered_count"`
	Result               *entity.ExamResult `json:"result,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

// NewAttemptResponse создает DTO для попытки
func NewAttemptResponse(attempt *entity.ExamAttempt) *AttemptResponse {
	return &AttemptResponse{
		ID:                   attempt.ID,
		UserID:               attempt.UserID,
		ExamConfigID:         attempt.ExamConfigID,
		ExamType:             attempt.ExamType,
		DifficultyMode:       attempt.DifficultyMode,
		Status:               attempt.Status,
		StartedAt:            attempt.StartedAt,
		PausedAt:             attempt.PausedAt,
		CompletedAt:          attempt.CompletedAt,
		TotalPausedSec:       attempt.TotalPausedSec,
		ExpiresAt:            attempt.ExpiresAt,
		CurrentSection:       attempt.CurrentSection,
		CurrentQuestionIndex: attempt.CurrentQuestionIndex,
		AnsweredCount:        len(attempt.Answers),
		Result:               attempt.Result,
		CreatedAt:            attempt.CreatedAt,
	}
}

// NewListAttemptResponse создает список DTO попыток
func NewListAttemptResponse(attempts []entity.ExamAttempt) []*AttemptResponse {
	responses := make([]*AttemptResponse, 0, len(attempts))
	for i := range attempts {
		responses = append(responses, NewAttemptResponse(&attempts[i]))
	}
	return responses
}

// SubmitAnswerResponse — ответ на приём ответа: попытка плюс разбор вопроса
type SubmitAnswerResponse struct {
	Attempt     *AttemptResponse `json:"attempt"`
	IsCorrect   bool             `json:"is_correct"`
	Explanation string           `json:"explanation,omitempty"`
	KeyPoints   []string         `json:"key_points,omitempty"`
}
