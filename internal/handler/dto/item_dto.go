package dto

import (
	"time"

	"github.com/yourusername/exam-api/internal/domain/entity"
)

// ItemResponse представляет вопрос в формате для ответа клиенту.
// Правильный вариант и объяснение намеренно отсутствуют: клиент
// получает их только после ответа.
type ItemResponse struct {
	ID              uint      `json:"id"`
	Section         string    `json:"section"`
	QuestionType    string    `json:"question_type"`
	Topic           string    `json:"topic"`
	Subtopic        string    `json:"subtopic,omitempty"`
	Tags            []string  `json:"tags"`
	Text            string    `json:"text"`
	Options         []string  `json:"options"`
	AudioTranscript string    `json:"audio_transcript,omitempty"`
	PassageText     string    `json:"passage_text,omitempty"`
	Difficulty      int       `json:"difficulty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewItemResponse создает DTO для вопроса
func NewItemResponse(item *entity.Item) ItemResponse {
	return ItemResponse{
		ID:              item.ID,
		Section:         item.Section,
		QuestionType:    item.QuestionType,
		Topic:           item.Topic,
		Subtopic:        item.Subtopic,
		Tags:            item.Tags,
		Text:            item.Text,
		Options:         item.Options,
		AudioTranscript: item.AudioTranscript,
		PassageText:     item.PassageText,
		Difficulty:      item.Difficulty,
		CreatedAt:       item.CreatedAt,
	}
}

// NewListItemResponse создает список DTO вопросов
func NewListItemResponse(items []entity.Item) []ItemResponse {
	responses := make([]ItemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, NewItemResponse(&items[i]))
	}
	return responses
}

// PaginatedItemResponse представляет пагинированный список вопросов
type PaginatedItemResponse struct {
	Items  []ItemResponse `json:"items"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// AdminItemResponse представляет вопрос в полном виде для админского контура.
// PassRate заполняется из телеметрии ответов и опускается, пока данных нет.
type AdminItemResponse struct {
	ItemResponse
	PassRate          *float64 `json:"pass_rate,omitempty"`
	CorrectOption     int      `json:"correct_option"`
	Explanation       string   `json:"explanation"`
	KeyPoints         []string `json:"key_points"`
	IRTDiscrimination float64  `json:"irt_discrimination"`
	IRTDifficulty     float64  `json:"irt_difficulty"`
	IRTGuessing       float64  `json:"irt_guessing"`
	IsAIGenerated     bool     `json:"is_ai_generated"`
	GenerationMethod  string   `json:"generation_method,omitempty"`
	QualityScore      int      `json:"quality_score"`
	ReviewStatus      string   `json:"review_status"`
}

// NewAdminItemResponse создает полное DTO вопроса для администратора
func NewAdminItemResponse(item *entity.Item) AdminItemResponse {
	return AdminItemResponse{
		ItemResponse:      NewItemResponse(item),
		CorrectOption:     item.CorrectOption,
		Explanation:       item.Explanation,
		KeyPoints:         item.KeyPoints,
		IRTDiscrimination: item.IRTDiscrimination,
		IRTDifficulty:     item.IRTDifficulty,
		IRTGuessing:       item.IRTGuessing,
		IsAIGenerated:     item.IsAIGenerated,
		GenerationMethod:  item.GenerationMethod,
		QualityScore:      item.QualityScore,
		ReviewStatus:      item.ReviewStatus,
	}
}
