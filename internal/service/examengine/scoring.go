package examengine

import (
	"math"

	"github.com/yourusername/exam-api/internal/domain/entity"
)

// Пороговые значения итогового балла для классификации уровня
const (
	levelThresholdA2 = 200
	levelThresholdB1 = 300
	levelThresholdB2 = 400
	levelThresholdC1 = 500
)

// LevelForScore классифицирует итоговый балл (0-600) в уровень владения языком
func LevelForScore(totalScore int) string {
	switch {
	case totalScore < levelThresholdA2:
		return "A1-A2 (Elementary)"
	case totalScore < levelThresholdB1:
		return "A2-B1 (Pre-Intermediate)"
	case totalScore < levelThresholdB2:
		return "B1-B2 (Intermediate)"
	case totalScore < levelThresholdC1:
		return "B2-C1 (Upper Intermediate)"
	default:
		return "C1-C2 (Advanced)"
	}
}

// ScoringEngine агрегирует ответы завершённой попытки в итоговый результат
type ScoringEngine struct {
	config *Config
}

// NewScoringEngine создаёт новый движок оценки
func NewScoringEngine(config *Config) *ScoringEngine {
	return &ScoringEngine{config: config}
}

// ScoreAttempt подсчитывает результат по полному набору ответов попытки.
// Секции фиксированы: listening, vocabulary, grammar, reading.
func (e *ScoringEngine) ScoreAttempt(answers entity.AnswerList) *entity.ExamResult {
	result := &entity.ExamResult{
		Sections:   make([]entity.SectionResult, 0, len(entity.SectionOrder)),
		Percentile: e.config.DefaultPercentile,
	}

	totalTime := 0
	for _, section := range entity.SectionOrder {
		correct := 0
		total := 0
		timeSpent := 0

		for _, answer := range answers {
			if answer.Section != section {
				continue
			}
			total++
			timeSpent += answer.TimeSpentSec
			if answer.IsCorrect {
				correct++
			}
		}

		// Защита от деления на ноль: пустая секция даёт accuracy 0 и score 0
		divisor := total
		if divisor == 0 {
			divisor = 1
		}

		accuracy := float64(correct) / float64(divisor) * 100
		score := int(math.Round(float64(correct) / float64(divisor) * entity.MaxSectionScore))

		result.Sections = append(result.Sections, entity.SectionResult{
			Section:      section,
			Correct:      correct,
			Total:        total,
			Accuracy:     accuracy,
			Score:        score,
			TimeSpentSec: timeSpent,
		})

		result.TotalScore += score
		totalTime += timeSpent

		if accuracy >= e.config.StrongAccuracyThreshold {
			result.Strengths = append(result.Strengths, section)
		}
		if accuracy < e.config.WeakAccuracyThreshold {
			result.Weaknesses = append(result.Weaknesses, section)
		}
	}

	result.TotalTimeSpentSec = totalTime

	answerCount := len(answers)
	if answerCount < 1 {
		answerCount = 1
	}
	result.AvgTimePerQuestion = float64(totalTime) / float64(answerCount)

	result.Level = LevelForScore(result.TotalScore)

	return result
}

// minTopicAnswers — минимум ответов по теме, прежде чем тема может считаться слабой
const minTopicAnswers = 2

// WeakTopics возвращает темы вопросов со слабой точностью по текущим
// (неполным) ответам попытки. Темы — это содержательные метки вопросов
// (answer.Topic), а не секции: именно с ними селектор сопоставляет
// items.topic и теги. Тема с единственным ответом не учитывается: один
// промах ещё не слабость. Порядок — по первому появлению темы в ответах.
func (e *ScoringEngine) WeakTopics(answers entity.AnswerList) []string {
	type topicStat struct {
		correct int
		total   int
	}

	order := make([]string, 0)
	stats := make(map[string]*topicStat)
	for _, answer := range answers {
		if answer.Topic == "" {
			continue
		}
		st, ok := stats[answer.Topic]
		if !ok {
			st = &topicStat{}
			stats[answer.Topic] = st
			order = append(order, answer.Topic)
		}
		st.total++
		if answer.IsCorrect {
			st.correct++
		}
	}

	weak := make([]string, 0)
	for _, topic := range order {
		st := stats[topic]
		if st.total < minTopicAnswers {
			continue
		}
		if float64(st.correct)/float64(st.total)*100 < e.config.WeakAccuracyThreshold {
			weak = append(weak, topic)
		}
	}
	return weak
}
