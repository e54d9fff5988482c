package examengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// SelectionRequest описывает запрос на отбор следующих вопросов
type SelectionRequest struct {
	// Ability — текущая оценка способности θ
	Ability float64

	// WeakTopics — темы, по которым пользователь показывает слабые результаты.
	// Непустое множество ограничивает кандидатов темой/тегами из него.
	WeakTopics []string

	// ExcludeIDs — недавно показанные вопросы, исключаемые из выборки
	ExcludeIDs []uint

	// Count — сколько вопросов вернуть (верхняя граница)
	Count int

	// PreferredDifficulty — явный уровень 1-5; nil означает вывод из Ability
	PreferredDifficulty *int

	// Section — опциональное ограничение секцией экзамена
	Section string
}

// AdaptiveSelector отбирает следующие вопросы по статистической информативности.
// Селектор не хранит состояния и безопасен для любого числа параллельных вызовов.
type AdaptiveSelector struct {
	config *Config
	deps   *Dependencies
}

// NewAdaptiveSelector создаёт новый селектор
func NewAdaptiveSelector(config *Config, deps *Dependencies) *AdaptiveSelector {
	return &AdaptiveSelector{
		config: config,
		deps:   deps,
	}
}

// scoredItem — кандидат с посчитанной информативностью
type scoredItem struct {
	item  entity.Item
	score float64
}

// SelectNext возвращает до req.Count одобренных вопросов, ранжированных по
// информации Фишера при θ = req.Ability. Нехватка кандидатов не является
// ошибкой: возвращается частичная (возможно пустая) выборка.
func (s *AdaptiveSelector) SelectNext(ctx context.Context, req SelectionRequest) ([]entity.Item, error) {
	if req.Count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", apperrors.ErrValidation)
	}
	if req.PreferredDifficulty != nil {
		if d := *req.PreferredDifficulty; d < entity.MinDifficulty || d > entity.MaxDifficulty {
			return nil, fmt.Errorf("%w: preferred difficulty %d out of range", apperrors.ErrValidation, d)
		}
	}

	// 1-3. Целевая сложность: явная → ровно этот уровень, иначе окно ±1 вокруг θ
	var difficulties []int
	if req.PreferredDifficulty != nil {
		difficulties = []int{*req.PreferredDifficulty}
	} else {
		difficulties = DifficultyWindow(DifficultyForAbility(req.Ability))
	}

	// 4. Пересэмплировка: запрашиваем с запасом, чтобы ранжирование имело из чего выбирать
	filter := repository.ItemFilter{
		Section:      req.Section,
		Difficulties: difficulties,
		Topics:       req.WeakTopics,
		ReviewStatus: entity.ReviewStatusApproved,
		ExcludeIDs:   req.ExcludeIDs,
		Limit:        req.Count * s.config.OverfetchFactor,
	}

	candidates, _, err := s.deps.ItemRepo.Search(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch selection candidates: %w", err)
	}

	if len(candidates) == 0 {
		log.Printf("[AdaptiveSelector] Нет кандидатов: theta=%.2f, difficulties=%v, weak_topics=%v",
			req.Ability, difficulties, req.WeakTopics)
		return []entity.Item{}, nil
	}

	// 5. Считаем информативность каждого кандидата с бустом слабых тем
	weakSet := make(map[string]struct{}, len(req.WeakTopics))
	for _, topic := range req.WeakTopics {
		weakSet[topic] = struct{}{}
	}

	scored := make([]scoredItem, 0, len(candidates))
	for _, item := range candidates {
		info := Information(req.Ability, item.IRTDiscrimination, item.IRTDifficulty, item.IRTGuessing)
		if item.MatchesTopics(weakSet) {
			info *= s.config.WeakTopicBoost
		}
		scored = append(scored, scoredItem{item: item, score: info})
	}

	// 6. Сортировка по убыванию информативности; равные баллы упорядочиваются
	// по возрастанию id — детерминированный tie-break
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].item.ID < scored[j].item.ID
	})

	limit := req.Count
	if limit > len(scored) {
		limit = len(scored)
	}

	selected := make([]entity.Item, 0, limit)
	for _, sc := range scored[:limit] {
		selected = append(selected, sc.item)
	}

	log.Printf("[AdaptiveSelector] theta=%.2f: отобрано %d из %d кандидатов (difficulties=%v)",
		req.Ability, len(selected), len(candidates), difficulties)

	return selected, nil
}

// RecordAnswer записывает телеметрию ответа на вопрос в Redis.
// Счётчики используются админской статистикой и не влияют на отбор.
func (s *AdaptiveSelector) RecordAnswer(itemID uint, correct bool) {
	totalKey := fmt.Sprintf("item:%d:total", itemID)
	correctKey := fmt.Sprintf("item:%d:correct", itemID)

	if _, err := s.deps.CacheRepo.Increment(totalKey); err != nil {
		log.Printf("[AdaptiveSelector] Error incrementing total for item %d: %v", itemID, err)
	}

	if correct {
		if _, err := s.deps.CacheRepo.Increment(correctKey); err != nil {
			log.Printf("[AdaptiveSelector] Error incrementing correct for item %d: %v", itemID, err)
		}
	}
}

// ItemPassRate возвращает наблюдаемый pass rate вопроса из Redis.
// Возвращает -1.0, если данных нет.
func (s *AdaptiveSelector) ItemPassRate(itemID uint) float64 {
	totalStr, err := s.deps.CacheRepo.Get(fmt.Sprintf("item:%d:total", itemID))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AdaptiveSelector] WARNING: Ошибка Redis при чтении total для item %d: %v", itemID, err)
		}
		return -1.0
	}

	total, _ := strconv.Atoi(totalStr)
	if total == 0 {
		return -1.0
	}

	correctStr, err := s.deps.CacheRepo.Get(fmt.Sprintf("item:%d:correct", itemID))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("[AdaptiveSelector] WARNING: Ошибка Redis при чтении correct для item %d: %v", itemID, err)
		return -1.0
	}

	correct, _ := strconv.Atoi(correctStr) // "" → 0, что корректно

	return float64(correct) / float64(total)
}

// DifficultyStats возвращает количество одобренных вопросов по уровням сложности
func (s *AdaptiveSelector) DifficultyStats() map[int]int64 {
	stats := make(map[int]int64)
	for d := entity.MinDifficulty; d <= entity.MaxDifficulty; d++ {
		count, err := s.deps.ItemRepo.CountByDifficulty(d)
		if err != nil {
			log.Printf("[AdaptiveSelector] Error counting difficulty %d: %v", d, err)
			continue
		}
		stats[d] = count
	}
	return stats
}
