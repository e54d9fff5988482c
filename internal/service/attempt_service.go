package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/service/examengine"
)

// Количество повторов записи при конфликте оптимистичной версии
const answerUpsertRetries = 3

// Типы антифрод-событий, принимаемых телеметрией
const (
	CheatEventTabSwitch      = "tab_switch"
	CheatEventFullscreenExit = "fullscreen_exit"
)

// AttemptService управляет жизненным циклом экзаменационной попытки:
// создание, старт, приём ответов, пауза, завершение и истечение срока
type AttemptService struct {
	attemptRepo repository.AttemptRepository
	configRepo  repository.ExamConfigRepository
	itemRepo    repository.ItemRepository
	selector    *examengine.AdaptiveSelector
	scoring     *examengine.ScoringEngine

	// now подменяется в тестах
	now func() time.Time
}

// NewAttemptService создаёт новый сервис попыток
func NewAttemptService(
	attemptRepo repository.AttemptRepository,
	configRepo repository.ExamConfigRepository,
	itemRepo repository.ItemRepository,
	selector *examengine.AdaptiveSelector,
	scoring *examengine.ScoringEngine,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		configRepo:  configRepo,
		itemRepo:    itemRepo,
		selector:    selector,
		scoring:     scoring,
		now:         time.Now,
	}
}

// CreateAttempt создаёт новую попытку в статусе not_started.
// Срок действия попытки — ровно 24 часа с момента создания.
func (s *AttemptService) CreateAttempt(userID, examConfigID uint, examType, difficultyMode string) (*entity.ExamAttempt, error) {
	if userID == 0 || examConfigID == 0 || examType == "" {
		return nil, fmt.Errorf("%w: user_id, exam_config_id and exam_type are required", apperrors.ErrValidation)
	}
	if difficultyMode == "" {
		difficultyMode = "adaptive"
	}

	// Конфигурация должна существовать и быть активной
	config, err := s.configRepo.GetByID(examConfigID)
	if err != nil {
		return nil, err
	}
	if !config.IsActive {
		return nil, fmt.Errorf("%w: exam config %d is not active", apperrors.ErrValidation, examConfigID)
	}

	now := s.now()
	attempt := &entity.ExamAttempt{
		UserID:         userID,
		ExamConfigID:   examConfigID,
		ExamType:       examType,
		DifficultyMode: difficultyMode,
		Status:         entity.AttemptStatusNotStarted,
		ExpiresAt:      now.Add(entity.AttemptTTL),
		Answers:        entity.AnswerList{},
	}

	if err := s.attemptRepo.Create(attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	log.Printf("[AttemptService] Создана попытка #%d для пользователя #%d (config=%d, type=%s)",
		attempt.ID, userID, examConfigID, examType)
	return attempt, nil
}

// StartAttempt переводит попытку not_started → in_progress и открывает первую секцию
func (s *AttemptService) StartAttempt(attemptID uint) (*entity.ExamAttempt, error) {
	attempt, err := s.getLive(attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == entity.AttemptStatusExpired {
		return nil, fmt.Errorf("%w: attempt #%d", apperrors.ErrAttemptExpired, attemptID)
	}
	if attempt.Status != entity.AttemptStatusNotStarted {
		return nil, fmt.Errorf("%w: cannot start attempt in status %q", apperrors.ErrConflict, attempt.Status)
	}

	now := s.now()
	attempt.Status = entity.AttemptStatusInProgress
	attempt.StartedAt = &now
	attempt.CurrentSection = entity.SectionOrder[0]
	attempt.CurrentQuestionIndex = 0

	if err := s.attemptRepo.Update(attempt); err != nil {
		return nil, fmt.Errorf("failed to start attempt: %w", err)
	}

	log.Printf("[AttemptService] Попытка #%d начата, секция %s", attemptID, attempt.CurrentSection)
	return attempt, nil
}

// SelectNextItems возвращает следующую партию вопросов для попытки.
// Отбор ведётся по текущей оценке способности внутри текущей секции;
// слабые темы выводятся из накопленных ответов, уже отвеченные вопросы
// исключаются. Партия не выходит за остаток секционной квоты конфигурации.
func (s *AttemptService) SelectNextItems(ctx context.Context, attemptID uint, count int, preferredDifficulty *int) ([]entity.Item, error) {
	attempt, err := s.getLive(attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == entity.AttemptStatusExpired {
		return nil, fmt.Errorf("%w: attempt #%d", apperrors.ErrAttemptExpired, attemptID)
	}
	if !attempt.IsInProgress() {
		return nil, fmt.Errorf("%w: cannot select items for attempt in status %q", apperrors.ErrConflict, attempt.Status)
	}

	config, err := s.configRepo.GetByID(attempt.ExamConfigID)
	if err != nil {
		return nil, err
	}
	if quota := config.QuestionsPerSection; quota > 0 {
		remaining := quota - countAnswersInSection(attempt.Answers, attempt.CurrentSection)
		if remaining <= 0 {
			// Последняя секция выбрана до конца: экзамен ждёт завершения
			return []entity.Item{}, nil
		}
		if count > remaining {
			count = remaining
		}
	}

	req := examengine.SelectionRequest{
		Ability:             attempt.Ability,
		WeakTopics:          s.scoring.WeakTopics(attempt.Answers),
		ExcludeIDs:          attempt.Answers.QuestionIDs(),
		Count:               count,
		PreferredDifficulty: preferredDifficulty,
		Section:             attempt.CurrentSection,
	}

	return s.selector.SelectNext(ctx, req)
}

// SubmitAnswerInput — входные данные приёма ответа.
// Флаг правильности клиентом не передаётся: он вычисляется на сервере.
type SubmitAnswerInput struct {
	QuestionID      uint
	SelectedOption  int
	TimeSpentSec    int
	MarkedForReview bool
}

// SubmitAnswer принимает ответ на вопрос внутри идущей попытки.
// Ответ на уже отвеченный вопрос перезаписывается на месте (без дубликата).
// Запись идёт через оптимистичную блокировку: при параллельной модификации
// попытка перечитывается и upsert повторяется, поэтому интерливинг двух
// submitAnswer не может потерять ответ.
func (s *AttemptService) SubmitAnswer(attemptID uint, input SubmitAnswerInput) (*entity.ExamAttempt, bool, error) {
	if input.QuestionID == 0 {
		return nil, false, fmt.Errorf("%w: question_id is required", apperrors.ErrValidation)
	}

	item, err := s.itemRepo.GetByID(input.QuestionID)
	if err != nil {
		return nil, false, err
	}
	if !item.IsApproved() {
		return nil, false, fmt.Errorf("%w: item %d is not approved for scoring", apperrors.ErrValidation, item.ID)
	}
	if !item.IsValidOption(input.SelectedOption) {
		return nil, false, fmt.Errorf("%w: selected option %d out of range", apperrors.ErrValidation, input.SelectedOption)
	}

	// Правильность считается только на сервере
	isCorrect := item.IsCorrect(input.SelectedOption)

	var attempt *entity.ExamAttempt
	var examConfig *entity.ExamConfig
	for retry := 0; retry < answerUpsertRetries; retry++ {
		attempt, err = s.getLive(attemptID)
		if err != nil {
			return nil, false, err
		}

		if attempt.Status == entity.AttemptStatusExpired {
			return nil, false, fmt.Errorf("%w: attempt #%d", apperrors.ErrAttemptExpired, attemptID)
		}
		if !attempt.IsInProgress() {
			return nil, false, fmt.Errorf("%w: cannot submit answer to attempt in status %q", apperrors.ErrConflict, attempt.Status)
		}
		if examConfig == nil {
			examConfig, err = s.configRepo.GetByID(attempt.ExamConfigID)
			if err != nil {
				return nil, false, err
			}
		}
		now := s.now()

		answered := len(attempt.Answers)
		attempt.Answers.Upsert(entity.Answer{
			QuestionID:      item.ID,
			Section:         item.Section,
			Topic:           item.Topic,
			SelectedOption:  input.SelectedOption,
			IsCorrect:       isCorrect,
			TimeSpentSec:    input.TimeSpentSec,
			MarkedForReview: input.MarkedForReview,
			AnsweredAt:      now,
		})
		attempt.CurrentQuestionIndex = len(attempt.Answers)
		s.advanceSection(attempt, examConfig.QuestionsPerSection)
		attempt.Ability = examengine.UpdateAbility(
			attempt.Ability,
			item.IRTDiscrimination, item.IRTDifficulty, item.IRTGuessing,
			isCorrect, answered,
		)

		err = s.attemptRepo.UpdateWithVersion(attempt)
		if err == nil {
			break
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, false, fmt.Errorf("failed to save answer: %w", err)
		}
		log.Printf("[AttemptService] Конфликт версии при записи ответа в попытку #%d, повтор %d", attemptID, retry+1)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to save answer after retries: %w", err)
	}

	// Телеметрия по вопросу (неблокирующая, ошибки только логируются)
	s.selector.RecordAnswer(item.ID, isCorrect)

	return attempt, isCorrect, nil
}

// PauseAttempt переводит in_progress → paused и запоминает момент паузы
func (s *AttemptService) PauseAttempt(attemptID uint) (*entity.ExamAttempt, error) {
	attempt, err := s.getLive(attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == entity.AttemptStatusExpired {
		return nil, fmt.Errorf("%w: attempt #%d", apperrors.ErrAttemptExpired, attemptID)
	}
	if !attempt.IsInProgress() {
		return nil, fmt.Errorf("%w: cannot pause attempt in status %q", apperrors.ErrConflict, attempt.Status)
	}

	now := s.now()
	attempt.Status = entity.AttemptStatusPaused
	attempt.PausedAt = &now

	if err := s.attemptRepo.Update(attempt); err != nil {
		return nil, fmt.Errorf("failed to pause attempt: %w", err)
	}
	return attempt, nil
}

// ResumeAttempt переводит paused → in_progress, накапливая время паузы
func (s *AttemptService) ResumeAttempt(attemptID uint) (*entity.ExamAttempt, error) {
	attempt, err := s.getLive(attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == entity.AttemptStatusExpired {
		return nil, fmt.Errorf("%w: attempt #%d", apperrors.ErrAttemptExpired, attemptID)
	}
	if !attempt.IsPaused() {
		return nil, fmt.Errorf("%w: cannot resume attempt in status %q", apperrors.ErrConflict, attempt.Status)
	}
	now := s.now()

	if attempt.PausedAt != nil {
		attempt.TotalPausedSec += int64(now.Sub(*attempt.PausedAt).Seconds())
	}
	attempt.Status = entity.AttemptStatusInProgress
	attempt.PausedAt = nil

	if err := s.attemptRepo.Update(attempt); err != nil {
		return nil, fmt.Errorf("failed to resume attempt: %w", err)
	}
	return attempt, nil
}

// CompleteAttempt завершает попытку и подсчитывает результат.
// Допустимо из in_progress и paused. Идемпотентно: повторный вызов по
// завершённой попытке возвращает уже посчитанный результат без пересчёта.
// Попытка с истёкшим сроком не оценивается: это конфликт состояния.
func (s *AttemptService) CompleteAttempt(attemptID uint) (*entity.ExamAttempt, error) {
	attempt, err := s.getLive(attemptID)
	if err != nil {
		return nil, err
	}

	// Идемпотентный повтор: результат уже есть, пересчёт нарушил бы
	// неизменяемость терминального состояния
	if attempt.Status == entity.AttemptStatusCompleted {
		return attempt, nil
	}

	if !attempt.IsInProgress() && !attempt.IsPaused() {
		return nil, fmt.Errorf("%w: cannot complete attempt in status %q", apperrors.ErrConflict, attempt.Status)
	}

	now := s.now()
	if attempt.IsExpired(now) {
		return nil, fmt.Errorf("%w: attempt #%d is expired and cannot be scored", apperrors.ErrConflict, attemptID)
	}

	// Закрываем открытый интервал паузы, если завершаем из paused
	if attempt.PausedAt != nil {
		attempt.TotalPausedSec += int64(now.Sub(*attempt.PausedAt).Seconds())
		attempt.PausedAt = nil
	}

	attempt.Result = s.scoring.ScoreAttempt(attempt.Answers)
	attempt.Status = entity.AttemptStatusCompleted
	attempt.CompletedAt = &now

	if err := s.attemptRepo.UpdateWithVersion(attempt); err != nil {
		return nil, fmt.Errorf("failed to complete attempt: %w", err)
	}

	log.Printf("[AttemptService] Попытка #%d завершена: total_score=%d, level=%s",
		attemptID, attempt.Result.TotalScore, attempt.Result.Level)
	return attempt, nil
}

// AbandonAttempt переводит нетерминальную попытку в abandoned
func (s *AttemptService) AbandonAttempt(attemptID uint) (*entity.ExamAttempt, error) {
	attempt, err := s.getLive(attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.IsTerminal() {
		return nil, fmt.Errorf("%w: attempt #%d is already terminal (%s)", apperrors.ErrConflict, attemptID, attempt.Status)
	}

	attempt.Status = entity.AttemptStatusAbandoned
	if err := s.attemptRepo.Update(attempt); err != nil {
		return nil, fmt.Errorf("failed to abandon attempt: %w", err)
	}
	return attempt, nil
}

// RecordCheatEvent фиксирует антифрод-событие. Движок телеметрию не интерпретирует.
func (s *AttemptService) RecordCheatEvent(attemptID uint, eventType string) (*entity.ExamAttempt, error) {
	attempt, err := s.getLive(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.IsTerminal() {
		return nil, fmt.Errorf("%w: attempt #%d is terminal", apperrors.ErrConflict, attemptID)
	}

	switch eventType {
	case CheatEventTabSwitch:
		attempt.TabSwitches++
	case CheatEventFullscreenExit:
		attempt.FullscreenExits++
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", apperrors.ErrValidation, eventType)
	}

	if err := s.attemptRepo.Update(attempt); err != nil {
		return nil, fmt.Errorf("failed to record cheat event: %w", err)
	}
	return attempt, nil
}

// GetAttempt возвращает попытку (с ленивой проверкой истечения срока)
func (s *AttemptService) GetAttempt(attemptID uint) (*entity.ExamAttempt, error) {
	return s.getLive(attemptID)
}

// GetHistory возвращает попытки пользователя, новые первыми
func (s *AttemptService) GetHistory(userID uint, limit int) ([]entity.ExamAttempt, error) {
	if limit < 1 {
		limit = 10
	} else if limit > 100 {
		limit = 100
	}
	return s.attemptRepo.GetHistory(userID, limit)
}

// GetBestScore возвращает завершённую попытку пользователя с максимальным
// итоговым баллом. Отсутствие завершённых попыток — не ошибка: (nil, nil).
func (s *AttemptService) GetBestScore(userID uint) (*entity.ExamAttempt, error) {
	return s.attemptRepo.GetBestScore(userID)
}

// ExpireOverdue переводит просроченные нетерминальные попытки в expired.
// Вызывается периодическим свипом из cmd/api.
func (s *AttemptService) ExpireOverdue() (int64, error) {
	count, err := s.attemptRepo.ExpireOverdue(s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue attempts: %w", err)
	}
	if count > 0 {
		log.Printf("[AttemptService] Переведено в expired %d просроченных попыток", count)
	}
	return count, nil
}

// advanceSection переводит попытку в следующую секцию канонического порядка,
// когда квота вопросов текущей секции выбрана. Нулевая квота отключает
// автопереход. Последняя секция не сменяется: дальше экзамен ждёт завершения.
func (s *AttemptService) advanceSection(attempt *entity.ExamAttempt, quota int) {
	if quota <= 0 {
		return
	}
	for {
		idx := sectionIndex(attempt.CurrentSection)
		if idx < 0 || idx == len(entity.SectionOrder)-1 {
			return
		}
		if countAnswersInSection(attempt.Answers, attempt.CurrentSection) < quota {
			return
		}
		attempt.CurrentSection = entity.SectionOrder[idx+1]
		log.Printf("[AttemptService] Попытка #%d: секция %s закрыта, переход к %s",
			attempt.ID, entity.SectionOrder[idx], attempt.CurrentSection)
	}
}

func sectionIndex(section string) int {
	for i, s := range entity.SectionOrder {
		if s == section {
			return i
		}
	}
	return -1
}

// countAnswersInSection возвращает число ответов попытки в заданной секции
func countAnswersInSection(answers entity.AnswerList, section string) int {
	n := 0
	for _, answer := range answers {
		if answer.Section == section {
			n++
		}
	}
	return n
}

// getLive загружает попытку и лениво применяет истечение срока:
// просроченная нетерминальная попытка помечается expired при первом же обращении
func (s *AttemptService) getLive(attemptID uint) (*entity.ExamAttempt, error) {
	attempt, err := s.attemptRepo.GetByID(attemptID)
	if err != nil {
		return nil, err
	}

	if !attempt.IsTerminal() && attempt.IsExpired(s.now()) {
		attempt.Status = entity.AttemptStatusExpired
		if err := s.attemptRepo.Update(attempt); err != nil {
			log.Printf("[AttemptService] WARNING: не удалось пометить попытку #%d как expired: %v", attemptID, err)
		}
	}

	return attempt, nil
}
