package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/service/examengine"
)

// ============================================================================
// Моки для AttemptService
// ============================================================================

// MockAttemptRepository реализует repository.AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(attempt *entity.ExamAttempt) error {
	args := m.Called(attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(id uint) (*entity.ExamAttempt, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptRepository) Update(attempt *entity.ExamAttempt) error {
	args := m.Called(attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) UpdateWithVersion(attempt *entity.ExamAttempt) error {
	args := m.Called(attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetHistory(userID uint, limit int) ([]entity.ExamAttempt, error) {
	args := m.Called(userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptRepository) GetBestScore(userID uint) (*entity.ExamAttempt, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptRepository) ExpireOverdue(now time.Time) (int64, error) {
	args := m.Called(now)
	return args.Get(0).(int64), args.Error(1)
}

// MockExamConfigRepository реализует repository.ExamConfigRepository
type MockExamConfigRepository struct {
	mock.Mock
}

func (m *MockExamConfigRepository) GetByID(id uint) (*entity.ExamConfig, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamConfig), args.Error(1)
}

func (m *MockExamConfigRepository) ListActive() ([]entity.ExamConfig, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ExamConfig), args.Error(1)
}

func (m *MockExamConfigRepository) Create(config *entity.ExamConfig) error {
	args := m.Called(config)
	return args.Error(0)
}

// MockItemRepoForAttempts реализует repository.ItemRepository
type MockItemRepoForAttempts struct {
	mock.Mock
}

func (m *MockItemRepoForAttempts) Search(filter repository.ItemFilter) ([]entity.Item, int64, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Item), args.Get(1).(int64), args.Error(2)
}

func (m *MockItemRepoForAttempts) GetByID(id uint) (*entity.Item, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Item), args.Error(1)
}

func (m *MockItemRepoForAttempts) Create(item *entity.Item) error {
	args := m.Called(item)
	return args.Error(0)
}

func (m *MockItemRepoForAttempts) CreateBatch(items []entity.Item) error {
	args := m.Called(items)
	return args.Error(0)
}

func (m *MockItemRepoForAttempts) Update(item *entity.Item) error {
	args := m.Called(item)
	return args.Error(0)
}

func (m *MockItemRepoForAttempts) UpdateReviewStatus(id uint, status string) error {
	args := m.Called(id, status)
	return args.Error(0)
}

func (m *MockItemRepoForAttempts) CountByDifficulty(difficulty int) (int64, error) {
	args := m.Called(difficulty)
	return args.Get(0).(int64), args.Error(1)
}

// MockCacheRepoForAttempts реализует repository.CacheRepository
type MockCacheRepoForAttempts struct {
	mock.Mock
}

func (m *MockCacheRepoForAttempts) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepoForAttempts) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepoForAttempts) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepoForAttempts) Increment(key string) (int64, error) {
	args := m.Called(key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheRepoForAttempts) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepoForAttempts) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}

// ============================================================================
// Фикстуры
// ============================================================================

type attemptServiceFixture struct {
	service     *AttemptService
	attemptRepo *MockAttemptRepository
	configRepo  *MockExamConfigRepository
	itemRepo    *MockItemRepoForAttempts
	cacheRepo   *MockCacheRepoForAttempts
	now         time.Time
}

func newAttemptServiceFixture(t *testing.T) *attemptServiceFixture {
	t.Helper()

	attemptRepo := new(MockAttemptRepository)
	configRepo := new(MockExamConfigRepository)
	itemRepo := new(MockItemRepoForAttempts)
	cacheRepo := new(MockCacheRepoForAttempts)

	engineConfig := examengine.DefaultConfig()
	selector := examengine.NewAdaptiveSelector(engineConfig, &examengine.Dependencies{
		ItemRepo:  itemRepo,
		CacheRepo: cacheRepo,
	})
	scoring := examengine.NewScoringEngine(engineConfig)

	svc := NewAttemptService(attemptRepo, configRepo, itemRepo, selector, scoring)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &attemptServiceFixture{
		service:     svc,
		attemptRepo: attemptRepo,
		configRepo:  configRepo,
		itemRepo:    itemRepo,
		cacheRepo:   cacheRepo,
		now:         now,
	}
}

// setNow сдвигает часы сервиса
func (f *attemptServiceFixture) setNow(t time.Time) {
	f.service.now = func() time.Time { return t }
}

// expectConfig настраивает конфигурацию экзамена с заданной секционной квотой
func (f *attemptServiceFixture) expectConfig(questionsPerSection int) {
	f.configRepo.On("GetByID", uint(2)).Return(&entity.ExamConfig{
		ID:                  2,
		IsActive:            true,
		QuestionsPerSection: questionsPerSection,
	}, nil)
}

func (f *attemptServiceFixture) liveAttempt(status string) *entity.ExamAttempt {
	return &entity.ExamAttempt{
		ID:           1,
		UserID:       10,
		ExamConfigID: 2,
		ExamType:     "placement",
		Status:       status,
		ExpiresAt:    f.now.Add(entity.AttemptTTL),
		Answers:      entity.AnswerList{},
		Version:      1,
	}
}

func approvedTestItem(id uint, correct int) *entity.Item {
	return &entity.Item{
		ID:                id,
		Section:           entity.SectionGrammar,
		Topic:             "tenses",
		Options:           entity.StringArray{"a", "b", "c", "d"},
		CorrectOption:     correct,
		Difficulty:        3,
		IRTDiscrimination: 1.0,
		IRTDifficulty:     0,
		IRTGuessing:       0.25,
		ReviewStatus:      entity.ReviewStatusApproved,
	}
}

// ============================================================================
// Создание и старт
// ============================================================================

func TestCreateAttempt_Success(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.configRepo.On("GetByID", uint(2)).Return(&entity.ExamConfig{ID: 2, IsActive: true}, nil)
	f.attemptRepo.On("Create", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	attempt, err := f.service.CreateAttempt(10, 2, "placement", "")

	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusNotStarted, attempt.Status)
	assert.Equal(t, "adaptive", attempt.DifficultyMode, "Режим по умолчанию — adaptive")
	assert.Equal(t, f.now.Add(entity.AttemptTTL), attempt.ExpiresAt, "Срок действия — ровно 24 часа с создания")
	assert.Nil(t, attempt.StartedAt)
	f.attemptRepo.AssertExpectations(t)
}

func TestCreateAttempt_InactiveConfig(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.configRepo.On("GetByID", uint(2)).Return(&entity.ExamConfig{ID: 2, IsActive: false}, nil)

	_, err := f.service.CreateAttempt(10, 2, "placement", "adaptive")

	assert.ErrorIs(t, err, apperrors.ErrValidation, "Неактивная конфигурация должна отклоняться")
	f.attemptRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestCreateAttempt_ConfigNotFound(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.configRepo.On("GetByID", uint(99)).Return(nil, apperrors.ErrNotFound)

	_, err := f.service.CreateAttempt(10, 99, "placement", "adaptive")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStartAttempt_Success(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.attemptRepo.On("GetByID", uint(1)).Return(f.liveAttempt(entity.AttemptStatusNotStarted), nil)
	f.attemptRepo.On("Update", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	attempt, err := f.service.StartAttempt(1)

	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusInProgress, attempt.Status)
	assert.Equal(t, entity.SectionListening, attempt.CurrentSection, "Экзамен начинается с первой секции")
	assert.Equal(t, 0, attempt.CurrentQuestionIndex)
	require.NotNil(t, attempt.StartedAt)
	assert.Equal(t, f.now, *attempt.StartedAt)
}

func TestStartAttempt_WrongStatus(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.attemptRepo.On("GetByID", uint(1)).Return(f.liveAttempt(entity.AttemptStatusInProgress), nil)

	_, err := f.service.StartAttempt(1)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "Повторный старт — конфликт состояния")
}

func TestStartAttempt_Expired(t *testing.T) {
	f := newAttemptServiceFixture(t)

	attempt := f.liveAttempt(entity.AttemptStatusNotStarted)
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("Update", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	// Часы ушли за expires_at: ленивое истечение срабатывает при загрузке
	f.setNow(attempt.ExpiresAt.Add(time.Minute))

	_, err := f.service.StartAttempt(1)
	assert.ErrorIs(t, err, apperrors.ErrAttemptExpired)
	assert.Equal(t, entity.AttemptStatusExpired, attempt.Status, "Просроченная попытка помечается expired")
}

// ============================================================================
// Приём ответов
// ============================================================================

func TestSubmitAnswer_CorrectAnswer(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(10)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)
	f.itemRepo.On("GetByID", uint(5)).Return(approvedTestItem(5, 2), nil)
	f.cacheRepo.On("Increment", "item:5:total").Return(int64(1), nil)
	f.cacheRepo.On("Increment", "item:5:correct").Return(int64(1), nil)

	updated, isCorrect, err := f.service.SubmitAnswer(1, SubmitAnswerInput{
		QuestionID:     5,
		SelectedOption: 2,
		TimeSpentSec:   25,
	})

	require.NoError(t, err)
	assert.True(t, isCorrect, "Правильность вычисляется на сервере")
	require.Len(t, updated.Answers, 1)
	assert.Equal(t, 1, updated.CurrentQuestionIndex)
	assert.Greater(t, updated.Ability, 0.0, "Правильный ответ повышает оценку способности")

	answer, ok := updated.Answers.Get(5)
	require.True(t, ok)
	assert.True(t, answer.IsCorrect)
	assert.Equal(t, entity.SectionGrammar, answer.Section, "Секция берётся из вопроса, не от клиента")
	assert.Equal(t, "tenses", answer.Topic, "Тема вопроса фиксируется в ответе для подсказок отбора")
}

func TestSubmitAnswer_IncorrectAnswer(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(10)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)
	f.itemRepo.On("GetByID", uint(5)).Return(approvedTestItem(5, 2), nil)
	f.cacheRepo.On("Increment", "item:5:total").Return(int64(1), nil)

	updated, isCorrect, err := f.service.SubmitAnswer(1, SubmitAnswerInput{
		QuestionID:     5,
		SelectedOption: 0,
	})

	require.NoError(t, err)
	assert.False(t, isCorrect)
	assert.Less(t, updated.Ability, 0.0, "Неправильный ответ понижает оценку способности")
	f.cacheRepo.AssertNotCalled(t, "Increment", "item:5:correct")
}

func TestSubmitAnswer_UpsertNoDuplicate(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(10)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	attempt.Answers = entity.AnswerList{{QuestionID: 5, Section: entity.SectionGrammar, SelectedOption: 0, IsCorrect: false}}
	attempt.CurrentQuestionIndex = 1

	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)
	f.itemRepo.On("GetByID", uint(5)).Return(approvedTestItem(5, 2), nil)
	f.cacheRepo.On("Increment", mock.Anything).Return(int64(1), nil)

	updated, isCorrect, err := f.service.SubmitAnswer(1, SubmitAnswerInput{
		QuestionID:     5,
		SelectedOption: 2,
	})

	require.NoError(t, err)
	assert.True(t, isCorrect)
	require.Len(t, updated.Answers, 1, "Повторный ответ не должен создавать дубликат")

	answer, _ := updated.Answers.Get(5)
	assert.Equal(t, 2, answer.SelectedOption, "Должен сохраниться последний ответ")
	assert.True(t, answer.IsCorrect)
}

func TestSubmitAnswer_RetriesOnVersionConflict(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(10)

	f.attemptRepo.On("GetByID", uint(1)).Return(f.liveAttempt(entity.AttemptStatusInProgress), nil)
	f.itemRepo.On("GetByID", uint(5)).Return(approvedTestItem(5, 2), nil)
	f.cacheRepo.On("Increment", mock.Anything).Return(int64(1), nil)

	// Первая запись натыкается на параллельное изменение, вторая проходит
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).
		Return(apperrors.ErrVersionConflict).Once()
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).
		Return(nil).Once()

	_, _, err := f.service.SubmitAnswer(1, SubmitAnswerInput{QuestionID: 5, SelectedOption: 2})

	require.NoError(t, err, "Конфликт версии должен приводить к повтору, а не к ошибке")
	f.attemptRepo.AssertNumberOfCalls(t, "UpdateWithVersion", 2)
	// Перед повтором попытка перечитывается
	f.attemptRepo.AssertNumberOfCalls(t, "GetByID", 2)
}

func TestSubmitAnswer_ExhaustedRetries(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(10)

	f.attemptRepo.On("GetByID", uint(1)).Return(f.liveAttempt(entity.AttemptStatusInProgress), nil)
	f.itemRepo.On("GetByID", uint(5)).Return(approvedTestItem(5, 2), nil)
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).
		Return(apperrors.ErrVersionConflict)

	_, _, err := f.service.SubmitAnswer(1, SubmitAnswerInput{QuestionID: 5, SelectedOption: 2})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
	f.attemptRepo.AssertNumberOfCalls(t, "UpdateWithVersion", answerUpsertRetries)
}

func TestSubmitAnswer_NotInProgress(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.attemptRepo.On("GetByID", uint(1)).Return(f.liveAttempt(entity.AttemptStatusNotStarted), nil)
	f.itemRepo.On("GetByID", uint(5)).Return(approvedTestItem(5, 2), nil)

	_, _, err := f.service.SubmitAnswer(1, SubmitAnswerInput{QuestionID: 5, SelectedOption: 2})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSubmitAnswer_Expired(t *testing.T) {
	f := newAttemptServiceFixture(t)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("Update", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)
	f.itemRepo.On("GetByID", uint(5)).Return(approvedTestItem(5, 2), nil)

	f.setNow(attempt.ExpiresAt.Add(time.Second))

	_, _, err := f.service.SubmitAnswer(1, SubmitAnswerInput{QuestionID: 5, SelectedOption: 2})
	assert.ErrorIs(t, err, apperrors.ErrAttemptExpired)
}

func TestSubmitAnswer_InvalidOption(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.itemRepo.On("GetByID", uint(5)).Return(approvedTestItem(5, 2), nil)

	_, _, err := f.service.SubmitAnswer(1, SubmitAnswerInput{QuestionID: 5, SelectedOption: 7})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "Вариант за пределами списка должен отклоняться")
}

func TestSubmitAnswer_UnknownQuestion(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.itemRepo.On("GetByID", uint(404)).Return(nil, apperrors.ErrNotFound)

	_, _, err := f.service.SubmitAnswer(1, SubmitAnswerInput{QuestionID: 404, SelectedOption: 0})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ============================================================================
// Пауза и возобновление
// ============================================================================

func TestPauseResume_AccumulatesPausedTime(t *testing.T) {
	f := newAttemptServiceFixture(t)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("Update", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	paused, err := f.service.PauseAttempt(1)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)

	// Возобновляем через 10 минут
	f.setNow(f.now.Add(10 * time.Minute))

	resumed, err := f.service.ResumeAttempt(1)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusInProgress, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	assert.Equal(t, int64(600), resumed.TotalPausedSec, "Время паузы должно накапливаться")
}

func TestPauseAttempt_NotInProgress(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.attemptRepo.On("GetByID", uint(1)).Return(f.liveAttempt(entity.AttemptStatusPaused), nil)

	_, err := f.service.PauseAttempt(1)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "Повторная пауза — конфликт состояния")
}

func TestResumeAttempt_NotPaused(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.attemptRepo.On("GetByID", uint(1)).Return(f.liveAttempt(entity.AttemptStatusInProgress), nil)

	_, err := f.service.ResumeAttempt(1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// ============================================================================
// Завершение
// ============================================================================

func TestCompleteAttempt_Success(t *testing.T) {
	f := newAttemptServiceFixture(t)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	attempt.Answers = entity.AnswerList{
		{QuestionID: 1, Section: entity.SectionListening, IsCorrect: true, TimeSpentSec: 30},
		{QuestionID: 2, Section: entity.SectionGrammar, IsCorrect: false, TimeSpentSec: 20},
	}
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	completed, err := f.service.CompleteAttempt(1)

	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.Result, "Результат считается ровно один раз при завершении")
	assert.Equal(t, 150, completed.Result.TotalScore, "1/1 listening даёт 150, остальные секции по 0")
}

func TestCompleteAttempt_FromPaused(t *testing.T) {
	f := newAttemptServiceFixture(t)

	attempt := f.liveAttempt(entity.AttemptStatusPaused)
	pausedAt := f.now.Add(-5 * time.Minute)
	attempt.PausedAt = &pausedAt

	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	completed, err := f.service.CompleteAttempt(1)

	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusCompleted, completed.Status)
	assert.Nil(t, completed.PausedAt, "Открытый интервал паузы закрывается при завершении")
	assert.Equal(t, int64(300), completed.TotalPausedSec)
}

func TestCompleteAttempt_Idempotent(t *testing.T) {
	f := newAttemptServiceFixture(t)

	attempt := f.liveAttempt(entity.AttemptStatusCompleted)
	attempt.Result = &entity.ExamResult{TotalScore: 420, Level: "B2-C1 (Upper Intermediate)"}
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)

	completed, err := f.service.CompleteAttempt(1)

	require.NoError(t, err, "Повторное завершение идемпотентно")
	assert.Equal(t, 420, completed.Result.TotalScore, "Результат не должен пересчитываться")
	f.attemptRepo.AssertNotCalled(t, "UpdateWithVersion", mock.Anything)
}

func TestCompleteAttempt_ExpiredNotScored(t *testing.T) {
	f := newAttemptServiceFixture(t)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("Update", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	f.setNow(attempt.ExpiresAt.Add(time.Hour))

	_, err := f.service.CompleteAttempt(1)

	assert.ErrorIs(t, err, apperrors.ErrConflict, "Просроченная попытка не оценивается")
	assert.Nil(t, attempt.Result)
}

func TestCompleteAttempt_NotStarted(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.attemptRepo.On("GetByID", uint(1)).Return(f.liveAttempt(entity.AttemptStatusNotStarted), nil)

	_, err := f.service.CompleteAttempt(1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// ============================================================================
// Отбор вопросов и прочее
// ============================================================================

func TestSelectNextItems_ExcludesAnswered(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(10)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	attempt.CurrentSection = entity.SectionGrammar
	attempt.Answers = entity.AnswerList{
		{QuestionID: 11, Section: entity.SectionGrammar, IsCorrect: true},
		{QuestionID: 12, Section: entity.SectionGrammar, IsCorrect: false},
	}
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)

	var captured repository.ItemFilter
	f.itemRepo.On("Search", mock.MatchedBy(func(filter repository.ItemFilter) bool {
		captured = filter
		return true
	})).Return([]entity.Item{}, int64(0), nil)

	_, err := f.service.SelectNextItems(context.Background(), 1, 3, nil)

	require.NoError(t, err)
	assert.Equal(t, []uint{11, 12}, captured.ExcludeIDs, "Отвеченные вопросы исключаются из отбора")
	assert.Equal(t, entity.SectionGrammar, captured.Section)
}

func TestSelectNextItems_WeakTopicsFromAnswers(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(10)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	attempt.CurrentSection = entity.SectionGrammar
	attempt.Answers = entity.AnswerList{
		{QuestionID: 1, Section: entity.SectionGrammar, Topic: "articles", IsCorrect: false},
		{QuestionID: 2, Section: entity.SectionGrammar, Topic: "articles", IsCorrect: false},
		{QuestionID: 3, Section: entity.SectionGrammar, Topic: "tenses", IsCorrect: true},
		{QuestionID: 4, Section: entity.SectionGrammar, Topic: "tenses", IsCorrect: true},
	}
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)

	var captured repository.ItemFilter
	f.itemRepo.On("Search", mock.MatchedBy(func(filter repository.ItemFilter) bool {
		captured = filter
		return true
	})).Return([]entity.Item{}, int64(0), nil)

	_, err := f.service.SelectNextItems(context.Background(), 1, 3, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"articles"}, captured.Topics,
		"Подсказка слабых тем строится по темам отвеченных вопросов")
	assert.NotContains(t, captured.Topics, entity.SectionGrammar,
		"Имя секции — не тема: оно не должно попадать в фильтр тем")
}

func TestSelectNextItems_ClampsToSectionQuota(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(5)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	attempt.CurrentSection = entity.SectionListening
	attempt.Answers = entity.AnswerList{
		{QuestionID: 1, Section: entity.SectionListening, IsCorrect: true},
		{QuestionID: 2, Section: entity.SectionListening, IsCorrect: true},
		{QuestionID: 3, Section: entity.SectionListening, IsCorrect: false},
	}
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)

	var captured repository.ItemFilter
	f.itemRepo.On("Search", mock.MatchedBy(func(filter repository.ItemFilter) bool {
		captured = filter
		return true
	})).Return([]entity.Item{}, int64(0), nil)

	_, err := f.service.SelectNextItems(context.Background(), 1, 5, nil)

	require.NoError(t, err)
	// В секции осталось 2 вопроса из квоты 5: count прижимается, limit = 2 x overfetch
	assert.Equal(t, 2*examengine.DefaultOverfetchFactor, captured.Limit,
		"Партия не выходит за остаток секционной квоты")
}

func TestSelectNextItems_SectionQuotaExhausted(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(1)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	attempt.CurrentSection = entity.SectionReading
	attempt.Answers = entity.AnswerList{
		{QuestionID: 1, Section: entity.SectionReading, IsCorrect: true},
	}
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)

	items, err := f.service.SelectNextItems(context.Background(), 1, 5, nil)

	require.NoError(t, err)
	assert.Empty(t, items, "Выбранная до конца последняя секция даёт пустую партию без ошибки")
	f.itemRepo.AssertNotCalled(t, "Search", mock.Anything)
}

func TestSubmitAnswer_AdvancesSectionAfterQuota(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(2)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	attempt.CurrentSection = entity.SectionListening
	attempt.Answers = entity.AnswerList{
		{QuestionID: 11, Section: entity.SectionListening, Topic: "announcements", IsCorrect: true},
	}
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	item := approvedTestItem(12, 2)
	item.Section = entity.SectionListening
	item.Topic = "dialogues"
	f.itemRepo.On("GetByID", uint(12)).Return(item, nil)
	f.cacheRepo.On("Increment", mock.Anything).Return(int64(1), nil)

	updated, _, err := f.service.SubmitAnswer(1, SubmitAnswerInput{QuestionID: 12, SelectedOption: 2})

	require.NoError(t, err)
	assert.Equal(t, entity.SectionVocabulary, updated.CurrentSection,
		"После выборки секционной квоты экзамен переходит к следующей секции")
	assert.Equal(t, 2, updated.CurrentQuestionIndex)
}

func TestSubmitAnswer_LastSectionDoesNotAdvance(t *testing.T) {
	f := newAttemptServiceFixture(t)
	f.expectConfig(1)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	attempt.CurrentSection = entity.SectionReading
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("UpdateWithVersion", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	item := approvedTestItem(12, 2)
	item.Section = entity.SectionReading
	f.itemRepo.On("GetByID", uint(12)).Return(item, nil)
	f.cacheRepo.On("Increment", mock.Anything).Return(int64(1), nil)

	updated, _, err := f.service.SubmitAnswer(1, SubmitAnswerInput{QuestionID: 12, SelectedOption: 2})

	require.NoError(t, err)
	assert.Equal(t, entity.SectionReading, updated.CurrentSection, "После последней секции переходить некуда")
}

func TestRecordCheatEvent(t *testing.T) {
	f := newAttemptServiceFixture(t)

	attempt := f.liveAttempt(entity.AttemptStatusInProgress)
	f.attemptRepo.On("GetByID", uint(1)).Return(attempt, nil)
	f.attemptRepo.On("Update", mock.AnythingOfType("*entity.ExamAttempt")).Return(nil)

	updated, err := f.service.RecordCheatEvent(1, CheatEventTabSwitch)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TabSwitches)

	updated, err = f.service.RecordCheatEvent(1, CheatEventFullscreenExit)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FullscreenExits)

	_, err = f.service.RecordCheatEvent(1, "mouse_leave")
	assert.ErrorIs(t, err, apperrors.ErrValidation, "Неизвестный тип события отклоняется")
}

func TestGetBestScore_NoAttempts(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.attemptRepo.On("GetBestScore", uint(10)).Return(nil, nil)

	attempt, err := f.service.GetBestScore(10)
	require.NoError(t, err, "Отсутствие завершённых попыток — не ошибка")
	assert.Nil(t, attempt)
}

func TestExpireOverdue(t *testing.T) {
	f := newAttemptServiceFixture(t)

	f.attemptRepo.On("ExpireOverdue", f.now).Return(int64(3), nil)

	count, err := f.service.ExpireOverdue()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
