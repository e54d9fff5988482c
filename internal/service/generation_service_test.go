package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/exam-api/internal/domain/entity"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// stubDraftClient отдаёт фиксированный набор черновиков
type stubDraftClient struct {
	drafts []ItemDraft
	err    error
}

func (c *stubDraftClient) GenerateDrafts(ctx context.Context, req DraftRequest) ([]ItemDraft, error) {
	return c.drafts, c.err
}

func newGenerationFixture(drafts []ItemDraft) (*GenerationService, *MockItemRepoForAttempts, *MockCacheRepoForAttempts) {
	itemRepo := new(MockItemRepoForAttempts)
	cacheRepo := new(MockCacheRepoForAttempts)
	svc := NewGenerationService(itemRepo, cacheRepo, &stubDraftClient{drafts: drafts})
	return svc, itemRepo, cacheRepo
}

func validDraft(text string) ItemDraft {
	return ItemDraft{
		Text:          text,
		Options:       []string{"a", "an", "the", "—"},
		CorrectOption: 1,
		Explanation:   "Неопределённый артикль перед согласным звуком",
		Tags:          []string{"articles"},
	}
}

func TestGenerate_StoresPendingDrafts(t *testing.T) {
	svc, itemRepo, cacheRepo := newGenerationFixture([]ItemDraft{
		validDraft("Choose the correct article: ___ apple"),
		validDraft("Choose the correct article: ___ umbrella"),
	})

	cacheRepo.On("SetNX", "generation:lock:grammar:articles", 1, generationLockTTL).Return(true, nil)
	cacheRepo.On("Delete", "generation:lock:grammar:articles").Return(nil)
	itemRepo.On("CreateBatch", mock.AnythingOfType("[]entity.Item")).Return(nil)

	created, err := svc.Generate(context.Background(), DraftRequest{
		Section:    entity.SectionGrammar,
		Topic:      "articles",
		Difficulty: 4,
		Count:      2,
	})

	require.NoError(t, err)
	require.Len(t, created, 2)

	first := created[0]
	assert.Equal(t, entity.ReviewStatusPending, first.ReviewStatus, "Черновик попадает в очередь модерации")
	assert.True(t, first.IsAIGenerated)
	assert.Equal(t, generatedDraftQuality, first.QualityScore)
	assert.InDelta(t, 1.25, first.IRTDifficulty, 1e-9, "Стартовый b — центр интервала сложности 4")
	assert.InDelta(t, 0.25, first.IRTGuessing, 1e-9, "Стартовый c — 1/N по числу вариантов")
	cacheRepo.AssertCalled(t, "Delete", "generation:lock:grammar:articles")
}

func TestGenerate_DiscardsMalformedDrafts(t *testing.T) {
	bad := validDraft("broken")
	bad.CorrectOption = 7

	svc, itemRepo, cacheRepo := newGenerationFixture([]ItemDraft{validDraft("ok"), bad})

	cacheRepo.On("SetNX", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	cacheRepo.On("Delete", mock.Anything).Return(nil)
	itemRepo.On("CreateBatch", mock.AnythingOfType("[]entity.Item")).Return(nil)

	created, err := svc.Generate(context.Background(), DraftRequest{
		Section:    entity.SectionGrammar,
		Topic:      "articles",
		Difficulty: 3,
		Count:      2,
	})

	require.NoError(t, err)
	assert.Len(t, created, 1, "Некорректный черновик отбрасывается, не роняя партию")
}

func TestGenerate_LockConflict(t *testing.T) {
	svc, itemRepo, cacheRepo := newGenerationFixture([]ItemDraft{validDraft("ok")})

	cacheRepo.On("SetNX", "generation:lock:grammar:articles", 1, generationLockTTL).Return(false, nil)

	_, err := svc.Generate(context.Background(), DraftRequest{
		Section:    entity.SectionGrammar,
		Topic:      "articles",
		Difficulty: 3,
		Count:      1,
	})

	assert.ErrorIs(t, err, apperrors.ErrConflict, "Параллельная генерация по той же секции/теме отклоняется")
	itemRepo.AssertNotCalled(t, "CreateBatch", mock.Anything)
	cacheRepo.AssertNotCalled(t, "Delete", mock.Anything)
}

func TestGenerate_Validation(t *testing.T) {
	svc, _, cacheRepo := newGenerationFixture(nil)

	_, err := svc.Generate(context.Background(), DraftRequest{
		Section:    "writing",
		Topic:      "essays",
		Difficulty: 3,
		Count:      1,
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	cacheRepo.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskStatus(t *testing.T) {
	svc, _, cacheRepo := newGenerationFixture(nil)

	cacheRepo.On("Exists", "generation:task:abc").Return(true, nil)
	cacheRepo.On("Get", "generation:task:abc").Return(GenerationTaskDone, nil)

	status, err := svc.TaskStatus("abc")
	require.NoError(t, err)
	assert.Equal(t, GenerationTaskDone, status)
}

func TestTaskStatus_Unknown(t *testing.T) {
	svc, _, cacheRepo := newGenerationFixture(nil)

	cacheRepo.On("Exists", "generation:task:missing").Return(false, nil)

	_, err := svc.TaskStatus("missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "Неизвестная задача — not found, а не пустой статус")
}
