package materials

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

// QuizAttemptRepo records users working through generated quizzes. Attempts
// and responses are append-only; completion is the only state that moves.
type QuizAttemptRepo interface {
	CreateAttempt(dbc dbctx.Context, attempt *domain.QuizAttempt) (*domain.QuizAttempt, error)
	CompleteAttempt(dbc dbctx.Context, attemptID uuid.UUID) error
	GetAttemptByID(dbc dbctx.Context, attemptID uuid.UUID) (*domain.QuizAttempt, error)
	GetAttemptsByVersionID(dbc dbctx.Context, versionID uuid.UUID) ([]*domain.QuizAttempt, error)
	CreateResponses(dbc dbctx.Context, responses []*domain.QuizResponse) ([]*domain.QuizResponse, error)
	GetResponsesByAttemptID(dbc dbctx.Context, attemptID uuid.UUID) ([]*domain.QuizResponse, error)
}

type quizAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizAttemptRepo(db *gorm.DB, baseLog *logger.Logger) QuizAttemptRepo {
	repoLog := baseLog.With("repo", "QuizAttemptRepo")
	return &quizAttemptRepo{db: db, log: repoLog}
}

func (r *quizAttemptRepo) CreateAttempt(dbc dbctx.Context, attempt *domain.QuizAttempt) (*domain.QuizAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *quizAttemptRepo) CompleteAttempt(dbc dbctx.Context, attemptID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.QuizAttempt{}).
		Where("id = ?", attemptID).
		Update("completed_at", &now).Error
}

func (r *quizAttemptRepo) GetAttemptByID(dbc dbctx.Context, attemptID uuid.UUID) (*domain.QuizAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.QuizAttempt
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", attemptID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *quizAttemptRepo) GetAttemptsByVersionID(dbc dbctx.Context, versionID uuid.UUID) ([]*domain.QuizAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.QuizAttempt
	if err := transaction.WithContext(dbc.Ctx).
		Where("version_id = ?", versionID).
		Order("started_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *quizAttemptRepo) CreateResponses(dbc dbctx.Context, responses []*domain.QuizResponse) ([]*domain.QuizResponse, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(responses) == 0 {
		return []*domain.QuizResponse{}, nil
	}
	for _, resp := range responses {
		if resp.ID == uuid.Nil {
			resp.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *quizAttemptRepo) GetResponsesByAttemptID(dbc dbctx.Context, attemptID uuid.UUID) ([]*domain.QuizResponse, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.QuizResponse
	if err := transaction.WithContext(dbc.Ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
