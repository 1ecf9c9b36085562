package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/data/repos/artifacts"
	"github.com/studystreak/studystreak-backend/internal/data/repos/materials"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

// ErrAttemptNotFound is returned when the attempt id does not exist.
var ErrAttemptNotFound = errors.New("quiz attempt not found")

// ErrAttemptCompleted is returned when answers arrive for an attempt that
// was already submitted.
var ErrAttemptCompleted = errors.New("quiz attempt already completed")

// AnswerSubmission is one answered question in a quiz attempt.
type AnswerSubmission struct {
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
}

// AttemptResult is a graded attempt.
type AttemptResult struct {
	Attempt   *domain.QuizAttempt    `json:"attempt"`
	Responses []*domain.QuizResponse `json:"responses"`
	Score     int                    `json:"score"`
	Total     int                    `json:"total"`
}

// QuizService manages quiz attempts against frozen quiz versions. Grading
// always runs against the exact version the attempt was started on, so a
// later regeneration never changes a past score.
type QuizService struct {
	log      *logger.Logger
	db       *gorm.DB
	attempts materials.QuizAttemptRepo
	versions artifacts.ArtifactVersionRepo
}

func NewQuizService(baseLog *logger.Logger, db *gorm.DB, attempts materials.QuizAttemptRepo, versions artifacts.ArtifactVersionRepo) *QuizService {
	return &QuizService{
		log:      baseLog.With("service", "QuizService"),
		db:       db,
		attempts: attempts,
		versions: versions,
	}
}

// StartAttempt opens an attempt against a quiz version.
func (s *QuizService) StartAttempt(ctx context.Context, versionID, userID uuid.UUID) (*domain.QuizAttempt, error) {
	dbc := dbctx.Context{Ctx: ctx}

	version, err := s.versions.GetByID(dbc, versionID)
	if errors.Is(err, artifacts.ErrNotFound) {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, err
	}
	if version.Type != domain.ArtifactQuiz {
		return nil, fmt.Errorf("version %s is %s, not a quiz", versionID, version.Type)
	}

	return s.attempts.CreateAttempt(dbc, &domain.QuizAttempt{
		VersionID: versionID,
		UserID:    userID,
	})
}

// SubmitAttempt grades the submitted answers against the attempt's quiz
// version, records the responses and completes the attempt.
func (s *QuizService) SubmitAttempt(ctx context.Context, attemptID uuid.UUID, answers []AnswerSubmission) (*AttemptResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	attempt, err := s.attempts.GetAttemptByID(dbc, attemptID)
	if errors.Is(err, materials.ErrNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	if attempt.CompletedAt != nil {
		return nil, ErrAttemptCompleted
	}

	version, err := s.versions.GetByID(dbc, attempt.VersionID)
	if err != nil {
		return nil, err
	}
	var quiz domain.QuizContent
	if err := json.Unmarshal(version.Content, &quiz); err != nil {
		return nil, fmt.Errorf("decode quiz content: %w", err)
	}

	responses := make([]*domain.QuizResponse, 0, len(answers))
	score := 0
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(quiz.Questions) {
			return nil, fmt.Errorf("question index %d out of range", a.QuestionIndex)
		}
		question := quiz.Questions[a.QuestionIndex]
		correct := strings.TrimSpace(a.Answer) == question.CorrectAnswer
		if correct {
			score++
		}
		responses = append(responses, &domain.QuizResponse{
			AttemptID:     attemptID,
			QuestionIndex: a.QuestionIndex,
			Answer:        a.Answer,
			Correct:       correct,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.attempts.CreateResponses(txc, responses); err != nil {
			return err
		}
		return s.attempts.CompleteAttempt(txc, attemptID)
	})
	if err != nil {
		return nil, err
	}

	graded, err := s.attempts.GetAttemptByID(dbc, attemptID)
	if err != nil {
		return nil, err
	}
	return &AttemptResult{
		Attempt:   graded,
		Responses: responses,
		Score:     score,
		Total:     len(quiz.Questions),
	}, nil
}

// GetAttempt returns an attempt with its recorded responses.
func (s *QuizService) GetAttempt(ctx context.Context, attemptID uuid.UUID) (*AttemptResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	attempt, err := s.attempts.GetAttemptByID(dbc, attemptID)
	if errors.Is(err, materials.ErrNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	responses, err := s.attempts.GetResponsesByAttemptID(dbc, attemptID)
	if err != nil {
		return nil, err
	}

	version, err := s.versions.GetByID(dbc, attempt.VersionID)
	if err != nil {
		return nil, err
	}
	var quiz domain.QuizContent
	if err := json.Unmarshal(version.Content, &quiz); err != nil {
		return nil, fmt.Errorf("decode quiz content: %w", err)
	}

	score := 0
	for _, r := range responses {
		if r.Correct {
			score++
		}
	}
	return &AttemptResult{
		Attempt:   attempt,
		Responses: responses,
		Score:     score,
		Total:     len(quiz.Questions),
	}, nil
}
