package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/data/repos/artifacts"
	"github.com/studystreak/studystreak-backend/internal/data/repos/materials"
	"github.com/studystreak/studystreak-backend/internal/data/repos/testutil"
	"github.com/studystreak/studystreak-backend/internal/domain"
)

func newTestQuizService(t *testing.T) (*QuizService, context.Context, *domain.ArtifactVersion) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)

	mat := testutil.SeedMaterial(t, ctx, tx, "quizzed")
	version := testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactQuiz, time.Now())

	svc := NewQuizService(log, tx,
		materials.NewQuizAttemptRepo(tx, log),
		artifacts.NewArtifactVersionRepo(tx, log))
	return svc, ctx, version
}

func TestQuizAttemptLifecycle(t *testing.T) {
	svc, ctx, version := newTestQuizService(t)
	userID := uuid.New()

	attempt, err := svc.StartAttempt(ctx, version.ID, userID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if attempt.CompletedAt != nil {
		t.Fatalf("new attempt already completed")
	}

	result, err := svc.SubmitAttempt(ctx, attempt.ID, []AnswerSubmission{
		{QuestionIndex: 0, Answer: " Mitochondria "},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if result.Score != 1 || result.Total != 1 {
		t.Fatalf("score = %d/%d, want 1/1", result.Score, result.Total)
	}
	if result.Attempt.CompletedAt == nil {
		t.Fatalf("submitted attempt not marked completed")
	}

	// Resubmission is rejected; the stored grade is final.
	if _, err := svc.SubmitAttempt(ctx, attempt.ID, nil); err != ErrAttemptCompleted {
		t.Fatalf("resubmit err = %v, want ErrAttemptCompleted", err)
	}

	fetched, err := svc.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if fetched.Score != 1 || len(fetched.Responses) != 1 {
		t.Fatalf("stored result = %d score, %d responses", fetched.Score, len(fetched.Responses))
	}
	if !fetched.Responses[0].Correct {
		t.Fatalf("response not graded correct")
	}
}

func TestSubmitAttemptWrongAnswer(t *testing.T) {
	svc, ctx, version := newTestQuizService(t)

	attempt, err := svc.StartAttempt(ctx, version.ID, uuid.New())
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	result, err := svc.SubmitAttempt(ctx, attempt.ID, []AnswerSubmission{
		{QuestionIndex: 0, Answer: "Ribosome"},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if result.Score != 0 {
		t.Fatalf("score = %d, want 0", result.Score)
	}

	if _, err := svc.SubmitAttempt(ctx, attempt.ID, []AnswerSubmission{{QuestionIndex: 5, Answer: "x"}}); err != ErrAttemptCompleted {
		t.Fatalf("completed attempt accepted more answers: %v", err)
	}
}

func TestSubmitAttemptOutOfRangeIndex(t *testing.T) {
	svc, ctx, version := newTestQuizService(t)

	attempt, err := svc.StartAttempt(ctx, version.ID, uuid.New())
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if _, err := svc.SubmitAttempt(ctx, attempt.ID, []AnswerSubmission{{QuestionIndex: 7, Answer: "x"}}); err == nil {
		t.Fatalf("out of range index accepted")
	}
	// The failed submission must not complete the attempt.
	got, err := svc.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if got.Attempt.CompletedAt != nil {
		t.Fatalf("failed submission completed the attempt")
	}
}

func TestStartAttemptRejectsNonQuizVersion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)

	mat := testutil.SeedMaterial(t, ctx, tx, "summary-only")
	summary := testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now())

	svc := NewQuizService(log, tx,
		materials.NewQuizAttemptRepo(tx, log),
		artifacts.NewArtifactVersionRepo(tx, log))

	if _, err := svc.StartAttempt(ctx, summary.ID, uuid.New()); err == nil {
		t.Fatalf("attempt against a summary version accepted")
	}
	if _, err := svc.StartAttempt(ctx, uuid.New(), uuid.New()); err != ErrNoArtifact {
		t.Fatalf("unknown version err = %v, want ErrNoArtifact", err)
	}
	if _, err := svc.SubmitAttempt(ctx, uuid.New(), nil); err != ErrAttemptNotFound {
		t.Fatalf("unknown attempt err = %v, want ErrAttemptNotFound", err)
	}
}
