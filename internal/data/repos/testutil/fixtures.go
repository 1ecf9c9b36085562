package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/domain"
)

func SeedMaterial(tb testing.TB, ctx context.Context, tx *gorm.DB, title string) *domain.Material {
	tb.Helper()
	m := &domain.Material{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		Title:       title,
		SourceHash:  fmt.Sprintf("hash-%s", uuid.New()),
		StorageKey:  "materials/" + title + ".pdf",
		MimeType:    "application/pdf",
		Status:      "ready",
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed material: %v", err)
	}
	return m
}

// SeedVersion writes one summary version with a distinct created_at so
// ordering assertions are deterministic.
func SeedVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, materialID uuid.UUID, artifactType domain.ArtifactType, createdAt time.Time) *domain.ArtifactVersion {
	tb.Helper()
	v := &domain.ArtifactVersion{
		ID:          uuid.New(),
		MaterialID:  materialID,
		Type:        artifactType,
		Content:     SampleContent(tb, artifactType),
		ContentHash: fmt.Sprintf("ch-%s", uuid.New()),
		ModelName:   "test-model",
		ModelParams: datatypes.JSON([]byte("{}")),
		GeneratedBy: domain.GeneratedByModel,
		RunID:       uuid.New(),
		CreatedAt:   createdAt,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed version: %v", err)
	}
	return v
}

func SampleVector(dim int) pgvector.Vector {
	vals := make([]float32, dim)
	vals[0] = 1
	return pgvector.NewVector(vals)
}

func SampleContent(tb testing.TB, artifactType domain.ArtifactType) datatypes.JSON {
	tb.Helper()
	switch artifactType {
	case domain.ArtifactSummary:
		return datatypes.JSON([]byte(`{"summary":"Cells are the basic unit of life.","word_count":7}`))
	case domain.ArtifactKeyPoints:
		return datatypes.JSON([]byte(`{"keypoints":["Cells are the basic unit of life","Mitochondria produce ATP"]}`))
	case domain.ArtifactQuiz:
		return datatypes.JSON([]byte(`{"questions":[{"question":"What produces ATP?","options":["Mitochondria","Ribosome","Nucleus","Golgi"],"correct_answer":"Mitochondria"}]}`))
	case domain.ArtifactFlashcards:
		return datatypes.JSON([]byte(`{"flashcards":[{"front":"ATP factory","back":"Mitochondria"}]}`))
	default:
		tb.Fatalf("no sample content for type %q", artifactType)
		return nil
	}
}
