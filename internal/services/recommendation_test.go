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
	"github.com/studystreak/studystreak-backend/internal/vectorindex"
)

// memoryIndex returns canned neighbor matches, closest first.
type memoryIndex struct {
	matches []vectorindex.Match
}

func (m *memoryIndex) Upsert(context.Context, vectorindex.Entry) error { return nil }

func (m *memoryIndex) NearestNeighbors(_ context.Context, _ []float32, k int, scope vectorindex.Scope) ([]vectorindex.Match, error) {
	out := make([]vectorindex.Match, 0, k)
	for _, match := range m.matches {
		if scope.ExcludeVersionID != nil && match.VersionID == *scope.ExcludeVersionID {
			continue
		}
		out = append(out, match)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (m *memoryIndex) DeleteByVersionIDs(context.Context, []uuid.UUID) error { return nil }

func TestSimilarMaterialsRanksByNeighborSimilarity(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)

	versionRepo := artifacts.NewArtifactVersionRepo(tx, log)
	materialRepo := materials.NewMaterialRepo(tx, log)

	subject := testutil.SeedMaterial(t, ctx, tx, "subject")
	subjectVersion := testutil.SeedVersion(t, ctx, tx, subject.ID, domain.ArtifactSummary, time.Now())

	near := testutil.SeedMaterial(t, ctx, tx, "near")
	nearVersion := testutil.SeedVersion(t, ctx, tx, near.ID, domain.ArtifactSummary, time.Now())
	far := testutil.SeedMaterial(t, ctx, tx, "far")
	farVersion := testutil.SeedVersion(t, ctx, tx, far.ID, domain.ArtifactSummary, time.Now())
	// Two versions of the same material must collapse to one result.
	nearOlder := testutil.SeedVersion(t, ctx, tx, near.ID, domain.ArtifactSummary, time.Now().Add(-time.Minute))

	index := &memoryIndex{matches: []vectorindex.Match{
		{VersionID: nearVersion.ID, Similarity: 0.93},
		{VersionID: nearOlder.ID, Similarity: 0.91},
		{VersionID: subjectVersion.ID, Similarity: 0.90},
		{VersionID: farVersion.ID, Similarity: 0.55},
	}}

	svc := NewRecommendationService(log, &stubGateway{}, materialRepo, versionRepo, index)
	got, err := svc.SimilarMaterials(ctx, subject.ID, 5)
	if err != nil {
		t.Fatalf("SimilarMaterials: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if got[0].Material.ID != near.ID || got[0].Similarity != 0.93 {
		t.Fatalf("first result = %s (%.2f)", got[0].Material.Title, got[0].Similarity)
	}
	if got[1].Material.ID != far.ID {
		t.Fatalf("second result = %s", got[1].Material.Title)
	}
}

func TestSimilarMaterialsWithoutSummary(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)

	mat := testutil.SeedMaterial(t, ctx, tx, "unsummarized")

	svc := NewRecommendationService(log, &stubGateway{},
		materials.NewMaterialRepo(tx, log),
		artifacts.NewArtifactVersionRepo(tx, log),
		&memoryIndex{})

	if _, err := svc.SimilarMaterials(ctx, mat.ID, 3); err != ErrNoArtifact {
		t.Fatalf("err = %v, want ErrNoArtifact", err)
	}
}

func TestSimilarMaterialsEmptyIndex(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)

	mat := testutil.SeedMaterial(t, ctx, tx, "lonely")
	testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now())

	svc := NewRecommendationService(log, &stubGateway{},
		materials.NewMaterialRepo(tx, log),
		artifacts.NewArtifactVersionRepo(tx, log),
		&memoryIndex{})

	got, err := svc.SimilarMaterials(ctx, mat.ID, 3)
	if err != nil {
		t.Fatalf("SimilarMaterials: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("results = %d, want 0", len(got))
	}
}
