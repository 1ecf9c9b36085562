package artifacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/data/repos/testutil"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
)

func TestArtifactVersionRepoAppendAndLatest(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewArtifactVersionRepo(db, testutil.Logger(t))

	mat := testutil.SeedMaterial(t, ctx, tx, "bio-notes")

	if _, err := repo.Latest(dbc, mat.ID, domain.ArtifactSummary); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest on empty ledger: want ErrNotFound, got %v", err)
	}

	v1 := &domain.ArtifactVersion{
		MaterialID: mat.ID,
		Type:       domain.ArtifactSummary,
		Content:    testutil.SampleContent(t, domain.ArtifactSummary),
		CreatedAt:  time.Now().Add(-2 * time.Minute),
	}
	appended, err := repo.Append(dbc, v1)
	if err != nil {
		t.Fatalf("Append v1: %v", err)
	}
	if appended.ID == uuid.Nil || appended.RunID == uuid.Nil {
		t.Fatalf("Append did not assign ids: %+v", appended)
	}
	if appended.ContentHash == "" {
		t.Fatalf("Append did not compute content hash")
	}
	if appended.GeneratedBy != domain.GeneratedByModel {
		t.Fatalf("Append default GeneratedBy = %q", appended.GeneratedBy)
	}

	v2 := testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now().Add(-time.Minute))

	latest, err := repo.Latest(dbc, mat.ID, domain.ArtifactSummary)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != v2.ID {
		t.Fatalf("Latest = %s, want newest %s", latest.ID, v2.ID)
	}
}

func TestArtifactVersionRepoAppendRejectsBadContent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewArtifactVersionRepo(db, testutil.Logger(t))

	mat := testutil.SeedMaterial(t, ctx, tx, "bad-content")

	bad := &domain.ArtifactVersion{
		MaterialID: mat.ID,
		Type:       domain.ArtifactQuiz,
		Content:    []byte(`{"questions":[{"question":"q","options":["a"],"correct_answer":"a"}]}`),
	}
	if _, err := repo.Append(dbc, bad); err == nil {
		t.Fatalf("Append accepted quiz question with one option")
	}

	wrongType := &domain.ArtifactVersion{
		MaterialID: mat.ID,
		Type:       "poster",
		Content:    testutil.SampleContent(t, domain.ArtifactSummary),
	}
	if _, err := repo.Append(dbc, wrongType); err == nil {
		t.Fatalf("Append accepted invalid artifact type")
	}
}

func TestArtifactVersionRepoListVersionsPaginates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewArtifactVersionRepo(db, testutil.Logger(t))

	mat := testutil.SeedMaterial(t, ctx, tx, "paged")
	base := time.Now().Add(-time.Hour)
	var newest uuid.UUID
	for i := 0; i < 5; i++ {
		v := testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactKeyPoints, base.Add(time.Duration(i)*time.Minute))
		newest = v.ID
	}

	page1, total, err := repo.ListVersions(dbc, mat.ID, domain.ArtifactKeyPoints, 1, 2)
	if err != nil {
		t.Fatalf("ListVersions page 1: %v", err)
	}
	if total != 5 || len(page1) != 2 {
		t.Fatalf("page 1: total=%d len=%d", total, len(page1))
	}
	if page1[0].ID != newest {
		t.Fatalf("page 1 not newest-first")
	}

	page3, _, err := repo.ListVersions(dbc, mat.ID, domain.ArtifactKeyPoints, 3, 2)
	if err != nil {
		t.Fatalf("ListVersions page 3: %v", err)
	}
	if len(page3) != 1 {
		t.Fatalf("page 3 len=%d, want 1", len(page3))
	}
}

func TestArtifactVersionRepoPurgeOldKeepsLatest(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewArtifactVersionRepo(db, testutil.Logger(t))

	mat := testutil.SeedMaterial(t, ctx, tx, "purged")
	base := time.Now().Add(-time.Hour)
	versions := make([]*domain.ArtifactVersion, 0, 4)
	for i := 0; i < 4; i++ {
		versions = append(versions, testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, base.Add(time.Duration(i)*time.Minute)))
	}
	newest := versions[3]

	// keepN=0 still keeps the latest version.
	purged, err := repo.PurgeOld(dbc, mat.ID, domain.ArtifactSummary, 0)
	if err != nil {
		t.Fatalf("PurgeOld: %v", err)
	}
	if purged != 3 {
		t.Fatalf("purged %d rows, want 3", purged)
	}

	remaining, total, err := repo.ListVersions(dbc, mat.ID, domain.ArtifactSummary, 1, 10)
	if err != nil {
		t.Fatalf("ListVersions after purge: %v", err)
	}
	if total != 1 || remaining[0].ID != newest.ID {
		t.Fatalf("purge kept wrong version: total=%d id=%s", total, remaining[0].ID)
	}

	// Idempotent on a pair already at the floor.
	purged, err = repo.PurgeOld(dbc, mat.ID, domain.ArtifactSummary, 0)
	if err != nil {
		t.Fatalf("PurgeOld again: %v", err)
	}
	if purged != 0 {
		t.Fatalf("second purge removed %d rows", purged)
	}
}

func TestArtifactVersionRepoPurgeCascadesEmbeddings(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewArtifactVersionRepo(db, testutil.Logger(t))

	mat := testutil.SeedMaterial(t, ctx, tx, "embedded")
	old := testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now().Add(-2*time.Minute))
	testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now().Add(-time.Minute))

	emb := &domain.EmbeddingVector{
		VersionID:  old.ID,
		MaterialID: mat.ID,
		Type:       domain.ArtifactSummary,
		Vector:     testutil.SampleVector(384),
		ModelName:  "test-embedder",
	}
	if err := tx.WithContext(ctx).Create(emb).Error; err != nil {
		t.Fatalf("seed embedding: %v", err)
	}

	if _, err := repo.PurgeOld(dbc, mat.ID, domain.ArtifactSummary, 1); err != nil {
		t.Fatalf("PurgeOld: %v", err)
	}

	var count int64
	if err := tx.WithContext(ctx).Model(&domain.EmbeddingVector{}).Where("version_id = ?", old.ID).Count(&count).Error; err != nil {
		t.Fatalf("count embeddings: %v", err)
	}
	if count != 0 {
		t.Fatalf("embedding row survived purge")
	}
}

func TestArtifactVersionRepoListKeys(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewArtifactVersionRepo(db, testutil.Logger(t))

	mat := testutil.SeedMaterial(t, ctx, tx, "keys")
	testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now().Add(-2*time.Minute))
	testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now().Add(-time.Minute))
	testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactQuiz, time.Now())

	keys, err := repo.ListKeys(dbc)
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	found := 0
	for _, key := range keys {
		if key.MaterialID == mat.ID {
			found++
		}
	}
	if found != 2 {
		t.Fatalf("ListKeys found %d pairs for material, want 2", found)
	}
}
