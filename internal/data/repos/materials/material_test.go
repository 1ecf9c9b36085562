package materials

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/data/repos/testutil"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
)

func TestMaterialRepoCreateAndGet(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewMaterialRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := uuid.New()
	created, err := repo.Create(dbc, []*domain.Material{
		{OwnerUserID: owner, Title: "Cell Biology", SourceHash: "h1", StorageKey: "materials/cells.pdf", MimeType: "application/pdf", Status: "ready"},
		{OwnerUserID: owner, Title: "Organic Chemistry", SourceHash: "h2", StorageKey: "materials/ochem.pdf", MimeType: "application/pdf", Status: "ready"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i, m := range created {
		if m.ID == uuid.Nil {
			t.Fatalf("material %d has no id", i)
		}
	}

	got, err := repo.GetByID(dbc, created[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Cell Biology" {
		t.Fatalf("title = %q", got.Title)
	}

	owned, err := repo.GetByOwnerUserID(dbc, owner)
	if err != nil {
		t.Fatalf("GetByOwnerUserID: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("owned = %d, want 2", len(owned))
	}

	if _, err := repo.GetByID(dbc, uuid.New()); err != ErrNotFound {
		t.Fatalf("missing material err = %v, want ErrNotFound", err)
	}
}

func TestMaterialRepoUpdateSourceHash(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewMaterialRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	mat := testutil.SeedMaterial(t, ctx, tx, "rehashed")
	if err := repo.UpdateSourceHash(dbc, mat.ID, "new-hash"); err != nil {
		t.Fatalf("UpdateSourceHash: %v", err)
	}

	got, err := repo.GetByID(dbc, mat.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SourceHash != "new-hash" {
		t.Fatalf("source hash = %q", got.SourceHash)
	}
}

func TestMaterialRepoSoftDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewMaterialRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	mat := testutil.SeedMaterial(t, ctx, tx, "discarded")
	keep := testutil.SeedMaterial(t, ctx, tx, "kept")

	if err := repo.SoftDeleteByIDs(dbc, []uuid.UUID{mat.ID}); err != nil {
		t.Fatalf("SoftDeleteByIDs: %v", err)
	}
	if _, err := repo.GetByID(dbc, mat.ID); err != ErrNotFound {
		t.Fatalf("deleted material still readable: %v", err)
	}
	if _, err := repo.GetByID(dbc, keep.ID); err != nil {
		t.Fatalf("sibling material affected: %v", err)
	}

	// The row survives under the soft delete for audit.
	var raw int64
	if err := tx.WithContext(ctx).Unscoped().Model(&domain.Material{}).Where("id = ?", mat.ID).Count(&raw).Error; err != nil {
		t.Fatalf("count raw: %v", err)
	}
	if raw != 1 {
		t.Fatalf("soft delete removed the row")
	}
}
