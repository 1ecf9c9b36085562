package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/data/repos/artifacts"
	"github.com/studystreak/studystreak-backend/internal/data/repos/testutil"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
)

func TestParseResolverStrategy(t *testing.T) {
	for raw, want := range map[string]ResolverStrategy{
		"":        ResolverDynamic,
		"dynamic": ResolverDynamic,
		"pointer": ResolverPointer,
	} {
		got, err := ParseResolverStrategy(raw)
		if err != nil || got != want {
			t.Fatalf("ParseResolverStrategy(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseResolverStrategy("cache"); err == nil {
		t.Fatalf("unknown strategy accepted")
	}
}

func TestDynamicResolverReadsLedger(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	versions := artifacts.NewArtifactVersionRepo(tx, log)
	pointers := artifacts.NewArtifactPointerRepo(tx, log)

	resolver, err := NewReadResolver(ResolverDynamic, versions, pointers, log)
	if err != nil {
		t.Fatalf("NewReadResolver: %v", err)
	}

	mat := testutil.SeedMaterial(t, ctx, tx, "dynamic")
	if _, err := resolver.Resolve(dbc, mat.ID, domain.ArtifactSummary); !errors.Is(err, artifacts.ErrNotFound) {
		t.Fatalf("empty ledger: want ErrNotFound, got %v", err)
	}

	testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now().Add(-time.Minute))
	newest := testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now())

	got, err := resolver.Resolve(dbc, mat.ID, domain.ArtifactSummary)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != newest.ID {
		t.Fatalf("Resolve = %s, want %s", got.ID, newest.ID)
	}
}

func TestPointerResolverRepairsMissingPointer(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	versions := artifacts.NewArtifactVersionRepo(tx, log)
	pointers := artifacts.NewArtifactPointerRepo(tx, log)

	resolver, err := NewReadResolver(ResolverPointer, versions, pointers, log)
	if err != nil {
		t.Fatalf("NewReadResolver: %v", err)
	}

	mat := testutil.SeedMaterial(t, ctx, tx, "no-pointer")
	newest := testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now())

	got, err := resolver.Resolve(dbc, mat.ID, domain.ArtifactSummary)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != newest.ID {
		t.Fatalf("Resolve = %s, want %s", got.ID, newest.ID)
	}

	// The repair also rebuilt the pointer for the next read.
	pointer, err := pointers.Get(dbc, mat.ID, domain.ArtifactSummary)
	if err != nil {
		t.Fatalf("pointer after repair: %v", err)
	}
	if pointer.VersionID != newest.ID {
		t.Fatalf("pointer = %s, want %s", pointer.VersionID, newest.ID)
	}
}

func TestPointerResolverRepairsDanglingPointer(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	versions := artifacts.NewArtifactVersionRepo(tx, log)
	pointers := artifacts.NewArtifactPointerRepo(tx, log)

	resolver, err := NewReadResolver(ResolverPointer, versions, pointers, log)
	if err != nil {
		t.Fatalf("NewReadResolver: %v", err)
	}

	mat := testutil.SeedMaterial(t, ctx, tx, "dangling")
	newest := testutil.SeedVersion(t, ctx, tx, mat.ID, domain.ArtifactSummary, time.Now())

	// Point at a version that never existed, as a purge race would.
	if err := pointers.Set(dbc, mat.ID, domain.ArtifactSummary, uuid.New()); err != nil {
		t.Fatalf("Set dangling pointer: %v", err)
	}

	got, err := resolver.Resolve(dbc, mat.ID, domain.ArtifactSummary)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != newest.ID {
		t.Fatalf("ledger should win over dangling pointer: got %s", got.ID)
	}

	pointer, err := pointers.Get(dbc, mat.ID, domain.ArtifactSummary)
	if err != nil {
		t.Fatalf("pointer after repair: %v", err)
	}
	if pointer.VersionID != newest.ID {
		t.Fatalf("pointer not repaired: %s", pointer.VersionID)
	}
}

func TestPointerResolverDropsStalePointerOnEmptyLedger(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	versions := artifacts.NewArtifactVersionRepo(tx, log)
	pointers := artifacts.NewArtifactPointerRepo(tx, log)

	resolver, err := NewReadResolver(ResolverPointer, versions, pointers, log)
	if err != nil {
		t.Fatalf("NewReadResolver: %v", err)
	}

	mat := testutil.SeedMaterial(t, ctx, tx, "stale")
	if err := pointers.Set(dbc, mat.ID, domain.ArtifactQuiz, uuid.New()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := resolver.Resolve(dbc, mat.ID, domain.ArtifactQuiz); !errors.Is(err, artifacts.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := pointers.Get(dbc, mat.ID, domain.ArtifactQuiz); !errors.Is(err, artifacts.ErrNotFound) {
		t.Fatalf("stale pointer not dropped: %v", err)
	}
}
