package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/data/repos/artifacts"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

// ResolverStrategy selects how reads find the current version of an artifact.
type ResolverStrategy string

const (
	// ResolverDynamic answers every read straight from the ledger ordering.
	ResolverDynamic ResolverStrategy = "dynamic"
	// ResolverPointer answers from the artifact_pointer cache and falls back
	// to the ledger when the pointer is missing or dangling.
	ResolverPointer ResolverStrategy = "pointer"
)

func ParseResolverStrategy(raw string) (ResolverStrategy, error) {
	switch ResolverStrategy(raw) {
	case ResolverDynamic, ResolverPointer:
		return ResolverStrategy(raw), nil
	case "":
		return ResolverDynamic, nil
	}
	return "", fmt.Errorf("unknown resolver strategy %q", raw)
}

// ReadResolver resolves the current version of a (material, type) pair.
// Whatever the strategy, the ledger ordering is the source of truth; a
// resolver may only ever return a version that exists in the ledger.
type ReadResolver interface {
	Resolve(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactVersion, error)
	// Promote records versionID as current. A no-op for the dynamic strategy.
	Promote(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType, versionID uuid.UUID) error
	Strategy() ResolverStrategy
}

func NewReadResolver(strategy ResolverStrategy, versions artifacts.ArtifactVersionRepo, pointers artifacts.ArtifactPointerRepo, baseLog *logger.Logger) (ReadResolver, error) {
	switch strategy {
	case ResolverDynamic:
		return &dynamicResolver{versions: versions}, nil
	case ResolverPointer:
		return &pointerResolver{
			versions: versions,
			pointers: pointers,
			log:      baseLog.With("service", "PointerResolver"),
		}, nil
	}
	return nil, fmt.Errorf("unknown resolver strategy %q", strategy)
}

type dynamicResolver struct {
	versions artifacts.ArtifactVersionRepo
}

func (r *dynamicResolver) Resolve(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactVersion, error) {
	return r.versions.Latest(dbc, materialID, artifactType)
}

func (r *dynamicResolver) Promote(dbctx.Context, uuid.UUID, domain.ArtifactType, uuid.UUID) error {
	return nil
}

func (r *dynamicResolver) Strategy() ResolverStrategy { return ResolverDynamic }

type pointerResolver struct {
	versions artifacts.ArtifactVersionRepo
	pointers artifacts.ArtifactPointerRepo
	log      *logger.Logger
}

func (r *pointerResolver) Resolve(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactVersion, error) {
	pointer, err := r.pointers.Get(dbc, materialID, artifactType)
	if errors.Is(err, artifacts.ErrNotFound) {
		return r.repair(dbc, materialID, artifactType)
	}
	if err != nil {
		return nil, err
	}

	version, err := r.versions.GetByID(dbc, pointer.VersionID)
	if errors.Is(err, artifacts.ErrNotFound) {
		// Dangling pointer, likely a purge or restore race. The ledger wins.
		r.log.Warn("repairing dangling artifact pointer",
			"material_id", materialID.String(),
			"artifact_type", string(artifactType),
			"version_id", pointer.VersionID.String())
		return r.repair(dbc, materialID, artifactType)
	}
	if err != nil {
		return nil, err
	}
	return version, nil
}

// repair rebuilds the pointer from the ledger. When the ledger itself is
// empty the stale pointer is removed so later reads do not chase it again.
func (r *pointerResolver) repair(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactVersion, error) {
	latest, err := r.versions.Latest(dbc, materialID, artifactType)
	if errors.Is(err, artifacts.ErrNotFound) {
		if delErr := r.pointers.Delete(dbc, materialID, artifactType); delErr != nil {
			r.log.Warn("failed to drop stale artifact pointer",
				"material_id", materialID.String(),
				"artifact_type", string(artifactType),
				"error", delErr.Error())
		}
		return nil, artifacts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if setErr := r.pointers.Set(dbc, materialID, artifactType, latest.ID); setErr != nil {
		// The read still succeeds; the next read retries the repair.
		r.log.Warn("failed to repair artifact pointer",
			"material_id", materialID.String(),
			"artifact_type", string(artifactType),
			"error", setErr.Error())
	}
	return latest, nil
}

func (r *pointerResolver) Promote(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType, versionID uuid.UUID) error {
	return r.pointers.Set(dbc, materialID, artifactType, versionID)
}

func (r *pointerResolver) Strategy() ResolverStrategy { return ResolverPointer }
