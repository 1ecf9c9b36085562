package artifacts

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

// ArtifactPointerRepo maintains the optional (material, type) -> version_id
// shortcut. It is a rebuildable cache, never the source of truth.
type ArtifactPointerRepo interface {
	Set(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType, versionID uuid.UUID) error
	Get(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactPointer, error)
	Delete(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) error
}

type artifactPointerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactPointerRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactPointerRepo {
	repoLog := baseLog.With("repo", "ArtifactPointerRepo")
	return &artifactPointerRepo{db: db, log: repoLog}
}

func (r *artifactPointerRepo) Set(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType, versionID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	pointer := &domain.ArtifactPointer{
		MaterialID: materialID,
		Type:       artifactType,
		VersionID:  versionID,
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "material_id"}, {Name: "artifact_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"version_id", "updated_at"}),
		}).
		Create(pointer).Error
}

func (r *artifactPointerRepo) Get(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactPointer, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.ArtifactPointer
	err := transaction.WithContext(dbc.Ctx).
		Where("material_id = ? AND artifact_type = ?", materialID, artifactType).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *artifactPointerRepo) Delete(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(dbc.Ctx).
		Where("material_id = ? AND artifact_type = ?", materialID, artifactType).
		Delete(&domain.ArtifactPointer{}).Error
}
