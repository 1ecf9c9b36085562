package artifacts

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

// ErrNotFound means no version exists yet for a (material, type) pair. It is
// a legitimate "nothing generated yet" signal, not a failure.
var ErrNotFound = errors.New("artifact version not found")

// ArtifactVersionRepo is the append-only ledger of generated artifacts.
// Rows are immutable once written; the only delete path is PurgeOld.
type ArtifactVersionRepo interface {
	Append(dbc dbctx.Context, version *domain.ArtifactVersion) (*domain.ArtifactVersion, error)
	GetByID(dbc dbctx.Context, versionID uuid.UUID) (*domain.ArtifactVersion, error)
	Latest(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactVersion, error)
	ListVersions(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType, page, pageSize int) ([]*domain.ArtifactVersion, int64, error)
	CountVersions(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (int64, error)
	ListKeys(dbc dbctx.Context) ([]VersionKey, error)
	PurgeOld(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType, keepN int) (int64, error)
}

// VersionKey is one (material, type) pair that has at least one version.
type VersionKey struct {
	MaterialID   uuid.UUID           `gorm:"column:material_id"`
	ArtifactType domain.ArtifactType `gorm:"column:artifact_type"`
}

type artifactVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactVersionRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactVersionRepo {
	repoLog := baseLog.With("repo", "ArtifactVersionRepo")
	return &artifactVersionRepo{db: db, log: repoLog}
}

// latestOrder is the total order that defines "latest": created_at ties are
// broken by id so concurrent appends still resolve deterministically.
const latestOrder = "created_at DESC, id DESC"

func (r *artifactVersionRepo) Append(dbc dbctx.Context, version *domain.ArtifactVersion) (*domain.ArtifactVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if version == nil {
		return nil, fmt.Errorf("nil artifact version")
	}
	if !version.Type.Valid() {
		return nil, fmt.Errorf("invalid artifact type %q", version.Type)
	}
	if version.MaterialID == uuid.Nil {
		return nil, fmt.Errorf("material id is required")
	}
	if err := domain.ValidateContent(version.Type, version.Content); err != nil {
		return nil, err
	}
	if version.ContentHash == "" {
		hash, err := domain.ContentHash(version.Type, version.Content)
		if err != nil {
			return nil, err
		}
		version.ContentHash = hash
	}
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	if version.RunID == uuid.Nil {
		version.RunID = uuid.New()
	}
	if version.GeneratedBy == "" {
		version.GeneratedBy = domain.GeneratedByModel
	}

	if err := transaction.WithContext(dbc.Ctx).Create(version).Error; err != nil {
		return nil, err
	}
	return version, nil
}

func (r *artifactVersionRepo) GetByID(dbc dbctx.Context, versionID uuid.UUID) (*domain.ArtifactVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.ArtifactVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", versionID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *artifactVersionRepo) Latest(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.ArtifactVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("material_id = ? AND artifact_type = ?", materialID, artifactType).
		Order(latestOrder).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *artifactVersionRepo) ListVersions(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType, page, pageSize int) ([]*domain.ArtifactVersion, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	scoped := transaction.WithContext(dbc.Ctx).
		Model(&domain.ArtifactVersion{}).
		Where("material_id = ? AND artifact_type = ?", materialID, artifactType)

	var total int64
	if err := scoped.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*domain.ArtifactVersion
	if err := scoped.
		Order(latestOrder).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *artifactVersionRepo) CountVersions(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ArtifactVersion{}).
		Where("material_id = ? AND artifact_type = ?", materialID, artifactType).
		Count(&total).Error
	return total, err
}

func (r *artifactVersionRepo) ListKeys(dbc dbctx.Context) ([]VersionKey, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var keys []VersionKey
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ArtifactVersion{}).
		Distinct("material_id", "artifact_type").
		Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// PurgeOld deletes all but the keepN most recent versions for the pair,
// along with their embedding rows. The current latest version is always
// retained even with keepN=0, so a purge can never leave a (material, type)
// pair with zero versions.
func (r *artifactVersionRepo) PurgeOld(dbc dbctx.Context, materialID uuid.UUID, artifactType domain.ArtifactType, keepN int) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if keepN < 1 {
		keepN = 1
	}

	var keepIDs []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ArtifactVersion{}).
		Where("material_id = ? AND artifact_type = ?", materialID, artifactType).
		Order(latestOrder).
		Limit(keepN).
		Pluck("id", &keepIDs).Error; err != nil {
		return 0, err
	}
	if len(keepIDs) == 0 {
		return 0, nil
	}

	var purgeIDs []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ArtifactVersion{}).
		Where("material_id = ? AND artifact_type = ? AND id NOT IN ?", materialID, artifactType, keepIDs).
		Pluck("id", &purgeIDs).Error; err != nil {
		return 0, err
	}
	if len(purgeIDs) == 0 {
		return 0, nil
	}

	// Migrations run without FK constraints, so the embedding cascade is
	// done here instead of in the database.
	if err := transaction.WithContext(dbc.Ctx).
		Where("version_id IN ?", purgeIDs).
		Delete(&domain.EmbeddingVector{}).Error; err != nil {
		return 0, err
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", purgeIDs).
		Delete(&domain.ArtifactVersion{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
