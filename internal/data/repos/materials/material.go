package materials

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

var ErrNotFound = errors.New("material not found")

type MaterialRepo interface {
	Create(dbc dbctx.Context, materials []*domain.Material) ([]*domain.Material, error)
	GetByID(dbc dbctx.Context, materialID uuid.UUID) (*domain.Material, error)
	GetByIDs(dbc dbctx.Context, materialIDs []uuid.UUID) ([]*domain.Material, error)
	GetByOwnerUserID(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Material, error)
	UpdateSourceHash(dbc dbctx.Context, materialID uuid.UUID, sourceHash string) error
	SoftDeleteByIDs(dbc dbctx.Context, materialIDs []uuid.UUID) error
}

type materialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	repoLog := baseLog.With("repo", "MaterialRepo")
	return &materialRepo{db: db, log: repoLog}
}

func (r *materialRepo) Create(dbc dbctx.Context, mats []*domain.Material) ([]*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(mats) == 0 {
		return []*domain.Material{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&mats).Error; err != nil {
		return nil, err
	}
	return mats, nil
}

func (r *materialRepo) GetByID(dbc dbctx.Context, materialID uuid.UUID) (*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Material
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", materialID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *materialRepo) GetByIDs(dbc dbctx.Context, materialIDs []uuid.UUID) ([]*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Material
	if len(materialIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", materialIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *materialRepo) GetByOwnerUserID(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Material
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *materialRepo) UpdateSourceHash(dbc dbctx.Context, materialID uuid.UUID, sourceHash string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&domain.Material{}).
		Where("id = ?", materialID).
		Update("source_hash", sourceHash).Error
}

func (r *materialRepo) SoftDeleteByIDs(dbc dbctx.Context, materialIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(materialIDs) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", materialIDs).
		Delete(&domain.Material{}).Error
}
