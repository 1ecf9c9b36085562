package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ArtifactType string

const (
	ArtifactSummary    ArtifactType = "summary"
	ArtifactKeyPoints  ArtifactType = "keypoints"
	ArtifactQuiz       ArtifactType = "quiz"
	ArtifactFlashcards ArtifactType = "flashcards"
)

// ArtifactTypes lists every supported type in generation order.
func ArtifactTypes() []ArtifactType {
	return []ArtifactType{ArtifactSummary, ArtifactKeyPoints, ArtifactQuiz, ArtifactFlashcards}
}

func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactSummary, ArtifactKeyPoints, ArtifactQuiz, ArtifactFlashcards:
		return true
	default:
		return false
	}
}

type GeneratedBy string

const (
	GeneratedByModel     GeneratedBy = "model"
	GeneratedByUserEdit  GeneratedBy = "user_edit"
	GeneratedByRestore   GeneratedBy = "restore"
	GeneratedByMigration GeneratedBy = "migration"
)

// ArtifactVersion is one immutable row of the append-only artifact ledger.
// Rows are never updated in place; edits and restores append new rows with
// GeneratedBy recording the origin. Only the retention purge deletes rows.
type ArtifactVersion struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	MaterialID uuid.UUID    `gorm:"type:uuid;not null;index:idx_artifact_version_key" json:"material_id"`
	Material   *Material    `gorm:"constraint:OnDelete:CASCADE;foreignKey:MaterialID;references:ID" json:"material,omitempty"`
	Type       ArtifactType `gorm:"column:artifact_type;type:text;not null;index:idx_artifact_version_key" json:"artifact_type"`

	Content     datatypes.JSON `gorm:"type:jsonb;not null" json:"content"`
	ContentHash string         `gorm:"type:text;not null;index" json:"content_hash"`

	ModelName   string         `gorm:"type:text" json:"model_name"`
	ModelParams datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"model_params"`
	GeneratedBy GeneratedBy    `gorm:"type:text;not null;default:'model'" json:"generated_by"`
	Confidence  *float64       `gorm:"type:double precision" json:"confidence,omitempty"`

	RunID     uuid.UUID `gorm:"type:uuid;not null;index" json:"run_id"`
	CreatedAt time.Time `gorm:"not null;default:now();index:idx_artifact_version_key" json:"created_at"`
	CreatedBy uuid.UUID `gorm:"type:uuid" json:"created_by"`
}

func (ArtifactVersion) TableName() string { return "artifact_version" }

// ArtifactPointer is the optional denormalized shortcut from
// (material, type) to its latest version. It is a rebuildable cache: the
// ledger stays the source of truth and a dangling pointer is repaired from
// the ledger, never the other way around.
type ArtifactPointer struct {
	MaterialID uuid.UUID    `gorm:"type:uuid;primaryKey" json:"material_id"`
	Type       ArtifactType `gorm:"column:artifact_type;type:text;primaryKey" json:"artifact_type"`
	VersionID  uuid.UUID    `gorm:"type:uuid;not null" json:"version_id"`
	UpdatedAt  time.Time    `gorm:"not null;default:now()" json:"updated_at"`
}

func (ArtifactPointer) TableName() string { return "artifact_pointer" }
