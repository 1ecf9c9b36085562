package domain

import (
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
)

// EmbeddingVector holds the similarity vector for one artifact version.
// At most one row per version; written asynchronously after the content
// write, so readers must tolerate a version with no embedding yet. Purging
// a version cascades here.
type EmbeddingVector struct {
	VersionID uuid.UUID        `gorm:"type:uuid;primaryKey" json:"version_id"`
	Version   *ArtifactVersion `gorm:"constraint:OnDelete:CASCADE;foreignKey:VersionID;references:ID" json:"version,omitempty"`

	// Scope keys denormalized from the version row so neighbor queries can
	// filter without a join.
	MaterialID uuid.UUID    `gorm:"type:uuid;not null;index" json:"material_id"`
	Type       ArtifactType `gorm:"column:artifact_type;type:text;not null;index" json:"artifact_type"`

	Vector    pgvector.Vector `gorm:"type:vector(384)" json:"vector"`
	ModelName string          `gorm:"type:text" json:"model_name"`
	CreatedAt time.Time       `gorm:"not null;default:now()" json:"created_at"`
}

func (EmbeddingVector) TableName() string { return "embedding_vector" }
