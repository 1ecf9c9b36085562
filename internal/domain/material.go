package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Material is the document identity the engine generates artifacts for.
// Upload, storage and text extraction are owned elsewhere; the engine only
// needs the id, the hash of the extracted source text and where to find it.
type Material struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	Title      string `gorm:"type:text;not null" json:"title"`
	SourceHash string `gorm:"type:text;not null;index" json:"source_hash"`
	StorageKey string `gorm:"type:text" json:"storage_key"`
	MimeType   string `gorm:"type:text" json:"mime_type"`
	Status     string `gorm:"type:text;not null;default:'ready'" json:"status"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Material) TableName() string { return "material" }
