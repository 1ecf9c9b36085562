package vectorindex

import (
	"context"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/domain"
)

// Entry is one vector keyed by the artifact version it describes.
type Entry struct {
	VersionID    uuid.UUID
	MaterialID   uuid.UUID
	ArtifactType domain.ArtifactType
	Vector       []float32
	ModelName    string
}

// Scope narrows a neighbor query. Nil fields mean unscoped: the distractor
// selector pins MaterialID, the similar-materials recommender leaves it open.
type Scope struct {
	MaterialID       *uuid.UUID
	ArtifactType     *domain.ArtifactType
	ExcludeVersionID *uuid.UUID
}

// Match is one neighbor, similarity on the normalized cosine scale
// (higher is closer). The whole index uses one metric; mixing metrics
// across entries is a configuration error.
type Match struct {
	VersionID  uuid.UUID
	Similarity float64
}

// Index stores at most one vector per artifact version and answers
// nearest-neighbor queries over them.
type Index interface {
	Upsert(ctx context.Context, entry Entry) error
	NearestNeighbors(ctx context.Context, query []float32, k int, scope Scope) ([]Match, error)
	DeleteByVersionIDs(ctx context.Context, versionIDs []uuid.UUID) error
}
