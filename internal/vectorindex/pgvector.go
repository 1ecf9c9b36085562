package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

// pgvectorIndex keeps embeddings in the embedding_vector table next to the
// ledger and answers neighbor queries with pgvector's cosine operator.
// Similarity is 1 - cosine distance, i.e. the normalized cosine scale the
// distractor thresholds are calibrated against.
type pgvectorIndex struct {
	log *logger.Logger
	db  *gorm.DB
	dim int
}

func NewPgvectorIndex(log *logger.Logger, db *gorm.DB, dim int) (Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	if dim <= 0 {
		dim = 384
	}
	idx := &pgvectorIndex{
		log: log.With("service", "PgvectorIndex"),
		db:  db,
		dim: dim,
	}
	log.Info("pgvector embedding index selected", "provider", "pgvector", "vector_dim", dim)
	return idx, nil
}

func (s *pgvectorIndex) Upsert(ctx context.Context, entry Entry) error {
	if entry.VersionID == uuid.Nil {
		return fmt.Errorf("vector index upsert: version id is required")
	}
	if len(entry.Vector) == 0 {
		return fmt.Errorf("vector index upsert: vector %q has empty values", entry.VersionID)
	}
	if len(entry.Vector) != s.dim {
		return fmt.Errorf(
			"vector index upsert: vector %q dimension mismatch: expected=%d got=%d",
			entry.VersionID, s.dim, len(entry.Vector),
		)
	}

	row := &domain.EmbeddingVector{
		VersionID:  entry.VersionID,
		MaterialID: entry.MaterialID,
		Type:       entry.ArtifactType,
		Vector:     pgvector.NewVector(entry.Vector),
		ModelName:  entry.ModelName,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "version_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"material_id", "artifact_type", "vector", "model_name"}),
		}).
		Create(row).Error
}

func (s *pgvectorIndex) NearestNeighbors(ctx context.Context, query []float32, k int, scope Scope) ([]Match, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("vector index query: query vector required")
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf(
			"vector index query: dimension mismatch: expected=%d got=%d", s.dim, len(query),
		)
	}
	if k <= 0 {
		k = 10
	}

	queryVec := pgvector.NewVector(query)
	tx := s.db.WithContext(ctx).
		Model(&domain.EmbeddingVector{}).
		Select("version_id, 1 - (vector <=> ?) AS similarity", queryVec)

	if scope.MaterialID != nil {
		tx = tx.Where("material_id = ?", *scope.MaterialID)
	}
	if scope.ArtifactType != nil {
		tx = tx.Where("artifact_type = ?", *scope.ArtifactType)
	}
	if scope.ExcludeVersionID != nil {
		tx = tx.Where("version_id <> ?", *scope.ExcludeVersionID)
	}

	var rows []struct {
		VersionID  uuid.UUID
		Similarity float64
	}
	if err := tx.
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "vector <=> ?", Vars: []any{queryVec}}}).
		Limit(k).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, Match{VersionID: row.VersionID, Similarity: row.Similarity})
	}
	return out, nil
}

func (s *pgvectorIndex) DeleteByVersionIDs(ctx context.Context, versionIDs []uuid.UUID) error {
	if len(versionIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("version_id IN ?", versionIDs).
		Delete(&domain.EmbeddingVector{}).Error
}
