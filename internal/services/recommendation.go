package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/data/repos/artifacts"
	"github.com/studystreak/studystreak-backend/internal/data/repos/materials"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
	"github.com/studystreak/studystreak-backend/internal/platform/modelgateway"
	"github.com/studystreak/studystreak-backend/internal/vectorindex"
)

// SimilarMaterial is one recommendation with the similarity that ranked it.
type SimilarMaterial struct {
	Material   *domain.Material `json:"material"`
	Similarity float64          `json:"similarity"`
}

// RecommendationService finds materials whose summaries are semantically
// close to a given material's summary.
type RecommendationService struct {
	log       *logger.Logger
	gateway   modelgateway.Gateway
	materials materials.MaterialRepo
	versions  artifacts.ArtifactVersionRepo
	index     vectorindex.Index
}

func NewRecommendationService(
	baseLog *logger.Logger,
	gw modelgateway.Gateway,
	materialRepo materials.MaterialRepo,
	versionRepo artifacts.ArtifactVersionRepo,
	index vectorindex.Index,
) *RecommendationService {
	return &RecommendationService{
		log:       baseLog.With("service", "RecommendationService"),
		gateway:   gw,
		materials: materialRepo,
		versions:  versionRepo,
		index:     index,
	}
}

// SimilarMaterials returns up to k materials ranked by summary similarity
// to materialID. The material needs a generated summary first; without one
// there is nothing to compare.
func (s *RecommendationService) SimilarMaterials(ctx context.Context, materialID uuid.UUID, k int) ([]SimilarMaterial, error) {
	if k <= 0 {
		k = 5
	}
	dbc := dbctx.Context{Ctx: ctx}

	latest, err := s.versions.Latest(dbc, materialID, domain.ArtifactSummary)
	if errors.Is(err, artifacts.ErrNotFound) {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, err
	}

	text, err := domain.CanonicalText(latest.Type, latest.Content)
	if err != nil {
		return nil, fmt.Errorf("canonical text: %w", err)
	}
	queryVec, err := s.gateway.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	summaryType := domain.ArtifactSummary
	// Neighbors include other versions of this same material; overfetch so
	// k survivors remain after filtering them out.
	matches, err := s.index.NearestNeighbors(ctx, queryVec, k*3+1, vectorindex.Scope{
		ArtifactType:     &summaryType,
		ExcludeVersionID: &latest.ID,
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []SimilarMaterial{}, nil
	}

	versionIDs := make([]uuid.UUID, 0, len(matches))
	similarityByVersion := make(map[uuid.UUID]float64, len(matches))
	for _, m := range matches {
		versionIDs = append(versionIDs, m.VersionID)
		similarityByVersion[m.VersionID] = m.Similarity
	}

	type ranked struct {
		materialID uuid.UUID
		similarity float64
	}
	var order []ranked
	seen := map[uuid.UUID]bool{materialID: true}
	for _, versionID := range versionIDs {
		version, err := s.versions.GetByID(dbc, versionID)
		if errors.Is(err, artifacts.ErrNotFound) {
			// Purged after indexing; the index catches up on next upsert.
			continue
		}
		if err != nil {
			return nil, err
		}
		if seen[version.MaterialID] {
			continue
		}
		seen[version.MaterialID] = true
		order = append(order, ranked{materialID: version.MaterialID, similarity: similarityByVersion[versionID]})
		if len(order) == k {
			break
		}
	}
	if len(order) == 0 {
		return []SimilarMaterial{}, nil
	}

	ids := make([]uuid.UUID, 0, len(order))
	for _, r := range order {
		ids = append(ids, r.materialID)
	}
	mats, err := s.materials.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*domain.Material, len(mats))
	for _, m := range mats {
		byID[m.ID] = m
	}

	out := make([]SimilarMaterial, 0, len(order))
	for _, r := range order {
		if mat, ok := byID[r.materialID]; ok {
			out = append(out, SimilarMaterial{Material: mat, Similarity: r.similarity})
		}
	}
	return out, nil
}
