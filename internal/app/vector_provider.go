package app

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/platform/logger"
	"github.com/studystreak/studystreak-backend/internal/vectorindex"
)

const (
	VectorProviderPgvector = "pgvector"
	VectorProviderQdrant   = "qdrant"
)

// resolveVectorIndex selects the embedding index backend. pgvector is the
// default because it needs no extra infrastructure beyond the primary
// database; qdrant is opt-in for deployments that already run one.
func resolveVectorIndex(log *logger.Logger, cfg Config, db *gorm.DB) (vectorindex.Index, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.VectorProvider))

	switch provider {
	case "", VectorProviderPgvector:
		log.Info("Selecting vector index provider",
			"provider", VectorProviderPgvector,
			"vector_dim", cfg.Gateway.EmbeddingDim,
		)
		return vectorindex.NewPgvectorIndex(log, db, cfg.Gateway.EmbeddingDim)
	case VectorProviderQdrant:
		log.Info("Selecting vector index provider",
			"provider", VectorProviderQdrant,
			"qdrant_url", cfg.Qdrant.URL,
			"qdrant_collection", cfg.Qdrant.Collection,
			"vector_dim", cfg.Qdrant.VectorDim,
		)
		if err := vectorindex.ValidateQdrantConfig(cfg.Qdrant); err != nil {
			return nil, err
		}
		return vectorindex.NewQdrantIndex(log, cfg.Qdrant)
	default:
		return nil, fmt.Errorf("unknown vector provider %q", cfg.VectorProvider)
	}
}
