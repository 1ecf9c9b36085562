package services

import (
	"context"

	"github.com/studystreak/studystreak-backend/internal/data/repos/artifacts"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

// RetentionService trims the version ledger down to the configured number
// of versions per (material, type) pair. The latest version survives every
// sweep regardless of configuration.
type RetentionService struct {
	log      *logger.Logger
	versions artifacts.ArtifactVersionRepo
	keepN    int
}

func NewRetentionService(baseLog *logger.Logger, versions artifacts.ArtifactVersionRepo, keepN int) *RetentionService {
	if keepN < 1 {
		keepN = 1
	}
	return &RetentionService{
		log:      baseLog.With("service", "RetentionService"),
		versions: versions,
		keepN:    keepN,
	}
}

// Sweep purges every pair in one pass and reports how many rows it
// removed. A failed pair is logged and skipped so one bad row cannot stall
// the whole sweep.
func (s *RetentionService) Sweep(ctx context.Context) (int64, error) {
	dbc := dbctx.Context{Ctx: ctx}

	keys, err := s.versions.ListKeys(dbc)
	if err != nil {
		return 0, err
	}

	var purged int64
	for _, key := range keys {
		if ctx.Err() != nil {
			return purged, ctx.Err()
		}
		n, err := s.versions.PurgeOld(dbc, key.MaterialID, key.ArtifactType, s.keepN)
		if err != nil {
			s.log.Warn("retention purge failed for pair",
				"material_id", key.MaterialID.String(),
				"artifact_type", string(key.ArtifactType),
				"error", err.Error())
			continue
		}
		purged += n
	}

	if purged > 0 {
		s.log.Info("retention sweep complete", "pairs", len(keys), "purged", purged, "keep_n", s.keepN)
	}
	return purged, nil
}
