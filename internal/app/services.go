package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/platform/logger"
	"github.com/studystreak/studystreak-backend/internal/platform/modelgateway"
	"github.com/studystreak/studystreak-backend/internal/services"
	"github.com/studystreak/studystreak-backend/internal/vectorindex"
)

type Services struct {
	Gateway         modelgateway.Gateway
	Index           vectorindex.Index
	Flights         *services.FlightRegistry
	Resolver        services.ReadResolver
	Generation      *services.GenerationService
	Quiz            *services.QuizService
	Recommendations *services.RecommendationService
	Retention       *services.RetentionService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	gateway, err := modelgateway.New(log, cfg.Gateway)
	if err != nil {
		return Services{}, fmt.Errorf("init model gateway: %w", err)
	}

	index, err := resolveVectorIndex(log, cfg, db)
	if err != nil {
		return Services{}, fmt.Errorf("init vector index: %w", err)
	}

	strategy, err := services.ParseResolverStrategy(string(cfg.ResolverStrategy))
	if err != nil {
		return Services{}, err
	}
	resolver, err := services.NewReadResolver(strategy, reposet.Versions, reposet.Pointers, log)
	if err != nil {
		return Services{}, err
	}

	flights := services.NewFlightRegistry()
	distractors := services.NewDistractorSelector(log, gateway)

	generation := services.NewGenerationService(
		log,
		db,
		gateway,
		reposet.Materials,
		reposet.Versions,
		resolver,
		flights,
		index,
		distractors,
		cfg.EmbedTimeout,
	)

	return Services{
		Gateway:         gateway,
		Index:           index,
		Flights:         flights,
		Resolver:        resolver,
		Generation:      generation,
		Quiz:            services.NewQuizService(log, db, reposet.QuizAttempts, reposet.Versions),
		Recommendations: services.NewRecommendationService(log, gateway, reposet.Materials, reposet.Versions, index),
		Retention:       services.NewRetentionService(log, reposet.Versions, cfg.RetentionKeepN),
	}, nil
}
