package app

import (
	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/data/repos/artifacts"
	"github.com/studystreak/studystreak-backend/internal/data/repos/materials"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

type Repos struct {
	Materials    materials.MaterialRepo
	QuizAttempts materials.QuizAttemptRepo
	Versions     artifacts.ArtifactVersionRepo
	Pointers     artifacts.ArtifactPointerRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Materials:    materials.NewMaterialRepo(db, log),
		QuizAttempts: materials.NewQuizAttemptRepo(db, log),
		Versions:     artifacts.NewArtifactVersionRepo(db, log),
		Pointers:     artifacts.NewArtifactPointerRepo(db, log),
	}
}
