package app

import (
	"time"

	"github.com/studystreak/studystreak-backend/internal/platform/envutil"
	"github.com/studystreak/studystreak-backend/internal/platform/modelgateway"
	"github.com/studystreak/studystreak-backend/internal/services"
	"github.com/studystreak/studystreak-backend/internal/vectorindex"
)

type Config struct {
	ServerAddress string
	APIKey        string

	Gateway modelgateway.Config

	ResolverStrategy services.ResolverStrategy

	VectorProvider string
	Qdrant         vectorindex.QdrantConfig

	EmbedTimeout      time.Duration
	RetentionKeepN    int
	RetentionInterval time.Duration
}

func LoadConfig() Config {
	embeddingDim := envutil.Int("EMBEDDING_DIM", 384)
	return Config{
		ServerAddress: envutil.String("SERVER_ADDRESS", ":8080"),
		APIKey:        envutil.String("API_KEY", ""),

		Gateway: modelgateway.Config{
			Endpoints:      envutil.List("AI_SERVICE_URLS", []string{"http://localhost:8090"}),
			APIKey:         envutil.String("AI_SERVICE_API_KEY", ""),
			ConnectTimeout: envutil.Duration("AI_CONNECT_TIMEOUT", 3*time.Second),
			AttemptTimeout: envutil.Duration("AI_ATTEMPT_TIMEOUT", 120*time.Second),
			EmbeddingDim:   embeddingDim,
		},

		ResolverStrategy: services.ResolverStrategy(envutil.String("READ_RESOLVER", string(services.ResolverDynamic))),

		VectorProvider: envutil.String("VECTOR_PROVIDER", VectorProviderPgvector),
		Qdrant: vectorindex.QdrantConfig{
			URL:        envutil.String("QDRANT_URL", ""),
			Collection: envutil.String("QDRANT_COLLECTION", "studystreak-artifacts"),
			VectorDim:  embeddingDim,
		},

		EmbedTimeout:      envutil.Duration("EMBED_TIMEOUT", 30*time.Second),
		RetentionKeepN:    envutil.Int("RETENTION_KEEP_N", 20),
		RetentionInterval: envutil.Duration("RETENTION_INTERVAL", time.Hour),
	}
}
