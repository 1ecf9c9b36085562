package modelgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

const maxResponseBytes = 8 << 20

type Capability string

const (
	CapabilityExtractText        Capability = "extract_text"
	CapabilityGenerateSummary    Capability = "generate_summary"
	CapabilityGenerateKeypoints  Capability = "generate_keypoints"
	CapabilityGenerateQuiz       Capability = "generate_quiz"
	CapabilityGenerateFlashcards Capability = "generate_flashcards"
	CapabilityGenerateEmbedding  Capability = "generate_embedding"
)

var capabilityPaths = map[Capability]string{
	CapabilityExtractText:        "/extract/text",
	CapabilityGenerateSummary:    "/generate/summary",
	CapabilityGenerateKeypoints:  "/generate/keypoints",
	CapabilityGenerateQuiz:       "/generate/quiz",
	CapabilityGenerateFlashcards: "/generate/flashcards",
	CapabilityGenerateEmbedding:  "/embeddings/generate",
}

// CapabilityFor maps an artifact type to the backend capability that
// generates it.
func CapabilityFor(artifactType domain.ArtifactType) (Capability, error) {
	switch artifactType {
	case domain.ArtifactSummary:
		return CapabilityGenerateSummary, nil
	case domain.ArtifactKeyPoints:
		return CapabilityGenerateKeypoints, nil
	case domain.ArtifactQuiz:
		return CapabilityGenerateQuiz, nil
	case domain.ArtifactFlashcards:
		return CapabilityGenerateFlashcards, nil
	default:
		return "", fmt.Errorf("no capability for artifact type %q", artifactType)
	}
}

// GenerationParams are the caller-tunable knobs forwarded to the backend.
// The zero value means backend defaults.
type GenerationParams struct {
	Language     string `json:"language,omitempty"`
	MinWords     int    `json:"min_words,omitempty"`
	MaxWords     int    `json:"max_words,omitempty"`
	NumQuestions int    `json:"num_questions,omitempty"`
	NumCards     int    `json:"num_cards,omitempty"`
}

// Map renders the params for provenance storage and fingerprint hashing.
func (p GenerationParams) Map() map[string]any {
	out := map[string]any{}
	if p.Language != "" {
		out["language"] = p.Language
	}
	if p.MinWords > 0 {
		out["min_words"] = p.MinWords
	}
	if p.MaxWords > 0 {
		out["max_words"] = p.MaxWords
	}
	if p.NumQuestions > 0 {
		out["num_questions"] = p.NumQuestions
	}
	if p.NumCards > 0 {
		out["num_cards"] = p.NumCards
	}
	return out
}

// GenerationResult is one successfully generated artifact payload plus its
// provenance, already validated against the artifact type's schema.
type GenerationResult struct {
	Content    json.RawMessage
	ModelName  string
	Confidence *float64
	Language   string
}

// Gateway is the resilient client for the external model backend. One
// logical call walks the ordered candidate list and short-circuits on the
// first success; it is a failover chain, not a load balancer.
type Gateway interface {
	Invoke(ctx context.Context, capability Capability, payload any) (json.RawMessage, error)
	GenerateArtifact(ctx context.Context, artifactType domain.ArtifactType, sourceText string, params GenerationParams) (*GenerationResult, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	ExtractText(ctx context.Context, storageKey, mimeType string) (string, error)
	EmbeddingDim() int
}

type gateway struct {
	log       *logger.Logger
	cfg       Config
	endpoints []string
	http      *http.Client
}

func New(log *logger.Logger, cfg Config) (Gateway, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	endpoints := make([]string, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		ep = strings.TrimRight(strings.TrimSpace(ep), "/")
		if ep != "" {
			endpoints = append(endpoints, ep)
		}
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConnsPerHost: 4,
	}

	g := &gateway{
		log:       log.With("service", "ModelGateway"),
		cfg:       cfg,
		endpoints: endpoints,
		// Per-attempt deadlines come from the request context; the client
		// itself carries no timeout so slow inference is tolerated up to
		// AttemptTimeout.
		http: &http.Client{Transport: transport},
	}

	log.Info(
		"model backend gateway configured",
		"candidates", len(endpoints),
		"primary", endpoints[0],
		"connect_timeout", cfg.ConnectTimeout.String(),
		"attempt_timeout", cfg.AttemptTimeout.String(),
		"embedding_dim", cfg.EmbeddingDim,
	)
	return g, nil
}

func (g *gateway) EmbeddingDim() int { return g.cfg.EmbeddingDim }

func (g *gateway) Invoke(ctx context.Context, capability Capability, payload any) (json.RawMessage, error) {
	path, ok := capabilityPaths[capability]
	if !ok {
		return nil, gwErr(capability, ErrorValidation, fmt.Sprintf("unknown capability %q", capability), nil)
	}
	return g.invokePath(ctx, capability, path, payload)
}

func (g *gateway) invokePath(ctx context.Context, capability Capability, pathAndQuery string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, gwErr(capability, ErrorValidation, "encode request payload failed", err)
	}

	var lastErr error
	for _, endpoint := range g.endpoints {
		raw, attemptErr := g.attempt(ctx, endpoint+pathAndQuery, body)
		if attemptErr == nil {
			return raw, nil
		}

		var gerr *Error
		if errors.As(attemptErr, &gerr) && gerr.Code == ErrorUnauthorized {
			// Retrying other candidates cannot fix a rejected credential.
			gerr.Capability = capability
			return nil, gerr
		}
		if ctx.Err() != nil {
			return nil, gwErr(capability, ErrorUnavailable, "caller context done", ctx.Err())
		}

		lastErr = attemptErr
		g.log.Warn(
			"model backend candidate failed, advancing",
			"capability", capability,
			"endpoint", endpoint,
			"error", attemptErr,
		)
	}

	return nil, &Error{
		Code:       ErrorUnavailable,
		Capability: capability,
		Message:    fmt.Sprintf("all %d candidate endpoints exhausted", len(g.endpoints)),
		Cause:      lastErr,
	}
}

// attempt runs one candidate call under its own deadline. Errors other than
// Unauthorized are untyped; invokePath classifies the chain outcome.
func (g *gateway) attempt(ctx context.Context, url string, body []byte) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", g.cfg.APIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("candidate attempt timed out after %s: %w", g.cfg.AttemptTimeout, err)
		}
		return nil, fmt.Errorf("candidate request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &Error{
			Code:       ErrorUnauthorized,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("credential rejected: %s", truncateBody(raw)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("candidate returned status=%d body=%q", resp.StatusCode, truncateBody(raw))
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("candidate returned unparsable body %q", truncateBody(raw))
	}
	return json.RawMessage(raw), nil
}

type summaryEnvelope struct {
	Summary    string   `json:"summary"`
	WordCount  int      `json:"word_count"`
	Confidence *float64 `json:"confidence"`
	Model      string   `json:"model"`
	Language   string   `json:"language"`
}

type keypointsEnvelope struct {
	KeyPoints  []string `json:"keypoints"`
	Count      int      `json:"count"`
	Confidence *float64 `json:"confidence"`
	Model      string   `json:"model"`
	Language   string   `json:"language"`
}

type quizEnvelope struct {
	Questions  []domain.QuizQuestion `json:"questions"`
	Count      int                   `json:"count"`
	Confidence *float64              `json:"confidence"`
	Model      string                `json:"model"`
	Language   string                `json:"language"`
}

type flashcardsEnvelope struct {
	Flashcards []domain.Flashcard `json:"flashcards"`
	Count      int                `json:"count"`
	Confidence *float64           `json:"confidence"`
	Model      string             `json:"model"`
	Language   string             `json:"language"`
}

func (g *gateway) GenerateArtifact(ctx context.Context, artifactType domain.ArtifactType, sourceText string, params GenerationParams) (*GenerationResult, error) {
	capability, err := CapabilityFor(artifactType)
	if err != nil {
		return nil, gwErr("", ErrorValidation, err.Error(), nil)
	}
	if strings.TrimSpace(sourceText) == "" {
		return nil, gwErr(capability, ErrorValidation, "source text is empty", nil)
	}

	pathAndQuery := capabilityPaths[capability]
	switch {
	case artifactType == domain.ArtifactQuiz && params.NumQuestions > 0:
		pathAndQuery = fmt.Sprintf("%s?num_questions=%d", pathAndQuery, params.NumQuestions)
	case artifactType == domain.ArtifactFlashcards && params.NumCards > 0:
		pathAndQuery = fmt.Sprintf("%s?num_cards=%d", pathAndQuery, params.NumCards)
	}

	payload := map[string]any{"text": sourceText}
	if params.Language != "" {
		payload["language"] = params.Language
	}
	if params.MinWords > 0 {
		payload["min_words"] = params.MinWords
	}
	if params.MaxWords > 0 {
		payload["max_words"] = params.MaxWords
	}

	raw, err := g.invokePath(ctx, capability, pathAndQuery, payload)
	if err != nil {
		return nil, err
	}
	return decodeGeneration(capability, artifactType, raw)
}

func decodeGeneration(capability Capability, artifactType domain.ArtifactType, raw json.RawMessage) (*GenerationResult, error) {
	result := &GenerationResult{}
	var content any

	switch artifactType {
	case domain.ArtifactSummary:
		var env summaryEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, gwErr(capability, ErrorMalformed, "decode summary response failed", err)
		}
		result.ModelName, result.Confidence, result.Language = env.Model, env.Confidence, env.Language
		content = domain.SummaryContent{Summary: env.Summary, WordCount: env.WordCount}
	case domain.ArtifactKeyPoints:
		var env keypointsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, gwErr(capability, ErrorMalformed, "decode keypoints response failed", err)
		}
		result.ModelName, result.Confidence, result.Language = env.Model, env.Confidence, env.Language
		content = domain.KeyPointsContent{KeyPoints: env.KeyPoints}
	case domain.ArtifactQuiz:
		var env quizEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, gwErr(capability, ErrorMalformed, "decode quiz response failed", err)
		}
		result.ModelName, result.Confidence, result.Language = env.Model, env.Confidence, env.Language
		content = domain.QuizContent{Questions: env.Questions}
	case domain.ArtifactFlashcards:
		var env flashcardsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, gwErr(capability, ErrorMalformed, "decode flashcards response failed", err)
		}
		result.ModelName, result.Confidence, result.Language = env.Model, env.Confidence, env.Language
		content = domain.FlashcardsContent{Flashcards: env.Flashcards}
	default:
		return nil, gwErr(capability, ErrorValidation, fmt.Sprintf("unknown artifact type %q", artifactType), nil)
	}

	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, gwErr(capability, ErrorMalformed, "re-encode content failed", err)
	}
	if err := domain.ValidateContent(artifactType, encoded); err != nil {
		return nil, gwErr(capability, ErrorMalformed, "response content failed schema validation", err)
	}
	result.Content = encoded
	return result, nil
}

type embeddingEnvelope struct {
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
}

func (g *gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	const capability = CapabilityGenerateEmbedding
	if strings.TrimSpace(text) == "" {
		return nil, gwErr(capability, ErrorValidation, "text to embed is empty", nil)
	}

	raw, err := g.Invoke(ctx, capability, map[string]any{"text": text})
	if err != nil {
		return nil, err
	}

	var env embeddingEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, gwErr(capability, ErrorMalformed, "decode embedding response failed", err)
	}
	if len(env.Vector) == 0 {
		return nil, gwErr(capability, ErrorMalformed, "embedding response has no vector", nil)
	}
	if g.cfg.EmbeddingDim > 0 && len(env.Vector) != g.cfg.EmbeddingDim {
		return nil, gwErr(
			capability,
			ErrorMalformed,
			fmt.Sprintf("embedding dimension mismatch: expected=%d got=%d", g.cfg.EmbeddingDim, len(env.Vector)),
			nil,
		)
	}
	return env.Vector, nil
}

type extractEnvelope struct {
	Text string `json:"text"`
}

func (g *gateway) ExtractText(ctx context.Context, storageKey, mimeType string) (string, error) {
	const capability = CapabilityExtractText
	if strings.TrimSpace(storageKey) == "" {
		return "", gwErr(capability, ErrorValidation, "storage key is empty", nil)
	}

	raw, err := g.Invoke(ctx, capability, map[string]any{
		"storage_key": storageKey,
		"mime_type":   mimeType,
	})
	if err != nil {
		return "", err
	}

	var env extractEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", gwErr(capability, ErrorMalformed, "decode extraction response failed", err)
	}
	if strings.TrimSpace(env.Text) == "" {
		return "", gwErr(capability, ErrorMalformed, "extraction response has no text", nil)
	}
	return env.Text, nil
}

func truncateBody(raw []byte) string {
	const maxErrorBodyBytes = 1024
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
