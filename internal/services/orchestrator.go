package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studystreak/studystreak-backend/internal/data/repos/artifacts"
	"github.com/studystreak/studystreak-backend/internal/data/repos/materials"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
	"github.com/studystreak/studystreak-backend/internal/platform/modelgateway"
	"github.com/studystreak/studystreak-backend/internal/vectorindex"
)

// ErrNoArtifact is returned on reads when no version has ever been
// generated for the (material, type) pair.
var ErrNoArtifact = errors.New("no artifact generated yet")

// ErrMaterialNotFound is returned when the material the caller names does
// not exist or is deleted.
var ErrMaterialNotFound = errors.New("material not found")

// GenerateOptions tune one generation request.
type GenerateOptions struct {
	// Params are forwarded to the model backend and recorded as provenance.
	Params modelgateway.GenerationParams
	// SourceText, when set, is used directly instead of extracting the
	// material's stored document.
	SourceText string
	// Force appends a fresh version even when one already exists.
	Force bool
	// RequestedBy is recorded as the version's creator when known.
	RequestedBy uuid.UUID
}

const (
	minQuizOptions          = 4
	distractorPoolLimit     = 64
	defaultEmbedUpsertLimit = 30 * time.Second
)

// GenerationService orchestrates artifact generation: it coalesces
// identical in-flight requests, calls the model backend through the
// gateway, appends immutable versions to the ledger and keeps the pointer
// cache and embedding index in step.
type GenerationService struct {
	log         *logger.Logger
	db          *gorm.DB
	gateway     modelgateway.Gateway
	materials   materials.MaterialRepo
	versions    artifacts.ArtifactVersionRepo
	resolver    ReadResolver
	flights     *FlightRegistry
	index       vectorindex.Index
	distractors *DistractorSelector

	embedTimeout time.Duration
}

func NewGenerationService(
	baseLog *logger.Logger,
	db *gorm.DB,
	gw modelgateway.Gateway,
	materialRepo materials.MaterialRepo,
	versionRepo artifacts.ArtifactVersionRepo,
	resolver ReadResolver,
	flights *FlightRegistry,
	index vectorindex.Index,
	distractors *DistractorSelector,
	embedTimeout time.Duration,
) *GenerationService {
	if embedTimeout <= 0 {
		embedTimeout = defaultEmbedUpsertLimit
	}
	return &GenerationService{
		log:          baseLog.With("service", "GenerationService"),
		db:           db,
		gateway:      gw,
		materials:    materialRepo,
		versions:     versionRepo,
		resolver:     resolver,
		flights:      flights,
		index:        index,
		distractors:  distractors,
		embedTimeout: embedTimeout,
	}
}

// Resolve answers a read without ever triggering generation.
func (s *GenerationService) Resolve(ctx context.Context, materialID uuid.UUID, artifactType domain.ArtifactType) (*domain.ArtifactVersion, error) {
	if !artifactType.Valid() {
		return nil, fmt.Errorf("invalid artifact type %q", artifactType)
	}
	version, err := s.resolver.Resolve(dbctx.Context{Ctx: ctx}, materialID, artifactType)
	if errors.Is(err, artifacts.ErrNotFound) {
		return nil, ErrNoArtifact
	}
	return version, err
}

// GetVersion loads one ledger row by id.
func (s *GenerationService) GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.ArtifactVersion, error) {
	version, err := s.versions.GetByID(dbctx.Context{Ctx: ctx}, versionID)
	if errors.Is(err, artifacts.ErrNotFound) {
		return nil, ErrNoArtifact
	}
	return version, err
}

// ListVersions pages through the ledger newest-first.
func (s *GenerationService) ListVersions(ctx context.Context, materialID uuid.UUID, artifactType domain.ArtifactType, page, pageSize int) ([]*domain.ArtifactVersion, int64, error) {
	if !artifactType.Valid() {
		return nil, 0, fmt.Errorf("invalid artifact type %q", artifactType)
	}
	return s.versions.ListVersions(dbctx.Context{Ctx: ctx}, materialID, artifactType, page, pageSize)
}

// GetOrGenerate returns the current version for the pair, generating one
// first when none exists or opts.Force is set. Concurrent calls with the
// same fingerprint share a single upstream generation.
func (s *GenerationService) GetOrGenerate(ctx context.Context, materialID uuid.UUID, artifactType domain.ArtifactType, opts GenerateOptions) (*domain.ArtifactVersion, error) {
	if !artifactType.Valid() {
		return nil, fmt.Errorf("invalid artifact type %q", artifactType)
	}

	material, err := s.loadMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}

	if !opts.Force {
		existing, err := s.resolver.Resolve(dbctx.Context{Ctx: ctx}, materialID, artifactType)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, artifacts.ErrNotFound) {
			return nil, err
		}
	}

	return s.generate(ctx, material, artifactType, uuid.New(), opts)
}

// GenerateRun generates every artifact type for the material under one
// shared run id. Types that fail do not abort the others; the first error
// is reported after all types settle.
func (s *GenerationService) GenerateRun(ctx context.Context, materialID uuid.UUID, opts GenerateOptions) (map[domain.ArtifactType]*domain.ArtifactVersion, error) {
	material, err := s.loadMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	results := make(map[domain.ArtifactType]*domain.ArtifactVersion, len(domain.ArtifactTypes()))

	group, groupCtx := errgroup.WithContext(ctx)
	type outcome struct {
		artifactType domain.ArtifactType
		version      *domain.ArtifactVersion
	}
	outcomes := make(chan outcome, len(domain.ArtifactTypes()))

	for _, artifactType := range domain.ArtifactTypes() {
		group.Go(func() error {
			version, err := s.generate(groupCtx, material, artifactType, runID, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", artifactType, err)
			}
			outcomes <- outcome{artifactType: artifactType, version: version}
			return nil
		})
	}

	groupErr := group.Wait()
	close(outcomes)
	for o := range outcomes {
		results[o.artifactType] = o.version
	}
	if groupErr != nil {
		return results, groupErr
	}
	return results, nil
}

// generate is the single write path for model-generated versions. Exactly
// one goroutine per fingerprint runs the body; everyone else waits on the
// leader's flight.
func (s *GenerationService) generate(ctx context.Context, material *domain.Material, artifactType domain.ArtifactType, runID uuid.UUID, opts GenerateOptions) (*domain.ArtifactVersion, error) {
	fingerprint := Fingerprint{
		MaterialID: material.ID,
		Type:       artifactType,
		SourceHash: s.sourceHash(material, opts),
		ParamsHash: HashParams(opts.Params.Map()),
	}
	key := fingerprint.Key()

	flight, leader := s.flights.JoinOrLead(key)
	if !leader {
		return flight.Wait(ctx)
	}

	version, err := s.lead(ctx, material, artifactType, runID, opts)
	s.flights.Complete(key, flight, version, err)
	return version, err
}

func (s *GenerationService) lead(ctx context.Context, material *domain.Material, artifactType domain.ArtifactType, runID uuid.UUID, opts GenerateOptions) (*domain.ArtifactVersion, error) {
	// A request that lost the lead race may become leader after the
	// original flight already persisted the result. Re-check before paying
	// for another model call.
	if !opts.Force {
		existing, err := s.resolver.Resolve(dbctx.Context{Ctx: ctx}, material.ID, artifactType)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, artifacts.ErrNotFound) {
			return nil, err
		}
	}

	sourceText, err := s.resolveSourceText(ctx, material, opts)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.GenerateArtifact(ctx, artifactType, sourceText, opts.Params)
	if err != nil {
		return nil, err
	}

	content := result.Content
	if artifactType == domain.ArtifactQuiz && s.distractors != nil {
		content = s.enrichQuizOptions(ctx, content, sourceText)
	}

	paramsJSON, err := json.Marshal(opts.Params.Map())
	if err != nil {
		return nil, fmt.Errorf("encode model params: %w", err)
	}

	version := &domain.ArtifactVersion{
		MaterialID:  material.ID,
		Type:        artifactType,
		Content:     datatypes.JSON(content),
		ModelName:   result.ModelName,
		ModelParams: datatypes.JSON(paramsJSON),
		GeneratedBy: domain.GeneratedByModel,
		Confidence:  result.Confidence,
		RunID:       runID,
		CreatedBy:   opts.RequestedBy,
	}
	if err := s.persist(ctx, version); err != nil {
		return nil, err
	}

	s.embedAsync(version)
	return version, nil
}

// SaveUserEdit appends a user-authored version of the artifact. The edit
// goes through the same fingerprint coalescing as model generation, keyed
// on the edited content, so double-submits collapse to one row.
func (s *GenerationService) SaveUserEdit(ctx context.Context, materialID uuid.UUID, artifactType domain.ArtifactType, content json.RawMessage, editedBy uuid.UUID) (*domain.ArtifactVersion, error) {
	if !artifactType.Valid() {
		return nil, fmt.Errorf("invalid artifact type %q", artifactType)
	}
	if _, err := s.loadMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	if err := domain.ValidateContent(artifactType, content); err != nil {
		return nil, err
	}
	contentHash, err := domain.ContentHash(artifactType, content)
	if err != nil {
		return nil, err
	}

	key := Fingerprint{
		MaterialID: materialID,
		Type:       artifactType,
		SourceHash: contentHash,
		ParamsHash: string(domain.GeneratedByUserEdit),
	}.Key()

	flight, leader := s.flights.JoinOrLead(key)
	if !leader {
		return flight.Wait(ctx)
	}

	version := &domain.ArtifactVersion{
		MaterialID:  materialID,
		Type:        artifactType,
		Content:     datatypes.JSON(content),
		ContentHash: contentHash,
		GeneratedBy: domain.GeneratedByUserEdit,
		CreatedBy:   editedBy,
	}
	err = s.persist(ctx, version)
	if err != nil {
		version = nil
	}
	s.flights.Complete(key, flight, version, err)
	if err != nil {
		return nil, err
	}

	s.embedAsync(version)
	return version, nil
}

// RestoreVersion re-promotes an older version by appending a copy of it.
// History stays intact; the restored content simply becomes latest again.
func (s *GenerationService) RestoreVersion(ctx context.Context, materialID uuid.UUID, versionID uuid.UUID, requestedBy uuid.UUID) (*domain.ArtifactVersion, error) {
	source, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if source.MaterialID != materialID {
		return nil, fmt.Errorf("version %s does not belong to material %s", versionID, materialID)
	}

	restored := &domain.ArtifactVersion{
		MaterialID:  source.MaterialID,
		Type:        source.Type,
		Content:     source.Content,
		ContentHash: source.ContentHash,
		ModelName:   source.ModelName,
		ModelParams: source.ModelParams,
		GeneratedBy: domain.GeneratedByRestore,
		Confidence:  source.Confidence,
		CreatedBy:   requestedBy,
	}
	if err := s.persist(ctx, restored); err != nil {
		return nil, err
	}

	s.embedAsync(restored)
	return restored, nil
}

// persist writes the version row and the pointer promotion atomically.
func (s *GenerationService) persist(ctx context.Context, version *domain.ArtifactVersion) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		appended, err := s.versions.Append(dbc, version)
		if err != nil {
			return err
		}
		return s.resolver.Promote(dbc, appended.MaterialID, appended.Type, appended.ID)
	})
}

// embedAsync indexes the version's canonical text in the background. The
// index is advisory: a failure here is logged and never surfaces to the
// caller, and a later re-generation re-indexes naturally.
func (s *GenerationService) embedAsync(version *domain.ArtifactVersion) {
	if s.index == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.embedTimeout)
		defer cancel()

		text, err := domain.CanonicalText(version.Type, version.Content)
		if err != nil {
			s.log.Warn("canonical text for embedding failed",
				"version_id", version.ID.String(), "error", err.Error())
			return
		}
		vector, err := s.gateway.Embed(ctx, text)
		if err != nil {
			s.log.Warn("embedding generation failed",
				"version_id", version.ID.String(), "error", err.Error())
			return
		}
		err = s.index.Upsert(ctx, vectorindex.Entry{
			VersionID:    version.ID,
			MaterialID:   version.MaterialID,
			ArtifactType: version.Type,
			Vector:       vector,
			ModelName:    version.ModelName,
		})
		if err != nil {
			s.log.Warn("embedding index upsert failed",
				"version_id", version.ID.String(), "error", err.Error())
		}
	}()
}

// enrichQuizOptions tops up questions that came back with too few options,
// drawing distractors from the source document. Enrichment is best effort:
// on any failure the model's original content stands.
func (s *GenerationService) enrichQuizOptions(ctx context.Context, content json.RawMessage, sourceText string) json.RawMessage {
	var quiz domain.QuizContent
	if err := json.Unmarshal(content, &quiz); err != nil {
		return content
	}

	pool := sentenceCandidates(sourceText, distractorPoolLimit)
	changed := false
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		missing := minQuizOptions - len(q.Options)
		if missing <= 0 {
			continue
		}

		candidates := make([]string, 0, len(pool))
		existing := map[string]bool{}
		for _, opt := range q.Options {
			existing[strings.ToLower(strings.TrimSpace(opt))] = true
		}
		for _, c := range pool {
			if !existing[strings.ToLower(c)] {
				candidates = append(candidates, c)
			}
		}

		picked, err := s.distractors.Select(ctx, q.CorrectAnswer, candidates, missing)
		if err != nil {
			s.log.Warn("distractor selection failed, keeping model options",
				"question_index", i, "error", err.Error())
			continue
		}
		if len(picked) == 0 {
			continue
		}
		q.Options = append(q.Options, picked...)
		changed = true
	}
	if !changed {
		return content
	}

	encoded, err := json.Marshal(quiz)
	if err != nil {
		return content
	}
	if err := domain.ValidateContent(domain.ArtifactQuiz, encoded); err != nil {
		return content
	}
	return encoded
}

func (s *GenerationService) loadMaterial(ctx context.Context, materialID uuid.UUID) (*domain.Material, error) {
	material, err := s.materials.GetByID(dbctx.Context{Ctx: ctx}, materialID)
	if errors.Is(err, materials.ErrNotFound) {
		return nil, ErrMaterialNotFound
	}
	if err != nil {
		return nil, err
	}
	return material, nil
}

// sourceHash pins the fingerprint to the exact source content so a changed
// document never coalesces with a stale in-flight generation.
func (s *GenerationService) sourceHash(material *domain.Material, opts GenerateOptions) string {
	if opts.SourceText != "" {
		sum := sha256.Sum256([]byte(opts.SourceText))
		return hex.EncodeToString(sum[:])
	}
	return material.SourceHash
}

func (s *GenerationService) resolveSourceText(ctx context.Context, material *domain.Material, opts GenerateOptions) (string, error) {
	if strings.TrimSpace(opts.SourceText) != "" {
		return opts.SourceText, nil
	}
	if strings.TrimSpace(material.StorageKey) == "" {
		return "", fmt.Errorf("material %s has no stored document and no source text was provided", material.ID)
	}
	return s.gateway.ExtractText(ctx, material.StorageKey, material.MimeType)
}
