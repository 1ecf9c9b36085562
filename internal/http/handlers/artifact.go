package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/http/response"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
	"github.com/studystreak/studystreak-backend/internal/platform/modelgateway"
	"github.com/studystreak/studystreak-backend/internal/services"
)

type ArtifactHandler struct {
	log        *logger.Logger
	generation *services.GenerationService
}

func NewArtifactHandler(baseLog *logger.Logger, generation *services.GenerationService) *ArtifactHandler {
	return &ArtifactHandler{
		log:        baseLog.With("handler", "ArtifactHandler"),
		generation: generation,
	}
}

// GetArtifact serves the current version without ever triggering
// generation. 404 with code no_artifact_yet means nothing has been
// generated for the pair.
func (h *ArtifactHandler) GetArtifact(c *gin.Context) {
	materialID, artifactType, ok := pathMaterialAndType(c)
	if !ok {
		return
	}
	version, err := h.generation.Resolve(c.Request.Context(), materialID, artifactType)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, version)
}

type generateRequest struct {
	SourceText   string `json:"source_text,omitempty"`
	Force        bool   `json:"force,omitempty"`
	RequestedBy  string `json:"requested_by,omitempty"`
	Language     string `json:"language,omitempty"`
	MinWords     int    `json:"min_words,omitempty"`
	MaxWords     int    `json:"max_words,omitempty"`
	NumQuestions int    `json:"num_questions,omitempty"`
	NumCards     int    `json:"num_cards,omitempty"`
}

func (r generateRequest) options() services.GenerateOptions {
	opts := services.GenerateOptions{
		SourceText: r.SourceText,
		Force:      r.Force,
		Params: modelgateway.GenerationParams{
			Language:     r.Language,
			MinWords:     r.MinWords,
			MaxWords:     r.MaxWords,
			NumQuestions: r.NumQuestions,
			NumCards:     r.NumCards,
		},
	}
	if requestedBy, err := uuid.Parse(r.RequestedBy); err == nil {
		opts.RequestedBy = requestedBy
	}
	return opts
}

// GenerateArtifact returns the current version, generating one first when
// none exists or force is set.
func (h *ArtifactHandler) GenerateArtifact(c *gin.Context) {
	materialID, artifactType, ok := pathMaterialAndType(c)
	if !ok {
		return
	}
	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
			return
		}
	}

	version, err := h.generation.GetOrGenerate(c.Request.Context(), materialID, artifactType, req.options())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, version)
}

// GenerateRun generates every artifact type for the material in one shot.
// Partial results come back alongside the error when some types fail.
func (h *ArtifactHandler) GenerateRun(c *gin.Context) {
	materialID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
			return
		}
	}

	results, err := h.generation.GenerateRun(c.Request.Context(), materialID, req.options())
	if err != nil {
		if len(results) > 0 {
			c.JSON(http.StatusMultiStatus, gin.H{
				"artifacts": results,
				"error":     gin.H{"message": err.Error(), "code": "partial_run"},
			})
			return
		}
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"artifacts": results})
}

func (h *ArtifactHandler) ListVersions(c *gin.Context) {
	materialID, artifactType, ok := pathMaterialAndType(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	versions, total, err := h.generation.ListVersions(c.Request.Context(), materialID, artifactType, page, pageSize)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"versions": versions,
		"total":    total,
		"page":     page,
	})
}

func (h *ArtifactHandler) GetVersion(c *gin.Context) {
	versionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	version, err := h.generation.GetVersion(c.Request.Context(), versionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, version)
}

type editRequest struct {
	Content  json.RawMessage `json:"content"`
	EditedBy string          `json:"edited_by,omitempty"`
}

// SaveEdit appends a user-authored version. The edit never overwrites
// history; it becomes the new latest.
func (h *ArtifactHandler) SaveEdit(c *gin.Context) {
	materialID, artifactType, ok := pathMaterialAndType(c)
	if !ok {
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	if len(req.Content) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}
	editedBy, _ := uuid.Parse(req.EditedBy)

	version, err := h.generation.SaveUserEdit(c.Request.Context(), materialID, artifactType, req.Content, editedBy)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidContent) {
			response.RespondError(c, http.StatusUnprocessableEntity, "invalid_content", err)
			return
		}
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, version)
}

type restoreRequest struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// Restore appends a copy of an older version so it becomes latest again.
func (h *ArtifactHandler) Restore(c *gin.Context) {
	materialID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	versionID, ok := pathUUID(c, "versionId")
	if !ok {
		return
	}
	var req restoreRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
			return
		}
	}
	requestedBy, _ := uuid.Parse(req.RequestedBy)

	version, err := h.generation.RestoreVersion(c.Request.Context(), materialID, versionID, requestedBy)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, version)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func pathMaterialAndType(c *gin.Context) (uuid.UUID, domain.ArtifactType, bool) {
	materialID, ok := pathUUID(c, "id")
	if !ok {
		return uuid.Nil, "", false
	}
	artifactType := domain.ArtifactType(c.Param("type"))
	if !artifactType.Valid() {
		response.RespondError(c, http.StatusBadRequest, "invalid_artifact_type", nil)
		return uuid.Nil, "", false
	}
	return materialID, artifactType, true
}
