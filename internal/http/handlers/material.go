package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/data/repos/materials"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/http/response"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
	"github.com/studystreak/studystreak-backend/internal/services"
)

type MaterialHandler struct {
	log             *logger.Logger
	materials       materials.MaterialRepo
	recommendations *services.RecommendationService
}

func NewMaterialHandler(baseLog *logger.Logger, materialRepo materials.MaterialRepo, recommendations *services.RecommendationService) *MaterialHandler {
	return &MaterialHandler{
		log:             baseLog.With("handler", "MaterialHandler"),
		materials:       materialRepo,
		recommendations: recommendations,
	}
}

type createMaterialRequest struct {
	OwnerUserID string `json:"owner_user_id"`
	Title       string `json:"title"`
	SourceText  string `json:"source_text,omitempty"`
	SourceHash  string `json:"source_hash,omitempty"`
	StorageKey  string `json:"storage_key,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

func (h *MaterialHandler) CreateMaterial(c *gin.Context) {
	var req createMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	ownerID, err := uuid.Parse(req.OwnerUserID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_owner_user_id", err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_title", nil)
		return
	}

	sourceHash := strings.TrimSpace(req.SourceHash)
	if sourceHash == "" && req.SourceText != "" {
		sum := sha256.Sum256([]byte(req.SourceText))
		sourceHash = hex.EncodeToString(sum[:])
	}
	if sourceHash == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_source", errors.New("source_text or source_hash required"))
		return
	}

	created, err := h.materials.Create(dbctx.Context{Ctx: c.Request.Context()}, []*domain.Material{{
		OwnerUserID: ownerID,
		Title:       strings.TrimSpace(req.Title),
		SourceHash:  sourceHash,
		StorageKey:  strings.TrimSpace(req.StorageKey),
		MimeType:    strings.TrimSpace(req.MimeType),
		Status:      "ready",
	}})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "create_material_failed", err)
		return
	}
	response.RespondCreated(c, created[0])
}

func (h *MaterialHandler) GetMaterial(c *gin.Context) {
	materialID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	material, err := h.materials.GetByID(dbctx.Context{Ctx: c.Request.Context()}, materialID)
	if errors.Is(err, materials.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "material_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_material_failed", err)
		return
	}
	response.RespondOK(c, material)
}

func (h *MaterialHandler) ListMaterials(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Query("owner_user_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_owner_user_id", err)
		return
	}
	mats, err := h.materials.GetByOwnerUserID(dbctx.Context{Ctx: c.Request.Context()}, ownerID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_materials_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"materials": mats})
}

func (h *MaterialHandler) DeleteMaterial(c *gin.Context) {
	materialID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.materials.SoftDeleteByIDs(dbctx.Context{Ctx: c.Request.Context()}, []uuid.UUID{materialID}); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "delete_material_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SimilarMaterials recommends materials whose summaries are close to this
// material's summary in embedding space.
func (h *MaterialHandler) SimilarMaterials(c *gin.Context) {
	materialID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	k, _ := strconv.Atoi(c.DefaultQuery("k", "5"))

	similar, err := h.recommendations.SimilarMaterials(c.Request.Context(), materialID, k)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"similar": similar})
}
