package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/http/response"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
	"github.com/studystreak/studystreak-backend/internal/services"
)

type QuizHandler struct {
	log  *logger.Logger
	quiz *services.QuizService
}

func NewQuizHandler(baseLog *logger.Logger, quiz *services.QuizService) *QuizHandler {
	return &QuizHandler{
		log:  baseLog.With("handler", "QuizHandler"),
		quiz: quiz,
	}
}

type startAttemptRequest struct {
	UserID string `json:"user_id"`
}

func (h *QuizHandler) StartAttempt(c *gin.Context) {
	versionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req startAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}

	attempt, err := h.quiz.StartAttempt(c.Request.Context(), versionID, userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, attempt)
}

type submitAttemptRequest struct {
	Answers []services.AnswerSubmission `json:"answers"`
}

func (h *QuizHandler) SubmitAttempt(c *gin.Context) {
	attemptID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	result, err := h.quiz.SubmitAttempt(c.Request.Context(), attemptID, req.Answers)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *QuizHandler) GetAttempt(c *gin.Context) {
	attemptID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.quiz.GetAttempt(c.Request.Context(), attemptID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
