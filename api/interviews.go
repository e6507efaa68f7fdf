package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koryun2/ICAI-backend-app/internal/engine"
	"github.com/koryun2/ICAI-backend-app/internal/interviews"
	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

// listSessions handles GET /api/interviews/
func (s *Server) listSessions(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		detail(c, http.StatusUnauthorized, "Authentication required.")
		return
	}

	sessions, err := s.interviews.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		s.logger.Error("Failed to list sessions", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	summaries := make([]models.SessionSummary, len(sessions))
	for i := range sessions {
		summaries[i] = sessions[i].Summary()
	}
	c.JSON(http.StatusOK, summaries)
}

// createSession handles POST /api/interviews/
func (s *Server) createSession(c *gin.Context) {
	var req models.SessionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	var userID *uuid.UUID
	if user := currentUser(c); user != nil {
		id := user.ID
		userID = &id
	}

	session, err := s.interviews.CreateSession(c.Request.Context(), userID, &req)
	if err != nil {
		s.respondInterviewError(c, err)
		return
	}

	payload := session.Detail()
	// The public token is the guest's only credential for the session, so it
	// is disclosed exactly once, in the creation response.
	if session.UserID == nil {
		payload.PublicToken = session.PublicToken
	}
	c.JSON(http.StatusCreated, payload)
}

// sessionDetail handles GET /api/interviews/:id/
func (s *Server) sessionDetail(c *gin.Context) {
	session, ok := s.loadSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Detail())
}

// generateQuestions handles POST /api/interviews/:id/generate/
func (s *Server) generateQuestions(c *gin.Context) {
	session, ok := s.loadSession(c)
	if !ok {
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.interviews.GenerateMore(c.Request.Context(), session.ID, req.Count)
	if err != nil {
		s.respondInterviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated.Detail())
}

// answerQuestion handles PATCH /api/interviews/:id/questions/:order/
func (s *Server) answerQuestion(c *gin.Context) {
	session, ok := s.loadSession(c)
	if !ok {
		return
	}

	order, err := strconv.Atoi(c.Param("order"))
	if err != nil {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}

	var req models.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	turn, err := s.interviews.AnswerQuestion(c.Request.Context(), session.ID, order, *req.Answer)
	if err != nil {
		s.respondInterviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}

// deleteQuestion handles DELETE /api/interviews/:id/questions/:order/
func (s *Server) deleteQuestion(c *gin.Context) {
	session, ok := s.loadSession(c)
	if !ok {
		return
	}

	order, err := strconv.Atoi(c.Param("order"))
	if err != nil {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}

	if err := s.interviews.DeleteQuestion(c.Request.Context(), session.ID, order); err != nil {
		s.respondInterviewError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// evaluateSession handles POST /api/interviews/:id/evaluate/
func (s *Server) evaluateSession(c *gin.Context) {
	session, ok := s.loadSession(c)
	if !ok {
		return
	}

	var req models.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.interviews.Evaluate(c.Request.Context(), session.ID, &req)
	if err != nil {
		s.respondInterviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated.Detail())
}

// adminListSessions handles GET /api/admin/interviews/
func (s *Server) adminListSessions(c *gin.Context) {
	sessions, err := s.interviews.ListAllSessions(c.Request.Context(), c.Query("status"), c.Query("level"))
	if err != nil {
		s.logger.Error("Failed to list sessions", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	summaries := make([]models.SessionSummary, len(sessions))
	for i := range sessions {
		summaries[i] = sessions[i].Summary()
	}
	c.JSON(http.StatusOK, summaries)
}

// loadSession parses the :id parameter, loads the session and enforces the
// access rules. On failure the response has already been written.
func (s *Server) loadSession(c *gin.Context) (*models.InterviewSession, bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		detail(c, http.StatusNotFound, "Not found.")
		return nil, false
	}

	session, err := s.interviews.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		s.respondInterviewError(c, err)
		return nil, false
	}

	if !canAccessSession(c, session) {
		return nil, false
	}
	return session, true
}

// respondInterviewError maps service and engine errors to HTTP responses.
func (s *Server) respondInterviewError(c *gin.Context, err error) {
	var missingAnswers *interviews.MissingAnswersError
	var incompleteResults *interviews.IncompleteResultsError

	switch {
	case errors.Is(err, interviews.ErrSessionNotFound),
		errors.Is(err, interviews.ErrTurnNotFound):
		detail(c, http.StatusNotFound, "Not found.")
	case errors.Is(err, interviews.ErrNoNewQuestions):
		detail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, interviews.ErrNoQuestions):
		detail(c, http.StatusBadGateway, err.Error())
	case errors.As(err, &missingAnswers):
		detail(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &incompleteResults):
		detail(c, http.StatusBadGateway, err.Error())
	default:
		if engineErr, ok := engine.AsEngineError(err); ok {
			detail(c, engineErr.StatusCode, engineErr.Detail)
			return
		}
		s.logger.Error("Interview operation failed", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Internal server error.")
	}
}
