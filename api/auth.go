package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/koryun2/ICAI-backend-app/internal/identities"
	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

// register handles POST /api/register/
func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.identities.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, identities.ErrEmailTaken), errors.Is(err, identities.ErrUsernameTaken):
			detail(c, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("Registration failed", zap.Error(err))
			detail(c, http.StatusInternalServerError, "Internal server error.")
		}
		return
	}

	c.JSON(http.StatusCreated, user.Profile())
}

// obtainToken handles POST /api/token/
func (s *Server) obtainToken(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := s.identities.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identities.ErrInvalidCredentials) {
			detail(c, http.StatusUnauthorized, err.Error())
			return
		}
		s.logger.Error("Login failed", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	c.JSON(http.StatusOK, pair)
}

// refreshToken handles POST /api/token/refresh/
func (s *Server) refreshToken(c *gin.Context) {
	var req models.TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	access, err := s.identities.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, identities.ErrInvalidToken) {
			detail(c, http.StatusUnauthorized, "Token is invalid or expired.")
			return
		}
		s.logger.Error("Token refresh failed", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"access": access})
}
