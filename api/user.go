package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/koryun2/ICAI-backend-app/internal/identities"
	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

// me handles GET /api/me/
func (s *Server) me(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, user.Profile())
}

// updateMe handles PUT and PATCH /api/me/. Every updatable field is optional,
// so both methods share the partial-update path.
func (s *Server) updateMe(c *gin.Context) {
	var req models.MeUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	user := currentUser(c)
	updated, err := s.identities.UpdateUser(c.Request.Context(), user.ID, &req)
	if err != nil {
		if errors.Is(err, identities.ErrUsernameTaken) {
			detail(c, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Profile update failed", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	c.JSON(http.StatusOK, updated.Profile())
}

// adminListUsers handles GET /api/admin/users/
func (s *Server) adminListUsers(c *gin.Context) {
	users, err := s.identities.ListUsers(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list users", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	profiles := make([]models.Profile, len(users))
	for i := range users {
		profiles[i] = users[i].Profile()
	}
	c.JSON(http.StatusOK, profiles)
}
