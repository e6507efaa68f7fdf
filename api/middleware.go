package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/koryun2/ICAI-backend-app/pkg/metrics"
	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

const userContextKey = "user"

// detail writes an error body of the shape {"detail": "..."}.
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// MetricsMiddleware records HTTP request counts and durations for Prometheus
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(path, method, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}

// authOptional resolves the Bearer token when one is supplied. A missing
// header leaves the request anonymous; an invalid credential is rejected.
func (s *Server) authOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			detail(c, http.StatusUnauthorized, "Authorization header must be a Bearer token.")
			return
		}

		userID, err := s.identities.ValidateAccessToken(strings.TrimSpace(token))
		if err != nil {
			detail(c, http.StatusUnauthorized, "Given token not valid for any token type.")
			return
		}

		user, err := s.identities.GetUser(c.Request.Context(), userID)
		if err != nil || !user.IsActive {
			detail(c, http.StatusUnauthorized, "User inactive or deleted.")
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// authRequired rejects anonymous requests after optional auth has run.
func (s *Server) authRequired() gin.HandlerFunc {
	optional := s.authOptional()
	return func(c *gin.Context) {
		optional(c)
		if c.IsAborted() {
			return
		}
		if currentUser(c) == nil {
			detail(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
		}
	}
}

// staffRequired allows only staff accounts through.
func (s *Server) staffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.IsStaff {
			detail(c, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		c.Next()
	}
}

// rateLimited throttles by endpoint name and client IP.
func (s *Server) rateLimited(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", name, c.ClientIP())
		if !s.authLimiter.Allow(c.Request.Context(), key) {
			s.logger.Warn("Request throttled",
				zap.String("endpoint", name),
				zap.String("ip", c.ClientIP()),
			)
			detail(c, http.StatusTooManyRequests, "Request was throttled.")
			return
		}
		c.Next()
	}
}

// currentUser returns the authenticated user set by the auth middleware, or
// nil for anonymous requests.
func currentUser(c *gin.Context) *models.User {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

// canAccessSession enforces session ownership: sessions with an owner require
// that owner's JWT, guest sessions require the public token from the
// X-Interview-Token header or the t query parameter.
func canAccessSession(c *gin.Context, session *models.InterviewSession) bool {
	if session.UserID != nil {
		user := currentUser(c)
		if user == nil || user.ID != *session.UserID {
			detail(c, http.StatusForbidden, "You do not have access to this interview session.")
			return false
		}
		return true
	}

	token := c.GetHeader("X-Interview-Token")
	if token == "" {
		token = c.Query("t")
	}
	if token == "" || token != session.PublicToken {
		detail(c, http.StatusForbidden, "Missing or invalid interview token.")
		return false
	}
	return true
}
