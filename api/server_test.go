package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/koryun2/ICAI-backend-app/internal/database"
	"github.com/koryun2/ICAI-backend-app/internal/engine"
	"github.com/koryun2/ICAI-backend-app/internal/identities"
	"github.com/koryun2/ICAI-backend-app/internal/interviews"
	"github.com/koryun2/ICAI-backend-app/internal/ratelimit"
	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server *Server
	db     *gorm.DB
}

func setupTestServer(t *testing.T) *testEnv {
	return setupTestServerWithLimiter(t, nil)
}

func setupTestServerWithLimiter(t *testing.T, limiter *ratelimit.Limiter) *testEnv {
	t.Helper()

	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := zap.NewNop()

	identitiesSvc, err := identities.NewService(logger, db, identities.Config{
		JWTSecret:     "test-secret",
		RefreshSecret: "test-refresh-secret",
	})
	require.NoError(t, err)

	interviewsSvc, err := interviews.NewService(logger, db, engine.NewMock(), 5, 50)
	require.NoError(t, err)

	return &testEnv{
		server: NewServer(logger, identitiesSvc, interviewsSvc, limiter),
		db:     db,
	}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	e.server.Router().ServeHTTP(recorder, req)
	return recorder
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), out))
}

func (e *testEnv) registerAndLogin(t *testing.T, email string) (models.Profile, string) {
	t.Helper()

	recorder := e.request(t, http.MethodPost, "/api/register/", gin.H{
		"email":    email,
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	var profile models.Profile
	decodeJSON(t, recorder, &profile)

	recorder = e.request(t, http.MethodPost, "/api/token/", gin.H{
		"email":    email,
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var pair models.TokenPair
	decodeJSON(t, recorder, &pair)

	return profile, pair.Access
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthCheck(t *testing.T) {
	env := setupTestServer(t)
	recorder := env.request(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	env := setupTestServer(t)

	recorder := env.request(t, http.MethodPost, "/api/register/", gin.H{
		"email":      "Alice@Example.com",
		"password":   "password123",
		"level":      models.LevelMid,
		"tech_stack": []string{"Go"},
	}, nil)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var profile models.Profile
	decodeJSON(t, recorder, &profile)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, models.LevelMid, profile.Level)

	// The password never leaves the server.
	assert.NotContains(t, recorder.Body.String(), "password")

	// Duplicate registration is a 400 with a detail body.
	recorder = env.request(t, http.MethodPost, "/api/register/", gin.H{
		"email":    "alice@example.com",
		"password": "password456",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Contains(t, body["detail"], "email already exists")
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestServer(t)

	// Short password
	recorder := env.request(t, http.MethodPost, "/api/register/", gin.H{
		"email":    "alice@example.com",
		"password": "short",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Unknown level
	recorder = env.request(t, http.MethodPost, "/api/register/", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
		"level":    "PRINCIPAL",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestTokenEndpoint(t *testing.T) {
	env := setupTestServer(t)
	env.registerAndLogin(t, "alice@example.com")

	recorder := env.request(t, http.MethodPost, "/api/token/", gin.H{
		"email":    "alice@example.com",
		"password": "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Equal(t, "no active account found with the given credentials", body["detail"])
}

func TestTokenRefreshEndpoint(t *testing.T) {
	env := setupTestServer(t)
	env.registerAndLogin(t, "alice@example.com")

	recorder := env.request(t, http.MethodPost, "/api/token/", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var pair models.TokenPair
	decodeJSON(t, recorder, &pair)

	recorder = env.request(t, http.MethodPost, "/api/token/refresh/", gin.H{"refresh": pair.Refresh}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var refreshed map[string]string
	decodeJSON(t, recorder, &refreshed)
	assert.NotEmpty(t, refreshed["access"])

	recorder = env.request(t, http.MethodPost, "/api/token/refresh/", gin.H{"refresh": "garbage"}, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Equal(t, "Token is invalid or expired.", body["detail"])
}

func TestMeEndpoint(t *testing.T) {
	env := setupTestServer(t)
	profile, token := env.registerAndLogin(t, "alice@example.com")

	// Unauthenticated
	recorder := env.request(t, http.MethodGet, "/api/me/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Equal(t, "Authentication credentials were not provided.", body["detail"])

	// Bad token
	recorder = env.request(t, http.MethodGet, "/api/me/", nil, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Authenticated
	recorder = env.request(t, http.MethodGet, "/api/me/", nil, bearer(token))
	require.Equal(t, http.StatusOK, recorder.Code)
	var got models.Profile
	decodeJSON(t, recorder, &got)
	assert.Equal(t, profile.ID, got.ID)

	// Partial update leaves other fields alone.
	recorder = env.request(t, http.MethodPatch, "/api/me/", gin.H{
		"first_name": "Alice",
		"level":      models.LevelSenior,
	}, bearer(token))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	decodeJSON(t, recorder, &got)
	assert.Equal(t, "Alice", got.FirstName)
	assert.Equal(t, models.LevelSenior, got.Level)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestGuestSessionFlow(t *testing.T) {
	env := setupTestServer(t)

	// Anonymous creation returns the public token exactly once.
	recorder := env.request(t, http.MethodPost, "/api/interviews/", gin.H{
		"role":  "Backend Developer",
		"count": 2,
	}, nil)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var created models.SessionDetail
	decodeJSON(t, recorder, &created)
	require.NotEmpty(t, created.PublicToken)
	require.Len(t, created.Questions, 2)

	detailPath := fmt.Sprintf("/api/interviews/%s/", created.ID)

	// No token: forbidden.
	recorder = env.request(t, http.MethodGet, detailPath, nil, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Equal(t, "Missing or invalid interview token.", body["detail"])

	// Wrong token: forbidden.
	recorder = env.request(t, http.MethodGet, detailPath, nil, map[string]string{"X-Interview-Token": "wrong"})
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// Header token works, and the token is not echoed back.
	recorder = env.request(t, http.MethodGet, detailPath, nil, map[string]string{"X-Interview-Token": created.PublicToken})
	require.Equal(t, http.StatusOK, recorder.Code)
	var detail models.SessionDetail
	decodeJSON(t, recorder, &detail)
	assert.Empty(t, detail.PublicToken)

	// Query parameter works too.
	recorder = env.request(t, http.MethodGet, detailPath+"?t="+created.PublicToken, nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestOwnerSessionAccess(t *testing.T) {
	env := setupTestServer(t)
	_, aliceToken := env.registerAndLogin(t, "alice@example.com")
	_, bobToken := env.registerAndLogin(t, "bob@example.com")

	recorder := env.request(t, http.MethodPost, "/api/interviews/", gin.H{
		"role":  "Backend Developer",
		"level": models.LevelMid,
		"count": 2,
	}, bearer(aliceToken))
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var created models.SessionDetail
	decodeJSON(t, recorder, &created)
	require.NotNil(t, created.UserID)
	// Owned sessions never expose a public token.
	assert.Empty(t, created.PublicToken)

	detailPath := fmt.Sprintf("/api/interviews/%s/", created.ID)

	recorder = env.request(t, http.MethodGet, detailPath, nil, bearer(aliceToken))
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = env.request(t, http.MethodGet, detailPath, nil, bearer(bobToken))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Equal(t, "You do not have access to this interview session.", body["detail"])

	recorder = env.request(t, http.MethodGet, detailPath, nil, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// Listing is scoped to the caller.
	recorder = env.request(t, http.MethodGet, "/api/interviews/", nil, bearer(aliceToken))
	require.Equal(t, http.StatusOK, recorder.Code)
	var summaries []models.SessionSummary
	decodeJSON(t, recorder, &summaries)
	assert.Len(t, summaries, 1)

	recorder = env.request(t, http.MethodGet, "/api/interviews/", nil, bearer(bobToken))
	require.Equal(t, http.StatusOK, recorder.Code)
	decodeJSON(t, recorder, &summaries)
	assert.Empty(t, summaries)

	// Anonymous listing is rejected.
	recorder = env.request(t, http.MethodGet, "/api/interviews/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSessionNotFound(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.registerAndLogin(t, "alice@example.com")

	recorder := env.request(t, http.MethodGet, "/api/interviews/not-a-uuid/", nil, bearer(token))
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = env.request(t, http.MethodGet, "/api/interviews/6a6f3c6e-0000-4000-8000-000000000000/", nil, bearer(token))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAnswerEvaluateFlow(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.registerAndLogin(t, "alice@example.com")

	recorder := env.request(t, http.MethodPost, "/api/interviews/", gin.H{
		"role":  "Backend Developer",
		"count": 2,
	}, bearer(token))
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created models.SessionDetail
	decodeJSON(t, recorder, &created)

	base := fmt.Sprintf("/api/interviews/%s/", created.ID)

	// Evaluating before answering reports the missing orders.
	recorder = env.request(t, http.MethodPost, base+"evaluate/", nil, bearer(token))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Equal(t, "Missing answers for questions: 1, 2", body["detail"])

	for order := 1; order <= 2; order++ {
		recorder = env.request(t, http.MethodPatch, fmt.Sprintf("%squestions/%d/", base, order), gin.H{
			"answer": "An answer long enough for the mock engine to score above the floor.",
		}, bearer(token))
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		var turn models.InterviewTurn
		decodeJSON(t, recorder, &turn)
		assert.NotNil(t, turn.AnsweredAt)
	}

	// Unknown question order.
	recorder = env.request(t, http.MethodPatch, base+"questions/99/", gin.H{"answer": "x"}, bearer(token))
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = env.request(t, http.MethodPost, base+"evaluate/", nil, bearer(token))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var evaluated models.SessionDetail
	decodeJSON(t, recorder, &evaluated)
	assert.Equal(t, models.SessionStatusCompleted, evaluated.Status)
	assert.NotNil(t, evaluated.OverallScore)
	for _, question := range evaluated.Questions {
		assert.NotNil(t, question.Score)
		assert.NotEmpty(t, question.Feedback)
	}
}

func TestGenerateMoreEndpoint(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.registerAndLogin(t, "alice@example.com")

	recorder := env.request(t, http.MethodPost, "/api/interviews/", gin.H{"count": 2}, bearer(token))
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created models.SessionDetail
	decodeJSON(t, recorder, &created)

	base := fmt.Sprintf("/api/interviews/%s/", created.ID)

	recorder = env.request(t, http.MethodPost, base+"generate/", gin.H{"count": 3}, bearer(token))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var updated models.SessionDetail
	decodeJSON(t, recorder, &updated)
	require.Len(t, updated.Questions, 5)
	assert.Equal(t, 5, updated.Questions[4].Order)

	// Count is required.
	recorder = env.request(t, http.MethodPost, base+"generate/", gin.H{}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDeleteQuestionEndpoint(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.registerAndLogin(t, "alice@example.com")

	recorder := env.request(t, http.MethodPost, "/api/interviews/", gin.H{"count": 2}, bearer(token))
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created models.SessionDetail
	decodeJSON(t, recorder, &created)

	base := fmt.Sprintf("/api/interviews/%s/", created.ID)

	recorder = env.request(t, http.MethodDelete, base+"questions/1/", nil, bearer(token))
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = env.request(t, http.MethodDelete, base+"questions/1/", nil, bearer(token))
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = env.request(t, http.MethodGet, base, nil, bearer(token))
	require.Equal(t, http.StatusOK, recorder.Code)
	var detail models.SessionDetail
	decodeJSON(t, recorder, &detail)
	require.Len(t, detail.Questions, 1)
	assert.Equal(t, 2, detail.Questions[0].Order)
}

func TestAuthRateLimiting(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	limiter := ratelimit.NewLimiter(
		redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		zap.NewNop(), 2, time.Minute,
	)
	env := setupTestServerWithLimiter(t, limiter)

	login := gin.H{"email": "alice@example.com", "password": "password123"}
	for i := 0; i < 2; i++ {
		recorder := env.request(t, http.MethodPost, "/api/token/", login, nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	}

	recorder := env.request(t, http.MethodPost, "/api/token/", login, nil)
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Equal(t, "Request was throttled.", body["detail"])

	// Each endpoint is throttled independently.
	recorder = env.request(t, http.MethodPost, "/api/register/", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	// Refresh is not rate limited.
	recorder = env.request(t, http.MethodPost, "/api/token/refresh/", gin.H{"refresh": "garbage"}, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAdminEndpoints(t *testing.T) {
	env := setupTestServer(t)
	_, aliceToken := env.registerAndLogin(t, "alice@example.com")
	_, adminToken := env.registerAndLogin(t, "admin@example.com")

	// Promote the admin account directly.
	require.NoError(t, env.db.Model(&models.User{}).
		Where("email = ?", "admin@example.com").
		Update("is_staff", true).Error)

	// Non-staff callers are rejected.
	recorder := env.request(t, http.MethodGet, "/api/admin/users/", nil, bearer(aliceToken))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	var body map[string]string
	decodeJSON(t, recorder, &body)
	assert.Equal(t, "You do not have permission to perform this action.", body["detail"])

	// Anonymous callers get 401 before the staff check.
	recorder = env.request(t, http.MethodGet, "/api/admin/users/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = env.request(t, http.MethodGet, "/api/admin/users/", nil, bearer(adminToken))
	require.Equal(t, http.StatusOK, recorder.Code)
	var profiles []models.Profile
	decodeJSON(t, recorder, &profiles)
	assert.Len(t, profiles, 2)

	// Seed sessions to filter over.
	recorder = env.request(t, http.MethodPost, "/api/interviews/", gin.H{
		"level": models.LevelMid,
		"count": 1,
	}, bearer(aliceToken))
	require.Equal(t, http.StatusCreated, recorder.Code)
	recorder = env.request(t, http.MethodPost, "/api/interviews/", gin.H{
		"level": models.LevelSenior,
		"count": 1,
	}, bearer(adminToken))
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder = env.request(t, http.MethodGet, "/api/admin/interviews/", nil, bearer(adminToken))
	require.Equal(t, http.StatusOK, recorder.Code)
	var summaries []models.SessionSummary
	decodeJSON(t, recorder, &summaries)
	assert.Len(t, summaries, 2)

	recorder = env.request(t, http.MethodGet, "/api/admin/interviews/?level="+models.LevelMid, nil, bearer(adminToken))
	require.Equal(t, http.StatusOK, recorder.Code)
	decodeJSON(t, recorder, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, models.LevelMid, summaries[0].Level)
}
