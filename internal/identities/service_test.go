package identities

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/koryun2/ICAI-backend-app/internal/database"
	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

func setupTestService(t *testing.T) (IdentityService, *gorm.DB) {
	t.Helper()

	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	svc, err := NewService(zap.NewNop(), db, Config{
		JWTSecret:       "test-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return svc, db
}

func TestRegisterNormalizesEmail(t *testing.T) {
	svc, _ := setupTestService(t)

	user, err := svc.Register(context.Background(), &models.RegisterRequest{
		Email:    "  Alice@Example.COM ",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.Nil(t, user.Username)
	assert.NotEmpty(t, user.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	// Case variants of the same address collide.
	_, err = svc.Register(ctx, &models.RegisterRequest{Email: "ALICE@example.com", Password: "password456"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123", Username: "alice"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &models.RegisterRequest{Email: "bob@example.com", Password: "password123", Username: "alice"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterEmptyUsernamesDoNotCollide(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	// Empty usernames are stored as NULL, so uniqueness does not apply.
	_, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &models.RegisterRequest{Email: "bob@example.com", Password: "password123", Username: "  "})
	require.NoError(t, err)
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "Alice@Example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	userID, err := svc.ValidateAccessToken(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	// A refresh token is not valid as an access token.
	_, err = svc.ValidateAccessToken(pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	_, err = svc.Login(ctx, "alice@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRecordsLastLogin(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	require.Nil(t, user.LastLogin)

	_, err = svc.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	var reloaded models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&reloaded).Error)
	assert.NotNil(t, reloaded.LastLogin)
}

func TestRefresh(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	access, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	userID, err := svc.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	// An access token cannot be used as a refresh token.
	_, err = svc.Refresh(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Deactivation invalidates outstanding refresh tokens.
	require.NoError(t, db.Model(user).Update("is_active", false).Error)
	_, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUpdateUserPartial(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &models.RegisterRequest{
		Email:     "alice@example.com",
		Password:  "password123",
		FirstName: "Alice",
		Role:      "Backend Developer",
	})
	require.NoError(t, err)

	newLevel := models.LevelMid
	updated, err := svc.UpdateUser(ctx, user.ID, &models.MeUpdateRequest{Level: &newLevel})
	require.NoError(t, err)
	assert.Equal(t, models.LevelMid, updated.Level)
	// Fields absent from the request are untouched.
	assert.Equal(t, "Alice", updated.FirstName)
	assert.Equal(t, "Backend Developer", updated.Role)
}

func TestUpdateUserUsername(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123", Username: "alice"})
	require.NoError(t, err)
	bob, err := svc.Register(ctx, &models.RegisterRequest{Email: "bob@example.com", Password: "password123"})
	require.NoError(t, err)

	taken := "alice"
	_, err = svc.UpdateUser(ctx, bob.ID, &models.MeUpdateRequest{Username: &taken})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// Blank clears the username back to NULL.
	blank := "  "
	updated, err := svc.UpdateUser(ctx, alice.ID, &models.MeUpdateRequest{Username: &blank})
	require.NoError(t, err)
	assert.Nil(t, updated.Username)
}

func TestCreateSuperuser(t *testing.T) {
	svc, _ := setupTestService(t)

	user, err := svc.CreateSuperuser(context.Background(), "admin@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.True(t, user.IsSuperuser)
	assert.True(t, user.IsActive)

	reloaded, err := svc.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsStaff)
}

func TestGetUserNotFound(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &models.RegisterRequest{Email: "bob@example.com", Password: "password123"})
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
