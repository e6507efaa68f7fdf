package identities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

// Sentinel errors mapped to HTTP statuses by the API layer.
var (
	ErrEmailTaken         = errors.New("a user with that email already exists")
	ErrUsernameTaken      = errors.New("a user with that username already exists")
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("token is invalid or expired")
)

// IdentityService defines user account operations.
type IdentityService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	ValidateAccessToken(token string) (uuid.UUID, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, req *models.MeUpdateRequest) (*models.User, error)
	CreateSuperuser(ctx context.Context, email, password string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Service implements IdentityService on top of GORM.
type Service struct {
	logger          *zap.Logger
	db              *gorm.DB
	jwtSecret       []byte
	refreshSecret   []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// Config carries the token settings for the service.
type Config struct {
	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// NewService creates a new IdentityService.
func NewService(logger *zap.Logger, db *gorm.DB, cfg Config) (IdentityService, error) {
	if cfg.JWTSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("jwt secrets must be configured")
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = time.Hour
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &Service{
		logger:          logger,
		db:              db,
		jwtSecret:       []byte(cfg.JWTSecret),
		refreshSecret:   []byte(cfg.RefreshSecret),
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
	}, nil
}

// NormalizeEmail lowercases the whole address, local part included, to avoid
// case-variant duplicate accounts.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("the email field must be set")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	// Optional username; empty is stored as NULL so uniqueness only applies
	// when one is actually set.
	var username *string
	if trimmed := strings.TrimSpace(req.Username); trimmed != "" {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", trimmed).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if count > 0 {
			return nil, ErrUsernameTaken
		}
		username = &trimmed
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	stack := models.StringList(req.TechStack)
	if stack == nil {
		stack = models.StringList{}
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		Level:        req.Level,
		TechStack:    stack,
		IsActive:     true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	access, err := s.generateToken(user.ID, "access", s.jwtSecret, s.accessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.generateToken(user.ID, "refresh", s.refreshSecret, s.refreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", &now).Error; err != nil {
		s.logger.Warn("Failed to record last login", zap.Error(err))
	}

	return &models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.validateToken(refreshToken, "refresh", s.refreshSecret)
	if err != nil {
		return "", err
	}

	// The account may have been deactivated since the refresh token was issued.
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return "", ErrInvalidToken
	}
	if !user.IsActive {
		return "", ErrInvalidToken
	}

	return s.generateToken(userID, "access", s.jwtSecret, s.accessTokenTTL)
}

// ValidateAccessToken parses and validates an access token, returning the
// user ID it was issued for.
func (s *Service) ValidateAccessToken(token string) (uuid.UUID, error) {
	return s.validateToken(token, "access", s.jwtSecret)
}

// GetUser gets a user by ID.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// UpdateUser applies a partial profile update. Only fields present in the
// request are touched; email is immutable here.
func (s *Service) UpdateUser(ctx context.Context, userID uuid.UUID, req *models.MeUpdateRequest) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		if trimmed == "" {
			user.Username = nil
		} else {
			var count int64
			if err := s.db.WithContext(ctx).Model(&models.User{}).
				Where("username = ? AND id <> ?", trimmed, userID).Count(&count).Error; err != nil {
				return nil, fmt.Errorf("failed to check username: %w", err)
			}
			if count > 0 {
				return nil, ErrUsernameTaken
			}
			user.Username = &trimmed
		}
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Level != nil {
		user.Level = *req.Level
	}
	if req.TechStack != nil {
		stack := models.StringList(*req.TechStack)
		if stack == nil {
			stack = models.StringList{}
		}
		user.TechStack = stack
	}

	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return &user, nil
}

// CreateSuperuser creates an active staff+superuser account. Used by the
// -create-superuser bootstrap flag.
func (s *Service) CreateSuperuser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Register(ctx, &models.RegisterRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	user.IsStaff = true
	user.IsSuperuser = true
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to save superuser: %w", err)
	}
	return user, nil
}

// ListUsers returns all users, newest first. Staff only; enforced by the API
// layer.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *Service) generateToken(userID uuid.UUID, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        userID.String(),
		"token_type": tokenType,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		"jti":        uuid.NewString(),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) validateToken(tokenString, expectedType string, secret []byte) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	if tokenType, _ := claims["token_type"].(string); tokenType != expectedType {
		return uuid.Nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}
