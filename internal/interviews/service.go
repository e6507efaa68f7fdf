package interviews

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/koryun2/ICAI-backend-app/internal/engine"
	"github.com/koryun2/ICAI-backend-app/pkg/metrics"
	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

// Sentinel errors mapped to HTTP statuses by the API layer.
var (
	ErrSessionNotFound = errors.New("interview session not found")
	ErrTurnNotFound    = errors.New("interview question not found")
	ErrNoNewQuestions  = errors.New("No new questions generated.")
	ErrNoQuestions     = errors.New("Interview engine returned no questions.")
)

// MissingAnswersError reports turns that still have blank answers when an
// evaluation is requested.
type MissingAnswersError struct {
	Orders []int
}

func (e *MissingAnswersError) Error() string {
	return fmt.Sprintf("Missing answers for questions: %s", joinOrders(e.Orders))
}

// IncompleteResultsError reports turn orders the engine failed to evaluate.
type IncompleteResultsError struct {
	Orders []int
}

func (e *IncompleteResultsError) Error() string {
	return fmt.Sprintf("Interview engine returned incomplete results for orders: %s", joinOrders(e.Orders))
}

func joinOrders(orders []int) string {
	parts := make([]string, len(orders))
	for i, order := range orders {
		parts[i] = fmt.Sprintf("%d", order)
	}
	return strings.Join(parts, ", ")
}

// InterviewService defines interview session operations.
type InterviewService interface {
	CreateSession(ctx context.Context, userID *uuid.UUID, req *models.SessionCreateRequest) (*models.InterviewSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.InterviewSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.InterviewSession, error)
	GenerateMore(ctx context.Context, sessionID uuid.UUID, count int) (*models.InterviewSession, error)
	AnswerQuestion(ctx context.Context, sessionID uuid.UUID, order int, answer string) (*models.InterviewTurn, error)
	DeleteQuestion(ctx context.Context, sessionID uuid.UUID, order int) error
	Evaluate(ctx context.Context, sessionID uuid.UUID, req *models.EvaluateRequest) (*models.InterviewSession, error)
	ListAllSessions(ctx context.Context, status, level string) ([]models.InterviewSession, error)
}

// Service implements InterviewService.
type Service struct {
	logger               *zap.Logger
	db                   *gorm.DB
	engine               engine.Engine
	defaultQuestionCount int
	maxGenerateCount     int
}

// NewService creates a new InterviewService.
func NewService(logger *zap.Logger, db *gorm.DB, eng engine.Engine, defaultQuestionCount, maxGenerateCount int) (InterviewService, error) {
	if eng == nil {
		return nil, fmt.Errorf("interview engine is required")
	}
	if defaultQuestionCount <= 0 {
		defaultQuestionCount = 5
	}
	if maxGenerateCount <= 0 {
		maxGenerateCount = 50
	}
	return &Service{
		logger:               logger,
		db:                   db,
		engine:               eng,
		defaultQuestionCount: defaultQuestionCount,
		maxGenerateCount:     maxGenerateCount,
	}, nil
}

// CreateSession creates a session and fills it with an initial batch of
// engine-generated questions. Guest sessions (nil userID) get a public token.
// When the engine fails the session is kept with status FAILED and the engine
// error is returned for the handler to relay.
func (s *Service) CreateSession(ctx context.Context, userID *uuid.UUID, req *models.SessionCreateRequest) (*models.InterviewSession, error) {
	count := req.Count
	if count <= 0 {
		count = s.defaultQuestionCount
	}

	stack := models.StringList(req.TechStack)
	if stack == nil {
		stack = models.StringList{}
	}

	session := &models.InterviewSession{
		ID:        uuid.New(),
		UserID:    userID,
		Role:      req.Role,
		Level:     req.Level,
		TechStack: stack,
		Mode:      req.Mode,
		Status:    models.SessionStatusCreated,
	}
	if userID == nil {
		token, err := newPublicToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate public token: %w", err)
		}
		session.PublicToken = token
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	resp, err := s.engine.GenerateQuestions(ctx, &engine.GenerateRequest{
		SessionID:         nil,
		Profile:           s.profilePayload(session),
		Count:             count,
		ExistingQuestions: []string{},
	})
	if err != nil {
		s.markFailed(ctx, session)
		return session, err
	}

	questions := cleanQuestions(resp.Questions, nil)
	if len(questions) == 0 {
		s.markFailed(ctx, session)
		return session, ErrNoQuestions
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session.EngineSessionID = resp.SessionID
		session.Status = models.SessionStatusInProgress
		session.StartedAt = &now
		if err := tx.Save(session).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}

		turns := make([]models.InterviewTurn, len(questions))
		for i, question := range questions {
			turns[i] = models.InterviewTurn{
				ID:        uuid.New(),
				SessionID: session.ID,
				Order:     i + 1,
				Question:  question,
				Meta:      models.JSONMap{},
			}
		}
		if err := tx.Create(&turns).Error; err != nil {
			return fmt.Errorf("failed to create turns: %w", err)
		}
		session.Turns = turns
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := "user"
	if userID == nil {
		kind = "guest"
	}
	metrics.SessionsCreated.WithLabelValues(kind).Inc()
	s.logger.Info("Interview session created",
		zap.String("session_id", session.ID.String()),
		zap.String("kind", kind),
		zap.Int("questions", len(questions)),
	)
	return session, nil
}

// ListSessions returns a user's sessions, newest first, without turns.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession loads a session with its turns ordered by turn order.
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := s.db.WithContext(ctx).
		Preload("Turns", func(db *gorm.DB) *gorm.DB {
			return db.Order("turn_order ASC")
		}).
		Where("id = ?", sessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

// GenerateMore appends engine-generated questions to an existing session,
// skipping blanks and case-insensitive duplicates of existing questions.
func (s *Service) GenerateMore(ctx context.Context, sessionID uuid.UUID, count int) (*models.InterviewSession, error) {
	if count > s.maxGenerateCount {
		count = s.maxGenerateCount
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	existing := make([]string, 0, len(session.Turns))
	existingSet := make(map[string]struct{}, len(session.Turns))
	nextOrder := 1
	for _, turn := range session.Turns {
		existing = append(existing, turn.Question)
		if key := strings.ToLower(strings.TrimSpace(turn.Question)); key != "" {
			existingSet[key] = struct{}{}
		}
		if turn.Order >= nextOrder {
			nextOrder = turn.Order + 1
		}
	}

	var engineSessionID *string
	if session.EngineSessionID != "" {
		id := session.EngineSessionID
		engineSessionID = &id
	}

	resp, err := s.engine.GenerateQuestions(ctx, &engine.GenerateRequest{
		SessionID:         engineSessionID,
		Profile:           s.profilePayload(session),
		Count:             count,
		ExistingQuestions: existing,
	})
	if err != nil {
		return nil, err
	}

	if resp.SessionID != "" && session.EngineSessionID == "" {
		session.EngineSessionID = resp.SessionID
	}

	questions := cleanQuestions(resp.Questions, existingSet)
	if len(questions) == 0 {
		return nil, ErrNoNewQuestions
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		turns := make([]models.InterviewTurn, len(questions))
		for i, question := range questions {
			turns[i] = models.InterviewTurn{
				ID:        uuid.New(),
				SessionID: session.ID,
				Order:     nextOrder + i,
				Question:  question,
				Meta:      models.JSONMap{},
			}
		}
		if err := tx.Create(&turns).Error; err != nil {
			return fmt.Errorf("failed to create turns: %w", err)
		}

		session.Status = models.SessionStatusInProgress
		if err := tx.Save(session).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetSession(ctx, sessionID)
}

// AnswerQuestion records an answer on a turn. A blank answer clears the
// answered timestamp.
func (s *Service) AnswerQuestion(ctx context.Context, sessionID uuid.UUID, order int, answer string) (*models.InterviewTurn, error) {
	var turn models.InterviewTurn
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND turn_order = ?", sessionID, order).
		First(&turn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTurnNotFound
		}
		return nil, fmt.Errorf("failed to load turn: %w", err)
	}

	turn.Answer = answer
	if strings.TrimSpace(answer) != "" {
		now := time.Now()
		turn.AnsweredAt = &now
	} else {
		turn.AnsweredAt = nil
	}

	err = s.db.WithContext(ctx).Model(&turn).
		Updates(map[string]interface{}{
			"answer":      turn.Answer,
			"answered_at": turn.AnsweredAt,
			"updated_at":  time.Now(),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}
	return &turn, nil
}

// DeleteQuestion removes a turn. Remaining turns keep their order numbers.
func (s *Service) DeleteQuestion(ctx context.Context, sessionID uuid.UUID, order int) error {
	result := s.db.WithContext(ctx).
		Where("session_id = ? AND turn_order = ?", sessionID, order).
		Delete(&models.InterviewTurn{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete turn: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTurnNotFound
	}
	return nil
}

// Evaluate submits every answered turn to the engine and stores per-question
// and overall results. All turns must be answered, and the engine must return
// a result for every turn order.
func (s *Service) Evaluate(ctx context.Context, sessionID uuid.UUID, req *models.EvaluateRequest) (*models.InterviewSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var missing []int
	for _, turn := range session.Turns {
		if strings.TrimSpace(turn.Answer) == "" {
			missing = append(missing, turn.Order)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingAnswersError{Orders: missing}
	}

	items := make([]engine.EvaluateItem, len(session.Turns))
	for i, turn := range session.Turns {
		items[i] = engine.EvaluateItem{
			Order:    turn.Order,
			Question: turn.Question,
			Answer:   turn.Answer,
		}
	}

	includeSummary := true
	if req.IncludeSummary != nil {
		includeSummary = *req.IncludeSummary
	}
	evalContext := map[string]interface{}(req.Context)
	if evalContext == nil {
		evalContext = map[string]interface{}{}
	}

	resp, err := s.engine.EvaluateInterview(ctx, &engine.EvaluateRequest{
		SessionID:      session.EngineSessionID,
		Mode:           session.Mode,
		Items:          items,
		Context:        evalContext,
		IncludeSummary: includeSummary,
	})
	if err != nil {
		return nil, err
	}

	results := make(map[int]engine.EvaluateResult, len(resp.Results))
	for _, result := range resp.Results {
		if result.Order != nil {
			results[int(*result.Order)] = result
		}
	}

	var incomplete []int
	for _, turn := range session.Turns {
		if _, ok := results[turn.Order]; !ok {
			incomplete = append(incomplete, turn.Order)
		}
	}
	if len(incomplete) > 0 {
		sort.Ints(incomplete)
		return nil, &IncompleteResultsError{Orders: incomplete}
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range session.Turns {
			turn := &session.Turns[i]
			result := results[turn.Order]

			meta := models.JSONMap(result.Meta)
			if meta == nil {
				meta = models.JSONMap{}
			}
			err := tx.Model(&models.InterviewTurn{}).
				Where("id = ?", turn.ID).
				Updates(map[string]interface{}{
					"feedback":   result.Feedback,
					"score":      result.Score,
					"meta":       meta,
					"updated_at": now,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to save turn result: %w", err)
			}
		}

		if resp.Overall != nil {
			session.OverallFeedback = resp.Overall.Feedback
			session.OverallScore = resp.Overall.Score
			meta := models.JSONMap(resp.Overall.Meta)
			if meta == nil {
				meta = models.JSONMap{}
			}
			session.OverallMeta = meta
		}
		session.Status = models.SessionStatusCompleted
		session.EndedAt = &now
		session.EvaluatedAt = &now
		if err := tx.Save(session).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SessionsEvaluated.Inc()
	s.logger.Info("Interview session evaluated", zap.String("session_id", session.ID.String()))
	return s.GetSession(ctx, sessionID)
}

// ListAllSessions returns every session, optionally filtered by status and
// level. Staff only; enforced by the API layer.
func (s *Service) ListAllSessions(ctx context.Context, status, level string) ([]models.InterviewSession, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if level != "" {
		query = query.Where("level = ?", level)
	}
	var sessions []models.InterviewSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) profilePayload(session *models.InterviewSession) engine.ProfilePayload {
	return engine.ProfilePayload{
		Role:  session.Role,
		Level: session.Level,
		Stack: session.TechStack,
		Mode:  session.Mode,
	}
}

func (s *Service) markFailed(ctx context.Context, session *models.InterviewSession) {
	session.Status = models.SessionStatusFailed
	if err := s.db.WithContext(ctx).Model(session).
		Updates(map[string]interface{}{"status": models.SessionStatusFailed, "updated_at": time.Now()}).Error; err != nil {
		s.logger.Error("Failed to mark session as failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}
}

// cleanQuestions trims questions, drops blanks and entries already present in
// seen (case-insensitive), and dedupes within the batch itself.
func cleanQuestions(questions []string, seen map[string]struct{}) []string {
	batch := make(map[string]struct{})
	cleaned := make([]string, 0, len(questions))
	for _, question := range questions {
		trimmed := strings.TrimSpace(question)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen != nil {
			if _, ok := seen[key]; ok {
				continue
			}
		}
		if _, ok := batch[key]; ok {
			continue
		}
		batch[key] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}

func newPublicToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
