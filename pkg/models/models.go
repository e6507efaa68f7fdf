package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Seniority levels accepted for users and interview sessions.
const (
	LevelJuniorI  = "JUNIOR_I"
	LevelJuniorII = "JUNIOR_II"
	LevelMid      = "MID"
	LevelUpperMid = "UPPER_MID"
	LevelSenior   = "SENIOR"
)

// Interview session statuses.
const (
	SessionStatusCreated    = "CREATED"
	SessionStatusInProgress = "IN_PROGRESS"
	SessionStatusCompleted  = "COMPLETED"
	SessionStatusFailed     = "FAILED"
)

// StringList is a JSON-encoded list of strings stored in a single column.
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// JSONMap is a JSON object stored in a single column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		m = JSONMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
}

// User represents a registered account. Email is the login identifier and is
// stored trimmed and lowercased. Username is optional and unique only when
// present (empty usernames are stored as NULL).
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Email        string     `json:"email" gorm:"uniqueIndex"`
	Username     *string    `json:"username" gorm:"uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"column:password_hash"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         string     `json:"role"`
	Level        string     `json:"level"`
	TechStack    StringList `json:"tech_stack" gorm:"type:text"`
	IsStaff      bool       `json:"-"`
	IsSuperuser  bool       `json:"-"`
	IsActive     bool       `json:"-" gorm:"default:true"`
	LastLogin    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"-"`
	UpdatedAt    time.Time  `json:"-"`
}

// TableName overrides the table name used by GORM
func (User) TableName() string { return "users" }

// Profile is the serialized shape of a user as exposed on /api/me/.
type Profile struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Username  *string    `json:"username"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      string     `json:"role"`
	Level     string     `json:"level"`
	TechStack StringList `json:"tech_stack"`
}

// Profile returns the public serialization of the user.
func (u *User) Profile() Profile {
	stack := u.TechStack
	if stack == nil {
		stack = StringList{}
	}
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Level:     u.Level,
		TechStack: stack,
	}
}

// InterviewSession represents one interview run. UserID is NULL for guest
// sessions, which are instead addressed with the public token.
type InterviewSession struct {
	ID              uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID          *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Role            string     `json:"role"`
	Level           string     `json:"level"`
	TechStack       StringList `json:"tech_stack" gorm:"type:text"`
	Mode            string     `json:"mode"`
	Status          string     `json:"status"`
	EngineSessionID string     `json:"-" gorm:"column:engine_session_id"`
	PublicToken     string     `json:"-" gorm:"uniqueIndex"`
	OverallFeedback string     `json:"overall_feedback"`
	OverallScore    *float64   `json:"overall_score"`
	OverallMeta     JSONMap    `json:"overall_meta" gorm:"type:text"`
	StartedAt       *time.Time `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	EvaluatedAt     *time.Time `json:"evaluated_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Turns []InterviewTurn `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name used by GORM
func (InterviewSession) TableName() string { return "interview_sessions" }

// InterviewTurn is a single question slot in a session. Order is 1-based and
// unique per session; numbering is append-only, so deleting a turn leaves a gap.
type InterviewTurn struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID  uuid.UUID  `json:"-" gorm:"type:uuid;uniqueIndex:idx_session_order"`
	Order      int        `json:"order" gorm:"column:turn_order;uniqueIndex:idx_session_order"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	AnsweredAt *time.Time `json:"answered_at"`
	Feedback   string     `json:"feedback"`
	Score      *float64   `json:"score"`
	Meta       JSONMap    `json:"meta" gorm:"type:text"`
	CreatedAt  time.Time  `json:"-"`
	UpdatedAt  time.Time  `json:"-"`
}

// TableName overrides the table name used by GORM
func (InterviewTurn) TableName() string { return "interview_turns" }

// RegisterRequest is the payload for POST /api/register/
type RegisterRequest struct {
	Email     string   `json:"email" binding:"required,email"`
	Password  string   `json:"password" binding:"required,min=8"`
	Username  string   `json:"username"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Role      string   `json:"role"`
	Level     string   `json:"level" binding:"omitempty,interview_level"`
	TechStack []string `json:"tech_stack"`
}

// TokenRequest is the payload for POST /api/token/
type TokenRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenPair is the response of POST /api/token/
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenRefreshRequest is the payload for POST /api/token/refresh/
type TokenRefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// MeUpdateRequest is the payload for PUT/PATCH /api/me/. Pointer fields
// distinguish absent keys from explicit empties so PATCH can be partial.
type MeUpdateRequest struct {
	Username  *string   `json:"username"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Role      *string   `json:"role"`
	Level     *string   `json:"level" binding:"omitempty,interview_level"`
	TechStack *[]string `json:"tech_stack"`
}

// SessionCreateRequest is the payload for POST /api/interviews/
type SessionCreateRequest struct {
	Role      string   `json:"role"`
	Level     string   `json:"level" binding:"omitempty,interview_level"`
	TechStack []string `json:"tech_stack"`
	Mode      string   `json:"mode"`
	Count     int      `json:"count" binding:"omitempty,min=1"`
}

// GenerateRequest is the payload for POST /api/interviews/:id/generate/
type GenerateRequest struct {
	Count int `json:"count" binding:"required,min=1"`
}

// AnswerRequest is the payload for PATCH /api/interviews/:id/questions/:order/
type AnswerRequest struct {
	Answer *string `json:"answer" binding:"required"`
}

// EvaluateRequest is the payload for POST /api/interviews/:id/evaluate/
type EvaluateRequest struct {
	Context        JSONMap `json:"context"`
	IncludeSummary *bool   `json:"include_summary"`
}

// SessionSummary is the list serialization of a session (no turns).
type SessionSummary struct {
	ID           uuid.UUID  `json:"id"`
	Role         string     `json:"role"`
	Level        string     `json:"level"`
	Mode         string     `json:"mode"`
	Status       string     `json:"status"`
	OverallScore *float64   `json:"overall_score"`
	StartedAt    *time.Time `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Summary returns the list serialization of the session.
func (s *InterviewSession) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Role:         s.Role,
		Level:        s.Level,
		Mode:         s.Mode,
		Status:       s.Status,
		OverallScore: s.OverallScore,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		CreatedAt:    s.CreatedAt,
	}
}

// SessionDetail is the full serialization of a session with its turns.
// PublicToken is only populated when a guest session is first created.
type SessionDetail struct {
	ID              uuid.UUID       `json:"id"`
	UserID          *uuid.UUID      `json:"user_id"`
	Role            string          `json:"role"`
	Level           string          `json:"level"`
	TechStack       StringList      `json:"tech_stack"`
	Mode            string          `json:"mode"`
	Status          string          `json:"status"`
	OverallFeedback string          `json:"overall_feedback"`
	OverallScore    *float64        `json:"overall_score"`
	OverallMeta     JSONMap         `json:"overall_meta"`
	StartedAt       *time.Time      `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at"`
	EvaluatedAt     *time.Time      `json:"evaluated_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Questions       []InterviewTurn `json:"questions"`
	PublicToken     string          `json:"public_token,omitempty"`
}

// Detail returns the full serialization of the session. Turns must already be
// loaded and sorted by order.
func (s *InterviewSession) Detail() SessionDetail {
	stack := s.TechStack
	if stack == nil {
		stack = StringList{}
	}
	meta := s.OverallMeta
	if meta == nil {
		meta = JSONMap{}
	}
	questions := s.Turns
	if questions == nil {
		questions = []InterviewTurn{}
	}
	return SessionDetail{
		ID:              s.ID,
		UserID:          s.UserID,
		Role:            s.Role,
		Level:           s.Level,
		TechStack:       stack,
		Mode:            s.Mode,
		Status:          s.Status,
		OverallFeedback: s.OverallFeedback,
		OverallScore:    s.OverallScore,
		OverallMeta:     meta,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		EvaluatedAt:     s.EvaluatedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		Questions:       questions,
	}
}
