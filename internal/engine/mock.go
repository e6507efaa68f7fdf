package engine

import (
	"context"
	"fmt"
	"strings"
)

// Mock is a permanent in-process stand-in for the interview engine. It must
// always mirror the real engine's response shapes so the backend behaves
// identically with and without a live engine.
type Mock struct{}

// NewMock creates a mock engine.
func NewMock() *Mock { return &Mock{} }

// GenerateQuestions returns deterministic placeholder questions.
func (m *Mock) GenerateQuestions(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	sessionID := "mock-session-001"
	if req.SessionID != nil && *req.SessionID != "" {
		sessionID = *req.SessionID
	}

	topic := req.Profile.Role
	if topic == "" {
		topic = "software development"
	}

	offset := len(req.ExistingQuestions)
	questions := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		questions = append(questions, fmt.Sprintf("Mock question %d: Explain %s concepts.", offset+i+1, topic))
	}

	return &GenerateResponse{
		SessionID: sessionID,
		Questions: questions,
	}, nil
}

// EvaluateInterview scores each answer by length, capped to 1..10, and flags
// answers that look like code.
func (m *Mock) EvaluateInterview(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	results := make([]EvaluateResult, 0, len(req.Items))
	var total float64
	for _, item := range req.Items {
		score := float64(len(item.Answer) / 20)
		if score < 1 {
			score = 1
		}
		if score > 10 {
			score = 10
		}
		total += score

		lower := strings.ToLower(item.Answer)
		hasCode := strings.Contains(lower, "def ") || strings.Contains(lower, "class ") || strings.Contains(lower, "func ")

		order := float64(item.Order)
		s := score
		question := item.Question
		if len(question) > 50 {
			question = question[:50]
		}
		results = append(results, EvaluateResult{
			Order:    &order,
			Feedback: fmt.Sprintf("Mock feedback: Your answer about '%s...' shows understanding. Score: %d/10", question, int(score)),
			Score:    &s,
			Meta: map[string]interface{}{
				"length":   len(item.Answer),
				"has_code": hasCode,
			},
		})
	}

	resp := &EvaluateResponse{Results: results}
	if req.IncludeSummary && len(req.Items) > 0 {
		avg := total / float64(len(req.Items))
		resp.Overall = &EvaluateResult{
			Feedback: fmt.Sprintf("Mock summary: answered %d questions with an average score of %.1f/10.", len(req.Items), avg),
			Score:    &avg,
			Meta: map[string]interface{}{
				"questions": len(req.Items),
			},
		}
	}
	return resp, nil
}
