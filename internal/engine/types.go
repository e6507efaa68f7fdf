package engine

// ProfilePayload is the candidate profile snapshot sent with generate calls.
type ProfilePayload struct {
	Role  string   `json:"role"`
	Level string   `json:"level"`
	Stack []string `json:"stack"`
	Mode  string   `json:"mode"`
}

// GenerateRequest is the body of a question-generation call. SessionID is nil
// on the first call for a session; the engine assigns one and returns it.
type GenerateRequest struct {
	SessionID         *string        `json:"fastapi_session_id"`
	Profile           ProfilePayload `json:"profile"`
	Count             int            `json:"count"`
	ExistingQuestions []string       `json:"existing_questions"`
}

// GenerateResponse is the engine's answer to a generate call.
type GenerateResponse struct {
	SessionID string   `json:"fastapi_session_id"`
	Questions []string `json:"questions"`
}

// EvaluateItem is one question/answer pair submitted for evaluation.
type EvaluateItem struct {
	Order    int    `json:"order"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// EvaluateRequest is the body of an evaluation call.
type EvaluateRequest struct {
	SessionID      string                 `json:"fastapi_session_id"`
	Mode           string                 `json:"mode"`
	Items          []EvaluateItem         `json:"items"`
	Context        map[string]interface{} `json:"context"`
	IncludeSummary bool                   `json:"include_summary"`
}

// EvaluateResult carries the evaluation of a single question. Order is a
// pointer because the engine contract does not guarantee it on every entry,
// and a float because the engine may serialize it as one (e.g. 1.0).
type EvaluateResult struct {
	Order    *float64               `json:"order,omitempty"`
	Feedback string                 `json:"feedback"`
	Score    *float64               `json:"score"`
	Meta     map[string]interface{} `json:"meta"`
}

// EvaluateResponse is the engine's answer to an evaluation call. Overall is
// present only when a summary was requested.
type EvaluateResponse struct {
	Results []EvaluateResult `json:"results"`
	Overall *EvaluateResult  `json:"overall,omitempty"`
}
