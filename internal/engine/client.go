package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/koryun2/ICAI-backend-app/internal/config"
	"github.com/koryun2/ICAI-backend-app/pkg/metrics"
)

// Engine abstracts the external interview engine so handlers and tests can
// swap in the mock implementation.
type Engine interface {
	GenerateQuestions(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	EvaluateInterview(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error)
}

// Client is the HTTP client for the real interview engine.
type Client struct {
	baseURL         string
	generatePath    string
	evaluatePath    string
	generateTimeout time.Duration
	evaluateTimeout time.Duration
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewEngine returns the mock engine when cfg.Mock is set, the HTTP client
// otherwise.
func NewEngine(cfg config.EngineConfig, logger *zap.Logger) Engine {
	if cfg.Mock {
		logger.Info("Interview engine mock mode enabled")
		return NewMock()
	}
	return NewClient(cfg, logger)
}

// NewClient creates an HTTP client for the interview engine.
func NewClient(cfg config.EngineConfig, logger *zap.Logger) *Client {
	generateTimeout := cfg.GenerateTimeout
	if generateTimeout == 0 {
		generateTimeout = 20 * time.Second
	}
	evaluateTimeout := cfg.EvaluateTimeout
	if evaluateTimeout == 0 {
		evaluateTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		generatePath:    cfg.GeneratePath,
		evaluatePath:    cfg.EvaluatePath,
		generateTimeout: generateTimeout,
		evaluateTimeout: evaluateTimeout,
		// The per-call timeout comes from the request context.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// GenerateQuestions asks the engine for interview questions.
func (c *Client) GenerateQuestions(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.post(ctx, "generate", c.generatePath, c.generateTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EvaluateInterview asks the engine to evaluate a full set of answers.
func (c *Client) EvaluateInterview(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	var resp EvaluateResponse
	if err := c.post(ctx, "evaluate", c.evaluatePath, c.evaluateTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, operation, path string, timeout time.Duration, payload, out interface{}) error {
	start := time.Now()
	err := c.doPost(ctx, path, timeout, payload, out)
	metrics.EngineCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.logger.Warn("Interview engine call failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
	metrics.EngineCallsTotal.WithLabelValues(operation, outcome).Inc()
	return err
}

func (c *Client) doPost(ctx context.Context, path string, timeout time.Duration, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode engine payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(fmt.Sprintf("Network error contacting interview engine: %v", err), http.StatusBadGateway)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(fmt.Sprintf("Network error contacting interview engine: %v", err), http.StatusBadGateway)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(raw))
		// A 400 from the engine is the caller's fault and is relayed as-is.
		if resp.StatusCode == http.StatusBadRequest {
			if text == "" {
				text = "Bad request to interview engine."
			}
			return NewError(text, http.StatusBadRequest)
		}
		return NewError(fmt.Sprintf("Interview engine error %d: %s", resp.StatusCode, text), http.StatusBadGateway)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return NewError("Invalid JSON received from interview engine.", http.StatusBadGateway)
	}
	return nil
}
