package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/docsentinel-backend/internal/observability"
	"github.com/yungbote/docsentinel-backend/internal/pkg/envutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/httpx"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

const responsesPath = "/v1/responses"

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// Temperature is omitted from requests when nil.
	Temperature *float64
	// InitialBackoff is the first retry delay; it doubles per attempt.
	InitialBackoff time.Duration
}

// ConfigFromEnv reads OPENAI_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:         envutil.String("OPENAI_API_KEY", ""),
		BaseURL:        envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:          envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:        envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		MaxRetries:     envutil.Int("OPENAI_MAX_RETRIES", 4),
		InitialBackoff: time.Second,
	}
	if !envutil.Bool("OPENAI_DISABLE_TEMPERATURE", false) {
		t := envutil.Float("OPENAI_TEMPERATURE", 0.1)
		cfg.Temperature = &t
	}
	return cfg
}

// Client calls the Responses API and returns the assistant text.
type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client

	temperature *float64
	// Models that rejected temperature; it is omitted for them afterwards.
	noTempMu sync.RWMutex
	noTemp   map[string]bool
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	return &Client{
		log:         log.With("service", "OpenAIClient"),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.InitialBackoff,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		temperature: cfg.Temperature,
		noTemp:      map[string]bool{},
	}, nil
}

func (c *Client) Model() string { return c.model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model           string    `json:"model"`
	Input           []message `json:"input"`
	MaxOutputTokens int       `json:"max_output_tokens,omitempty"`
	Text            struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Status            string `json:"status,omitempty"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details,omitempty"`
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

func (r responsesResponse) outputText() (text string, refusal string) {
	var out strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				out.WriteString(part.Text)
			case "refusal":
				refusal = part.Refusal
			}
		}
	}
	return out.String(), refusal
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int { return e.StatusCode }

// Complete sends one system+user exchange asking for a JSON object and returns
// the assistant text verbatim. An empty reply comes back as "" with no error;
// parsing and repair are the caller's concern.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	ctx, span := observability.StartSpan(ctx, "openai.Complete", attribute.String("llm.model", c.model))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	req := responsesRequest{
		Model:           c.model,
		Input:           []message{{Role: "system", Content: system}, {Role: "user", Content: user}},
		MaxOutputTokens: maxTokens,
	}
	req.Text.Format = map[string]any{"type": "json_object"}
	if !c.modelRejectsTemperature(c.model) {
		req.Temperature = c.temperature
	}

	var resp responsesResponse
	err = c.post(ctx, &req, &resp)
	if err != nil && req.Temperature != nil && isTemperatureRejection(err) {
		c.noteTemperatureRejected(c.model)
		req.Temperature = nil
		err = c.post(ctx, &req, &resp)
	}
	if err != nil {
		return "", err
	}

	text, refusal := resp.outputText()
	if strings.TrimSpace(text) == "" {
		if refusal != "" {
			// Surface the refusal as the reply so the analyzer records it.
			return refusal, nil
		}
		reason := ""
		if resp.IncompleteDetails != nil {
			reason = resp.IncompleteDetails.Reason
		}
		c.log.Warn("OpenAI returned no output text", "model", c.model, "status", resp.Status, "reason", reason)
		span.SetAttributes(attribute.Bool("llm.empty_output", true))
		return "", nil
	}
	span.SetAttributes(attribute.Int("llm.input_tokens", resp.Usage.InputTokens), attribute.Int("llm.output_tokens", resp.Usage.OutputTokens))
	return text, nil
}

func (c *Client) post(ctx context.Context, body *responsesRequest, out *responsesResponse) error {
	backoff := c.backoff
	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, raw, err := c.doOnce(ctx, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			observability.Current().ObserveLLMRequest(body.Model, resp.StatusCode, time.Since(start), out.Usage.InputTokens, out.Usage.OutputTokens)
			return nil
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if !httpx.IsRetryableError(err) || attempt >= c.maxRetries {
			observability.Current().ObserveLLMRequest(body.Model, status, time.Since(start), 0, 0)
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.SleepContext(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *Client) modelRejectsTemperature(model string) bool {
	c.noTempMu.RLock()
	defer c.noTempMu.RUnlock()
	return c.noTemp[strings.ToLower(model)]
}

func (c *Client) noteTemperatureRejected(model string) {
	c.noTempMu.Lock()
	c.noTemp[strings.ToLower(model)] = true
	c.noTempMu.Unlock()
	c.log.Info("model rejected temperature, omitting it from now on", "model", model)
}

func isTemperatureRejection(err error) bool {
	he, ok := err.(*httpError)
	if !ok || he.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(he.Body)
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, hint := range []string{"unsupported", "not supported", "does not support", "unknown parameter", "only the default"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
