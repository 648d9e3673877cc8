package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultModel          = "gpt-4o-mini"
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 20 * time.Second

	generateTemperature = 0.3
	repairTemperature   = 0.2
)

// ErrMissingAPIKey is returned before any network call when no credential is
// configured.
var ErrMissingAPIKey = errors.New("completion API key missing")

// ClientConfig carries everything the completion client needs; nothing is
// read from ambient process state.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Timezone       string
}

// Client calls an OpenAI-compatible chat-completion endpoint to produce and
// repair structured plans. All failures are returned as errors; the caller
// decides whether to fall back.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewClient creates a completion client from the injected configuration,
// filling defaults for anything unset.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "America/New_York"
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
				TLSHandshakeTimeout: cfg.ConnectTimeout,
			},
		},
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Result is one completion outcome: the parsed candidate plan plus the raw
// model text for audit and repair.
type Result struct {
	Candidate map[string]any
	Raw       string
	Model     string
	Duration  time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat json.RawMessage `json:"response_format"`
	Messages       []chatMessage   `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate asks the completion service for a plan for the given input
// payload and schema reference.
func (c *Client) Generate(ctx context.Context, payload, schemaRef map[string]any) (Result, error) {
	messages := []chatMessage{
		{Role: "system", Content: generateSystemPrompt(c.cfg.Timezone)},
		{Role: "user", Content: generateUserPrompt(payload, schemaRef)},
	}
	return c.complete(ctx, messages, generateTemperature)
}

// Repair asks the completion service to fix a previously invalid plan given
// the validator's error list.
func (c *Client) Repair(ctx context.Context, invalidRaw string, validationErrors []string, payload, schemaRef map[string]any) (Result, error) {
	messages := []chatMessage{
		{Role: "system", Content: repairSystemPrompt(c.cfg.Timezone)},
		{Role: "user", Content: repairUserPrompt(invalidRaw, validationErrors, payload, schemaRef)},
	}
	return c.complete(ctx, messages, repairTemperature)
}

func (c *Client) complete(ctx context.Context, messages []chatMessage, temperature float64) (Result, error) {
	res := Result{Model: c.cfg.Model}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return res, ErrMissingAPIKey
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.cfg.Model,
		Temperature:    temperature,
		ResponseFormat: json.RawMessage(`{"type":"json_object"}`),
		Messages:       messages,
	})
	if err != nil {
		return res, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout+c.cfg.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return res, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	res.Duration = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("read response: %w", err)
	}

	var envelope chatResponse
	decodeErr := json.Unmarshal(respBody, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(respBody))
		if decodeErr == nil && envelope.Error != nil && envelope.Error.Message != "" {
			detail = envelope.Error.Message
		}
		return res, fmt.Errorf("completion request failed with status %d: %s", resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return res, fmt.Errorf("decode response envelope: %w", decodeErr)
	}
	if len(envelope.Choices) == 0 {
		return res, errors.New("completion response has no choices")
	}

	res.Raw = envelope.Choices[0].Message.Content
	var candidate map[string]any
	if err := json.Unmarshal([]byte(res.Raw), &candidate); err != nil {
		return res, fmt.Errorf("completion returned invalid JSON: %w", err)
	}
	res.Candidate = candidate
	return res, nil
}
