package arborplansdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal ArborPlan HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Lead represents the API lead model.
type Lead struct {
	ID               string `json:"id"`
	FullName         string `json:"full_name"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	AddressLine1     string `json:"address_line1"`
	City             string `json:"city"`
	State            string `json:"state"`
	PostalCode       string `json:"postal_code"`
	ServiceRequested string `json:"service_requested"`
	Notes            string `json:"notes,omitempty"`
	UrgencyHint      string `json:"urgency_hint,omitempty"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// AgentRun represents one pipeline invocation.
type AgentRun struct {
	ID               string          `json:"id"`
	LeadID           string          `json:"lead_id"`
	Status           string          `json:"status"`
	Model            string          `json:"model,omitempty"`
	OutputPlan       json.RawMessage `json:"output_plan,omitempty"`
	ValidationErrors []string        `json:"validation_errors,omitempty"`
	DurationMs       int64           `json:"duration_ms"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

// RunOutcome is the response of a run invocation.
type RunOutcome struct {
	Run    AgentRun        `json:"agent_run"`
	Plan   json.RawMessage `json:"plan,omitempty"`
	Errors []string        `json:"errors,omitempty"`
}

// TimelineEntry is one element of a lead's merged audit view.
type TimelineEntry struct {
	Type         string          `json:"type"`
	ID           string          `json:"id"`
	CreatedAt    string          `json:"created_at"`
	ActionType   string          `json:"action_type,omitempty"`
	Status       string          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges admin credentials for a bearer token and stores it on the
// client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// CreateLead creates a lead.
func (c *Client) CreateLead(ctx context.Context, lead Lead) (Lead, error) {
	var resp Lead
	err := c.do(ctx, http.MethodPost, "leads", lead, &resp)
	return resp, err
}

// ListLeads returns all leads.
func (c *Client) ListLeads(ctx context.Context) ([]Lead, error) {
	var resp []Lead
	err := c.do(ctx, http.MethodGet, "leads", nil, &resp)
	return resp, err
}

// GetLead fetches a lead by id.
func (c *Client) GetLead(ctx context.Context, id string) (Lead, error) {
	var resp Lead
	err := c.do(ctx, http.MethodGet, "leads/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// RunPlan invokes the plan pipeline. Mode is "plan_only" or "execute";
// empty means execute.
func (c *Client) RunPlan(ctx context.Context, leadID, mode string) (RunOutcome, error) {
	endpoint := fmt.Sprintf("leads/%s/agent_runs", url.PathEscape(leadID))
	if mode != "" {
		endpoint += "?mode=" + url.QueryEscape(mode)
	}
	var resp RunOutcome
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ListRuns returns all agent runs for a lead.
func (c *Client) ListRuns(ctx context.Context, leadID string) ([]AgentRun, error) {
	var resp []AgentRun
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("leads/%s/agent_runs", url.PathEscape(leadID)), nil, &resp)
	return resp, err
}

// GetRun fetches an agent run by id.
func (c *Client) GetRun(ctx context.Context, id string) (AgentRun, error) {
	var resp AgentRun
	err := c.do(ctx, http.MethodGet, "agent_runs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Timeline returns the merged audit timeline for a lead.
func (c *Client) Timeline(ctx context.Context, leadID string) ([]TimelineEntry, error) {
	var resp []TimelineEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("leads/%s/timeline", url.PathEscape(leadID)), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/api/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
