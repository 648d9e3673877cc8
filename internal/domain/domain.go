package domain

import "encoding/json"

type Lead struct {
	ID               string     `json:"id"`
	FullName         string     `json:"full_name"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	AddressLine1     string     `json:"address_line1"`
	AddressLine2     string     `json:"address_line2,omitempty"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	PostalCode       string     `json:"postal_code"`
	ServiceRequested string     `json:"service_requested"`
	Notes            string     `json:"notes,omitempty"`
	UrgencyHint      string     `json:"urgency_hint,omitempty"`
	Status           LeadStatus `json:"status" enum:"new,planned,executed,failed"`
	CreatedAt        string     `json:"created_at" format:"date-time"`
	UpdatedAt        string     `json:"updated_at" format:"date-time"`
}

// AgentRun is one invocation of the plan pipeline for a lead. Terminal runs
// (succeeded, failed) are never mutated again.
type AgentRun struct {
	ID               string          `json:"id"`
	LeadID           string          `json:"lead_id"`
	Status           RunStatus       `json:"status" enum:"started,validating,validated,executing,succeeded,failed"`
	Model            string          `json:"model,omitempty"`
	InputContext     json.RawMessage `json:"input_context,omitempty"`
	OutputPlan       json.RawMessage `json:"output_plan,omitempty"`
	ValidationErrors []string        `json:"validation_errors,omitempty"`
	DurationMs       int64           `json:"duration_ms"`
	CreatedAt        string          `json:"created_at" format:"date-time"`
	UpdatedAt        string          `json:"updated_at" format:"date-time"`
}

type Quote struct {
	ID            string          `json:"id"`
	LeadID        string          `json:"lead_id"`
	AgentRunID    string          `json:"agent_run_id"`
	SubtotalCents int             `json:"subtotal_cents"`
	TotalCents    int             `json:"total_cents"`
	Confidence    float64         `json:"confidence"`
	LineItems     []QuoteLineItem `json:"line_items,omitempty"`
	CreatedAt     string          `json:"created_at" format:"date-time"`
}

type QuoteLineItem struct {
	ID             string `json:"id"`
	QuoteID        string `json:"quote_id"`
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
	TotalCents     int    `json:"total_cents"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

type Job struct {
	ID            string    `json:"id"`
	LeadID        string    `json:"lead_id"`
	QuoteID       string    `json:"quote_id"`
	ScheduledDate string    `json:"scheduled_date"`
	WindowStart   string    `json:"scheduled_window_start"`
	WindowEnd     string    `json:"scheduled_window_end"`
	Status        JobStatus `json:"status" enum:"scheduled,dispatched,completed,canceled"`
	CreatedAt     string    `json:"created_at" format:"date-time"`
	UpdatedAt     string    `json:"updated_at" format:"date-time"`
}

type Assignment struct {
	ID              string           `json:"id"`
	JobID           string           `json:"job_id"`
	SubcontractorID string           `json:"subcontractor_id"`
	Status          AssignmentStatus `json:"status" enum:"assigned,confirmed,declined"`
	CreatedAt       string           `json:"created_at" format:"date-time"`
	UpdatedAt       string           `json:"updated_at" format:"date-time"`
}

type Notification struct {
	ID        string             `json:"id"`
	LeadID    string             `json:"lead_id"`
	JobID     *string            `json:"job_id,omitempty"`
	Channel   string             `json:"channel" enum:"email,sms"`
	To        string             `json:"to"`
	Subject   string             `json:"subject,omitempty"`
	Body      string             `json:"body"`
	Status    NotificationStatus `json:"status" enum:"queued,sent,failed,stubbed"`
	CreatedAt string             `json:"created_at" format:"date-time"`
}

// ActionLog is an append-only audit entry for one pipeline step. The core
// never mutates or deletes entries.
type ActionLog struct {
	ID           string          `json:"id"`
	LeadID       string          `json:"lead_id"`
	AgentRunID   *string         `json:"agent_run_id,omitempty"`
	ActionType   string          `json:"action_type"`
	Status       string          `json:"status" enum:"ok,error"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    string          `json:"created_at" format:"date-time"`
}

type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// PricingRule bounds quote totals for a service, in integer cents. Reference
// data, read-only to the pipeline.
type PricingRule struct {
	ID             string `json:"id"`
	ServiceCode    string `json:"service_code"`
	MinPriceCents  int    `json:"min_price_cents"`
	MaxPriceCents  int    `json:"max_price_cents"`
	BasePriceCents int    `json:"base_price_cents"`
	Notes          string `json:"notes,omitempty"`
}

type Subcontractor struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Phone          string               `json:"phone"`
	Email          string               `json:"email,omitempty"`
	ServiceCodes   []string             `json:"service_codes"`
	BaseCity       string               `json:"base_city,omitempty"`
	BaseState      string               `json:"base_state,omitempty"`
	IsActive       bool                 `json:"is_active"`
	Availabilities []AvailabilityWindow `json:"availabilities,omitempty"`
	CreatedAt      string               `json:"created_at" format:"date-time"`
}

// AvailabilityWindow is a recurring weekly slot. DayOfWeek uses 0=Sunday
// through 6=Saturday; times are HH:MM strings.
type AvailabilityWindow struct {
	ID              string `json:"id"`
	SubcontractorID string `json:"subcontractor_id"`
	DayOfWeek       int    `json:"day_of_week"`
	WindowStart     string `json:"window_start"`
	WindowEnd       string `json:"window_end"`
}

type AdminUser struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	PasswordDigest string `json:"-"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

// TimelineEntry is one element of a lead's merged audit view: either an
// action_log or an agent_run, tagged by Type.
type TimelineEntry struct {
	Type             string          `json:"type" enum:"action_log,agent_run"`
	ID               string          `json:"id"`
	CreatedAt        string          `json:"created_at" format:"date-time"`
	ActionType       string          `json:"action_type,omitempty"`
	Status           string          `json:"status"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Model            string          `json:"model,omitempty"`
	ValidationErrors []string        `json:"validation_errors,omitempty"`
	DurationMs       *int64          `json:"duration_ms,omitempty"`
}
