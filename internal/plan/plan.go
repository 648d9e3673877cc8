// Package plan defines the structured service plan exchanged between the
// generator, validator, guardrails, and execution pipeline, plus the schema
// it must satisfy on the wire.
package plan

import (
	"encoding/json"
	"fmt"
)

// Plan is the structured proposal produced per run. Stages treat it as an
// immutable value: each stage returns a new Plan rather than mutating in
// place.
type Plan struct {
	ServiceCode     string   `json:"service_code"`
	UrgencyLevel    string   `json:"urgency_level"`
	Quote           Quote    `json:"quote"`
	Schedule        Schedule `json:"schedule"`
	SubcontractorID *string  `json:"subcontractor_id"`
	CustomerMessage string   `json:"customer_message"`
	Confidence      float64  `json:"confidence"`
	Assumptions     []string `json:"assumptions"`
}

type Quote struct {
	LineItems  []LineItem `json:"line_items"`
	TotalCents int        `json:"total_cents"`
}

type LineItem struct {
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
	TotalCents     int    `json:"total_cents"`
}

type Schedule struct {
	Date        string `json:"date"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}

// Decode converts a schema-valid candidate into a Plan value. Callers must
// run Validate first; Decode only fails on marshalling defects.
func Decode(candidate map[string]any) (Plan, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return Plan{}, fmt.Errorf("encode candidate: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("decode candidate: %w", err)
	}
	return p, nil
}

// AsMap round-trips the plan into the untyped wire shape.
func (p Plan) AsMap() map[string]any {
	data, _ := json.Marshal(p)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return m
}

// CloneLineItems returns a copy of the quote's line items so a stage can
// rewrite prices without aliasing the input plan.
func (q Quote) CloneLineItems() []LineItem {
	items := make([]LineItem, len(q.LineItems))
	copy(items, q.LineItems)
	return items
}
