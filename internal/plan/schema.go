package plan

import (
	"fmt"
	"math"
	"sort"
)

// SchemaVersion tags the wire contract between generation and validation.
const SchemaVersion = "v1"

var requiredKeys = []string{
	"service_code",
	"urgency_level",
	"quote",
	"schedule",
	"subcontractor_id",
	"customer_message",
	"confidence",
	"assumptions",
}

var urgencyLevels = map[string]bool{"low": true, "medium": true, "high": true}

// Validate checks a candidate plan against the plan schema and returns an
// ordered list of violation messages. An empty list means the candidate is
// valid. Pure function, no side effects.
func Validate(candidate map[string]any) []string {
	if candidate == nil {
		return []string{"plan: expected object"}
	}
	var errs []string

	for _, key := range requiredKeys {
		if _, ok := candidate[key]; !ok {
			errs = append(errs, fmt.Sprintf("%s: required key missing", key))
		}
	}
	errs = append(errs, extraKeys(candidate, requiredKeys, "")...)

	if v, ok := candidate["service_code"]; ok {
		if _, isStr := v.(string); !isStr {
			errs = append(errs, "service_code: expected string")
		}
	}
	if v, ok := candidate["urgency_level"]; ok {
		s, isStr := v.(string)
		if !isStr {
			errs = append(errs, "urgency_level: expected string")
		} else if !urgencyLevels[s] {
			errs = append(errs, fmt.Sprintf("urgency_level: %q is not one of low, medium, high", s))
		}
	}
	if v, ok := candidate["quote"]; ok {
		errs = append(errs, validateQuote(v)...)
	}
	if v, ok := candidate["schedule"]; ok {
		errs = append(errs, validateSchedule(v)...)
	}
	if v, ok := candidate["subcontractor_id"]; ok && v != nil {
		if _, isStr := v.(string); !isStr {
			errs = append(errs, "subcontractor_id: expected string or null")
		}
	}
	if v, ok := candidate["customer_message"]; ok {
		if _, isStr := v.(string); !isStr {
			errs = append(errs, "customer_message: expected string")
		}
	}
	if v, ok := candidate["confidence"]; ok {
		if !isNumber(v) {
			errs = append(errs, "confidence: expected number")
		}
	}
	if v, ok := candidate["assumptions"]; ok {
		arr, isArr := v.([]any)
		if !isArr {
			errs = append(errs, "assumptions: expected array of strings")
		} else {
			for i, item := range arr {
				if _, isStr := item.(string); !isStr {
					errs = append(errs, fmt.Sprintf("assumptions[%d]: expected string", i))
				}
			}
		}
	}
	return errs
}

func validateQuote(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{"quote: expected object"}
	}
	var errs []string
	required := []string{"line_items", "total_cents"}
	for _, key := range required {
		if _, ok := obj[key]; !ok {
			errs = append(errs, fmt.Sprintf("quote.%s: required key missing", key))
		}
	}
	errs = append(errs, extraKeys(obj, required, "quote.")...)

	if v, ok := obj["line_items"]; ok {
		arr, isArr := v.([]any)
		switch {
		case !isArr:
			errs = append(errs, "quote.line_items: expected array")
		case len(arr) == 0:
			errs = append(errs, "quote.line_items: must contain at least one item")
		default:
			for i, item := range arr {
				errs = append(errs, validateLineItem(item, i)...)
			}
		}
	}
	if v, ok := obj["total_cents"]; ok && !isInteger(v) {
		errs = append(errs, "quote.total_cents: expected integer")
	}
	return errs
}

func validateLineItem(v any, index int) []string {
	prefix := fmt.Sprintf("quote.line_items[%d]", index)
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{prefix + ": expected object"}
	}
	var errs []string
	required := []string{"description", "quantity", "unit_price_cents", "total_cents"}
	for _, key := range required {
		if _, ok := obj[key]; !ok {
			errs = append(errs, fmt.Sprintf("%s.%s: required key missing", prefix, key))
		}
	}
	errs = append(errs, extraKeys(obj, required, prefix+".")...)

	if v, ok := obj["description"]; ok {
		if _, isStr := v.(string); !isStr {
			errs = append(errs, prefix+".description: expected string")
		}
	}
	for _, key := range []string{"quantity", "unit_price_cents", "total_cents"} {
		if v, ok := obj[key]; ok && !isInteger(v) {
			errs = append(errs, fmt.Sprintf("%s.%s: expected integer", prefix, key))
		}
	}
	return errs
}

func validateSchedule(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{"schedule: expected object"}
	}
	var errs []string
	required := []string{"date", "window_start", "window_end"}
	for _, key := range required {
		if _, ok := obj[key]; !ok {
			errs = append(errs, fmt.Sprintf("schedule.%s: required key missing", key))
		}
	}
	errs = append(errs, extraKeys(obj, required, "schedule.")...)

	for _, key := range required {
		if v, ok := obj[key]; ok {
			if _, isStr := v.(string); !isStr {
				errs = append(errs, fmt.Sprintf("schedule.%s: expected string", key))
			}
		}
	}
	return errs
}

// extraKeys reports unknown keys in sorted order so validation output is
// deterministic regardless of map iteration.
func extraKeys(obj map[string]any, allowed []string, prefix string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = true
	}
	var extras []string
	for key := range obj {
		if !allowedSet[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	var errs []string
	for _, key := range extras {
		errs = append(errs, fmt.Sprintf("%s%s: additional property not allowed", prefix, key))
	}
	return errs
}

// isInteger accepts native ints plus float64 values with no fractional part,
// which is how encoding/json surfaces JSON integers in untyped maps.
func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == math.Trunc(n)
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float64:
		return true
	}
	return false
}

// SchemaReference returns the plan JSON schema as a plain structure suitable
// for embedding in generator prompts.
func SchemaReference() map[string]any {
	intType := map[string]any{"type": "integer"}
	strType := map[string]any{"type": "string"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             requiredKeys,
		"properties": map[string]any{
			"service_code":  strType,
			"urgency_level": map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
			"quote": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"line_items", "total_cents"},
				"properties": map[string]any{
					"line_items": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items": map[string]any{
							"type":                 "object",
							"additionalProperties": false,
							"required":             []string{"description", "quantity", "unit_price_cents", "total_cents"},
							"properties": map[string]any{
								"description":      strType,
								"quantity":         intType,
								"unit_price_cents": intType,
								"total_cents":      intType,
							},
						},
					},
					"total_cents": intType,
				},
			},
			"schedule": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"date", "window_start", "window_end"},
				"properties": map[string]any{
					"date":         strType,
					"window_start": strType,
					"window_end":   strType,
				},
			},
			"subcontractor_id": map[string]any{"type": []string{"string", "null"}},
			"customer_message": strType,
			"confidence":       map[string]any{"type": "number"},
			"assumptions":      map[string]any{"type": "array", "items": strType},
		},
	}
}
