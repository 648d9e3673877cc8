package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"arborplan/internal/domain"
	"arborplan/internal/plan"
)

// BuildInputPayload assembles everything the completion service needs: lead
// fields, the service catalog, pricing rules, subcontractors with their
// availability, and the business constraints the plan must honor.
func BuildInputPayload(lead domain.Lead, ref Reference, timezone string) map[string]any {
	services := make([]map[string]any, 0, len(ref.Services))
	for _, s := range ref.Services {
		services = append(services, map[string]any{"code": s.Code, "name": s.Name})
	}

	rules := make([]map[string]any, 0, len(ref.PricingRules))
	for _, r := range ref.PricingRules {
		rules = append(rules, map[string]any{
			"service_code":     r.ServiceCode,
			"min_price_cents":  r.MinPriceCents,
			"max_price_cents":  r.MaxPriceCents,
			"base_price_cents": r.BasePriceCents,
		})
	}

	subs := make([]map[string]any, 0, len(ref.Subcontractors))
	for _, sub := range ref.Subcontractors {
		slots := make([]map[string]any, 0, len(sub.Availabilities))
		for _, w := range sub.Availabilities {
			slots = append(slots, map[string]any{
				"day_of_week":  w.DayOfWeek,
				"window_start": w.WindowStart,
				"window_end":   w.WindowEnd,
			})
		}
		subs = append(subs, map[string]any{
			"id":            sub.ID,
			"name":          sub.Name,
			"service_codes": sub.ServiceCodes,
			"is_active":     sub.IsActive,
			"availability":  slots,
		})
	}

	return map[string]any{
		"lead": map[string]any{
			"full_name":         lead.FullName,
			"email":             lead.Email,
			"phone":             lead.Phone,
			"address":           strings.TrimSpace(fmt.Sprintf("%s %s, %s, %s %s", lead.AddressLine1, lead.AddressLine2, lead.City, lead.State, lead.PostalCode)),
			"service_requested": lead.ServiceRequested,
			"notes":             lead.Notes,
			"urgency_hint":      lead.UrgencyHint,
		},
		"allowed_services": services,
		"pricing_rules":    rules,
		"subcontractors":   subs,
		"constraints": map[string]any{
			"schedule":      "Schedule date must be the next business day or later.",
			"pricing":       "Quote total must be within the pricing rule min/max for the selected service.",
			"subcontractor": "Subcontractor must offer the selected service, or be null.",
			"timezone":      timezone,
		},
	}
}

func generateSystemPrompt(timezone string) string {
	return fmt.Sprintf(`You are a planning engine. Output ONLY valid JSON with no markdown or explanation.
The JSON MUST match the exact schema and required keys. Never include additional properties.
Use types exactly as specified. Use ISO8601 dates (YYYY-MM-DD) and time strings (HH:MM) in %s time.
Confidence must be a realistic probability derived from the input (do not use fixed placeholders).
schema_version=%s`, timezone, plan.SchemaVersion)
}

func generateUserPrompt(payload, schemaRef map[string]any) string {
	return fmt.Sprintf(`Create a plan for the lead using the input payload. Follow these rules:
- Choose service_code from allowed_services codes.
- urgency_level must be one of: low, medium, high.
- quote must include line_items and total_cents.
- schedule date/window required.
- subcontractor_id can be null.
- customer_message required.
- confidence required (0.0 to 1.0).
- assumptions must be an array of strings.
- Ensure the quote total is within pricing_rules min/max for the selected service.
- If no subcontractor is eligible, set subcontractor_id to null.
- Confidence must be based on data quality and constraints (avoid fixed values like 0.72).

Input payload:
%s

Schema reference:
%s`, prettyJSON(payload), prettyJSON(schemaRef))
}

func repairSystemPrompt(timezone string) string {
	return fmt.Sprintf(`You are a JSON repair engine. Output ONLY valid JSON with no markdown or explanation.
The JSON MUST match the exact schema and required keys. Never include additional properties.
Use types exactly as specified. Use ISO8601 dates (YYYY-MM-DD) and time strings (HH:MM) in %s time.`, timezone)
}

func repairUserPrompt(invalidRaw string, validationErrors []string, payload, schemaRef map[string]any) string {
	return fmt.Sprintf(`Fix the JSON to satisfy the schema. Use the validation errors to correct issues.
Return ONLY corrected JSON.

Validation errors:
%s

Invalid JSON:
%s

Input payload:
%s

Schema reference:
%s`, strings.Join(validationErrors, "\n"), invalidRaw, prettyJSON(payload), prettyJSON(schemaRef))
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
