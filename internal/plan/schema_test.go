package plan

import (
	"encoding/json"
	"testing"
)

func validCandidate() map[string]any {
	raw := `{
		"service_code": "tree_removal",
		"urgency_level": "high",
		"quote": {
			"line_items": [
				{"description": "Removal", "quantity": 1, "unit_price_cents": 120000, "total_cents": 120000}
			],
			"total_cents": 120000
		},
		"schedule": {"date": "2026-09-01", "window_start": "09:00", "window_end": "12:00"},
		"subcontractor_id": "sub-1",
		"customer_message": "See you soon.",
		"confidence": 0.8,
		"assumptions": ["Single visit"]
	}`
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		panic(err)
	}
	return m
}

func TestValidateAcceptsValidPlan(t *testing.T) {
	if errs := Validate(validCandidate()); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestValidateNullSubcontractorAllowed(t *testing.T) {
	c := validCandidate()
	c["subcontractor_id"] = nil
	if errs := Validate(c); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestValidateMissingKeysInOrder(t *testing.T) {
	c := validCandidate()
	delete(c, "service_code")
	delete(c, "confidence")
	errs := Validate(c)
	if len(errs) != 2 {
		t.Fatalf("expected 2 violations, got %v", errs)
	}
	if errs[0] != "service_code: required key missing" {
		t.Fatalf("unexpected first violation: %q", errs[0])
	}
	if errs[1] != "confidence: required key missing" {
		t.Fatalf("unexpected second violation: %q", errs[1])
	}
}

func TestValidateAdditionalProperty(t *testing.T) {
	c := validCandidate()
	c["extra"] = true
	errs := Validate(c)
	if len(errs) != 1 || errs[0] != "extra: additional property not allowed" {
		t.Fatalf("unexpected violations: %v", errs)
	}
}

func TestValidateUrgencyEnum(t *testing.T) {
	c := validCandidate()
	c["urgency_level"] = "tomorrow"
	errs := Validate(c)
	if len(errs) != 1 || errs[0] != `urgency_level: "tomorrow" is not one of low, medium, high` {
		t.Fatalf("unexpected violations: %v", errs)
	}
}

func TestValidateEmptyLineItems(t *testing.T) {
	c := validCandidate()
	c["quote"].(map[string]any)["line_items"] = []any{}
	errs := Validate(c)
	if len(errs) != 1 || errs[0] != "quote.line_items: must contain at least one item" {
		t.Fatalf("unexpected violations: %v", errs)
	}
}

func TestValidateLineItemShape(t *testing.T) {
	c := validCandidate()
	item := c["quote"].(map[string]any)["line_items"].([]any)[0].(map[string]any)
	delete(item, "quantity")
	item["surcharge"] = 5
	errs := Validate(c)
	want := []string{
		"quote.line_items[0].quantity: required key missing",
		"quote.line_items[0].surcharge: additional property not allowed",
	}
	if len(errs) != len(want) {
		t.Fatalf("expected %d violations, got %v", len(want), errs)
	}
	for i := range want {
		if errs[i] != want[i] {
			t.Fatalf("violation %d: got %q want %q", i, errs[i], want[i])
		}
	}
}

func TestValidateIntegerCents(t *testing.T) {
	c := validCandidate()
	c["quote"].(map[string]any)["total_cents"] = 120000.5
	errs := Validate(c)
	if len(errs) != 1 || errs[0] != "quote.total_cents: expected integer" {
		t.Fatalf("unexpected violations: %v", errs)
	}
}

func TestValidateIntegralFloatAccepted(t *testing.T) {
	c := validCandidate()
	c["quote"].(map[string]any)["total_cents"] = float64(120000)
	if errs := Validate(c); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestValidateNilCandidate(t *testing.T) {
	errs := Validate(nil)
	if len(errs) != 1 || errs[0] != "plan: expected object" {
		t.Fatalf("unexpected violations: %v", errs)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	p, err := Decode(validCandidate())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ServiceCode != "tree_removal" || p.Quote.TotalCents != 120000 {
		t.Fatalf("unexpected plan: %+v", p)
	}
	if p.SubcontractorID == nil || *p.SubcontractorID != "sub-1" {
		t.Fatalf("unexpected subcontractor: %v", p.SubcontractorID)
	}
	if errs := Validate(p.AsMap()); len(errs) != 0 {
		t.Fatalf("round-tripped plan invalid: %v", errs)
	}
}
