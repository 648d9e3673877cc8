package planner_test

import (
	"testing"
	"time"

	"arborplan/internal/domain"
	"arborplan/internal/plan"
	"arborplan/internal/planner"
)

// tuesday is a fixed weekday anchor for schedule assertions.
var tuesday = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func testReference() planner.Reference {
	return planner.Reference{
		Services: []domain.Service{
			{ID: "svc-1", Name: "Removal", Code: "tree_removal"},
			{ID: "svc-2", Name: "Trimming", Code: "trimming"},
			{ID: "svc-3", Name: "Stump Grinding", Code: "stump_grinding"},
		},
		PricingRules: []domain.PricingRule{
			{ID: "pr-1", ServiceCode: "tree_removal", MinPriceCents: 50000, MaxPriceCents: 250000, BasePriceCents: 120000},
			{ID: "pr-2", ServiceCode: "trimming", MinPriceCents: 20000, MaxPriceCents: 90000, BasePriceCents: 45000},
			{ID: "pr-3", ServiceCode: "stump_grinding", MinPriceCents: 30000, MaxPriceCents: 120000, BasePriceCents: 65000},
		},
		Subcontractors: []domain.Subcontractor{
			{
				ID: "sub-pine", Name: "Pine Ridge Tree Co", IsActive: true,
				ServiceCodes: []string{"tree_removal", "trimming"},
				Availabilities: []domain.AvailabilityWindow{
					{DayOfWeek: 1, WindowStart: "08:00", WindowEnd: "11:30"},
					{DayOfWeek: 3, WindowStart: "12:30", WindowEnd: "16:30"},
					{DayOfWeek: 5, WindowStart: "09:00", WindowEnd: "14:00"},
				},
			},
			{
				ID: "sub-root", Name: "Root & Branch Services", IsActive: true,
				ServiceCodes: []string{"tree_removal", "stump_grinding"},
				Availabilities: []domain.AvailabilityWindow{
					{DayOfWeek: 1, WindowStart: "07:30", WindowEnd: "10:30"},
					{DayOfWeek: 2, WindowStart: "12:00", WindowEnd: "16:30"},
					{DayOfWeek: 5, WindowStart: "09:30", WindowEnd: "12:30"},
				},
			},
		},
	}
}

func testLead() domain.Lead {
	return domain.Lead{
		ID:               "lead-1",
		FullName:         "Jordan Blake",
		Email:            "jordan.blake@example.com",
		AddressLine1:     "123 Maple St",
		City:             "Austin",
		State:            "TX",
		PostalCode:       "78701",
		ServiceRequested: "Large tree removal",
		UrgencyHint:      "ASAP",
	}
}

func TestInferServiceCode(t *testing.T) {
	cases := map[string]string{
		"Stump grinding":         "stump_grinding",
		"Two old stumps":         "stump_grinding",
		"Seasonal trimming":      "trimming",
		"Trim branches off roof": "trimming",
		"Large tree removal":     "tree_removal",
		"something else":         "tree_removal",
	}
	for input, want := range cases {
		if got := planner.InferServiceCode(input); got != want {
			t.Fatalf("InferServiceCode(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestInferUrgencyLevel(t *testing.T) {
	cases := map[string]string{
		"ASAP":      "high",
		"urgent":    "high",
		"this week": "medium",
		"next week": "medium",
		"soon":      "low",
		"":          "low",
	}
	for input, want := range cases {
		if got := planner.InferUrgencyLevel(input); got != want {
			t.Fatalf("InferUrgencyLevel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildFallbackAlwaysValidates(t *testing.T) {
	p := planner.BuildFallback(testLead(), testReference(), tuesday)
	if errs := plan.Validate(p.AsMap()); len(errs) != 0 {
		t.Fatalf("fallback plan invalid: %v", errs)
	}
}

func TestBuildFallbackStumpLead(t *testing.T) {
	lead := testLead()
	lead.ServiceRequested = "Stump grinding"
	lead.UrgencyHint = ""
	p := planner.BuildFallback(lead, testReference(), tuesday)
	if p.ServiceCode != "stump_grinding" {
		t.Fatalf("service code: got %q", p.ServiceCode)
	}
	if p.UrgencyLevel != "low" {
		t.Fatalf("urgency: got %q", p.UrgencyLevel)
	}
	if p.SubcontractorID == nil || *p.SubcontractorID != "sub-root" {
		t.Fatalf("subcontractor: got %v", p.SubcontractorID)
	}
	if p.Quote.TotalCents != 65000 {
		t.Fatalf("total: got %d", p.Quote.TotalCents)
	}
	// All four confidence signals present: known service, subcontractor
	// found, blank urgency hint, request text >= 8 chars.
	if p.Confidence != 0.9 {
		t.Fatalf("confidence: got %v", p.Confidence)
	}
	// sub-root is available on Tuesdays 12:00-16:30.
	if p.Schedule.Date != "2026-09-01" || p.Schedule.WindowStart != "12:00" {
		t.Fatalf("schedule: got %+v", p.Schedule)
	}
}

func TestBuildFallbackWeakSignals(t *testing.T) {
	lead := testLead()
	lead.ServiceRequested = "help"
	lead.UrgencyHint = "ASAP"
	ref := testReference()
	ref.Subcontractors = nil
	p := planner.BuildFallback(lead, ref, tuesday)
	// Only the known-service signal fires: 0.5 + 0.1.
	if p.Confidence != 0.6 {
		t.Fatalf("confidence: got %v", p.Confidence)
	}
	if p.SubcontractorID != nil {
		t.Fatalf("expected nil subcontractor, got %v", *p.SubcontractorID)
	}
	if errs := plan.Validate(p.AsMap()); len(errs) != 0 {
		t.Fatalf("fallback plan invalid: %v", errs)
	}
}

func TestBuildFallbackUnknownServiceDefaults(t *testing.T) {
	lead := testLead()
	ref := planner.Reference{}
	p := planner.BuildFallback(lead, ref, tuesday)
	if p.ServiceCode != "tree_removal" {
		t.Fatalf("service code: got %q", p.ServiceCode)
	}
	if p.Quote.TotalCents != 50000 {
		t.Fatalf("expected default base price, got %d", p.Quote.TotalCents)
	}
	// No signals beyond request length: 0.5 + 0.1 (>= 8 chars), urgency set.
	if p.Confidence != 0.6 {
		t.Fatalf("confidence: got %v", p.Confidence)
	}
}
