package planner_test

import (
	"testing"

	"arborplan/internal/plan"
	"arborplan/internal/planner"
)

func compliantPlan() plan.Plan {
	subID := "sub-root"
	return plan.Plan{
		ServiceCode:  "stump_grinding",
		UrgencyLevel: "medium",
		Quote: plan.Quote{
			LineItems: []plan.LineItem{{
				Description:    "Stump grinding",
				Quantity:       1,
				UnitPriceCents: 65000,
				TotalCents:     65000,
			}},
			TotalCents: 65000,
		},
		Schedule:        plan.Schedule{Date: "2026-09-01", WindowStart: "12:00", WindowEnd: "16:30"},
		SubcontractorID: &subID,
		CustomerMessage: "See you soon.",
		Confidence:      0.8,
		Assumptions:     []string{"Single visit"},
	}
}

func TestGuardrailsCompliantPlanUntouched(t *testing.T) {
	p := compliantPlan()
	got, adjustments := planner.ApplyGuardrails(p, testReference(), tuesday)
	if len(adjustments) != 0 {
		t.Fatalf("expected no adjustments, got %v", adjustments)
	}
	if got.Quote.TotalCents != p.Quote.TotalCents || got.Schedule != p.Schedule {
		t.Fatalf("plan changed: %+v", got)
	}
}

func TestGuardrailsPriceClampLow(t *testing.T) {
	p := compliantPlan()
	p.Quote.LineItems[0].UnitPriceCents = 500
	p.Quote.LineItems[0].TotalCents = 500
	p.Quote.TotalCents = 500
	got, adjustments := planner.ApplyGuardrails(p, testReference(), tuesday)
	if got.Quote.TotalCents != 30000 {
		t.Fatalf("total: got %d", got.Quote.TotalCents)
	}
	if got.Quote.LineItems[0].TotalCents != 30000 {
		t.Fatalf("line item total: got %d", got.Quote.LineItems[0].TotalCents)
	}
	if len(adjustments) != 1 || adjustments[0] != "Adjusted price to 30000 cents to meet bounds." {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestGuardrailsPriceClampHigh(t *testing.T) {
	p := compliantPlan()
	p.Quote.TotalCents = 900000
	got, adjustments := planner.ApplyGuardrails(p, testReference(), tuesday)
	if got.Quote.TotalCents != 120000 {
		t.Fatalf("total: got %d", got.Quote.TotalCents)
	}
	if len(adjustments) != 1 {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestGuardrailsInputPlanNotMutated(t *testing.T) {
	p := compliantPlan()
	p.Quote.TotalCents = 500
	planner.ApplyGuardrails(p, testReference(), tuesday)
	if p.Quote.LineItems[0].TotalCents != 65000 {
		t.Fatalf("input plan mutated: %+v", p.Quote.LineItems[0])
	}
}

func TestGuardrailsIneligibleSubcontractorReassigned(t *testing.T) {
	p := compliantPlan()
	wrong := "sub-pine" // does not offer stump_grinding
	p.SubcontractorID = &wrong
	got, adjustments := planner.ApplyGuardrails(p, testReference(), tuesday)
	if got.SubcontractorID == nil || *got.SubcontractorID != "sub-root" {
		t.Fatalf("subcontractor: got %v", got.SubcontractorID)
	}
	if len(adjustments) != 1 || adjustments[0] != "Reassigned subcontractor for service coverage." {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestGuardrailsUnknownSubcontractorReassigned(t *testing.T) {
	p := compliantPlan()
	ghost := "sub-ghost"
	p.SubcontractorID = &ghost
	got, adjustments := planner.ApplyGuardrails(p, testReference(), tuesday)
	if got.SubcontractorID == nil || *got.SubcontractorID != "sub-root" {
		t.Fatalf("subcontractor: got %v", got.SubcontractorID)
	}
	if len(adjustments) != 1 {
		t.Fatalf("adjustments: %v", adjustments)
	}
}

func TestGuardrailsNoEligibleSubcontractor(t *testing.T) {
	p := compliantPlan()
	p.ServiceCode = "trimming"
	p.Quote.TotalCents = 45000
	p.Quote.LineItems[0].UnitPriceCents = 45000
	p.Quote.LineItems[0].TotalCents = 45000
	ref := testReference()
	ref.Subcontractors = nil
	got, adjustments := planner.ApplyGuardrails(p, ref, tuesday)
	if got.SubcontractorID != nil {
		t.Fatalf("expected nil subcontractor, got %v", *got.SubcontractorID)
	}
	found := false
	for _, a := range got.Assumptions {
		if a == "Subcontractor to be assigned manually." {
			found = true
		}
	}
	if !found {
		t.Fatalf("manual assignment assumption missing: %v", got.Assumptions)
	}
	wantAdjustments := map[string]bool{
		"Reassigned subcontractor for service coverage.": false,
		"No eligible subcontractor available.":           false,
	}
	for _, a := range adjustments {
		if _, ok := wantAdjustments[a]; ok {
			wantAdjustments[a] = true
		}
	}
	for msg, seen := range wantAdjustments {
		if !seen {
			t.Fatalf("missing adjustment %q in %v", msg, adjustments)
		}
	}
}

func TestGuardrailsIdempotent(t *testing.T) {
	p := compliantPlan()
	p.Quote.TotalCents = 500
	p.Quote.LineItems[0].TotalCents = 500
	p.Quote.LineItems[0].UnitPriceCents = 500
	wrong := "sub-pine"
	p.SubcontractorID = &wrong
	p.Schedule = plan.Schedule{Date: "2026-08-01", WindowStart: "06:00", WindowEnd: "07:00"}

	once, first := planner.ApplyGuardrails(p, testReference(), tuesday)
	if len(first) == 0 {
		t.Fatalf("expected adjustments on first pass")
	}
	twice, second := planner.ApplyGuardrails(once, testReference(), tuesday)
	if len(second) != 0 {
		t.Fatalf("second pass produced adjustments: %v", second)
	}
	if twice.Quote.TotalCents != once.Quote.TotalCents || twice.Schedule != once.Schedule {
		t.Fatalf("second pass changed plan")
	}
}

func TestGuardrailsIdempotentWithoutSubcontractors(t *testing.T) {
	p := compliantPlan()
	ref := testReference()
	ref.Subcontractors = nil

	once, first := planner.ApplyGuardrails(p, ref, tuesday)
	if len(first) == 0 {
		t.Fatalf("expected adjustments on first pass")
	}
	_, second := planner.ApplyGuardrails(once, ref, tuesday)
	if len(second) != 0 {
		t.Fatalf("second pass produced adjustments: %v", second)
	}
}
