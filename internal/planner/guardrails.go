package planner

import (
	"fmt"
	"time"

	"arborplan/internal/domain"
	"arborplan/internal/plan"
)

// ApplyGuardrails reconciles a schema-valid plan against price bounds,
// subcontractor eligibility, and schedule availability. It returns a
// corrected plan plus one human-readable adjustment per rule actually
// violated; applying it twice to a compliant plan yields no adjustments.
func ApplyGuardrails(p plan.Plan, ref Reference, today time.Time) (plan.Plan, []string) {
	var adjustments []string

	// Price bounds.
	if rule, ok := ref.PricingRule(p.ServiceCode); ok {
		total := p.Quote.TotalCents
		bounded := min(max(total, rule.MinPriceCents), rule.MaxPriceCents)
		if bounded != total {
			items := p.Quote.CloneLineItems()
			for i := range items {
				items[i].UnitPriceCents = bounded
				items[i].TotalCents = bounded
			}
			p.Quote = plan.Quote{LineItems: items, TotalCents: bounded}
			adjustments = append(adjustments, fmt.Sprintf("Adjusted price to %d cents to meet bounds.", bounded))
		}
	}

	// Subcontractor eligibility.
	eligible := false
	if p.SubcontractorID != nil {
		if sub, ok := ref.Subcontractor(*p.SubcontractorID); ok && offersService(sub, p.ServiceCode) {
			eligible = true
		}
	}
	if !eligible {
		replacement := ref.SelectSubcontractor(p.ServiceCode)
		if replacement != nil {
			id := replacement.ID
			if p.SubcontractorID == nil || *p.SubcontractorID != id {
				p.SubcontractorID = &id
				adjustments = append(adjustments, "Reassigned subcontractor for service coverage.")
			}
		} else {
			if p.SubcontractorID != nil {
				p.SubcontractorID = nil
				adjustments = append(adjustments, "Reassigned subcontractor for service coverage.")
			}
			if !hasAssumption(p.Assumptions, manualAssignmentNote) {
				adjustments = append(adjustments, "No eligible subcontractor available.")
				p.Assumptions = appendAssumption(p.Assumptions, manualAssignmentNote)
			}
		}
	}

	// Schedule enforcement.
	var schedSub *domain.Subcontractor
	if p.SubcontractorID != nil {
		if sub, ok := ref.Subcontractor(*p.SubcontractorID); ok {
			schedSub = &sub
		}
	}
	schedule, schedAdjustments := EnforceSchedule(p.Schedule, schedSub, today)
	p.Schedule = schedule
	adjustments = append(adjustments, schedAdjustments...)

	return p, adjustments
}

const manualAssignmentNote = "Subcontractor to be assigned manually."

func hasAssumption(assumptions []string, note string) bool {
	for _, a := range assumptions {
		if a == note {
			return true
		}
	}
	return false
}

func appendAssumption(assumptions []string, note string) []string {
	out := make([]string, len(assumptions), len(assumptions)+1)
	copy(out, assumptions)
	return append(out, note)
}
