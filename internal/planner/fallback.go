package planner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"arborplan/internal/domain"
	"arborplan/internal/plan"
)

// FallbackModel identifies plans built by the deterministic heuristics
// instead of the external completion service.
const FallbackModel = "heuristic-fallback-v1"

const defaultBasePriceCents = 50000

// BuildFallback produces a plan from fixed heuristics with no external
// dependency. It always satisfies the plan schema.
func BuildFallback(lead domain.Lead, ref Reference, today time.Time) plan.Plan {
	serviceCode := InferServiceCode(lead.ServiceRequested)
	sub := ref.SelectSubcontractor(serviceCode)

	schedule, _ := EnforceSchedule(DefaultSchedule(today), sub, today)

	basePrice := defaultBasePriceCents
	if rule, ok := ref.PricingRule(serviceCode); ok {
		basePrice = rule.BasePriceCents
	}

	var subID *string
	if sub != nil {
		id := sub.ID
		subID = &id
	}

	return plan.Plan{
		ServiceCode:  serviceCode,
		UrgencyLevel: InferUrgencyLevel(lead.UrgencyHint),
		Quote: plan.Quote{
			LineItems: []plan.LineItem{{
				Description:    "Service: " + strings.ReplaceAll(serviceCode, "_", " "),
				Quantity:       1,
				UnitPriceCents: basePrice,
				TotalCents:     basePrice,
			}},
			TotalCents: basePrice,
		},
		Schedule:        schedule,
		SubcontractorID: subID,
		CustomerMessage: customerMessage(schedule),
		Confidence:      fallbackConfidence(lead, ref, serviceCode, sub != nil),
		Assumptions:     []string{"Single service visit", "No access restrictions noted"},
	}
}

// InferServiceCode maps the free-text service request to a service code.
func InferServiceCode(serviceRequested string) string {
	request := strings.ToLower(serviceRequested)
	switch {
	case strings.Contains(request, "stump"):
		return "stump_grinding"
	case strings.Contains(request, "trim"):
		return "trimming"
	default:
		return "tree_removal"
	}
}

// InferUrgencyLevel maps the free-text urgency hint to an urgency level.
func InferUrgencyLevel(urgencyHint string) string {
	hint := strings.ToLower(urgencyHint)
	switch {
	case strings.Contains(hint, "asap"), strings.Contains(hint, "urgent"):
		return "high"
	case strings.Contains(hint, "week"):
		return "medium"
	default:
		return "low"
	}
}

// fallbackConfidence scores the heuristic plan from signal quality instead of
// a fixed placeholder. Starts at 0.5, +0.1 per signal, clamped to
// [0.3, 0.9], rounded to 2 decimals.
func fallbackConfidence(lead domain.Lead, ref Reference, serviceCode string, subFound bool) float64 {
	score := 0.5
	if ref.HasService(serviceCode) {
		score += 0.1
	}
	if subFound {
		score += 0.1
	}
	if strings.TrimSpace(lead.UrgencyHint) == "" {
		score += 0.1
	}
	if len(strings.TrimSpace(lead.ServiceRequested)) >= 8 {
		score += 0.1
	}
	score = math.Min(0.9, math.Max(0.3, score))
	return math.Round(score*100) / 100
}

func customerMessage(s plan.Schedule) string {
	return fmt.Sprintf("Thanks for reaching out. We can schedule you on %s between %s and %s.", s.Date, s.WindowStart, s.WindowEnd)
}
