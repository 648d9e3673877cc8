// Package planner produces and corrects service plans: an external
// completion client, a deterministic fallback builder, and the guardrail
// engine that reconciles any structurally valid plan against pricing,
// eligibility, and availability constraints.
package planner

import "arborplan/internal/domain"

// Reference is a read-only snapshot of the business reference data a run
// operates against. The orchestrator loads it once per run; everything in
// this package is a pure function over it.
type Reference struct {
	Services       []domain.Service
	PricingRules   []domain.PricingRule
	Subcontractors []domain.Subcontractor
}

// PricingRule finds the rule for a service code.
func (r Reference) PricingRule(serviceCode string) (domain.PricingRule, bool) {
	for _, rule := range r.PricingRules {
		if rule.ServiceCode == serviceCode {
			return rule, true
		}
	}
	return domain.PricingRule{}, false
}

// Subcontractor finds a subcontractor by id.
func (r Reference) Subcontractor(id string) (domain.Subcontractor, bool) {
	for _, sub := range r.Subcontractors {
		if sub.ID == id {
			return sub, true
		}
	}
	return domain.Subcontractor{}, false
}

// SelectSubcontractor returns the first active subcontractor, in storage
// order, whose service-code set contains the given code. Nil if none.
func (r Reference) SelectSubcontractor(serviceCode string) *domain.Subcontractor {
	for i := range r.Subcontractors {
		sub := r.Subcontractors[i]
		if !sub.IsActive {
			continue
		}
		if offersService(sub, serviceCode) {
			return &sub
		}
	}
	return nil
}

// HasService reports whether the service code is in the reference catalog.
func (r Reference) HasService(code string) bool {
	for _, s := range r.Services {
		if s.Code == code {
			return true
		}
	}
	return false
}

func offersService(sub domain.Subcontractor, serviceCode string) bool {
	for _, code := range sub.ServiceCodes {
		if code == serviceCode {
			return true
		}
	}
	return false
}
