// Package seed populates demo reference data: the service catalog, pricing
// rules, subcontractors with availability, sample leads, and an admin user.
package seed

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"arborplan/internal/domain"
	"arborplan/internal/repo"
)

const (
	defaultAdminEmail    = "admin@example.com"
	defaultAdminPassword = "password123"
)

type seedSub struct {
	name         string
	phone        string
	email        string
	serviceCodes []string
	city         string
	state        string
	windows      []domain.AvailabilityWindow
}

// Populate inserts the demo dataset. It is idempotent per entity name and
// safe to run against a database that already holds data.
func Populate(ctx context.Context, r repo.Repo, now func() time.Time) error {
	ts := now().UTC().Format(time.RFC3339)

	if err := populateAdmin(ctx, r, ts); err != nil {
		return err
	}

	services := []domain.Service{
		{Name: "Removal", Code: "tree_removal"},
		{Name: "Trimming", Code: "trimming"},
		{Name: "Stump Grinding", Code: "stump_grinding"},
	}
	existing, err := r.ListServices(ctx)
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for _, s := range existing {
		have[s.Code] = true
	}
	for _, s := range services {
		if have[s.Code] {
			continue
		}
		s.ID = uuid.New().String()
		if err := r.InsertService(ctx, s); err != nil {
			return err
		}
	}

	rules := []domain.PricingRule{
		{ServiceCode: "tree_removal", MinPriceCents: 50000, MaxPriceCents: 250000, BasePriceCents: 120000},
		{ServiceCode: "trimming", MinPriceCents: 20000, MaxPriceCents: 90000, BasePriceCents: 45000},
		{ServiceCode: "stump_grinding", MinPriceCents: 30000, MaxPriceCents: 120000, BasePriceCents: 65000},
	}
	existingRules, err := r.ListPricingRules(ctx)
	if err != nil {
		return err
	}
	haveRule := map[string]bool{}
	for _, rule := range existingRules {
		haveRule[rule.ServiceCode] = true
	}
	for _, rule := range rules {
		if haveRule[rule.ServiceCode] {
			continue
		}
		rule.ID = uuid.New().String()
		if err := r.InsertPricingRule(ctx, rule); err != nil {
			return err
		}
	}

	subs := []seedSub{
		{
			name: "Pine Ridge Tree Co", phone: "555-0101", email: "dispatch@pineridge.example",
			serviceCodes: []string{"tree_removal", "trimming"}, city: "Austin", state: "TX",
			windows: []domain.AvailabilityWindow{
				{DayOfWeek: 1, WindowStart: "08:00", WindowEnd: "11:30"},
				{DayOfWeek: 3, WindowStart: "12:30", WindowEnd: "16:30"},
				{DayOfWeek: 5, WindowStart: "09:00", WindowEnd: "14:00"},
			},
		},
		{
			name: "Canopy Care Partners", phone: "555-0102", email: "ops@canopycare.example",
			serviceCodes: []string{"trimming", "stump_grinding"}, city: "Round Rock", state: "TX",
			windows: []domain.AvailabilityWindow{
				{DayOfWeek: 2, WindowStart: "10:00", WindowEnd: "15:00"},
				{DayOfWeek: 4, WindowStart: "08:30", WindowEnd: "12:30"},
				{DayOfWeek: 4, WindowStart: "13:30", WindowEnd: "17:00"},
			},
		},
		{
			name: "Root & Branch Services", phone: "555-0103", email: "hello@rootbranch.example",
			serviceCodes: []string{"tree_removal", "stump_grinding"}, city: "Georgetown", state: "TX",
			windows: []domain.AvailabilityWindow{
				{DayOfWeek: 1, WindowStart: "07:30", WindowEnd: "10:30"},
				{DayOfWeek: 2, WindowStart: "12:00", WindowEnd: "16:30"},
				{DayOfWeek: 5, WindowStart: "09:30", WindowEnd: "12:30"},
			},
		},
	}
	existingSubs, err := r.ListSubcontractors(ctx)
	if err != nil {
		return err
	}
	haveSub := map[string]bool{}
	for _, sub := range existingSubs {
		haveSub[sub.Name] = true
	}
	for _, s := range subs {
		if haveSub[s.name] {
			continue
		}
		sub := domain.Subcontractor{
			ID:           uuid.New().String(),
			Name:         s.name,
			Phone:        s.phone,
			Email:        s.email,
			ServiceCodes: s.serviceCodes,
			BaseCity:     s.city,
			BaseState:    s.state,
			IsActive:     true,
			CreatedAt:    ts,
		}
		for _, w := range s.windows {
			w.ID = uuid.New().String()
			w.SubcontractorID = sub.ID
			sub.Availabilities = append(sub.Availabilities, w)
		}
		if err := r.InsertSubcontractor(ctx, sub); err != nil {
			return err
		}
	}

	leads := []domain.Lead{
		{
			FullName: "Jordan Blake", Email: "jordan.blake@example.com", Phone: "555-0201",
			AddressLine1: "123 Maple St", City: "Austin", State: "TX", PostalCode: "78701",
			ServiceRequested: "Large tree removal", Notes: "Oak tree leaning over garage.",
			UrgencyHint: "ASAP",
		},
		{
			FullName: "Riley Chen", Email: "riley.chen@example.com", Phone: "555-0202",
			AddressLine1: "456 Cedar Ave", City: "Pflugerville", State: "TX", PostalCode: "78660",
			ServiceRequested: "Seasonal trimming", Notes: "Front yard hedges and tree limbs.",
			UrgencyHint: "this week",
		},
		{
			FullName: "Morgan Patel", Email: "morgan.patel@example.com", Phone: "555-0203",
			AddressLine1: "789 Pine Dr", City: "Round Rock", State: "TX", PostalCode: "78664",
			ServiceRequested: "Stump grinding", Notes: "Two old stumps near driveway.",
			UrgencyHint: "next week",
		},
		{
			FullName: "Casey Nguyen", Email: "casey.nguyen@example.com", Phone: "555-0204",
			AddressLine1: "321 Birch Rd", City: "Georgetown", State: "TX", PostalCode: "78626",
			ServiceRequested: "Tree removal and cleanup", Notes: "Pine tree is dead; wants haul away.",
			UrgencyHint: "this month",
		},
		{
			FullName: "Avery Singh", Email: "avery.singh@example.com", Phone: "555-0205",
			AddressLine1: "654 Walnut Ln", City: "Austin", State: "TX", PostalCode: "78745",
			ServiceRequested: "Trimming over roof", Notes: "Branches scraping roof during wind.",
			UrgencyHint: "soon",
		},
	}
	existingLeads, err := r.ListLeads(ctx)
	if err != nil {
		return err
	}
	haveLead := map[string]bool{}
	for _, l := range existingLeads {
		haveLead[l.FullName+"|"+l.AddressLine1] = true
	}
	for _, l := range leads {
		if haveLead[l.FullName+"|"+l.AddressLine1] {
			continue
		}
		l.ID = uuid.New().String()
		l.Status = domain.LeadNew
		l.CreatedAt = ts
		l.UpdatedAt = ts
		if err := r.InsertLead(ctx, l); err != nil {
			return err
		}
	}

	return nil
}

func populateAdmin(ctx context.Context, r repo.Repo, ts string) error {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = defaultAdminEmail
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}
	if _, err := r.GetAdminUserByEmail(ctx, email); err == nil {
		return nil
	} else if err != repo.ErrNotFound {
		return err
	}
	return r.InsertAdminUser(ctx, domain.AdminUser{
		ID:             uuid.New().String(),
		Email:          email,
		PasswordDigest: repo.HashPassword(password),
		CreatedAt:      ts,
	})
}
