package repo

import (
	"context"

	"arborplan/internal/domain"
	"arborplan/internal/planner"
)

func (r Repo) InsertService(ctx context.Context, s domain.Service) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO services(id,name,code) VALUES (?,?,?)`, s.ID, s.Name, s.Code)
	return err
}

func (r Repo) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,code FROM services ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var services []domain.Service
	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Code); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r Repo) InsertPricingRule(ctx context.Context, rule domain.PricingRule) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO pricing_rules(id,service_code,min_price_cents,max_price_cents,base_price_cents,notes)
VALUES (?,?,?,?,?,?)`,
		rule.ID, rule.ServiceCode, rule.MinPriceCents, rule.MaxPriceCents, rule.BasePriceCents, nullable(rule.Notes))
	return err
}

func (r Repo) ListPricingRules(ctx context.Context) ([]domain.PricingRule, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,service_code,min_price_cents,max_price_cents,base_price_cents,COALESCE(notes,'') FROM pricing_rules ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []domain.PricingRule
	for rows.Next() {
		var rule domain.PricingRule
		if err := rows.Scan(&rule.ID, &rule.ServiceCode, &rule.MinPriceCents, &rule.MaxPriceCents, &rule.BasePriceCents, &rule.Notes); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r Repo) InsertSubcontractor(ctx context.Context, sub domain.Subcontractor) error {
	active := 0
	if sub.IsActive {
		active = 1
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO subcontractors(id,name,phone,email,service_codes,base_city,base_state,is_active,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		sub.ID, sub.Name, sub.Phone, nullable(sub.Email), toJSON(sub.ServiceCodes),
		nullable(sub.BaseCity), nullable(sub.BaseState), active, sub.CreatedAt)
	if err != nil {
		return err
	}
	for _, w := range sub.Availabilities {
		if _, err := r.DB.ExecContext(ctx, `INSERT INTO subcontractor_availabilities(id,subcontractor_id,day_of_week,window_start,window_end)
VALUES (?,?,?,?,?)`,
			w.ID, sub.ID, w.DayOfWeek, w.WindowStart, w.WindowEnd); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) ListSubcontractors(ctx context.Context) ([]domain.Subcontractor, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,phone,COALESCE(email,''),service_codes,COALESCE(base_city,''),COALESCE(base_state,''),is_active,created_at FROM subcontractors ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []domain.Subcontractor
	for rows.Next() {
		var sub domain.Subcontractor
		var serviceCodes string
		var active int
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Phone, &sub.Email, &serviceCodes,
			&sub.BaseCity, &sub.BaseState, &active, &sub.CreatedAt); err != nil {
			return nil, err
		}
		sub.ServiceCodes = fromJSONStrings(serviceCodes)
		sub.IsActive = active != 0
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range subs {
		windows, err := r.listAvailabilities(ctx, subs[i].ID)
		if err != nil {
			return nil, err
		}
		subs[i].Availabilities = windows
	}
	return subs, nil
}

func (r Repo) listAvailabilities(ctx context.Context, subID string) ([]domain.AvailabilityWindow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,subcontractor_id,day_of_week,window_start,window_end FROM subcontractor_availabilities WHERE subcontractor_id=? ORDER BY day_of_week, window_start`, subID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var windows []domain.AvailabilityWindow
	for rows.Next() {
		var w domain.AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.SubcontractorID, &w.DayOfWeek, &w.WindowStart, &w.WindowEnd); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// LoadReference snapshots the full reference catalog for one run.
func (r Repo) LoadReference(ctx context.Context) (planner.Reference, error) {
	services, err := r.ListServices(ctx)
	if err != nil {
		return planner.Reference{}, err
	}
	rules, err := r.ListPricingRules(ctx)
	if err != nil {
		return planner.Reference{}, err
	}
	subs, err := r.ListSubcontractors(ctx)
	if err != nil {
		return planner.Reference{}, err
	}
	return planner.Reference{Services: services, PricingRules: rules, Subcontractors: subs}, nil
}
