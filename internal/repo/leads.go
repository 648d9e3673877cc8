package repo

import (
	"context"
	"database/sql"

	"arborplan/internal/domain"
)

const leadColumns = `id,full_name,COALESCE(email,''),COALESCE(phone,''),address_line1,COALESCE(address_line2,''),city,state,postal_code,service_requested,COALESCE(notes,''),COALESCE(urgency_hint,''),status,created_at,updated_at`

func scanLead(scan func(dest ...any) error) (domain.Lead, error) {
	var l domain.Lead
	var status string
	err := scan(&l.ID, &l.FullName, &l.Email, &l.Phone, &l.AddressLine1, &l.AddressLine2,
		&l.City, &l.State, &l.PostalCode, &l.ServiceRequested, &l.Notes, &l.UrgencyHint,
		&status, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	l.Status = domain.LeadStatus(status)
	return l, err
}

func (r Repo) InsertLead(ctx context.Context, l domain.Lead) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO leads(id,full_name,email,phone,address_line1,address_line2,city,state,postal_code,service_requested,notes,urgency_hint,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.FullName, nullable(l.Email), nullable(l.Phone), l.AddressLine1, nullable(l.AddressLine2),
		l.City, l.State, l.PostalCode, l.ServiceRequested, nullable(l.Notes), nullable(l.UrgencyHint),
		string(l.Status), l.CreatedAt, l.UpdatedAt)
	return err
}

func (r Repo) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=?`, id)
	return scanLead(row.Scan)
}

func (r Repo) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var leads []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows.Scan)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// UpdateLead rewrites the mutable intake fields. Status changes go through
// UpdateLeadStatus so the pipeline owns lifecycle transitions.
func (r Repo) UpdateLead(ctx context.Context, l domain.Lead) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE leads SET full_name=?,email=?,phone=?,address_line1=?,address_line2=?,city=?,state=?,postal_code=?,service_requested=?,notes=?,urgency_hint=?,updated_at=? WHERE id=?`,
		l.FullName, nullable(l.Email), nullable(l.Phone), l.AddressLine1, nullable(l.AddressLine2),
		l.City, l.State, l.PostalCode, l.ServiceRequested, nullable(l.Notes), nullable(l.UrgencyHint),
		l.UpdatedAt, l.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateLeadStatus(ctx context.Context, tx *sql.Tx, id string, status domain.LeadStatus, updatedAt string) error {
	query := `UPDATE leads SET status=?, updated_at=? WHERE id=?`
	var (
		res sql.Result
		err error
	)
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, string(status), updatedAt, id)
	} else {
		res, err = r.DB.ExecContext(ctx, query, string(status), updatedAt, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
