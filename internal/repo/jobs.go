package repo

import (
	"context"
	"database/sql"

	"arborplan/internal/domain"
)

const jobColumns = `id,lead_id,quote_id,scheduled_date,scheduled_window_start,scheduled_window_end,status,created_at,updated_at`

func scanJob(scan func(dest ...any) error) (domain.Job, error) {
	var j domain.Job
	var status string
	err := scan(&j.ID, &j.LeadID, &j.QuoteID, &j.ScheduledDate, &j.WindowStart, &j.WindowEnd,
		&status, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	j.Status = domain.JobStatus(status)
	return j, err
}

func (r Repo) InsertJobTx(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO jobs(id,lead_id,quote_id,scheduled_date,scheduled_window_start,scheduled_window_end,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		j.ID, j.LeadID, j.QuoteID, j.ScheduledDate, j.WindowStart, j.WindowEnd,
		string(j.Status), j.CreatedAt, j.UpdatedAt)
	return err
}

func (r Repo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	return scanJob(row.Scan)
}

func (r Repo) ListJobsByLead(ctx context.Context, leadID string) ([]domain.Job, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE lead_id=? ORDER BY created_at DESC, id DESC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r Repo) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE jobs SET status=?, updated_at=? WHERE id=?`, string(status), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateJobSchedule(ctx context.Context, id, date, windowStart, windowEnd, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE jobs SET scheduled_date=?, scheduled_window_start=?, scheduled_window_end=?, updated_at=? WHERE id=?`,
		date, windowStart, windowEnd, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const assignmentColumns = `id,job_id,subcontractor_id,status,created_at,updated_at`

func scanAssignment(scan func(dest ...any) error) (domain.Assignment, error) {
	var a domain.Assignment
	var status string
	err := scan(&a.ID, &a.JobID, &a.SubcontractorID, &status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.Status = domain.AssignmentStatus(status)
	return a, err
}

func (r Repo) InsertAssignmentTx(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assignments(id,job_id,subcontractor_id,status,created_at,updated_at)
VALUES (?,?,?,?,?,?)`,
		a.ID, a.JobID, a.SubcontractorID, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id=?`, id)
	return scanAssignment(row.Scan)
}

func (r Repo) ListAssignmentsByLead(ctx context.Context, leadID string) ([]domain.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT a.id,a.job_id,a.subcontractor_id,a.status,a.created_at,a.updated_at
FROM assignments a JOIN jobs j ON j.id = a.job_id
WHERE j.lead_id=? ORDER BY a.created_at DESC, a.id DESC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (r Repo) UpdateAssignmentStatus(ctx context.Context, id string, status domain.AssignmentStatus, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE assignments SET status=?, updated_at=? WHERE id=?`, string(status), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveAssignmentExists reports whether the lead already has an assignment
// in assigned or confirmed state. Declined assignments do not block a rerun.
func (r Repo) ActiveAssignmentExists(ctx context.Context, leadID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments a
JOIN jobs j ON j.id = a.job_id
WHERE j.lead_id=? AND a.status IN ('assigned','confirmed')`, leadID).Scan(&n)
	return n > 0, err
}

const notificationColumns = `id,lead_id,job_id,channel,recipient,COALESCE(subject,''),body,status,created_at`

func scanNotification(scan func(dest ...any) error) (domain.Notification, error) {
	var nt domain.Notification
	var jobID sql.NullString
	var status string
	err := scan(&nt.ID, &nt.LeadID, &jobID, &nt.Channel, &nt.To, &nt.Subject, &nt.Body, &status, &nt.CreatedAt)
	if err == sql.ErrNoRows {
		return nt, ErrNotFound
	}
	if jobID.Valid {
		nt.JobID = &jobID.String
	}
	nt.Status = domain.NotificationStatus(status)
	return nt, err
}

func (r Repo) InsertNotificationTx(ctx context.Context, tx *sql.Tx, nt domain.Notification) error {
	var jobID any
	if nt.JobID != nil {
		jobID = *nt.JobID
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,lead_id,job_id,channel,recipient,subject,body,status,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		nt.ID, nt.LeadID, jobID, nt.Channel, nt.To, nullable(nt.Subject), nt.Body,
		string(nt.Status), nt.CreatedAt)
	return err
}

func (r Repo) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=?`, id)
	return scanNotification(row.Scan)
}

func (r Repo) ListNotificationsByLead(ctx context.Context, leadID string) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE lead_id=? ORDER BY created_at DESC, id DESC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notifications []domain.Notification
	for rows.Next() {
		nt, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, nt)
	}
	return notifications, rows.Err()
}
