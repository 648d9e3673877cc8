package repo

import "context"

// ResetDemoData deletes all pipeline and reference rows in dependency
// order. Admin users are kept so sessions survive a reset.
func (r Repo) ResetDemoData(ctx context.Context) error {
	tables := []string{
		"action_logs",
		"notifications",
		"assignments",
		"jobs",
		"quote_line_items",
		"quotes",
		"agent_runs",
		"leads",
		"subcontractor_availabilities",
		"subcontractors",
		"pricing_rules",
		"services",
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return tx.Commit()
}
