package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"arborplan/internal/domain"
)

const runColumns = `id,lead_id,status,COALESCE(model,''),input_context,output_plan,COALESCE(validation_errors,'[]'),COALESCE(duration_ms,0),created_at,updated_at`

func scanRun(scan func(dest ...any) error) (domain.AgentRun, error) {
	var run domain.AgentRun
	var status, inputContext, outputPlan, validationErrors string
	err := scan(&run.ID, &run.LeadID, &status, &run.Model, &inputContext, &outputPlan,
		&validationErrors, &run.DurationMs, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	if err != nil {
		return run, err
	}
	run.Status = domain.RunStatus(status)
	run.InputContext = json.RawMessage(inputContext)
	run.OutputPlan = json.RawMessage(outputPlan)
	run.ValidationErrors = fromJSONStrings(validationErrors)
	return run, nil
}

func (r Repo) InsertAgentRun(ctx context.Context, run domain.AgentRun) error {
	inputContext := "{}"
	if len(run.InputContext) > 0 {
		inputContext = string(run.InputContext)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO agent_runs(id,lead_id,status,model,input_context,output_plan,validation_errors,duration_ms,created_at,updated_at)
VALUES (?,?,?,?,?,'{}',?,?,?,?)`,
		run.ID, run.LeadID, string(run.Status), nullable(run.Model), inputContext,
		toJSON(run.ValidationErrors), run.DurationMs, run.CreatedAt, run.UpdatedAt)
	return err
}

func (r Repo) GetAgentRun(ctx context.Context, id string) (domain.AgentRun, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE id=?`, id)
	return scanRun(row.Scan)
}

func (r Repo) ListAgentRunsByLead(ctx context.Context, leadID string) ([]domain.AgentRun, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE lead_id=? ORDER BY created_at, id`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []domain.AgentRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateAgentRunStatus advances a run's state machine field only.
func (r Repo) UpdateAgentRunStatus(ctx context.Context, id string, status domain.RunStatus, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE agent_runs SET status=?, updated_at=? WHERE id=?`, string(status), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishAgentRun records the terminal outcome: status, the model that
// produced the final plan, the plan itself, validation errors, and duration.
func (r Repo) FinishAgentRun(ctx context.Context, run domain.AgentRun) error {
	outputPlan := "{}"
	if len(run.OutputPlan) > 0 {
		outputPlan = string(run.OutputPlan)
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE agent_runs SET status=?, model=?, output_plan=?, validation_errors=?, duration_ms=?, updated_at=? WHERE id=?`,
		string(run.Status), nullable(run.Model), outputPlan, toJSON(run.ValidationErrors),
		run.DurationMs, run.UpdatedAt, run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
