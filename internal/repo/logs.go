package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"arborplan/internal/domain"
)

func scanActionLog(scan func(dest ...any) error) (domain.ActionLog, error) {
	var entry domain.ActionLog
	var agentRunID sql.NullString
	var payload string
	err := scan(&entry.ID, &entry.LeadID, &agentRunID, &entry.ActionType, &entry.Status,
		&payload, &entry.ErrorMessage, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return entry, ErrNotFound
	}
	if agentRunID.Valid {
		entry.AgentRunID = &agentRunID.String
	}
	entry.Payload = json.RawMessage(payload)
	return entry, err
}

func (r Repo) ListActionLogsByLead(ctx context.Context, leadID string) ([]domain.ActionLog, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,lead_id,agent_run_id,action_type,status,payload,COALESCE(error_message,''),created_at
FROM action_logs WHERE lead_id=? ORDER BY created_at, id`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.ActionLog
	for rows.Next() {
		entry, err := scanActionLog(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Timeline merges a lead's action logs and agent runs into one
// chronological view, oldest first.
func (r Repo) Timeline(ctx context.Context, leadID string) ([]domain.TimelineEntry, error) {
	logs, err := r.ListActionLogsByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	runs, err := r.ListAgentRunsByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.TimelineEntry, 0, len(logs)+len(runs))
	for _, l := range logs {
		entries = append(entries, domain.TimelineEntry{
			Type:         "action_log",
			ID:           l.ID,
			CreatedAt:    l.CreatedAt,
			ActionType:   l.ActionType,
			Status:       l.Status,
			Payload:      l.Payload,
			ErrorMessage: l.ErrorMessage,
		})
	}
	for _, run := range runs {
		duration := run.DurationMs
		entries = append(entries, domain.TimelineEntry{
			Type:             "agent_run",
			ID:               run.ID,
			CreatedAt:        run.CreatedAt,
			Status:           string(run.Status),
			Model:            run.Model,
			ValidationErrors: run.ValidationErrors,
			DurationMs:       &duration,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt != entries[j].CreatedAt {
			return entries[i].CreatedAt < entries[j].CreatedAt
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}
