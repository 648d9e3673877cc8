// Package audit appends action_log rows, the append-only trail every
// pipeline step leaves behind.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Payload map[string]any

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Append writes one audit entry. When tx is non-nil the write joins the
// caller's transaction; otherwise it is committed immediately.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, leadID, agentRunID, actionType, status string, payload Payload, errorMessage string) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	query := `INSERT INTO action_logs(id,lead_id,agent_run_id,action_type,status,payload,error_message,created_at) VALUES (?,?,?,?,?,?,?,?)`
	args := []any{uuid.New().String(), leadID, nullable(agentRunID), actionType, status, string(data), nullable(errorMessage), ts}
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = w.DB.ExecContext(ctx, query, args...)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
