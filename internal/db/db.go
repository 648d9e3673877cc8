// Package db opens the workspace-local sqlite store backing the plan
// pipeline. All state lives under <workspace>/.arborplan/.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDirName = ".arborplan"
	dbFileName       = "arborplan.db"
)

type Config struct {
	Workspace string
}

// Path returns the database file location for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDirName, dbFileName)
}

// EnsureWorkspace creates the hidden state directory and returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	dir := filepath.Join(workspace, workspaceDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}
	return dir, nil
}

// Open opens the workspace database with foreign keys enforced and a busy
// timeout covering the execution pipeline's multi-row transactions.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", Path(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writes; a single connection avoids lock churn
	// between the API handlers and the executor.
	conn.SetMaxOpenConns(1)
	return conn, nil
}
