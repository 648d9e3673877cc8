package migrate_test

import (
	"testing"

	"arborplan/internal/db"
	"arborplan/internal/migrate"
)

func TestMigrateRecordsVersions(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 {
		t.Fatalf("version: got %d want 1", v)
	}

	var name string
	if err := conn.QueryRow(`SELECT name FROM schema_migrations WHERE version = 1`).Scan(&name); err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if name != "0001_init" {
		t.Fatalf("ledger name: %q", name)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&rows); err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if rows != 1 {
		t.Fatalf("ledger rows after rerun: %d", rows)
	}

	if _, err := conn.Exec(`INSERT INTO leads(id,full_name,address_line1,city,state,postal_code,service_requested,status,created_at,updated_at)
		VALUES ('l1','A','1 St','Austin','TX','78701','Trim','new','2026-09-01T00:00:00Z','2026-09-01T00:00:00Z')`); err != nil {
		t.Fatalf("schema unusable after rerun: %v", err)
	}
}
