package postgres

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations_Present(t *testing.T) {
	entries, err := fs.ReadDir(embedMigrations, "migrations")
	if err != nil {
		t.Fatalf("cannot read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations found")
	}

	b, err := fs.ReadFile(embedMigrations, "migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("0001_init.sql: %v", err)
	}
	sql := string(b)
	for _, want := range []string{"-- +goose Up", "-- +goose Down", "CREATE TABLE IF NOT EXISTS archive"} {
		if !strings.Contains(sql, want) {
			t.Errorf("0001_init.sql lacks %q", want)
		}
	}
}
