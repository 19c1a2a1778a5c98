package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/kalorin/webseek/internal/config"
	"github.com/kalorin/webseek/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "webseek",
		Password: "webseek_pass",
		DBName:   "webseek_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	reset(t, conn)
	return conn, func() {
		_ = conn.Close()
	}
}

func reset(t *testing.T, conn *sql.DB) {
	t.Helper()
	for _, table := range []string{"kv_cache", "semantic_cache", "embedding_cache"} {
		if _, err := conn.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}
