package postgres

import (
	"context"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/repo/storetest"
)

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/db?sslmode=disable": "pgx5://u:p@localhost:5432/db?sslmode=disable",
		"postgresql://localhost/db":                        "pgx5://localhost/db",
		"pgx5://localhost/db":                              "pgx5://localhost/db",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Fatalf("migrateURL(%q)=%q want %q", in, got, want)
		}
	}
}

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	defer store.Close()

	// the contract expects empty tables
	if _, err := store.pool.Exec(ctx, `TRUNCATE execution_logs, targets RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	storetest.Run(t, store)
}
