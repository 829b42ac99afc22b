package postgres

import (
	"context"
	"os"
	"testing"

	"bilancio/internal/storage"
	"bilancio/internal/storage/storagetest"
)

// Runs only when TEST_DATABASE_URL points at a disposable database.
func TestStoreContract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		s, err := Open(ctx, url)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := s.pool.Exec(ctx, `TRUNCATE months, recurring_templates, users`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}
