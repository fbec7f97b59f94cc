package sqlite

import (
	"context"
	"testing"

	"github.com/rkamal/authcore/internal/model"
)

// newTestDB returns a DB backed by a throwaway in-memory database,
// closed automatically when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a password user and fails the test on error.
func createTestUser(t *testing.T, users *UserStore, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "$2a$04$fakefakefakefakefakefakefakefakefakefakefakefakefakef",
		Name:         "Test User",
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	// Running migrations again on a populated schema must be a no-op.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}
