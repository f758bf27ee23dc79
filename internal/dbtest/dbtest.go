// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"syllabusai/internal/config"
	"syllabusai/internal/database"
)

// New returns a migrated database backed by a file in t.TempDir().
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.InitDatabase(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// User inserts an account with a placeholder hash.
func User(t testing.TB, db *gorm.DB, username string) database.User {
	t.Helper()
	user := database.User{Username: username, PasswordHash: "x", Role: database.RoleUser}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return user
}
