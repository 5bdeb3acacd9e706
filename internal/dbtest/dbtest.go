// Package dbtest opens throwaway stores for tests. Only _test.go files import
// it, so it never reaches a production binary.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/mroshb/couple_journal/internal/database"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenTestDB returns a migrated SQLite store in a per-test temp directory.
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "journal_test.db"), "", gormlogger.Silent)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
