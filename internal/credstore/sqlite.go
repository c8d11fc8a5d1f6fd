package credstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/howlhq/go-howl-client/internal/domain"
)

// SQLiteLocation is the durable credential location, backed by a small
// SQLite database so remembered logins survive process restarts.
type SQLiteLocation struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the credential database, applies PRAGMAs,
// and migrates the schema.
func OpenSQLite(path string) (*SQLiteLocation, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool: the store is a single-writer key/value table, keep it small.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&domain.Credential{}); err != nil {
		return nil, err
	}

	return &SQLiteLocation{db: db}, nil
}

// Get implements Location.
func (s *SQLiteLocation) Get(ctx context.Context, name string) (string, bool, error) {
	var row domain.Credential
	err := s.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, row.Value != "", nil
}

// Set implements Location via an upsert keyed on the credential name.
func (s *SQLiteLocation) Set(ctx context.Context, name, value string) error {
	row := domain.Credential{Name: name, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

// Delete implements Location.
func (s *SQLiteLocation) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("name IN ?", names).
		Delete(&domain.Credential{}).Error
}
