// Package jobhistory persists a record of each processed input to a local
// sqlite database, independent of the core pipeline engine: the executor
// has no hard dependency on persistence, and a nil *Store is always safe
// to call against.
package jobhistory

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PipelineRun is one row recording the outcome of running a single input
// through a stage chain.
type PipelineRun struct {
	ID            RunID  `gorm:"primarykey;type:varchar(26)"`
	InputPath     string `gorm:"index"`
	OutputPath    string
	StageCount    int
	QualityStatus string // "passed", "failed", "skipped", or "" if no gates configured
	DurationMs    float64
	RecordedAt    time.Time `gorm:"index"`
}

// BeforeCreate assigns a RunID if one hasn't already been set.
func (p *PipelineRun) BeforeCreate(_ *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewRunID()
	}
	return nil
}

// Store wraps a *gorm.DB for recording and querying PipelineRun rows.
type Store struct {
	db *gorm.DB
}

// Open creates (or opens) a sqlite-backed Store at dsn, migrating the
// PipelineRun schema. An empty dsn is invalid; callers that want job
// history disabled should simply keep store as a nil *Store rather than
// calling Open.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening job history database: %w", err)
	}

	if err := db.AutoMigrate(&PipelineRun{}); err != nil {
		return nil, fmt.Errorf("migrating job history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts a PipelineRun row. Record is a no-op on a nil *Store so
// callers can wire an optional store without conditionals at every call
// site.
func (s *Store) Record(run PipelineRun) error {
	if s == nil {
		return nil
	}
	if run.RecordedAt.IsZero() {
		run.RecordedAt = time.Now()
	}
	if err := s.db.Create(&run).Error; err != nil {
		return fmt.Errorf("recording pipeline run: %w", err)
	}
	return nil
}

// Recent returns the most recently recorded runs, newest first, bounded
// to limit rows. Recent returns an empty slice (not an error) on a nil
// *Store.
func (s *Store) Recent(limit int) ([]PipelineRun, error) {
	if s == nil {
		return nil, nil
	}
	var runs []PipelineRun
	if err := s.db.Order("recorded_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("querying recent pipeline runs: %w", err)
	}
	return runs, nil
}

// Close releases the underlying database connection. Close is a no-op on
// a nil *Store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing job history database: %w", err)
	}
	return nil
}
