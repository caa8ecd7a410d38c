// Package store persists completed scan runs. The store is append-only:
// later scans of a target supersede earlier ones, nothing is ever updated
// or deleted.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

// ScanRun is the persistence row for one ScanResult. Findings and module
// failures are stored as JSON text; the queryable columns are the ones
// history lookups filter on.
type ScanRun struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	ScanID          string `gorm:"uniqueIndex;size:64"`
	Target          string `gorm:"index;size:255"`
	DeviceHint      string `gorm:"size:64"`
	Profile         string `gorm:"size:32"`
	Status          string `gorm:"size:16"`
	TopSeverity     string `gorm:"size:16"`
	FindingCount    int
	RawObservations int
	Findings        string `gorm:"type:text"`
	ModuleFailures  string `gorm:"type:text"`
	StartedAt       time.Time
	CompletedAt     time.Time `gorm:"index"`
	CreatedAt       time.Time
}

// Store wraps the scan-run table.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path, creating the schema when
// missing. ":memory:" gives an ephemeral store for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	if err := db.AutoMigrate(&ScanRun{}); err != nil {
		return nil, fmt.Errorf("migrate result store: %w", err)
	}
	log.WithField("path", path).Debug("Result store ready")
	return &Store{db: db}, nil
}

// Append writes one completed scan run. Insert only; an existing scan id is
// a caller bug and surfaces as a PersistError like any other write failure.
func (s *Store) Append(ctx context.Context, result *domain.ScanResult) error {
	row, err := rowFromResult(result)
	if err != nil {
		return &domain.PersistError{Err: err}
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return &domain.PersistError{Err: err}
	}
	return nil
}

// History returns the most recent scan runs for a target address, newest
// first. limit <= 0 means no limit.
func (s *Store) History(ctx context.Context, target string, limit int) ([]domain.ScanResult, error) {
	q := s.db.WithContext(ctx).
		Where("target = ?", target).
		Order("completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []ScanRun
	if err := q.Find(&rows).Error; err != nil {
		return nil, &domain.PersistError{Err: err}
	}
	return resultsFromRows(rows)
}

// Since returns every scan run completed at or after t, newest first.
func (s *Store) Since(ctx context.Context, t time.Time) ([]domain.ScanResult, error) {
	var rows []ScanRun
	err := s.db.WithContext(ctx).
		Where("completed_at >= ?", t).
		Order("completed_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, &domain.PersistError{Err: err}
	}
	return resultsFromRows(rows)
}

// Get looks up one scan run by its scan id.
func (s *Store) Get(ctx context.Context, scanID string) (*domain.ScanResult, error) {
	var row ScanRun
	err := s.db.WithContext(ctx).Where("scan_id = ?", scanID).First(&row).Error
	if err != nil {
		return nil, &domain.PersistError{Err: err}
	}
	result, err := resultFromRow(row)
	if err != nil {
		return nil, &domain.PersistError{Err: err}
	}
	return result, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowFromResult(r *domain.ScanResult) (*ScanRun, error) {
	findings, err := json.Marshal(r.Findings)
	if err != nil {
		return nil, fmt.Errorf("encode findings: %w", err)
	}
	failures, err := json.Marshal(r.ModuleFailures)
	if err != nil {
		return nil, fmt.Errorf("encode module failures: %w", err)
	}
	return &ScanRun{
		ScanID:          r.ID,
		Target:          r.Target.Address,
		DeviceHint:      r.Target.DeviceHint,
		Profile:         string(r.Profile),
		Status:          string(r.Status),
		TopSeverity:     string(r.TopSeverity()),
		FindingCount:    len(r.Findings),
		RawObservations: r.RawObservationCount,
		Findings:        string(findings),
		ModuleFailures:  string(failures),
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
	}, nil
}

func resultFromRow(row ScanRun) (*domain.ScanResult, error) {
	result := &domain.ScanResult{
		ID:                  row.ScanID,
		Target:              domain.Target{Address: row.Target, DeviceHint: row.DeviceHint},
		Profile:             domain.Profile(row.Profile),
		StartedAt:           row.StartedAt,
		CompletedAt:         row.CompletedAt,
		RawObservationCount: row.RawObservations,
		Status:              domain.ScanStatus(row.Status),
	}
	if row.Findings != "" {
		if err := json.Unmarshal([]byte(row.Findings), &result.Findings); err != nil {
			return nil, fmt.Errorf("decode findings for %s: %w", row.ScanID, err)
		}
	}
	if row.ModuleFailures != "" {
		if err := json.Unmarshal([]byte(row.ModuleFailures), &result.ModuleFailures); err != nil {
			return nil, fmt.Errorf("decode module failures for %s: %w", row.ScanID, err)
		}
	}
	return result, nil
}

func resultsFromRows(rows []ScanRun) ([]domain.ScanResult, error) {
	results := make([]domain.ScanResult, 0, len(rows))
	for _, row := range rows {
		r, err := resultFromRow(row)
		if err != nil {
			return nil, &domain.PersistError{Err: err}
		}
		results = append(results, *r)
	}
	return results, nil
}
