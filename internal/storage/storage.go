// Package storage persists verification run history.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/veriforge/internal/config"
	"github.com/pendergraft/veriforge/internal/report"
)

// RunSummary is one row of run history.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Verified   int       `json:"verified"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}

// Store persists verification runs. Consumers needing fewer methods define
// their own interfaces.
type Store interface {
	SaveRun(ctx context.Context, r *report.Report) error
	GetRun(ctx context.Context, id string) (*report.Report, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	Close() error
	Migrate(ctx context.Context) error
}

// New creates a store based on configuration.
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
