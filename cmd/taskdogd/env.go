package main

import (
	"fmt"
	"path/filepath"

	"taskdog/internal/audit"
	"taskdog/internal/broadcast"
	"taskdog/internal/config"
	"taskdog/internal/repository/sqlite"
	"taskdog/internal/timeutil"
	"taskdog/internal/usecase"
	"taskdog/internal/validate"
)

// environment bundles everything a command needs to talk to a
// workspace's task store, and must be closed once the command is
// done with it.
type environment struct {
	cfg         *config.Config
	repo        *sqlite.Repository
	controller  *usecase.Controller
	broadcaster *broadcast.Broadcaster
}

func (e *environment) Close() error {
	e.broadcaster.Shutdown()
	return e.repo.Close()
}

// openEnvironment loads config.yaml (or defaults) from ws, opens the
// sqlite repository it points to, and wires a Controller over it.
func openEnvironment(ws string) (*environment, error) {
	cfg, err := config.Load(filepath.Join(ws, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dbPath := cfg.Database.Path
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(ws, dbPath)
	}
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	auditSink := audit.NewSink(sqlite.NewAuditRepository(repo))
	broadcaster := broadcast.New()
	holidays := timeutil.HolidaysForRegion(cfg.Region.Country)

	controller := usecase.New(
		repo, broadcaster, auditSink, validate.NewRegistry(),
		cfg.DefaultStartTime(), cfg.DefaultEndTime(), holidays,
	)

	return &environment{cfg: cfg, repo: repo, controller: controller, broadcaster: broadcaster}, nil
}
