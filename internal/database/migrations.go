package database

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/ascvd-risk-server/migrations"
)

// MigrationRunner applies the embedded schema migrations to the patient
// registry database.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner builds a runner over the embedded migration files.
func NewMigrationRunner(databaseURL string, logger *logrus.Logger) (*MigrationRunner, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		log:     logger,
	}, nil
}

// Up applies all pending migrations.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	return mr.run(ctx, "up", mr.migrate.Up)
}

// Down rolls back one migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	return mr.run(ctx, "down", func() error { return mr.migrate.Steps(-1) })
}

// run drives one migration step. Cancelling ctx requests a graceful stop:
// the migration currently in flight finishes, further steps do not start.
func (mr *MigrationRunner) run(ctx context.Context, direction string, step func() error) error {
	done := make(chan error, 1)
	go func() { done <- step() }()

	var err error
	select {
	case <-ctx.Done():
		mr.migrate.GracefulStop <- true
		<-done
		return ctx.Err()
	case err = <-done:
	}

	if err == migrate.ErrNoChange {
		mr.log.WithField("direction", direction).Info("Patient schema already current")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrating %s: %w", direction, err)
	}

	version, dirty, verr := mr.migrate.Version()
	if verr != nil {
		// migrate.ErrNilVersion after rolling back the last migration
		mr.log.WithField("direction", direction).Info("Patient schema migrated")
		return nil
	}

	mr.log.WithFields(logrus.Fields{
		"direction": direction,
		"version":   version,
		"dirty":     dirty,
	}).Info("Patient schema migrated")
	return nil
}

// Version returns the current schema version.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close releases the runner's source and database handles.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
