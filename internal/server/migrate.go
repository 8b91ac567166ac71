package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationsSource turns a directory into a golang-migrate source URL.
// Values that already carry a scheme are returned unchanged.
func MigrationsSource(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	if strings.Contains(dir, "://") {
		return dir, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}

// Migrate applies database migrations from dir to the database at dsn.
// direction is "up" or "down"; steps > 0 limits how many migrations run.
// Having nothing to apply is not an error.
func Migrate(dir string, dsn string, direction string, steps int) error {
	if dsn == "" {
		return errors.New("migrate: empty dsn")
	}
	source, err := MigrationsSource(dir)
	if err != nil {
		return err
	}

	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
