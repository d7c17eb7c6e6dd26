package store

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sawpanic/klinenode/internal/klerrors"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// Migrate runs the embedded schema migrations for dbURL's backend to the
// latest version. This is the `klinenode migrate` CLI path; Connect also
// ensures schema inline so a fresh node never needs this step to boot.
func Migrate(dbURL string) error {
	var (
		sourceFS embed.FS
		sub      string
		driver   string
	)
	switch {
	case strings.HasPrefix(dbURL, "sqlite://"):
		sourceFS, sub, driver = sqliteMigrations, "migrations/sqlite", "sqlite3"
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		sourceFS, sub, driver = postgresMigrations, "migrations/postgres", "postgres"
	default:
		return fmt.Errorf("%w: unsupported DB_URL scheme in %q", klerrors.ErrConfig, dbURL)
	}

	src, err := iofs.New(sourceFS, sub)
	if err != nil {
		return fmt.Errorf("%w: load migration source: %v", klerrors.ErrStore, err)
	}

	migrateURL := dbURL
	if driver == "sqlite3" {
		migrateURL = "sqlite3://" + strings.TrimPrefix(dbURL, "sqlite://")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL)
	if err != nil {
		return fmt.Errorf("%w: init migrator: %v", klerrors.ErrStore, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: apply migrations: %v", klerrors.ErrStore, err)
	}
	return nil
}
