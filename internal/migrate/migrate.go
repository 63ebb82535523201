package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

// Dialect maps a configured database driver (postgres, sqlite, sqlite3)
// to the database/sql driver name and the goose dialect.
func Dialect(driver string) (sqlDriver, dialect string, err error) {
	switch driver {
	case "postgres", "pgx", "":
		return "pgx", "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite3", "sqlite3", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Run applies all pending migrations for driver using goose.
// It opens and closes its own DB handle so it is independent of the app store.
func Run(driver, dsn string) error {
	sqlDriver, _, err := Dialect(driver)
	if err != nil {
		return err
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	return Up(db, driver)
}

// Up applies the embedded migrations for driver on an existing handle.
func Up(db *sql.DB, driver string) error {
	_, dialect, err := Dialect(driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations/"+dialect); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
