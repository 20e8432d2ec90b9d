package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded goose migrations
func Migrate(databaseURL string, logger *zap.Logger) error {
	return up(databaseURL, migrationsFS, "migrations", logger)
}

// MigrateDir applies the goose migrations found in dir on disk
func MigrateDir(databaseURL, dir string, logger *zap.Logger) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory not found: %s", dir)
	}
	return up(databaseURL, nil, dir, logger)
}

func up(databaseURL string, fsys fs.FS, dir string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err == nil {
		logger.Info("Migrations applied", zap.String("source", dir), zap.Int64("version", version))
	}
	return nil
}
