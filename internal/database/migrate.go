// Package database はデータベース接続とマイグレーション管理を提供する。
// 保存先はPostgreSQLとSQLiteの2種類で、スキーマはそれぞれ専用のマイグレーションで管理する。
package database

import (
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// migrationDir はURLスキームから対応するマイグレーションディレクトリを返す。
func migrationDir(databaseURL string) (string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "migrations/postgres", nil
	case strings.HasPrefix(databaseURL, "sqlite3://"):
		return "migrations/sqlite", nil
	default:
		return "", fmt.Errorf("unsupported database URL scheme: %s", maskScheme(databaseURL))
	}
}

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// databaseURLは "postgres://..." または "sqlite3://<path>" を指定する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	dir, err := migrationDir(databaseURL)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func maskScheme(databaseURL string) string {
	if i := strings.Index(databaseURL, "://"); i >= 0 {
		return databaseURL[:i] + "://..."
	}
	return "(no scheme)"
}
