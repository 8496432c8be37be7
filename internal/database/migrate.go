// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// users・schedules・transactions のスキーマ定義
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion は適用済みマイグレーションの状態。
type SchemaVersion struct {
	Version uint
	Dirty   bool
}

// NewMigrator はembedされたSQLを読み込むmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用する。
// 既に最新の場合はエラーにしない。
func RunMigrations(databaseURL string) error {
	_, err := MigrateUp(databaseURL)
	return err
}

// MigrateUp はマイグレーションを適用し、適用後のスキーマバージョンを返す。
// 前回の失敗でdirtyになっている場合は適用せずにエラーを返す。
func MigrateUp(databaseURL string) (*SchemaVersion, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	before, err := currentVersion(m)
	if err != nil {
		return nil, err
	}
	if before.Dirty {
		return before, fmt.Errorf("schema version %d is dirty; fix it manually before migrating", before.Version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return currentVersion(m)
}

// currentVersion は未適用（ErrNilVersion）をバージョン0として扱う。
func currentVersion(m *migrate.Migrate) (*SchemaVersion, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return &SchemaVersion{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	return &SchemaVersion{Version: v, Dirty: dirty}, nil
}
